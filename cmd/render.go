package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/spigell/gh-profiler/internal/analysis"
	"github.com/spigell/gh-profiler/internal/profile"
)

const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", OutputText:
		return text(w)
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (use text, json or yaml)", format)
	}
}

func renderRecord(w io.Writer, format string, rec *profile.AnalysisRecord) error {
	return render(w, format, rec, func(w io.Writer) error { return writeRecordText(w, rec) })
}

func renderLeaderboard(w io.Writer, format string, entries []analysis.LeaderboardEntry) error {
	return render(w, format, entries, func(w io.Writer) error { return writeLeaderboardText(w, entries) })
}

func writeRecordText(w io.Writer, rec *profile.AnalysisRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Developer:\t%s\n", rec.Identifier)
	if raw := rec.Profile; raw != nil {
		if raw.Name != "" {
			fmt.Fprintf(tw, "Name:\t%s\n", raw.Name)
		}
		if url := rec.ProfileURL(); url != "" {
			fmt.Fprintf(tw, "Profile:\t%s\n", url)
		}
		fmt.Fprintf(tw, "Followers:\t%d\n", raw.Followers)
		fmt.Fprintf(tw, "Repositories:\t%d analyzed of %d public\n", len(raw.Repositories), raw.PublicRepos)
		fmt.Fprintf(tw, "Commits:\t%d over %d months (%d active)\n",
			raw.Activity.TotalCommits, raw.Activity.Months, raw.Activity.ActiveMonths())
		if langs := raw.Languages(); len(langs) > 0 {
			fmt.Fprintf(tw, "Languages:\t%s\n", strings.Join(langs, ", "))
		}
	}
	fmt.Fprintf(tw, "Analyzed at:\t%s\n", rec.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(tw)

	s := rec.Scores
	fmt.Fprintf(tw, "Total score:\t%.1f\n", s.Total)
	fmt.Fprintf(tw, "  Documentation:\t%.2f\n", s.Documentation)
	fmt.Fprintf(tw, "  Technical depth:\t%.2f\t(diversity %.2f, complexity %.2f)\n", s.TechnicalDepth, s.LanguageDiversity, s.Complexity)
	fmt.Fprintf(tw, "  Activity:\t%.2f\t(consistency %.2f, frequency %.2f)\n", s.Activity, s.Consistency, s.Frequency)
	if err := tw.Flush(); err != nil {
		return err
	}

	in := rec.Insights
	fmt.Fprintf(w, "\n%s (%s insights)\n", in.Archetype, in.Provenance)
	if in.OverallAssessment != "" {
		fmt.Fprintf(w, "%s\n", in.OverallAssessment)
	}
	writeItems(w, "Strong signals", in.StrongSignals)
	writeItems(w, "Red flags", in.RedFlags)
	writeItems(w, "Improvement actions", in.ImprovementActions)

	if rec.Profile != nil && len(rec.Profile.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped repositories:\n")
		for _, s := range rec.Profile.Skipped {
			fmt.Fprintf(w, "  - %s: %s\n", s.Name, s.Reason)
		}
	}

	return nil
}

func writeItems(w io.Writer, title string, items []profile.InsightItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, it := range items {
		if it.Impact != "" {
			fmt.Fprintf(w, "  - [%s] %s\n", it.Impact, it.Item)
		} else {
			fmt.Fprintf(w, "  - %s\n", it.Item)
		}
		if it.Justification != "" {
			fmt.Fprintf(w, "      %s\n", it.Justification)
		}
	}
}

func writeLeaderboardText(w io.Writer, entries []analysis.LeaderboardEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No analyses stored yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tDEVELOPER\tSCORE\tPROFILE\tANALYZED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\t%s\n", e.Rank, e.Username, e.TotalScore, e.Archetype, e.AnalyzedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

// leaderboardLabels builds the promptui items, one per entry.
func leaderboardLabels(entries []analysis.LeaderboardEntry) []string {
	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		labels = append(labels, fmt.Sprintf("#%d %s %.1f %s", e.Rank, e.Username, e.TotalScore, e.Archetype))
	}
	return labels
}

// entryByLabel finds the entry whose label was selected.
func entryByLabel(entries []analysis.LeaderboardEntry, label string) (analysis.LeaderboardEntry, bool) {
	i := slices.Index(leaderboardLabels(entries), label)
	if i < 0 {
		return analysis.LeaderboardEntry{}, false
	}
	return entries[i], true
}
