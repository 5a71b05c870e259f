// Package rules derives insights from scores with fixed thresholds. It is the
// fallback when no language model is available and never fails.
package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/gh-profiler/internal/profile"
)

type Generator struct{}

func New() *Generator { return &Generator{} }

func (g *Generator) Generate(_ context.Context, raw *profile.RawProfile, scores profile.ScoreBreakdown) (profile.Insights, error) {
	return Derive(raw, scores), nil
}

// Derive computes rule-based insights. Every category holds between one and
// profile.MaxInsightItems items.
func Derive(raw *profile.RawProfile, scores profile.ScoreBreakdown) profile.Insights {
	if raw == nil {
		raw = &profile.RawProfile{}
	}

	return profile.Insights{
		Archetype:          Archetype(raw, scores),
		StrongSignals:      limit(strongSignals(raw, scores)),
		RedFlags:           limit(redFlags(raw, scores)),
		ImprovementActions: limit(improvementActions(raw, scores)),
		OverallAssessment:  Assessment(raw, scores),
		Provenance:         profile.ProvenanceRules,
	}
}

// Archetype labels the developer from the score shape.
func Archetype(raw *profile.RawProfile, scores profile.ScoreBreakdown) string {
	switch {
	case raw == nil || len(raw.Repositories) == 0:
		return "Newcomer"
	case scores.TechnicalDepth >= 70 && scores.Activity >= 70:
		return "Prolific Engineer"
	case scores.Complexity >= 20:
		return "Open Source Builder"
	case scores.LanguageDiversity >= 80:
		return "Polyglot Developer"
	case scores.Activity >= 70:
		return "Consistent Contributor"
	case scores.Documentation >= 75:
		return "Documentation-Minded Developer"
	}

	if langs := raw.Languages(); len(langs) == 1 {
		return langs[0] + " Developer"
	}
	return "Emerging Developer"
}

// Assessment is a one-sentence summary of the breakdown.
func Assessment(raw *profile.RawProfile, scores profile.ScoreBreakdown) string {
	repos := 0
	if raw != nil {
		repos = len(raw.Repositories)
	}
	return fmt.Sprintf(
		"Scored %.1f/100 across %d analyzed repositories (documentation %.0f, technical depth %.0f, activity %.0f).",
		scores.Total, repos, scores.Documentation, scores.TechnicalDepth, scores.Activity,
	)
}

func strongSignals(raw *profile.RawProfile, s profile.ScoreBreakdown) []profile.InsightItem {
	var items []profile.InsightItem

	if s.Consistency > 80 {
		items = append(items, profile.InsightItem{
			Item:          "sustained contribution cadence",
			Justification: fmt.Sprintf("commits in %d of %d months", raw.Activity.ActiveMonths(), raw.Activity.Months),
		})
	}
	if s.Documentation >= 75 {
		items = append(items, profile.InsightItem{
			Item:          "well-documented repositories",
			Justification: fmt.Sprintf("documentation score %.0f", s.Documentation),
		})
	}
	if s.LanguageDiversity >= 60 {
		items = append(items, profile.InsightItem{
			Item:          "broad language toolkit",
			Justification: "works in " + strings.Join(raw.Languages(), ", "),
		})
	}
	if stars := raw.TotalStars(); s.Complexity >= 20 || stars >= 100 {
		items = append(items, profile.InsightItem{
			Item:          "projects with community traction",
			Justification: fmt.Sprintf("%d stars across analyzed repositories", stars),
		})
	}
	if s.Frequency >= 30 {
		items = append(items, profile.InsightItem{
			Item:          "high commit volume",
			Justification: fmt.Sprintf("%d commits in the lookback window", raw.Activity.TotalCommits),
		})
	}

	if len(items) == 0 {
		items = append(items, profile.InsightItem{
			Item:          "public portfolio in place",
			Justification: fmt.Sprintf("%d public repositories", max(raw.PublicRepos, len(raw.Repositories))),
		})
	}
	return items
}

func redFlags(raw *profile.RawProfile, s profile.ScoreBreakdown) []profile.InsightItem {
	var items []profile.InsightItem

	if len(raw.Repositories) == 0 {
		items = append(items, profile.InsightItem{
			Item:          "no analyzable repositories",
			Justification: "no owned public repositories could be analyzed",
		})
	}
	if s.Documentation < 50 {
		items = append(items, profile.InsightItem{
			Item:          "missing or thin README documentation",
			Justification: fmt.Sprintf("documentation score %.0f", s.Documentation),
		})
	}
	if s.Consistency < 30 {
		items = append(items, profile.InsightItem{
			Item:          "sporadic activity",
			Justification: fmt.Sprintf("commits in %d of %d months", raw.Activity.ActiveMonths(), raw.Activity.Months),
		})
	}
	if len(raw.Repositories) > 0 && s.LanguageDiversity <= 20 {
		items = append(items, profile.InsightItem{
			Item:          "narrow language footprint",
			Justification: "a single primary language across analyzed repositories",
		})
	}
	if len(raw.Repositories) > 0 && s.Complexity < 10 {
		items = append(items, profile.InsightItem{
			Item:          "limited external adoption",
			Justification: fmt.Sprintf("%d stars across analyzed repositories", raw.TotalStars()),
		})
	}
	if len(raw.Skipped) > 0 {
		items = append(items, profile.InsightItem{
			Item:          "incomplete repository data",
			Justification: fmt.Sprintf("%d repositories could not be analyzed", len(raw.Skipped)),
		})
	}

	if len(items) == 0 {
		items = append(items, profile.InsightItem{
			Item:          "no major red flags",
			Justification: "all sub-scores are above the warning thresholds",
		})
	}
	return items
}

func improvementActions(raw *profile.RawProfile, s profile.ScoreBreakdown) []profile.InsightItem {
	var items []profile.InsightItem

	if s.Documentation < 75 {
		items = append(items, profile.InsightItem{
			Item:          "expand READMEs with setup and usage sections",
			Justification: "documentation is the first thing reviewers read",
			Impact:        profile.ImpactHigh,
		})
	}
	if s.Consistency < 60 {
		items = append(items, profile.InsightItem{
			Item:          "commit on a steady monthly cadence",
			Justification: fmt.Sprintf("only %d of %d months show commits", raw.Activity.ActiveMonths(), raw.Activity.Months),
			Impact:        profile.ImpactHigh,
		})
	}
	if s.LanguageDiversity < 60 {
		items = append(items, profile.InsightItem{
			Item:          "ship a project in another language",
			Justification: fmt.Sprintf("%d distinct primary languages today", len(raw.Languages())),
			Impact:        profile.ImpactMedium,
		})
	}
	if s.Complexity < 20 {
		items = append(items, profile.InsightItem{
			Item:          "promote a flagship project to attract stars and forks",
			Justification: fmt.Sprintf("complexity score %.0f", s.Complexity),
			Impact:        profile.ImpactMedium,
		})
	}
	if missing := missingDescriptions(raw); missing > 0 {
		items = append(items, profile.InsightItem{
			Item:          "add descriptions to repositories",
			Justification: fmt.Sprintf("%d analyzed repositories have no description", missing),
			Impact:        profile.ImpactLow,
		})
	}

	if len(items) == 0 {
		items = append(items, profile.InsightItem{
			Item:          "pin flagship repositories on the profile",
			Justification: "make the strongest work visible first",
			Impact:        profile.ImpactLow,
		})
	}
	return items
}

func missingDescriptions(raw *profile.RawProfile) int {
	n := 0
	for _, repo := range raw.Repositories {
		if !repo.HasDescription() {
			n++
		}
	}
	return n
}

func limit(items []profile.InsightItem) []profile.InsightItem {
	if len(items) > profile.MaxInsightItems {
		return items[:profile.MaxInsightItems]
	}
	return items
}
