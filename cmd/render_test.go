package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spigell/gh-profiler/internal/analysis"
	"github.com/spigell/gh-profiler/internal/profile"
)

func sampleRecord() *profile.AnalysisRecord {
	return &profile.AnalysisRecord{
		Identifier: "octocat",
		Profile: &profile.RawProfile{
			Identifier:  "octocat",
			Name:        "The Octocat",
			ProfileURL:  "https://github.com/octocat",
			Followers:   42,
			PublicRepos: 8,
			Repositories: []profile.RepositorySnapshot{
				{Name: "hello-world", PrimaryLanguage: "Go"},
			},
			Activity: profile.CommitActivity{Months: 12, ByMonth: map[string]int{"2026-09": 3}, TotalCommits: 3},
			Skipped:  []profile.SkippedRepository{{Name: "broken", Reason: "readme: UpstreamUnavailable"}},
		},
		Scores: profile.ScoreBreakdown{Total: 48.3, Documentation: 75, TechnicalDepth: 20, Activity: 58},
		Insights: profile.Insights{
			Archetype:          "Go Developer",
			StrongSignals:      []profile.InsightItem{{Item: "focused stack", Justification: "one primary language"}},
			ImprovementActions: []profile.InsightItem{{Item: "add READMEs", Impact: profile.ImpactHigh}},
			Provenance:         profile.ProvenanceRules,
		},
		AnalyzedAt: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderRecordText(t *testing.T) {
	var buf bytes.Buffer
	if err := renderRecord(&buf, OutputText, sampleRecord()); err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"octocat",
		"https://github.com/octocat",
		"1 analyzed of 8 public",
		"3 over 12 months (1 active)",
		"48.3",
		"Go Developer (rules insights)",
		"[high] add READMEs",
		"broken: readme: UpstreamUnavailable",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderRecordStructured(t *testing.T) {
	var jsonBuf bytes.Buffer
	if err := renderRecord(&jsonBuf, "JSON", sampleRecord()); err != nil {
		t.Fatalf("render json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded["username"] != "octocat" {
		t.Fatalf("unexpected json: %v", decoded)
	}

	var yamlBuf bytes.Buffer
	if err := renderRecord(&yamlBuf, OutputYAML, sampleRecord()); err != nil {
		t.Fatalf("render yaml: %v", err)
	}
	var fromYAML map[string]any
	if err := yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	insights := fromYAML["ai_insights"].(map[string]any)
	if insights["developer_profile"] != "Go Developer" {
		t.Fatalf("unexpected yaml insights: %v", insights)
	}

	if err := renderRecord(&bytes.Buffer{}, "xml", sampleRecord()); err == nil {
		t.Fatalf("expected an error for an unknown format")
	}
}

func TestRenderLeaderboard(t *testing.T) {
	entries := []analysis.LeaderboardEntry{
		{Rank: 1, Username: "octocat", TotalScore: 81.2, Archetype: "Prolific Engineer"},
		{Rank: 2, Username: "hubot", TotalScore: 40, Archetype: "Emerging Developer"},
	}

	var buf bytes.Buffer
	if err := renderLeaderboard(&buf, OutputText, entries); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "1") || !strings.Contains(lines[2], "hubot") {
		t.Fatalf("unexpected table:\n%s", buf.String())
	}

	buf.Reset()
	if err := renderLeaderboard(&buf, OutputText, nil); err != nil || !strings.Contains(buf.String(), "No analyses") {
		t.Fatalf("unexpected empty output %q, %v", buf.String(), err)
	}
}

func TestEntryByLabel(t *testing.T) {
	entries := []analysis.LeaderboardEntry{
		{Rank: 1, Username: "octocat", TotalScore: 81.2, Archetype: "Prolific Engineer"},
		{Rank: 2, Username: "hubot", TotalScore: 40, Archetype: "Emerging Developer"},
	}

	labels := leaderboardLabels(entries)
	if labels[1] != "#2 hubot 40.0 Emerging Developer" {
		t.Fatalf("unexpected label %q", labels[1])
	}

	entry, ok := entryByLabel(entries, labels[1])
	if !ok || entry.Username != "hubot" {
		t.Fatalf("expected hubot, got %+v", entry)
	}
	if _, ok := entryByLabel(entries, PromptExit); ok {
		t.Fatalf("exit must not match an entry")
	}
}
