package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/ai"
	"github.com/spigell/gh-profiler/internal/ai/rules"
	"github.com/spigell/gh-profiler/internal/profile"
	"github.com/spigell/gh-profiler/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	systemInstruction   = "You are a precise technical reviewer. Answer with JSON only."
	defaultMaxLogLength = 200
)

// InsightGenerator asks the language model for insights and repairs whatever
// comes back into the strict Insights shape.
type InsightGenerator struct {
	completer ai.Completer
	logger    *zap.Logger
	maxLogLen int
}

func NewInsightGenerator(completer ai.Completer, logger *zap.Logger, maxLogLength int) *InsightGenerator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InsightGenerator{
		completer: completer,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (g *InsightGenerator) Generate(ctx context.Context, raw *profile.RawProfile, scores profile.ScoreBreakdown) (profile.Insights, error) {
	if raw == nil {
		return profile.Insights{}, errors.New("raw profile is required")
	}

	profileJSON, err := json.MarshalIndent(summarize(raw), "", "  ")
	if err != nil {
		return profile.Insights{}, fmt.Errorf("marshal profile summary: %w", err)
	}
	scoresJSON, err := json.MarshalIndent(scores, "", "  ")
	if err != nil {
		return profile.Insights{}, fmt.Errorf("marshal scores: %w", err)
	}

	prompt := buildPrompt(string(profileJSON), string(scoresJSON))

	g.logger.Debug("gemini generate content request",
		zap.String("identifier", raw.Identifier.String()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	text, err := g.completer.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		if _, ok := profile.AsError(err); ok {
			return profile.Insights{}, err
		}
		return profile.Insights{}, &profile.Error{Kind: profile.KindModelUnavailable, Op: "generate content", Identifier: raw.Identifier, Err: err}
	}

	g.logger.Debug("gemini generate content response",
		zap.String("identifier", raw.Identifier.String()),
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", utils.TruncateForLog(text, g.maxLogLen)),
	)

	parsed, err := parseResponse(text)
	if err != nil {
		return profile.Insights{}, &profile.Error{Kind: profile.KindModelUnavailable, Op: "parse model response", Identifier: raw.Identifier, Err: err}
	}

	return repair(parsed, raw, scores), nil
}

type promptRepository struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Language     string   `json:"language,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	Stars        int      `json:"stars"`
	Forks        int      `json:"forks"`
	Commits      int      `json:"commits_in_window"`
	ReadmeLength int      `json:"readme_length"`
	ReadmeSample string   `json:"readme_sample,omitempty"`
}

type promptProfile struct {
	Username       string                 `json:"username"`
	Name           string                 `json:"name,omitempty"`
	Bio            string                 `json:"bio,omitempty"`
	Location       string                 `json:"location,omitempty"`
	Company        string                 `json:"company,omitempty"`
	Followers      int                    `json:"followers"`
	PublicRepos    int                    `json:"public_repos"`
	Languages      []string               `json:"languages"`
	TotalStars     int                    `json:"total_stars"`
	Repositories   []promptRepository     `json:"repositories"`
	CommitActivity profile.CommitActivity `json:"commit_activity"`
}

func summarize(raw *profile.RawProfile) promptProfile {
	summary := promptProfile{
		Username:       raw.Identifier.String(),
		Name:           raw.Name,
		Bio:            raw.Bio,
		Location:       raw.Location,
		Company:        raw.Company,
		Followers:      raw.Followers,
		PublicRepos:    raw.PublicRepos,
		Languages:      raw.Languages(),
		TotalStars:     raw.TotalStars(),
		Repositories:   make([]promptRepository, 0, len(raw.Repositories)),
		CommitActivity: raw.Activity,
	}
	for _, repo := range raw.Repositories {
		summary.Repositories = append(summary.Repositories, promptRepository{
			Name:         repo.Name,
			Description:  repo.Description,
			Language:     repo.PrimaryLanguage,
			Topics:       repo.Topics,
			Stars:        repo.Stars,
			Forks:        repo.Forks,
			Commits:      repo.Commits,
			ReadmeLength: repo.ReadmeLength,
			ReadmeSample: repo.ReadmeSample,
		})
	}
	return summary
}

func buildPrompt(profileJSON, scoresJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Profile:\n{{PROFILE_JSON}}\n\nScores:\n{{SCORES_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{PROFILE_JSON}}", profileJSON)
	prompt = strings.ReplaceAll(prompt, "{{SCORES_JSON}}", scoresJSON)
	return prompt
}

type modelResponse struct {
	DeveloperProfile   string `mapstructure:"developer_profile"`
	StrongSignals      []any  `mapstructure:"strong_signals"`
	RedFlags           []any  `mapstructure:"red_flags"`
	ImprovementActions []any  `mapstructure:"improvement_actions"`
	OverallAssessment  string `mapstructure:"overall_assessment"`
}

type modelItem struct {
	Item          string `mapstructure:"item"`
	Justification string `mapstructure:"justification"`
	Impact        string `mapstructure:"impact"`
}

func parseResponse(raw string) (modelResponse, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return modelResponse{}, fmt.Errorf("parse gemini response: %w", err)
	}

	var resp modelResponse
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &resp,
	})
	if err != nil {
		return modelResponse{}, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return modelResponse{}, fmt.Errorf("decode gemini response: %w", err)
	}

	return resp, nil
}

// repair trims, drops empty items, truncates categories and fills whatever
// is missing from the rule-based insights.
func repair(resp modelResponse, raw *profile.RawProfile, scores profile.ScoreBreakdown) profile.Insights {
	fallback := rules.Derive(raw, scores)

	out := profile.Insights{
		Archetype:          strings.TrimSpace(resp.DeveloperProfile),
		StrongSignals:      normalizeItems(resp.StrongSignals, false),
		RedFlags:           normalizeItems(resp.RedFlags, false),
		ImprovementActions: normalizeItems(resp.ImprovementActions, true),
		OverallAssessment:  strings.TrimSpace(resp.OverallAssessment),
		Provenance:         profile.ProvenanceModel,
	}

	if out.Archetype == "" {
		out.Archetype = fallback.Archetype
	}
	if len(out.StrongSignals) == 0 {
		out.StrongSignals = fallback.StrongSignals
	}
	if len(out.RedFlags) == 0 {
		out.RedFlags = fallback.RedFlags
	}
	if len(out.ImprovementActions) == 0 {
		out.ImprovementActions = fallback.ImprovementActions
	}
	if out.OverallAssessment == "" {
		out.OverallAssessment = fallback.OverallAssessment
	}

	return out
}

func normalizeItems(values []any, withImpact bool) []profile.InsightItem {
	items := make([]profile.InsightItem, 0, profile.MaxInsightItems)
	for _, value := range values {
		item, ok := toItem(value)
		if !ok {
			continue
		}
		if withImpact {
			item.Impact = normalizeImpact(item.Impact)
		} else {
			item.Impact = ""
		}
		items = append(items, item)
		if len(items) == profile.MaxInsightItems {
			break
		}
	}
	return items
}

func toItem(value any) (profile.InsightItem, bool) {
	var item modelItem
	switch v := value.(type) {
	case map[string]any:
		if err := mapstructure.WeakDecode(v, &item); err != nil {
			return profile.InsightItem{}, false
		}
	default:
		item.Item = coerceString(v)
	}

	out := profile.InsightItem{
		Item:          strings.TrimSpace(item.Item),
		Justification: strings.TrimSpace(item.Justification),
		Impact:        strings.TrimSpace(item.Impact),
	}
	return out, out.Item != ""
}

func normalizeImpact(impact string) string {
	switch strings.ToLower(strings.TrimSpace(impact)) {
	case profile.ImpactHigh:
		return profile.ImpactHigh
	case profile.ImpactLow:
		return profile.ImpactLow
	default:
		return profile.ImpactMedium
	}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Some answers wrap the object in prose.
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
