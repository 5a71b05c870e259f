package profile

import (
	"slices"
	"time"
)

// ScoreBreakdown is the output of the scoring engine. All scores lie in [0,100].
type ScoreBreakdown struct {
	Total          float64 `json:"total_score" yaml:"total_score"`
	Documentation  float64 `json:"documentation_score" yaml:"documentation_score"`
	TechnicalDepth float64 `json:"technical_depth_score" yaml:"technical_depth_score"`
	Activity       float64 `json:"activity_score" yaml:"activity_score"`

	LanguageDiversity float64 `json:"language_diversity" yaml:"language_diversity"`
	Complexity        float64 `json:"complexity" yaml:"complexity"`
	Consistency       float64 `json:"consistency" yaml:"consistency"`
	Frequency         float64 `json:"frequency" yaml:"frequency"`
}

// Provenance tells which insight generator produced an Insights value.
type Provenance string

const (
	ProvenanceModel Provenance = "model"
	ProvenanceRules Provenance = "rules"
)

// MaxInsightItems bounds every insight category.
const MaxInsightItems = 3

// Impact levels for improvement actions.
const (
	ImpactHigh   = "high"
	ImpactMedium = "medium"
	ImpactLow    = "low"
)

// InsightItem is one qualitative observation with its justification.
type InsightItem struct {
	Item          string `json:"item" yaml:"item"`
	Justification string `json:"justification" yaml:"justification"`
	Impact        string `json:"impact,omitempty" yaml:"impact,omitempty"`
}

// Insights is the qualitative commentary attached to an analysis.
type Insights struct {
	Archetype          string        `json:"developer_profile" yaml:"developer_profile"`
	StrongSignals      []InsightItem `json:"strong_signals" yaml:"strong_signals"`
	RedFlags           []InsightItem `json:"red_flags" yaml:"red_flags"`
	ImprovementActions []InsightItem `json:"improvement_actions" yaml:"improvement_actions"`
	OverallAssessment  string        `json:"overall_assessment,omitempty" yaml:"overall_assessment,omitempty"`
	Provenance         Provenance    `json:"provenance" yaml:"provenance"`
}

// WellFormed reports whether every category respects the cardinality bounds.
func (i Insights) WellFormed() bool {
	if i.Archetype == "" {
		return false
	}
	for _, items := range [][]InsightItem{i.StrongSignals, i.RedFlags, i.ImprovementActions} {
		if len(items) > MaxInsightItems {
			return false
		}
	}
	return true
}

// AnalysisRecord is the persisted unit of one analysis.
type AnalysisRecord struct {
	Identifier Identifier     `json:"username" yaml:"username"`
	Profile    *RawProfile    `json:"profile" yaml:"profile"`
	Scores     ScoreBreakdown `json:"scores" yaml:"scores"`
	Insights   Insights       `json:"ai_insights" yaml:"ai_insights"`
	AnalyzedAt time.Time      `json:"analyzed_at" yaml:"analyzed_at"`
	CreatedAt  time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" yaml:"updated_at"`
}

// ProfileURL returns the profile link of the analyzed developer, if known.
func (r *AnalysisRecord) ProfileURL() string {
	if r == nil || r.Profile == nil {
		return ""
	}
	return r.Profile.ProfileURL
}

// Clone returns a deep copy of the record.
func (r *AnalysisRecord) Clone() *AnalysisRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Profile = r.Profile.Clone()
	out.Insights.StrongSignals = slices.Clone(r.Insights.StrongSignals)
	out.Insights.RedFlags = slices.Clone(r.Insights.RedFlags)
	out.Insights.ImprovementActions = slices.Clone(r.Insights.ImprovementActions)
	return &out
}
