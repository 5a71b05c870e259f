// Package scoring reduces a normalized profile to a weighted score breakdown.
// Everything here is pure: the same profile always yields the same breakdown.
package scoring

import (
	"math"

	"github.com/spigell/gh-profiler/internal/profile"
)

// Weights of the sub-scores in the total.
const (
	WeightDocumentation  = 0.30
	WeightTechnicalDepth = 0.40
	WeightActivity       = 0.30
)

const (
	diversityShare   = 0.4
	complexityShare  = 0.6
	consistencyShare = 0.7
	frequencyShare   = 0.3

	pointsPerLanguage    = 20.0
	descriptionBonus     = 10.0
	forkBonusCoefficient = 2.0
	forkBonusCap         = 20.0
)

// Score computes the breakdown for raw. A nil profile scores zero everywhere.
func Score(raw *profile.RawProfile) profile.ScoreBreakdown {
	if raw == nil {
		return profile.ScoreBreakdown{}
	}

	doc := Documentation(raw.Repositories)
	diversity := LanguageDiversity(raw.Repositories)
	complexity := Complexity(raw.Repositories)
	tech := clamp(diversityShare*diversity + complexityShare*complexity)
	var consistency, frequency, activity float64
	if hasSeries(raw.Activity) {
		consistency = Consistency(raw.Activity)
		frequency = Frequency(raw.Activity.TotalCommits)
		activity = clamp(consistencyShare*consistency + frequencyShare*frequency)
	}

	return profile.ScoreBreakdown{
		Total:             Total(doc, tech, activity),
		Documentation:     round(doc, 2),
		TechnicalDepth:    round(tech, 2),
		Activity:          round(activity, 2),
		LanguageDiversity: round(diversity, 2),
		Complexity:        round(complexity, 2),
		Consistency:       round(consistency, 2),
		Frequency:         frequency,
	}
}

// Total combines the sub-scores, rounded to one decimal.
func Total(documentation, technicalDepth, activity float64) float64 {
	total := WeightDocumentation*documentation +
		WeightTechnicalDepth*technicalDepth +
		WeightActivity*activity
	return clamp(round(total, 1))
}

// Documentation is the mean per-repository README tier plus description bonus.
func Documentation(repos []profile.RepositorySnapshot) float64 {
	if len(repos) == 0 {
		return 0
	}

	var sum float64
	for _, repo := range repos {
		points := readmeTier(repo.ReadmeLength)
		if repo.HasDescription() {
			points += descriptionBonus
		}
		sum += math.Min(100, points)
	}

	return clamp(sum / float64(len(repos)))
}

func readmeTier(length int) float64 {
	switch {
	case length > 1000:
		return 100
	case length > 500:
		return 75
	case length > 100:
		return 50
	default:
		return 25
	}
}

// LanguageDiversity maps the number of distinct primary languages to 20 points each.
func LanguageDiversity(repos []profile.RepositorySnapshot) float64 {
	seen := make(map[string]struct{})
	for _, repo := range repos {
		if repo.PrimaryLanguage != "" {
			seen[repo.PrimaryLanguage] = struct{}{}
		}
	}
	return clamp(float64(len(seen)) * pointsPerLanguage)
}

// Complexity averages star tiers and the fork bonus across repositories.
func Complexity(repos []profile.RepositorySnapshot) float64 {
	if len(repos) == 0 {
		return 0
	}

	var sum float64
	for _, repo := range repos {
		sum += starTier(repo.Stars) + ForkBonus(repo.Forks)
	}

	return clamp(sum / float64(len(repos)))
}

func starTier(stars int) float64 {
	switch {
	case stars > 1000:
		return 30
	case stars > 100:
		return 20
	case stars > 10:
		return 10
	default:
		return 0
	}
}

// ForkBonus grows logarithmically with forks: 2*log2(forks+1), capped at 20.
func ForkBonus(forks int) float64 {
	if forks <= 0 {
		return 0
	}
	return math.Min(forkBonusCap, forkBonusCoefficient*math.Log2(float64(forks)+1))
}

// hasSeries is false when no commit history was collected at all.
func hasSeries(activity profile.CommitActivity) bool {
	return activity.Months > 0 || len(activity.ByMonth) > 0
}

// Consistency is the share of active months in the lookback window.
func Consistency(activity profile.CommitActivity) float64 {
	if activity.Months <= 0 {
		return 0
	}
	return clamp(float64(activity.ActiveMonths()) / float64(activity.Months) * 100)
}

// Frequency maps the total commit count to a tier.
func Frequency(totalCommits int) float64 {
	switch {
	case totalCommits > 1000:
		return 40
	case totalCommits > 500:
		return 30
	case totalCommits > 100:
		return 20
	default:
		return 10
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
