package analysis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/profile"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	healthTimeout           = 10 * time.Second
)

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank       int                     `json:"rank" yaml:"rank"`
	Username   profile.Identifier      `json:"username" yaml:"username"`
	TotalScore float64                 `json:"total_score" yaml:"total_score"`
	Archetype  string                  `json:"developer_profile" yaml:"developer_profile"`
	ProfileURL string                  `json:"profile_url,omitempty" yaml:"profile_url,omitempty"`
	AnalyzedAt time.Time               `json:"analyzed_at" yaml:"analyzed_at"`
	Record     *profile.AnalysisRecord `json:"-" yaml:"-"`
}

// Leaderboard returns the stored analyses ranked by total score. The limit is
// clamped to [1, MaxLeaderboardLimit]; non-positive means the default.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	limit = min(limit, MaxLeaderboardLimit)

	records, err := s.store.TopN(ctx, limit)
	if err != nil {
		return nil, &profile.Error{Kind: profile.KindPersistenceError, Op: "leaderboard", Err: err}
	}

	entries := make([]LeaderboardEntry, 0, len(records))
	for i, rec := range records {
		entries = append(entries, LeaderboardEntry{
			Rank:       i + 1,
			Username:   rec.Identifier,
			TotalScore: rec.Scores.Total,
			Archetype:  rec.Insights.Archetype,
			ProfileURL: rec.ProfileURL(),
			AnalyzedAt: rec.AnalyzedAt,
			Record:     rec,
		})
	}
	return entries, nil
}

// Health reports collaborator reachability.
type Health struct {
	UpstreamReachable bool `json:"upstream_reachable" yaml:"upstream_reachable"`
	ModelReachable    bool `json:"model_reachable" yaml:"model_reachable"`
}

// HealthCheck pings the code-hosting API and the language model.
func (s *Service) HealthCheck(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var health Health

	if err := s.collector.Ping(ctx); err != nil {
		s.logger.Warn("upstream health check failed", zap.Error(err))
	} else {
		health.UpstreamReachable = true
	}

	if s.model != nil {
		if err := s.model.Ping(ctx); err != nil {
			s.logger.Warn("model health check failed", zap.Error(err))
		} else {
			health.ModelReachable = true
		}
	}

	return health
}
