// Package analysis orchestrates one profile analysis: normalize the input,
// fetch through the cache, score, generate insights, assemble and persist.
package analysis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/ai"
	"github.com/spigell/gh-profiler/internal/ai/rules"
	"github.com/spigell/gh-profiler/internal/cache"
	"github.com/spigell/gh-profiler/internal/identifier"
	"github.com/spigell/gh-profiler/internal/logger"
	"github.com/spigell/gh-profiler/internal/profile"
	"github.com/spigell/gh-profiler/internal/scoring"
	"github.com/spigell/gh-profiler/internal/store"
	"github.com/spigell/gh-profiler/internal/utils"
)

const (
	DefaultDeadline    = 60 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 8 * time.Second
)

// Stage is a step of the per-identifier pipeline.
type Stage string

const (
	StageNormalizing        Stage = "normalizing"
	StageFetching           Stage = "fetching"
	StageScoring            Stage = "scoring"
	StageGeneratingInsights Stage = "generating_insights"
	StageAssembled          Stage = "assembled"
	StageFailed             Stage = "failed"
)

// Collector fetches raw profiles from upstream.
type Collector interface {
	Fetch(ctx context.Context, id profile.Identifier) (*profile.RawProfile, error)
	Ping(ctx context.Context) error
}

// Pinger reports whether a collaborator is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the service. Zero values fall back to defaults.
type Options struct {
	Deadline    time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Model is pinged by HealthCheck; nil reports the model as unreachable.
	Model  Pinger
	Now    func() time.Time
	Logger *zap.Logger
}

// Service is the analysis orchestrator.
type Service struct {
	collector Collector
	cache     *cache.Cache
	insights  ai.InsightGenerator
	store     store.Store
	model     Pinger

	deadline    time.Duration
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	now         func() time.Time
	logger      *zap.Logger

	wait func(ctx context.Context, d time.Duration) error
}

func NewService(collector Collector, c *cache.Cache, insights ai.InsightGenerator, st store.Store, opts Options) *Service {
	s := &Service{
		collector:   collector,
		cache:       c,
		insights:    insights,
		store:       st,
		model:       opts.Model,
		deadline:    opts.Deadline,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		now:         opts.Now,
		logger:      opts.Logger,
		wait:        utils.WaitFor,
	}
	if s.deadline <= 0 {
		s.deadline = DefaultDeadline
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.baseDelay <= 0 {
		s.baseDelay = DefaultBaseDelay
	}
	if s.maxDelay <= 0 {
		s.maxDelay = DefaultMaxDelay
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cache == nil {
		s.cache = cache.New(cache.Options{Now: s.now, Logger: s.logger})
	}
	if s.insights == nil {
		s.insights = rules.New()
	}
	if s.store == nil {
		s.store = store.NewMemory(s.now)
	}
	return s
}

// Analyze runs the full pipeline for input. A non-positive deadline uses the
// configured default and only bounds fetching: once the profile is in hand the
// record is always assembled, with rule-based insights if the model ran out of
// time. When persisting fails the record is returned together with a
// PersistenceError.
func (s *Service) Analyze(ctx context.Context, input string, deadline time.Duration) (*profile.AnalysisRecord, error) {
	if deadline <= 0 {
		deadline = s.deadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	started := s.now()
	log := s.logger.With(zap.String("input", input))

	s.transition(log, StageNormalizing)
	id, err := identifier.Normalize(input)
	if err != nil {
		return nil, s.fail(log, StageNormalizing, err)
	}
	log = logger.WithIdentifier(log, id.String())

	s.transition(log, StageFetching)
	raw, err := s.fetch(ctx, log, id)
	if err != nil {
		return nil, s.fail(log, StageFetching, err)
	}

	s.transition(log, StageScoring)
	scores := scoring.Score(raw)

	s.transition(log, StageGeneratingInsights)
	insights, err := s.insights.Generate(ctx, raw, scores)
	if err != nil || !insights.WellFormed() {
		log.Warn("insight generator failed, using rule-based insights", zap.Error(err))
		insights = rules.Derive(raw, scores)
	}

	rec := &profile.AnalysisRecord{
		Identifier: id,
		Profile:    raw,
		Scores:     scores,
		Insights:   insights,
		AnalyzedAt: s.now().UTC(),
	}
	s.transition(log, StageAssembled,
		zap.Float64("total_score", scores.Total),
		zap.String("provenance", string(insights.Provenance)),
		zap.Duration("elapsed", s.now().Sub(started)),
	)

	// Persisting is best effort relative to the response and must not be cut short by the caller.
	if err := s.store.Upsert(context.WithoutCancel(ctx), rec); err != nil {
		perr := &profile.Error{Kind: profile.KindPersistenceError, Op: "upsert analysis", Identifier: id, Err: err}
		log.Error("failed to persist analysis", zap.Error(perr))
		return rec, perr
	}

	return rec, nil
}

// Refresh drops the cached profile of input and analyzes it again.
func (s *Service) Refresh(ctx context.Context, input string, deadline time.Duration) (*profile.AnalysisRecord, error) {
	id, err := identifier.Normalize(input)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(id)
	return s.Analyze(ctx, id.String(), deadline)
}

// GetCached reads the stored analysis without touching upstream. The boolean
// is false when nothing was stored for the identifier.
func (s *Service) GetCached(ctx context.Context, input string) (*profile.AnalysisRecord, bool, error) {
	id, err := identifier.Normalize(input)
	if err != nil {
		return nil, false, err
	}

	rec, err := s.store.GetByIdentifier(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &profile.Error{Kind: profile.KindPersistenceError, Op: "get analysis", Identifier: id, Err: err}
	}
	return rec, true, nil
}

func (s *Service) fetch(ctx context.Context, log *zap.Logger, id profile.Identifier) (*profile.RawProfile, error) {
	var (
		lastErr   *profile.Error
		lastDelay time.Duration
	)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		raw, err := s.cache.GetOrFetch(ctx, id, s.collector.Fetch)
		if err == nil {
			return raw, nil
		}

		pe := classify(ctx, id, err)
		pe.Attempts = attempt
		lastErr = pe

		if !pe.Kind.Retryable() || attempt == s.maxAttempts {
			break
		}

		delay := max(utils.Backoff(s.baseDelay, s.maxDelay, attempt, pe.RetryAfter), lastDelay)
		lastDelay = delay

		log.Warn("upstream fetch failed, retrying",
			logger.Attempt(attempt),
			logger.Kind(string(pe.Kind)),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := s.wait(ctx, delay); err != nil {
			return nil, &profile.Error{Kind: profile.KindTimeout, Op: "fetch profile", Identifier: id, Attempts: attempt, Err: err}
		}
	}

	return nil, lastErr
}

// classify returns a copy of err as a pipeline error stamped with id. A caller
// deadline turns any failure into Timeout.
func classify(ctx context.Context, id profile.Identifier, err error) *profile.Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &profile.Error{Kind: profile.KindTimeout, Op: "fetch profile", Identifier: id, Err: err}
	}
	if pe, ok := profile.AsError(err); ok {
		copied := *pe
		copied.Identifier = id
		return &copied
	}
	return &profile.Error{Kind: profile.KindUpstreamUnavailable, Op: "fetch profile", Identifier: id, Err: err}
}

func (s *Service) transition(log *zap.Logger, stage Stage, fields ...zap.Field) {
	log.Debug("stage transition", append([]zap.Field{logger.Stage(string(stage))}, fields...)...)
}

func (s *Service) fail(log *zap.Logger, stage Stage, err error) error {
	log.Warn("analysis failed",
		logger.Stage(string(StageFailed)),
		zap.String("failed_stage", string(stage)),
		logger.Kind(string(profile.KindOf(err))),
		zap.Error(err),
	)
	return err
}
