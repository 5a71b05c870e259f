package ai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/profile"
)

// DefaultModelAttempts is one model call plus one retry.
const DefaultModelAttempts = 2

// modelBudgetShare is the part of the remaining deadline the model may use.
// The rest is left to the fallback and to assembling the result.
const modelBudgetShare = 0.75

// InsightGenerator produces qualitative commentary for a scored profile.
type InsightGenerator interface {
	Generate(ctx context.Context, raw *profile.RawProfile, scores profile.ScoreBreakdown) (profile.Insights, error)
}

// Completer is the language-model collaborator: one system instruction and
// one prompt in, free text out.
type Completer interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
}

// Guarded calls the primary generator and falls back when it keeps failing.
// The fallback is expected to never fail.
type Guarded struct {
	primary  InsightGenerator
	fallback InsightGenerator
	attempts int
	logger   *zap.Logger
}

// NewGuarded builds a guarded generator. A nil primary means the fallback is
// used directly, as when no model credentials are configured.
func NewGuarded(primary, fallback InsightGenerator, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guarded{
		primary:  primary,
		fallback: fallback,
		attempts: DefaultModelAttempts,
		logger:   logger,
	}
}

func (g *Guarded) Generate(ctx context.Context, raw *profile.RawProfile, scores profile.ScoreBreakdown) (profile.Insights, error) {
	if g.primary == nil {
		return g.fallback.Generate(ctx, raw, scores)
	}

	modelCtx, cancel := modelContext(ctx)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		insights, err := g.primary.Generate(modelCtx, raw, scores)
		if err == nil && insights.WellFormed() {
			return insights, nil
		}
		if err == nil {
			err = errors.New("model returned malformed insights")
		}
		lastErr = err

		g.logger.Warn("insight generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if modelCtx.Err() != nil {
			break
		}
	}

	modelErr := &profile.Error{Kind: profile.KindModelUnavailable, Op: "generate insights", Err: lastErr}
	if raw != nil {
		modelErr.Identifier = raw.Identifier
	}
	g.logger.Warn("falling back to rule-based insights", zap.Error(modelErr))

	// The fallback is local and must still answer when the caller deadline is spent.
	return g.fallback.Generate(context.WithoutCancel(ctx), raw, scores)
}

// modelContext bounds the model calls to a share of the time left on ctx.
func modelContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	budget := time.Duration(float64(time.Until(deadline)) * modelBudgetShare)
	return context.WithTimeout(ctx, budget)
}
