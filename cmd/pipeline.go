package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/ai"
	"github.com/spigell/gh-profiler/internal/ai/gemini"
	"github.com/spigell/gh-profiler/internal/ai/rules"
	"github.com/spigell/gh-profiler/internal/analysis"
	"github.com/spigell/gh-profiler/internal/cache"
	"github.com/spigell/gh-profiler/internal/github"
	"github.com/spigell/gh-profiler/internal/secrets"
	"github.com/spigell/gh-profiler/internal/store"
)

// pipeline holds the wired analysis service and what has to be released with it.
type pipeline struct {
	service *analysis.Service
	cache   *cache.Cache
	store   store.Store
}

func (p *pipeline) Close(logger *zap.Logger) {
	if err := p.store.Close(); err != nil {
		logger.Warn("closing store", zap.Error(err))
	}
}

func newPipeline(ctx context.Context, config *Config, logger *zap.Logger) (*pipeline, error) {
	token, err := secrets.LoadOptional(secrets.Source{
		Name:  "github token",
		Value: config.GitHub.Token,
		File:  config.GitHub.TokenFile,
	})
	if err != nil {
		return nil, err
	}
	if token == "" {
		logger.Warn("github token is not configured, using the anonymous rate limit",
			zap.String("hint", "set GITHUB_TOKEN or GITHUB_TOKEN_FILE"),
		)
	}

	client, err := github.NewClient(github.ClientOptions{
		Token:   token,
		BaseURL: config.GitHub.BaseURL,
		Logger:  logger.Named("github"),
	})
	if err != nil {
		return nil, err
	}

	collector := github.NewCollector(client, github.Options{
		MaxReposAnalyzed:    config.MaxReposAnalyzed,
		CommitHistoryMonths: config.CommitHistoryMonths,
		ReadmeMinLength:     config.ReadmeMinLength,
		Logger:              logger.Named("collector"),
	})

	c := cache.New(cache.Options{
		TTL:               config.CacheTTL,
		ServeStaleOnError: config.ServeStaleOnError,
		Logger:            logger.Named("cache"),
	})

	st, err := store.Open(ctx, config.DatabaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	opts := analysis.Options{
		Deadline: config.RequestDeadline,
		Logger:   logger.Named("analysis"),
	}

	var primary ai.InsightGenerator
	model, err := newModel(ctx, config.AI, logger)
	switch {
	case err != nil:
		logger.Warn("language model disabled, using rule-based insights", zap.Error(err))
	case model != nil:
		primary = gemini.NewInsightGenerator(model, logger.Named("insights"), config.AI.Gemini.MaxLogLength)
		opts.Model = model
	default:
		logger.Info("language model disabled, using rule-based insights")
	}

	insights := ai.NewGuarded(primary, rules.New(), logger.Named("insights"))

	return &pipeline{
		service: analysis.NewService(collector, c, insights, st, opts),
		cache:   c,
		store:   st,
	}, nil
}

// newModel returns nil without an error when the model is switched off or no
// API key is configured.
func newModel(ctx context.Context, cfg AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.LoadOptional(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set GEMINI_API_KEY or GEMINI_API_KEY_FILE)", err)
	}
	if apiKey == "" {
		return nil, nil
	}

	// One call per attempt; ai.Guarded owns the retry budget.
	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, 1, logger.Named("gemini"))
}
