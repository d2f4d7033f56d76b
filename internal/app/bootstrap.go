package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"starlit.dev/newsflow/internal/cli"
	"starlit.dev/newsflow/internal/config"
	"starlit.dev/newsflow/internal/langdetect"
	"starlit.dev/newsflow/internal/logging"
	"starlit.dev/newsflow/internal/pipeline"
	"starlit.dev/newsflow/internal/upstream"
)

// components holds the wired pieces every command needs.
type components struct {
	cfg        *config.Config
	logger     zerolog.Logger
	client     *upstream.Client
	aggregator *pipeline.Aggregator
}

func bootstrap(envLoader *cli.EnvLoader) (*components, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	opts := pipeline.Options{
		FuzzyThreshold:    cfg.FuzzyDedupeThreshold,
		FuzzyInSearch:     cfg.FuzzyDedupeInSearch,
		SourceScopedFuzzy: cfg.FuzzyDedupeSourceScoped,
		MaxResults:        cfg.MaxPageResults,
	}
	if cfg.LanguageGuard {
		guard, guardErr := langdetect.NewGuard(cfg.FeedLanguage())
		if guardErr != nil {
			return nil, fmt.Errorf("initialize language guard: %w", guardErr)
		}
		opts.LanguageGuard = guard
	}

	client, err := upstream.NewClient(logger, upstream.Options{
		BaseURL:  cfg.NewsAPIBaseURL,
		APIKey:   cfg.NewsAPIKey,
		Language: cfg.FeedLanguage(),
		Timeout:  cfg.UpstreamTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize news client: %w", err)
	}

	return &components{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		aggregator: pipeline.New(logger, opts),
	}, nil
}
