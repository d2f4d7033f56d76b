package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"starlit.dev/newsflow/internal/language"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	NewsAPIKey      string        `envconfig:"NEWS_API_KEY" required:"true"`
	NewsAPIBaseURL  string        `envconfig:"NEWS_API_BASE_URL" default:"https://newsdata.io/api/1/latest"`
	NewsLanguage    string        `envconfig:"NEWS_LANGUAGE" default:"en"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"5s"`

	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	FuzzyDedupeThreshold    float64 `envconfig:"FUZZY_DEDUPE_THRESHOLD" default:"0.75"`
	FuzzyDedupeInSearch     bool    `envconfig:"FUZZY_DEDUPE_IN_SEARCH" default:"true"`
	FuzzyDedupeSourceScoped bool    `envconfig:"FUZZY_DEDUPE_SOURCE_SCOPED" default:"true"`
	MaxPageResults          int     `envconfig:"MAX_PAGE_RESULTS" default:"10"`
	LanguageGuard           bool    `envconfig:"LANGUAGE_GUARD" default:"false"`

	ServerHost            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	ServerPort            int           `envconfig:"SERVER_PORT" default:"8080"`
	ServerReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	ServerWriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ServerShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.NewsAPIKey) == "" {
		return fmt.Errorf("NEWS_API_KEY is required")
	}
	base, err := url.Parse(strings.TrimSpace(c.NewsAPIBaseURL))
	if err != nil || !base.IsAbs() || base.Host == "" {
		return fmt.Errorf("NEWS_API_BASE_URL must be an absolute URL")
	}
	if language.NormalizeCode(c.NewsLanguage) == "" {
		return fmt.Errorf("NEWS_LANGUAGE must be a language tag like en or en-US")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be > 0")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be > 0")
	}
	if c.FuzzyDedupeThreshold <= 0 || c.FuzzyDedupeThreshold > 1 {
		return fmt.Errorf("FUZZY_DEDUPE_THRESHOLD must be in (0, 1]")
	}
	if c.MaxPageResults < 1 {
		return fmt.Errorf("MAX_PAGE_RESULTS must be >= 1")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	return nil
}

// FeedLanguage is the normalized primary language subtag sent upstream.
func (c *Config) FeedLanguage() string {
	return language.NormalizeCode(c.NewsLanguage)
}
