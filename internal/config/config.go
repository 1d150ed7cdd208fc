package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"horse.fit/bdradar/internal/auth"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"BDR_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"BDR_DB_MAX_CONNS" default:"8"`

	CollectorConcurrency int           `envconfig:"BDR_COLLECTOR_CONCURRENCY" default:"4"`
	CollectorTimeout     time.Duration `envconfig:"BDR_COLLECTOR_TIMEOUT" default:"5m"`
	FeedDir              string        `envconfig:"BDR_FEED_DIR" default:""`
	FeedURLs             string        `envconfig:"BDR_FEED_URLS" default:""`
	FeedRequestTimeout   time.Duration `envconfig:"BDR_FEED_REQUEST_TIMEOUT" default:"30s"`

	DedupKinds string `envconfig:"BDR_DEDUP_KINDS" default:"transaction"`

	// APITokenHash is a bcrypt hash; when set, API write routes require the
	// matching bearer token.
	APITokenHash string `envconfig:"BDR_API_TOKEN_HASH" default:""`
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
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("BDR_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("BDR_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("BDR_DB_MIN_CONNS (%d) cannot exceed BDR_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.CollectorConcurrency < 1 {
		return fmt.Errorf("BDR_COLLECTOR_CONCURRENCY must be >= 1")
	}
	if c.CollectorTimeout <= 0 {
		return fmt.Errorf("BDR_COLLECTOR_TIMEOUT must be > 0")
	}
	if c.FeedRequestTimeout <= 0 {
		return fmt.Errorf("BDR_FEED_REQUEST_TIMEOUT must be > 0")
	}
	if _, err := parseFeedURLs(c.FeedURLs); err != nil {
		return fmt.Errorf("BDR_FEED_URLS: %w", err)
	}
	if len(c.DedupKindList()) == 0 {
		return fmt.Errorf("BDR_DEDUP_KINDS must name at least one signal kind")
	}
	if strings.TrimSpace(c.APITokenHash) != "" {
		if err := auth.ValidateHash(c.APITokenHash); err != nil {
			return fmt.Errorf("BDR_API_TOKEN_HASH: %w", err)
		}
	}
	return nil
}

// FeedURLMap returns the configured name=url feed pairs.
func (c *Config) FeedURLMap() map[string]string {
	if c == nil {
		return nil
	}
	feeds, _ := parseFeedURLs(c.FeedURLs)
	return feeds
}

func (c *Config) DedupKindList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.DedupKinds)
}

func parseFeedURLs(raw string) (map[string]string, error) {
	feeds := map[string]string{}
	for _, part := range splitList(raw) {
		name, target, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		target = strings.TrimSpace(target)
		if !ok || name == "" || target == "" {
			return nil, fmt.Errorf("entry %q must look like name=url", part)
		}
		if _, exists := feeds[name]; exists {
			return nil, fmt.Errorf("feed %q is listed twice", name)
		}
		feeds[name] = target
	}
	return feeds, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
