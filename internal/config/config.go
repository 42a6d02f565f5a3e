// Package config loads the assistant service configuration from
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment
// variables. Heuristic tuning constants live in their own optional YAML
// overlay (TuningFile); everything operational is here.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Ops HTTP server (liveness, readiness, metrics)
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Assistant API server
	APIListenAddr string `envconfig:"API_LISTEN_ADDR" default:":8090"`
	APIAuthMode   string `envconfig:"API_AUTH_MODE" default:"jwt"` // "jwt" or "none"
	APIJWTSecret  string `envconfig:"API_JWT_SECRET"`
	CORSOrigins   string `envconfig:"API_CORS_ORIGINS"`

	// Document store
	DocstoreDriver string `envconfig:"DOCSTORE_DRIVER" default:"memory"` // "memory" or "sqlite"
	DocstorePath   string `envconfig:"DOCSTORE_PATH" default:"assist.db"`

	// Context cache
	CacheCapacity      int           `envconfig:"CACHE_CAPACITY" default:"100"`
	CacheBaseTTL       time.Duration `envconfig:"CACHE_BASE_TTL" default:"5m"`
	CacheSweepInterval time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"2m"`

	// Fetch bounds
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"3s"`
	ProjectLimit int           `envconfig:"FETCH_PROJECT_LIMIT" default:"10"`
	TaskLimit    int           `envconfig:"FETCH_TASK_LIMIT" default:"20"`
	MessageLimit int           `envconfig:"FETCH_MESSAGE_LIMIT" default:"10"`
	MemberLimit  int           `envconfig:"FETCH_MEMBER_LIMIT" default:"20"`

	// Insights run on a wider fetch window than the token-bounded
	// optimizer path; its limits are the optimizer's times this factor.
	InsightsLimitFactor int `envconfig:"INSIGHTS_LIMIT_FACTOR" default:"5"`

	// Cross-workspace aggregation
	MaxWorkspaces int `envconfig:"MAX_WORKSPACES" default:"5"`

	// Optional YAML overlay for heuristic constants
	TuningFile string `envconfig:"TUNING_FILE"`
}

// JWTEnabled returns true when the API requires signed bearer tokens.
func (c *Config) JWTEnabled() bool {
	return c.APIAuthMode == "jwt" && c.APIJWTSecret != ""
}

// SQLiteEnabled returns true when the local SQLite store is selected.
func (c *Config) SQLiteEnabled() bool {
	return c.DocstoreDriver == "sqlite"
}

// Validate rejects configurations that cannot start safely.
func (c *Config) Validate() error {
	if c.APIAuthMode == "jwt" && c.APIJWTSecret == "" {
		return fmt.Errorf("API_AUTH_MODE=jwt requires API_JWT_SECRET")
	}
	if c.DocstoreDriver != "memory" && c.DocstoreDriver != "sqlite" {
		return fmt.Errorf("unknown DOCSTORE_DRIVER %q", c.DocstoreDriver)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
