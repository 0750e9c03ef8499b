// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/portal-cms/internal/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"PCMS_DB_PATH" envDefault:"./data/portal.db"`
	ServerHost string `env:"PCMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"PCMS_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"PCMS_ENV" envDefault:"development"`
	LogLevel   string `env:"PCMS_LOG_LEVEL" envDefault:"info"`

	// Public base URLs used to recognize internal links
	WebappURL     string `env:"PCMS_WEBAPP_URL" envDefault:"https://integreat.app"`
	ShortLinksURL string `env:"PCMS_SHORT_LINKS_URL" envDefault:"http://localhost:8000"`

	// Link checking
	LinkcheckIgnoredURLTypes []string      `env:"PCMS_LINKCHECK_IGNORED_URL_TYPES" envSeparator:"," envDefault:"anchor,empty,invalid"`
	LinkcheckEmailEnabled    bool          `env:"PCMS_LINKCHECK_EMAIL_ENABLED" envDefault:"true"`
	LinkcheckPhoneEnabled    bool          `env:"PCMS_LINKCHECK_PHONE_ENABLED" envDefault:"true"`
	LinkcheckSchedule        string        `env:"PCMS_LINKCHECK_SCHEDULE" envDefault:"@hourly"`
	LinkcheckTimeout         time.Duration `env:"PCMS_LINKCHECK_TIMEOUT" envDefault:"10s"`
	LinkcheckRate            float64       `env:"PCMS_LINKCHECK_RATE" envDefault:"5"`
	LinkcheckBatch           int           `env:"PCMS_LINKCHECK_BATCH" envDefault:"200"`
	LinkcheckRecheckAfter    time.Duration `env:"PCMS_LINKCHECK_RECHECK_AFTER" envDefault:"168h"`

	// Link index and update lock
	IndexWorkers int           `env:"PCMS_INDEX_WORKERS" envDefault:"2"`
	DrainTimeout time.Duration `env:"PCMS_DRAIN_TIMEOUT" envDefault:"5m"`
	LockTTL      time.Duration `env:"PCMS_LOCK_TTL" envDefault:"30s"`
	LockKey      string        `env:"PCMS_LOCK_KEY" envDefault:"linkcheck:update"`

	// Cache configuration
	RedisURL    string `env:"PCMS_REDIS_URL"`                         // Optional Redis URL for cache and update lock
	CachePrefix string `env:"PCMS_CACHE_PREFIX" envDefault:"pcms:"`   // Redis key prefix
	CacheTTL    int    `env:"PCMS_CACHE_TTL" envDefault:"3600"`       // Default cache TTL in seconds
	CacheSize   int    `env:"PCMS_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries

	EventRetentionDays int      `env:"PCMS_EVENT_RETENTION_DAYS" envDefault:"90"`
	CORSOrigins        []string `env:"PCMS_CORS_ORIGINS" envSeparator:","`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if Redis is configured.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// IgnoredURLTypes returns the URL types excluded from link health accounting.
// Disabling email or phone accounting ignores the matching URL type as well.
func (c Config) IgnoredURLTypes() []string {
	types := slices.Clone(c.LinkcheckIgnoredURLTypes)
	if !c.LinkcheckEmailEnabled && !slices.Contains(types, model.URLTypeMailto) {
		types = append(types, model.URLTypeMailto)
	}
	if !c.LinkcheckPhoneEnabled && !slices.Contains(types, model.URLTypePhone) {
		types = append(types, model.URLTypePhone)
	}
	return types
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that cannot be expressed as struct tags.
func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"PCMS_WEBAPP_URL":      c.WebappURL,
		"PCMS_SHORT_LINKS_URL": c.ShortLinksURL,
	} {
		if err := validateBaseURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.DrainTimeout <= 0 {
		return errors.New("PCMS_DRAIN_TIMEOUT must be positive")
	}
	if c.IndexWorkers <= 0 {
		return errors.New("PCMS_INDEX_WORKERS must be positive")
	}
	if c.LinkcheckRate <= 0 {
		return errors.New("PCMS_LINKCHECK_RATE must be positive")
	}

	return nil
}

// validateBaseURL requires an absolute URL with a host.
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q must be an absolute URL with a host", raw)
	}
	return nil
}
