// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/olegiv/portal-cms/internal/cache"
	"github.com/olegiv/portal-cms/internal/config"
	"github.com/olegiv/portal-cms/internal/content"
	"github.com/olegiv/portal-cms/internal/linkcheck"
	"github.com/olegiv/portal-cms/internal/linkindex"
	"github.com/olegiv/portal-cms/internal/linkresolve"
	"github.com/olegiv/portal-cms/internal/logging"
	"github.com/olegiv/portal-cms/internal/store"
	"github.com/olegiv/portal-cms/internal/updatelock"
)

// app holds the services shared by all subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	cache    cache.Cacher
	locker   updatelock.Locker
	index    *linkindex.Indexer
	content  *content.Service
	resolver *linkresolve.Resolver
	links    *linkcheck.Service
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newApp loads the configuration, opens and migrates the database and
// wires the services. The link index workers are running on return.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	logger.Debug("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	// WARN and ERROR records also go to the event log from here on
	logger = slog.New(logging.NewEventLogHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}), db))
	slog.SetDefault(logger)

	c, err := cache.New(cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      time.Duration(cfg.CacheTTL) * time.Second,
		MaxSize:         cfg.CacheSize,
		CleanupInterval: time.Minute,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing cache: %w", err)
	}

	// The update lock shares the cache's Redis connection so every process
	// using the same Redis serializes link writes.
	var locker updatelock.Locker = updatelock.NewLocal()
	if rc, ok := c.(*cache.RedisCache); ok {
		locker = updatelock.NewRedis(rc.Client(), updatelock.RedisConfig{
			Key: cfg.LockKey,
			TTL: cfg.LockTTL,
		}, logger)
		logger.Info("cache and update lock backed by redis", "url", cache.SanitizeRedisURL(cfg.RedisURL))
	}

	index := linkindex.New(db, locker, linkindex.Config{
		Workers:  cfg.IndexWorkers,
		OwnHosts: linkindex.HostsOf(cfg.WebappURL, cfg.ShortLinksURL),
	}, logger)

	svc := content.NewService(db, c, index, content.Config{
		WebappURL:     cfg.WebappURL,
		ShortLinksURL: cfg.ShortLinksURL,
	}, logger)

	classifier, err := linkresolve.NewClassifier(cfg.WebappURL, cfg.ShortLinksURL)
	if err != nil {
		_ = c.Close()
		_ = db.Close()
		return nil, fmt.Errorf("configuring link classifier: %w", err)
	}
	resolver := linkresolve.NewResolver(classifier, svc, logger)
	svc.SetLinkFixer(resolver)

	links := linkcheck.NewService(db, svc, index, locker, linkcheck.Config{
		IgnoredURLTypes: cfg.IgnoredURLTypes(),
		EmailEnabled:    cfg.LinkcheckEmailEnabled,
		PhoneEnabled:    cfg.LinkcheckPhoneEnabled,
		DrainTimeout:    cfg.DrainTimeout,
	}, logger)

	// Workers outlive ctx; Close stops them after the queue is worked off.
	index.Start(ctx)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		cache:    c,
		locker:   locker,
		index:    index,
		content:  svc,
		resolver: resolver,
		links:    links,
	}, nil
}

// checker builds the URL health checker from the configuration.
func (a *app) checker() *linkcheck.Checker {
	cfg := linkcheck.DefaultCheckerConfig()
	cfg.Timeout = a.cfg.LinkcheckTimeout
	cfg.Rate = a.cfg.LinkcheckRate
	cfg.Batch = a.cfg.LinkcheckBatch
	cfg.Recheck = a.cfg.LinkcheckRecheckAfter
	return linkcheck.NewChecker(a.db, a.resolver, cfg, a.logger)
}

// Close stops the link index and releases the cache and database.
func (a *app) Close() {
	a.index.Stop()
	if err := a.cache.Close(); err != nil {
		a.logger.Error("error closing cache", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("error closing database connection", "error", err)
	}
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
