// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic background jobs: URL health checks
// and event log retention.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/portal-cms/internal/linkcheck"
	"github.com/olegiv/portal-cms/internal/store"
)

const (
	coreSource             = "core"
	linkCheckJob           = "linkcheck"
	eventRetentionJob      = "event-retention"
	eventRetentionSchedule = "0 3 * * *" // daily at 03:00
)

// ErrAlreadyRunning is returned when a link check is triggered while one is in progress.
var ErrAlreadyRunning = errors.New("link check already running")

// LinkChecker checks a batch of URLs.
type LinkChecker interface {
	Run(ctx context.Context) (linkcheck.CheckStats, error)
}

// Config holds job schedules.
type Config struct {
	LinkCheckSchedule  string
	EventRetentionDays int
}

// DefaultConfig returns the default job schedules.
func DefaultConfig() Config {
	return Config{
		LinkCheckSchedule:  "@hourly",
		EventRetentionDays: 90,
	}
}

// Scheduler owns the cron instance and the job registry.
type Scheduler struct {
	queries  *store.Queries
	cron     *cron.Cron
	registry *Registry
	checker  LinkChecker
	cfg      Config
	logger   *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	checking atomic.Bool
}

// New creates a new scheduler instance. checker may be nil, in which case
// no link check job is registered.
func New(db *sql.DB, checker LinkChecker, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	queries := store.New(db)
	return &Scheduler{
		queries:  queries,
		cron:     cron.New(),
		registry: NewRegistry(queries, logger),
		checker:  checker,
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the job registry.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.checker != nil {
		if err := s.register(linkCheckJob, "Check external and internal URLs", s.cfg.LinkCheckSchedule, func() {
			if _, err := s.RunLinkCheck(s.ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				s.logger.Error("scheduled link check failed", "error", err, "category", "linkcheck")
			}
		}); err != nil {
			return err
		}
	}

	if s.cfg.EventRetentionDays > 0 {
		description := fmt.Sprintf("Delete events older than %d days", s.cfg.EventRetentionDays)
		if err := s.register(eventRetentionJob, description, eventRetentionSchedule, func() {
			if _, err := s.PurgeEvents(s.ctx); err != nil {
				s.logger.Error("failed to clean up old events", "error", err)
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// register adds jobFunc to cron on its effective schedule and records it.
func (s *Scheduler) register(name, description, defaultSchedule string, jobFunc func()) error {
	schedule := s.registry.EffectiveSchedule(coreSource, name, defaultSchedule)
	entryID, err := s.cron.AddFunc(schedule, jobFunc)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", schedule, name, err)
	}
	s.registry.Register(coreSource, name, description, defaultSchedule, s.cron, entryID, jobFunc, func() error {
		go jobFunc()
		return nil
	})
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunLinkCheck runs one checker batch unless a run is already in progress.
func (s *Scheduler) RunLinkCheck(ctx context.Context) (linkcheck.CheckStats, error) {
	if s.checker == nil {
		return linkcheck.CheckStats{}, errors.New("no link checker configured")
	}
	if !s.checking.CompareAndSwap(false, true) {
		return linkcheck.CheckStats{}, ErrAlreadyRunning
	}
	defer s.checking.Store(false)

	started := time.Now()
	stats, err := s.checker.Run(ctx)
	if err != nil {
		return stats, err
	}
	s.logger.Info("link check finished",
		"checked", stats.Checked,
		"valid", stats.Valid,
		"invalid", stats.Invalid,
		"duration", time.Since(started),
	)
	return stats, nil
}

// PurgeEvents deletes event log entries older than the retention period.
func (s *Scheduler) PurgeEvents(ctx context.Context) (int64, error) {
	if s.cfg.EventRetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -s.cfg.EventRetentionDays)
	n, err := s.queries.DeleteOldEvents(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting old events: %w", err)
	}
	s.logger.Info("cleaned up old events", "deleted", n, "older_than", cutoff.Format("2006-01-02"))
	return n, nil
}
