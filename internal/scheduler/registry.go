// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/portal-cms/internal/store"
)

var (
	// ErrJobNotFound is returned for an unknown source:name pair.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotTriggerable is returned when a job has no manual trigger.
	ErrNotTriggerable = errors.New("manual trigger not available")
)

// scheduleParser accepts the same expressions as cron.New().
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// registeredJob holds metadata about a registered cron job.
type registeredJob struct {
	source          string
	name            string
	description     string
	defaultSchedule string
	schedule        string // effective schedule (override or default)
	cronInstance    *cron.Cron
	entryID         cron.EntryID
	jobFunc         func()
	triggerFunc     func() error // nil if manual trigger not allowed
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Source          string    `json:"source"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DefaultSchedule string    `json:"default_schedule"`
	Schedule        string    `json:"schedule"`
	IsOverridden    bool      `json:"is_overridden"`
	LastRun         time.Time `json:"last_run"`
	NextRun         time.Time `json:"next_run"`
	CanTrigger      bool      `json:"can_trigger"`
}

// Registry tracks the scheduled jobs and their persisted schedule overrides.
type Registry struct {
	queries *store.Queries
	logger  *slog.Logger
	mu      sync.RWMutex
	jobs    map[string]*registeredJob // key: "source:name"
}

// NewRegistry creates a registry backed by the scheduler_overrides table.
func NewRegistry(queries *store.Queries, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		queries: queries,
		logger:  logger,
		jobs:    make(map[string]*registeredJob),
	}
}

func jobKey(source, name string) string {
	return source + ":" + name
}

// EffectiveSchedule returns the override schedule if one exists, otherwise the default.
// Call this before cron.AddFunc so the job starts on the right schedule.
func (r *Registry) EffectiveSchedule(source, name, defaultSchedule string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	override, err := r.queries.GetSchedulerOverride(ctx, source, name)
	if err == nil && override != "" {
		return override
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.logger.Warn("failed to read schedule override", "error", err, "source", source, "name", name, "category", "system")
	}
	return defaultSchedule
}

// Register records a job in the registry after it has been added to a cron instance.
func (r *Registry) Register(source, name, description, defaultSchedule string, cronInst *cron.Cron, entryID cron.EntryID, jobFunc func(), triggerFunc func() error) {
	effectiveSchedule := r.EffectiveSchedule(source, name, defaultSchedule)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[jobKey(source, name)] = &registeredJob{
		source:          source,
		name:            name,
		description:     description,
		defaultSchedule: defaultSchedule,
		schedule:        effectiveSchedule,
		cronInstance:    cronInst,
		entryID:         entryID,
		jobFunc:         jobFunc,
		triggerFunc:     triggerFunc,
	}

	r.logger.Debug("registered scheduled job", "source", source, "name", name, "schedule", effectiveSchedule)
}

// List returns all registered jobs sorted by source then name.
func (r *Registry) List() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]JobInfo, 0, len(r.jobs))
	for _, job := range r.jobs {
		info := JobInfo{
			Source:          job.source,
			Name:            job.name,
			Description:     job.description,
			DefaultSchedule: job.defaultSchedule,
			Schedule:        job.schedule,
			IsOverridden:    job.schedule != job.defaultSchedule,
			CanTrigger:      job.triggerFunc != nil,
		}
		if job.cronInstance != nil {
			entry := job.cronInstance.Entry(job.entryID)
			info.NextRun = entry.Next
			info.LastRun = entry.Prev
		}
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Source != result[j].Source {
			return result[i].Source < result[j].Source
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// TriggerNow manually executes a job immediately.
func (r *Registry) TriggerNow(source, name string) error {
	r.mu.RLock()
	job, ok := r.jobs[jobKey(source, name)]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobKey(source, name))
	}
	if job.triggerFunc == nil {
		return fmt.Errorf("%w: %s", ErrNotTriggerable, jobKey(source, name))
	}

	r.logger.Info("manually triggering job", "source", source, "name", name)
	return job.triggerFunc()
}

// UpdateSchedule swaps the job's cron entry for one on newSchedule and
// persists the override.
func (r *Registry) UpdateSchedule(source, name, newSchedule string) error {
	if _, err := scheduleParser.Parse(newSchedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", newSchedule, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobKey(source, name)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobKey(source, name))
	}
	if err := r.reschedule(job, newSchedule); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.queries.UpsertSchedulerOverride(ctx, source, name, newSchedule); err != nil {
		r.logger.Error("failed to persist schedule override", "error", err, "source", source, "name", name)
	}

	r.logger.Info("updated job schedule", "source", source, "name", name, "schedule", newSchedule)
	return nil
}

// ResetSchedule removes the override and restores the default schedule.
func (r *Registry) ResetSchedule(source, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobKey(source, name)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobKey(source, name))
	}
	if job.schedule == job.defaultSchedule {
		return nil
	}
	if err := r.reschedule(job, job.defaultSchedule); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.queries.DeleteSchedulerOverride(ctx, source, name); err != nil {
		r.logger.Error("failed to remove schedule override", "error", err, "source", source, "name", name)
	}

	r.logger.Info("reset job schedule to default", "source", source, "name", name, "schedule", job.defaultSchedule)
	return nil
}

// reschedule replaces the cron entry of job. The caller holds r.mu.
func (r *Registry) reschedule(job *registeredJob, schedule string) error {
	if job.cronInstance == nil || job.jobFunc == nil {
		return fmt.Errorf("job cannot be rescheduled: %s", jobKey(job.source, job.name))
	}

	job.cronInstance.Remove(job.entryID)
	entryID, err := job.cronInstance.AddFunc(schedule, job.jobFunc)
	if err != nil {
		fallbackID, fallbackErr := job.cronInstance.AddFunc(job.schedule, job.jobFunc)
		if fallbackErr != nil {
			return fmt.Errorf("critical: failed to restore schedule after update failure: %w (original: %w)", fallbackErr, err)
		}
		job.entryID = fallbackID
		return fmt.Errorf("failed to apply new schedule: %w", err)
	}

	job.entryID = entryID
	job.schedule = schedule
	return nil
}
