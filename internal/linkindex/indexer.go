// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package linkindex maintains the links and urls tables. Saving a
// translation enqueues a job; workers rebuild the links of the saved
// chain from its latest body. Drain lets writers wait until the index
// reflects their changes.
package linkindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/portal-cms/internal/htmlrewrite"
	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/store"
	"github.com/olegiv/portal-cms/internal/updatelock"
)

var (
	// ErrQueueStopped is returned by Enqueue after Stop.
	ErrQueueStopped = errors.New("link index queue stopped")

	// ErrDrainTimeout is returned when Drain gives up waiting.
	ErrDrainTimeout = errors.New("link index drain timed out")
)

// Config holds indexer configuration.
type Config struct {
	Workers int // Number of concurrent rebuild workers
	// OwnHosts are the hosts whose links are classified as internal.
	OwnHosts []string
}

// DefaultConfig returns default indexer configuration.
func DefaultConfig() Config {
	return Config{
		Workers: 2,
	}
}

// Indexer rebuilds link rows in the background.
type Indexer struct {
	db       *sql.DB
	queries  *store.Queries
	locker   updatelock.Locker
	logger   *slog.Logger
	workers  int
	ownHosts []string

	mu      sync.Mutex
	queue   []int64
	pending int
	idle    chan struct{} // closed while pending == 0
	notify  chan struct{}
	running bool
	stopped bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates an indexer. Jobs enqueued before Start wait for the workers.
func New(db *sql.DB, locker updatelock.Locker, cfg Config, logger *slog.Logger) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if logger == nil {
		logger = slog.Default()
	}

	idle := make(chan struct{})
	close(idle)

	return &Indexer{
		db:       db,
		queries:  store.New(db),
		locker:   locker,
		logger:   logger,
		workers:  cfg.Workers,
		ownHosts: cfg.OwnHosts,
		idle:     idle,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start starts the worker goroutines. Workers keep ctx's values but not its
// cancellation: they run until Stop, so jobs accepted while the process
// shuts down are still worked off.
func (ix *Indexer) Start(ctx context.Context) {
	ix.mu.Lock()
	if ix.running || ix.stopped {
		ix.mu.Unlock()
		return
	}
	ix.running = true
	ix.mu.Unlock()

	ix.logger.Info("starting link indexer", "workers", ix.workers)

	ctx = context.WithoutCancel(ctx)
	for i := 0; i < ix.workers; i++ {
		ix.wg.Add(1)
		go ix.worker(ctx, i)
	}
	ix.wake()
}

// Stop rejects new jobs and waits for the workers to work off the queue.
// Jobs queued on an indexer that was never started are dropped.
func (ix *Indexer) Stop() {
	ix.mu.Lock()
	if ix.stopped {
		ix.mu.Unlock()
		return
	}
	ix.stopped = true
	wasRunning := ix.running
	ix.running = false
	ix.mu.Unlock()

	ix.logger.Info("stopping link indexer")
	close(ix.done)
	if wasRunning {
		ix.wg.Wait()
	}

	ix.mu.Lock()
	dropped := len(ix.queue)
	ix.queue = nil
	ix.finishLocked(dropped)
	ix.mu.Unlock()

	if dropped > 0 {
		ix.logger.Warn("link indexer stopped with queued jobs", "dropped", dropped,
			"category", model.EventCategoryLinkcheck)
	}
	ix.logger.Info("link indexer stopped")
}

// Enqueue schedules a rebuild of the chain that translationID belongs to.
// It returns once the job is counted as pending, so a following Drain
// always waits for it. Enqueue never blocks on the workers.
func (ix *Indexer) Enqueue(ctx context.Context, translationID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ix.mu.Lock()
	if ix.stopped {
		ix.mu.Unlock()
		return ErrQueueStopped
	}
	ix.queue = append(ix.queue, translationID)
	if ix.pending == 0 {
		ix.idle = make(chan struct{})
	}
	ix.pending++
	ix.mu.Unlock()

	ix.wake()
	ix.logger.Debug("link index job queued", "translation_id", translationID)
	return nil
}

// Pending returns the number of queued and running jobs.
func (ix *Indexer) Pending() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.pending
}

// Drain blocks until no job is queued or running. It returns ErrDrainTimeout
// after timeout and ctx.Err() if ctx ends first.
func (ix *Indexer) Drain(ctx context.Context, timeout time.Duration) error {
	ix.mu.Lock()
	idle := ix.idle
	ix.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-idle:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %s (%d pending)", ErrDrainTimeout, timeout, ix.Pending())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReindexAll enqueues every chain head.
func (ix *Indexer) ReindexAll(ctx context.Context) (int, error) {
	ids, err := ix.queries.ListLatestTranslationIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing translations: %w", err)
	}
	for _, id := range ids {
		if err := ix.Enqueue(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// Rebuild synchronously rebuilds the links of translationID's chain while
// holding the update lock.
func (ix *Indexer) Rebuild(ctx context.Context, translationID int64) error {
	return updatelock.WithLock(ctx, ix.locker, func(ctx context.Context) error {
		return ix.rebuild(ctx, translationID)
	})
}

func (ix *Indexer) wake() {
	select {
	case ix.notify <- struct{}{}:
	default:
	}
}

func (ix *Indexer) next() (int64, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if len(ix.queue) == 0 {
		return 0, false
	}
	id := ix.queue[0]
	ix.queue = ix.queue[1:]
	if len(ix.queue) > 0 {
		ix.wake()
	}
	return id, true
}

func (ix *Indexer) finish() {
	ix.mu.Lock()
	ix.finishLocked(1)
	ix.mu.Unlock()
}

func (ix *Indexer) finishLocked(n int) {
	if n == 0 {
		return
	}
	ix.pending -= n
	if ix.pending == 0 {
		close(ix.idle)
	}
}

// worker processes queued jobs.
func (ix *Indexer) worker(ctx context.Context, id int) {
	defer ix.wg.Done()
	ix.logger.Debug("link index worker started", "worker_id", id)

	for {
		if translationID, ok := ix.next(); ok {
			ix.process(ctx, id, translationID)
			continue
		}

		select {
		case <-ix.done:
			ix.logger.Debug("link index worker stopping", "worker_id", id)
			return
		case <-ix.notify:
		}
	}
}

func (ix *Indexer) process(ctx context.Context, workerID int, translationID int64) {
	defer ix.finish()

	start := time.Now()
	if err := ix.Rebuild(ctx, translationID); err != nil {
		ix.logger.Error("link index rebuild failed",
			"worker_id", workerID,
			"translation_id", translationID,
			"error", err,
			"category", model.EventCategoryLinkcheck)
		return
	}
	ix.logger.Debug("link index rebuilt",
		"worker_id", workerID,
		"translation_id", translationID,
		"duration", time.Since(start))
}

// rebuild replaces the links of a chain with those found in its latest body.
// Ignore flags survive for URLs that are still linked.
func (ix *Indexer) rebuild(ctx context.Context, translationID int64) error {
	t, err := ix.queries.GetTranslation(ctx, translationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading translation %d: %w", translationID, err)
	}

	return store.InTx(ctx, ix.db, func(q *store.Queries) error {
		latest, err := q.GetLatestTranslation(ctx, t.ContentObjectID, t.LanguageID)
		if err != nil {
			return fmt.Errorf("loading chain head: %w", err)
		}

		ignored, err := q.ListIgnoredURLsForChain(ctx, t.ContentObjectID, t.LanguageID)
		if err != nil {
			return fmt.Errorf("listing ignored urls: %w", err)
		}
		ignoredSet := make(map[string]bool, len(ignored))
		for _, u := range ignored {
			ignoredSet[u] = true
		}

		if _, err := q.DeleteLinksForChain(ctx, t.ContentObjectID, t.LanguageID); err != nil {
			return fmt.Errorf("deleting links: %w", err)
		}

		links, err := htmlrewrite.ExtractLinks(latest.Content)
		if err != nil {
			return fmt.Errorf("extracting links: %w", err)
		}
		for _, raw := range links {
			urlID, err := q.UpsertURL(ctx, raw, ClassifyURL(raw, ix.ownHosts))
			if err != nil {
				return fmt.Errorf("recording url %q: %w", raw, err)
			}
			if err := q.InsertLink(ctx, urlID, latest.ID, ignoredSet[raw]); err != nil {
				return fmt.Errorf("recording link: %w", err)
			}
		}

		if _, err := q.DeleteOrphanURLs(ctx); err != nil {
			return fmt.Errorf("deleting orphan urls: %w", err)
		}
		return nil
	})
}
