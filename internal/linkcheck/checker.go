// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package linkcheck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/olegiv/portal-cms/internal/linkresolve"
	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/store"
)

// CheckerConfig holds health checker settings.
type CheckerConfig struct {
	// Timeout bounds a single request.
	Timeout time.Duration
	// Rate is the number of outgoing requests per second.
	Rate float64
	// Batch is the number of URLs checked per run.
	Batch int
	// Concurrency is the number of URLs checked at once.
	Concurrency int
	// Recheck is the age after which a checked URL is checked again.
	Recheck time.Duration
	// Retries is the number of retries after a transient failure.
	Retries   uint64
	UserAgent string
}

// DefaultCheckerConfig returns the default health checker settings.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		Timeout:     10 * time.Second,
		Rate:        5,
		Batch:       200,
		Concurrency: 4,
		Recheck:     24 * time.Hour,
		Retries:     2,
		UserAgent:   "portal-cms-linkcheck/1.0",
	}
}

// CheckStats summarizes a checker run.
type CheckStats struct {
	Checked int64 `json:"checked"`
	Valid   int64 `json:"valid"`
	Invalid int64 `json:"invalid"`
}

// Checker checks the health of external and internal URLs.
type Checker struct {
	queries  *store.Queries
	resolver *linkresolve.Resolver
	client   *http.Client
	limiter  *rate.Limiter
	cfg      CheckerConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewChecker creates a health checker. Internal links are resolved to
// content instead of being fetched.
func NewChecker(db *sql.DB, resolver *linkresolve.Resolver, cfg CheckerConfig, logger *slog.Logger) *Checker {
	def := DefaultCheckerConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Batch <= 0 {
		cfg.Batch = def.Batch
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Recheck <= 0 {
		cfg.Recheck = def.Recheck
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Checker{
		queries:  store.New(db),
		resolver: resolver,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), 1),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run checks the URLs that were never checked or whose last check is older
// than the recheck interval, at most one batch.
func (c *Checker) Run(ctx context.Context) (CheckStats, error) {
	var stats CheckStats

	urls, err := c.queries.ListURLsForCheck(ctx, store.ListURLsForCheckParams{
		Types:         []string{model.URLTypeExternal, model.URLTypeInternal},
		CheckedBefore: c.now().Add(-c.cfg.Recheck).UTC(),
		Limit:         c.cfg.Batch,
	})
	if err != nil {
		return stats, fmt.Errorf("listing urls to check: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for _, u := range urls {
		g.Go(func() error {
			ok, message := c.check(gctx, u)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err := c.queries.UpdateURLStatus(gctx, u.ID, ok, message, c.now()); err != nil {
				return fmt.Errorf("storing status of url %d: %w", u.ID, err)
			}
			atomic.AddInt64(&stats.Checked, 1)
			if ok {
				atomic.AddInt64(&stats.Valid, 1)
			} else {
				atomic.AddInt64(&stats.Invalid, 1)
				c.logger.Debug("url check failed", "url", u.URL, "message", message)
			}
			return nil
		})
	}
	err = g.Wait()

	c.logger.Info("url check finished",
		"checked", stats.Checked, "valid", stats.Valid, "invalid", stats.Invalid,
		"category", model.EventCategoryLinkcheck)
	return stats, err
}

// check returns the health of one URL and a short message.
func (c *Checker) check(ctx context.Context, u model.URL) (bool, string) {
	target := u.URL
	if u.Type == model.URLTypeInternal {
		target = c.resolver.Classifier().Absolute(target)
		if c.resolver.Classifier().Classify(target) != linkresolve.KindUnrecognized {
			t, err := c.resolver.PublicTranslationForLink(ctx, target, "")
			if err != nil {
				return false, err.Error()
			}
			if t != nil {
				return true, "resolves to " + string(t.Kind) + " " + t.Slug
			}
		}
		if !strings.Contains(target, "://") && !strings.HasPrefix(target, "//") {
			return false, "unresolved internal link"
		}
	}
	return c.fetch(ctx, target)
}

// errTransient marks a response worth retrying.
var errTransient = errors.New("transient failure")

func (c *Checker) fetch(ctx context.Context, target string) (bool, string) {
	var (
		status  int
		lastErr error
	)
	backoff := retry.WithMaxRetries(c.cfg.Retries, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		code, err := c.request(ctx, http.MethodHead, target)
		if err == nil && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
			code, err = c.request(ctx, http.MethodGet, target)
		}
		status, lastErr = code, err
		switch {
		case err != nil && isTransient(err):
			return retry.RetryableError(err)
		case err != nil:
			return err
		case code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
			return retry.RetryableError(errTransient)
		}
		return nil
	})

	if lastErr != nil {
		return false, lastErr.Error()
	}
	if err != nil && !errors.Is(err, errTransient) {
		return false, err.Error()
	}
	message := fmt.Sprintf("%d %s", status, http.StatusText(status))
	return status < http.StatusBadRequest, message
}

func (c *Checker) request(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
