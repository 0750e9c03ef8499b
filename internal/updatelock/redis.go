// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package updatelock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/olegiv/portal-cms/internal/model"
)

const (
	// DefaultTTL is the default lock time-to-live.
	DefaultTTL = 30 * time.Second

	// DefaultRetryDelay is the default delay between acquisition attempts.
	DefaultRetryDelay = 100 * time.Millisecond
)

var (
	unlockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// RedisConfig configures a Redis-backed lock.
type RedisConfig struct {
	Key        string
	TTL        time.Duration
	RetryDelay time.Duration
	// MaxRetries bounds acquisition attempts; 0 retries until ctx ends.
	MaxRetries int
}

// Redis is a Locker shared by every process using the same Redis key.
// Each acquisition gets its own token, and the TTL is extended in the
// background while the lock is held.
type Redis struct {
	client     *redis.Client
	key        string
	ttl        time.Duration
	retryDelay time.Duration
	maxRetries int
	logger     *slog.Logger
}

// NewRedis creates a Redis-backed lock.
func NewRedis(client *redis.Client, cfg RedisConfig, logger *slog.Logger) *Redis {
	if cfg.Key == "" {
		cfg.Key = "linkcheck:update"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:     client,
		key:        cfg.Key,
		ttl:        cfg.TTL,
		retryDelay: cfg.RetryDelay,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// Lock implements Locker.
func (l *Redis) Lock(ctx context.Context) (Release, error) {
	token := uuid.New().String()

	for attempt := 1; ; attempt++ {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring update lock: %w", err)
		}
		if ok {
			break
		}
		if l.maxRetries > 0 && attempt >= l.maxRetries {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(token, stop, done)

	return once(func() {
		close(stop)
		<-done

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.unlock(ctx, token); err != nil {
			l.logger.Warn("update lock release failed",
				"key", l.key, "error", err, "category", model.EventCategoryLock)
		}
	}), nil
}

// keepAlive extends the TTL every third of its length until stop closes.
func (l *Redis) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			err := l.extend(ctx, token)
			cancel()
			if errors.Is(err, ErrLockNotHeld) {
				l.logger.Warn("update lock expired while held",
					"key", l.key, "category", model.EventCategoryLock)
				return
			}
			if err != nil {
				l.logger.Warn("update lock extension failed",
					"key", l.key, "error", err, "category", model.EventCategoryLock)
			}
		}
	}
}

func (l *Redis) unlock(ctx context.Context, token string) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("releasing update lock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (l *Redis) extend(ctx context.Context, token string) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extending update lock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Key returns the Redis key guarding the lock.
func (l *Redis) Key() string {
	return l.key
}
