// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package updatelock provides the exclusive lock that serializes writes to
// the link index. Bulk link replacement holds it for its whole run; the
// link-index workers take it per job.
package updatelock

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrLockNotAcquired is returned when a lock cannot be acquired.
	ErrLockNotAcquired = errors.New("update lock not acquired")

	// ErrLockNotHeld is returned when releasing or extending a lock that
	// has expired or been taken over.
	ErrLockNotHeld = errors.New("update lock not held")
)

// Release gives the lock back. Calling it more than once is a no-op.
type Release func()

// Locker acquires the update lock, blocking until it is free or ctx ends.
type Locker interface {
	Lock(ctx context.Context) (Release, error)
}

// WithLock runs fn while holding l. The lock is released when fn returns or panics.
func WithLock(ctx context.Context, l Locker, fn func(ctx context.Context) error) error {
	release, err := l.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Local is an in-process Locker.
type Local struct {
	sem chan struct{}
}

// NewLocal creates an unlocked in-process lock.
func NewLocal() *Local {
	return &Local{sem: make(chan struct{}, 1)}
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context) (Release, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return once(func() { <-l.sem }), nil
}

// TryLock acquires the lock only if it is free.
func (l *Local) TryLock() (Release, bool) {
	select {
	case l.sem <- struct{}{}:
		return once(func() { <-l.sem }), true
	default:
		return nil, false
	}
}

func once(fn func()) Release {
	var o sync.Once
	return func() { o.Do(fn) }
}

var (
	_ Locker = (*Local)(nil)
	_ Locker = (*Redis)(nil)
)
