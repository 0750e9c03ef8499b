// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
)

const getSchedulerOverride = `
SELECT override_schedule FROM scheduler_overrides WHERE source = ? AND name = ?`

// GetSchedulerOverride returns the persisted schedule for a job.
func (q *Queries) GetSchedulerOverride(ctx context.Context, source, name string) (string, error) {
	var schedule string
	err := q.db.QueryRowContext(ctx, getSchedulerOverride, source, name).Scan(&schedule)
	return schedule, notFound(err)
}

const upsertSchedulerOverride = `
INSERT INTO scheduler_overrides (source, name, override_schedule, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (source, name) DO UPDATE SET
    override_schedule = excluded.override_schedule,
    updated_at = CURRENT_TIMESTAMP`

// UpsertSchedulerOverride persists a schedule override for a job.
func (q *Queries) UpsertSchedulerOverride(ctx context.Context, source, name, schedule string) error {
	_, err := q.db.ExecContext(ctx, upsertSchedulerOverride, source, name, schedule)
	return err
}

// DeleteSchedulerOverride removes a job's schedule override.
func (q *Queries) DeleteSchedulerOverride(ctx context.Context, source, name string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM scheduler_overrides WHERE source = ? AND name = ?`, source, name)
	return err
}
