// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/util"
)

const createRegion = `
INSERT INTO regions (slug, name, created_at) VALUES (?, ?, ?)
RETURNING id, slug, name, created_at`

// CreateRegion inserts a region.
func (q *Queries) CreateRegion(ctx context.Context, slug, name string) (model.Region, error) {
	var r model.Region
	err := q.db.QueryRowContext(ctx, createRegion, slug, name, time.Now().UTC()).
		Scan(&r.ID, &r.Slug, &r.Name, &r.CreatedAt)
	return r, err
}

const getRegionBySlug = `SELECT id, slug, name, created_at FROM regions WHERE slug = ?`

// GetRegionBySlug returns the region with the given slug.
func (q *Queries) GetRegionBySlug(ctx context.Context, slug string) (model.Region, error) {
	var r model.Region
	err := q.db.QueryRowContext(ctx, getRegionBySlug, slug).Scan(&r.ID, &r.Slug, &r.Name, &r.CreatedAt)
	return r, notFound(err)
}

const getRegion = `SELECT id, slug, name, created_at FROM regions WHERE id = ?`

// GetRegion returns the region with the given ID.
func (q *Queries) GetRegion(ctx context.Context, id int64) (model.Region, error) {
	var r model.Region
	err := q.db.QueryRowContext(ctx, getRegion, id).Scan(&r.ID, &r.Slug, &r.Name, &r.CreatedAt)
	return r, notFound(err)
}

const listRegions = `SELECT id, slug, name, created_at FROM regions ORDER BY slug`

// ListRegions returns all regions ordered by slug.
func (q *Queries) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := q.db.QueryContext(ctx, listRegions)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.Slug, &r.Name, &r.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const createLanguage = `
INSERT INTO languages (slug, name, native_name, direction, created_at) VALUES (?, ?, ?, ?, ?)
RETURNING id, slug, name, native_name, direction, created_at`

// CreateLanguageParams holds the fields of a new language.
type CreateLanguageParams struct {
	Slug       string
	Name       string
	NativeName string
	Direction  string
}

// CreateLanguage inserts a language.
func (q *Queries) CreateLanguage(ctx context.Context, arg CreateLanguageParams) (model.Language, error) {
	if arg.Direction == "" {
		arg.Direction = model.DirectionLTR
	}
	var l model.Language
	err := q.db.QueryRowContext(ctx, createLanguage, arg.Slug, arg.Name, arg.NativeName, arg.Direction, time.Now().UTC()).
		Scan(&l.ID, &l.Slug, &l.Name, &l.NativeName, &l.Direction, &l.CreatedAt)
	return l, err
}

const getLanguageBySlug = `SELECT id, slug, name, native_name, direction, created_at FROM languages WHERE slug = ?`

// GetLanguageBySlug returns the language with the given slug.
func (q *Queries) GetLanguageBySlug(ctx context.Context, slug string) (model.Language, error) {
	var l model.Language
	err := q.db.QueryRowContext(ctx, getLanguageBySlug, slug).
		Scan(&l.ID, &l.Slug, &l.Name, &l.NativeName, &l.Direction, &l.CreatedAt)
	return l, notFound(err)
}

const getLanguage = `SELECT id, slug, name, native_name, direction, created_at FROM languages WHERE id = ?`

// GetLanguage returns the language with the given ID.
func (q *Queries) GetLanguage(ctx context.Context, id int64) (model.Language, error) {
	var l model.Language
	err := q.db.QueryRowContext(ctx, getLanguage, id).
		Scan(&l.ID, &l.Slug, &l.Name, &l.NativeName, &l.Direction, &l.CreatedAt)
	return l, notFound(err)
}

const upsertRegionLanguage = `
INSERT INTO region_languages (region_id, language_id, parent_language_id, active, fallback)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (region_id, language_id) DO UPDATE SET
    parent_language_id = excluded.parent_language_id,
    active = excluded.active,
    fallback = excluded.fallback
RETURNING id`

// UpsertRegionLanguage creates or updates a node of a region's language tree.
func (q *Queries) UpsertRegionLanguage(ctx context.Context, n model.RegionLanguage) (model.RegionLanguage, error) {
	err := q.db.QueryRowContext(ctx, upsertRegionLanguage,
		n.RegionID, n.LanguageID, util.NullInt64FromPtr(n.ParentLanguageID), n.Active, n.Fallback,
	).Scan(&n.ID)
	return n, err
}

const getRegionLanguage = `
SELECT id, region_id, language_id, parent_language_id, active, fallback
FROM region_languages WHERE region_id = ? AND language_id = ?`

// GetRegionLanguage returns the language tree node of a region and language.
func (q *Queries) GetRegionLanguage(ctx context.Context, regionID, languageID int64) (model.RegionLanguage, error) {
	var (
		n      model.RegionLanguage
		parent sql.NullInt64
	)
	err := q.db.QueryRowContext(ctx, getRegionLanguage, regionID, languageID).
		Scan(&n.ID, &n.RegionID, &n.LanguageID, &parent, &n.Active, &n.Fallback)
	if err != nil {
		return n, notFound(err)
	}
	n.ParentLanguageID = util.PtrFromNullInt64(parent)
	return n, nil
}
