// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/util"
)

const createContentObject = `
INSERT INTO content_objects (kind, region_id, parent_id, created_at) VALUES (?, ?, ?, ?)
RETURNING id, created_at`

// CreateContentObject inserts a content object.
func (q *Queries) CreateContentObject(ctx context.Context, kind model.ContentKind, regionID int64, parentID *int64) (model.ContentObject, error) {
	obj := model.ContentObject{Kind: kind, RegionID: regionID, ParentID: parentID}
	err := q.db.QueryRowContext(ctx, createContentObject, string(kind), regionID, util.NullInt64FromPtr(parentID), time.Now().UTC()).
		Scan(&obj.ID, &obj.CreatedAt)
	return obj, err
}

const contentObjectColumns = `co.id, co.kind, co.region_id, co.parent_id, co.created_at`

func scanContentObject(s rowScanner) (model.ContentObject, error) {
	var (
		obj    model.ContentObject
		kind   string
		parent sql.NullInt64
	)
	if err := s.Scan(&obj.ID, &kind, &obj.RegionID, &parent, &obj.CreatedAt); err != nil {
		return obj, err
	}
	obj.Kind = model.ContentKind(kind)
	obj.ParentID = util.PtrFromNullInt64(parent)
	return obj, nil
}

const getContentObject = `SELECT ` + contentObjectColumns + ` FROM content_objects co WHERE co.id = ?`

// GetContentObject returns the content object with the given ID.
func (q *Queries) GetContentObject(ctx context.Context, id int64) (model.ContentObject, error) {
	obj, err := scanContentObject(q.db.QueryRowContext(ctx, getContentObject, id))
	return obj, notFound(err)
}

const countContentObjects = `SELECT COUNT(*) FROM content_objects WHERE region_id = ? AND kind = ?`

// CountContentObjects counts the objects of one kind in a region.
func (q *Queries) CountContentObjects(ctx context.Context, regionID int64, kind model.ContentKind) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countContentObjects, regionID, string(kind)).Scan(&n)
	return n, err
}

// FindContentObjectsParams filters content objects by a translation they carry.
type FindContentObjectsParams struct {
	RegionSlug   string
	Kind         model.ContentKind
	LanguageSlug string
	// Slug is matched against every version of the translations unless empty.
	Slug string
}

const findContentObjects = `
SELECT DISTINCT ` + contentObjectColumns + `
FROM content_objects co
JOIN regions r ON r.id = co.region_id
JOIN translations t ON t.content_object_id = co.id
JOIN languages l ON l.id = t.language_id
WHERE r.slug = ? AND co.kind = ? AND l.slug = ? AND (? = '' OR t.slug = ?)
ORDER BY co.created_at DESC, co.id DESC`

// FindContentObjects returns the distinct objects matching the parameters,
// most recently created first.
func (q *Queries) FindContentObjects(ctx context.Context, arg FindContentObjectsParams) ([]model.ContentObject, error) {
	rows, err := q.db.QueryContext(ctx, findContentObjects,
		arg.RegionSlug, string(arg.Kind), arg.LanguageSlug, arg.Slug, arg.Slug)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.ContentObject
	for rows.Next() {
		obj, err := scanContentObject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, obj)
	}
	return items, rows.Err()
}

const translationSelect = `
SELECT t.id, t.content_object_id, t.language_id, t.version, t.status, t.slug, t.title, t.content,
       t.minor_edit, t.creator_id, t.created_at, co.kind, co.region_id, r.slug, l.slug
FROM translations t
JOIN content_objects co ON co.id = t.content_object_id
JOIN regions r ON r.id = co.region_id
JOIN languages l ON l.id = t.language_id`

func scanTranslation(s rowScanner) (*model.Translation, error) {
	var (
		t       model.Translation
		creator sql.NullInt64
		kind    string
	)
	err := s.Scan(&t.ID, &t.ContentObjectID, &t.LanguageID, &t.Version, &t.Status, &t.Slug, &t.Title, &t.Content,
		&t.MinorEdit, &creator, &t.CreatedAt, &kind, &t.RegionID, &t.RegionSlug, &t.LanguageSlug)
	if err != nil {
		return nil, err
	}
	t.CreatorID = util.PtrFromNullInt64(creator)
	t.Kind = model.ContentKind(kind)
	return &t, nil
}

func (q *Queries) listTranslations(ctx context.Context, query string, args ...any) ([]*model.Translation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []*model.Translation
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// GetTranslation returns the translation row with the given ID.
func (q *Queries) GetTranslation(ctx context.Context, id int64) (*model.Translation, error) {
	t, err := scanTranslation(q.db.QueryRowContext(ctx, translationSelect+` WHERE t.id = ?`, id))
	return t, notFound(err)
}

// GetLatestTranslation returns the newest version of a chain.
func (q *Queries) GetLatestTranslation(ctx context.Context, objectID, languageID int64) (*model.Translation, error) {
	t, err := scanTranslation(q.db.QueryRowContext(ctx, translationSelect+`
JOIN translation_heads h ON h.latest_id = t.id
WHERE h.content_object_id = ? AND h.language_id = ?`, objectID, languageID))
	return t, notFound(err)
}

// GetPublicTranslation returns the newest public version of a chain.
func (q *Queries) GetPublicTranslation(ctx context.Context, objectID, languageID int64) (*model.Translation, error) {
	t, err := scanTranslation(q.db.QueryRowContext(ctx, translationSelect+`
JOIN translation_heads h ON h.public_id = t.id
WHERE h.content_object_id = ? AND h.language_id = ?`, objectID, languageID))
	return t, notFound(err)
}

// ListTranslationVersions returns every version of a chain, oldest first.
func (q *Queries) ListTranslationVersions(ctx context.Context, objectID, languageID int64) ([]*model.Translation, error) {
	return q.listTranslations(ctx, translationSelect+`
WHERE t.content_object_id = ? AND t.language_id = ?
ORDER BY t.version`, objectID, languageID)
}

// ListLatestTranslationsParams scopes a listing of chain heads.
type ListLatestTranslationsParams struct {
	Kind       model.ContentKind
	RegionID   *int64
	LanguageID *int64
}

// ListLatestTranslations returns the latest version of every (object, language)
// chain of one kind, optionally restricted to a region and a language.
func (q *Queries) ListLatestTranslations(ctx context.Context, arg ListLatestTranslationsParams) ([]*model.Translation, error) {
	region := util.NullInt64FromPtr(arg.RegionID)
	language := util.NullInt64FromPtr(arg.LanguageID)
	return q.listTranslations(ctx, translationSelect+`
JOIN translation_heads h ON h.latest_id = t.id
WHERE co.kind = ?
  AND (? IS NULL OR co.region_id = ?)
  AND (? IS NULL OR t.language_id = ?)
ORDER BY t.id`, string(arg.Kind), region, region, language, language)
}

// ListLatestTranslationIDs returns the IDs of every chain head.
func (q *Queries) ListLatestTranslationIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT latest_id FROM translation_heads ORDER BY latest_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const getHead = `
SELECT content_object_id, language_id, latest_id, public_id, version
FROM translation_heads WHERE content_object_id = ? AND language_id = ?`

// GetHead returns the head entry of a chain.
func (q *Queries) GetHead(ctx context.Context, objectID, languageID int64) (model.TranslationHead, error) {
	var (
		h      model.TranslationHead
		public sql.NullInt64
	)
	err := q.db.QueryRowContext(ctx, getHead, objectID, languageID).
		Scan(&h.ContentObjectID, &h.LanguageID, &h.LatestID, &public, &h.Version)
	if err != nil {
		return h, notFound(err)
	}
	h.PublicID = util.PtrFromNullInt64(public)
	return h, nil
}

const insertTranslation = `
INSERT INTO translations (content_object_id, language_id, version, status, slug, title, content, minor_edit, creator_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

const upsertHead = `
INSERT INTO translation_heads (content_object_id, language_id, latest_id, public_id, version)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (content_object_id, language_id) DO UPDATE SET
    latest_id = excluded.latest_id,
    version = excluded.version,
    public_id = COALESCE(excluded.public_id, translation_heads.public_id)`

// InsertTranslationVersion appends t to its chain as the next version and
// moves the chain head. The version number is taken from the head, not from t.
// Call it inside a transaction (see InTx) so the head never lags the row.
func (q *Queries) InsertTranslationVersion(ctx context.Context, t *model.Translation) (*model.Translation, error) {
	version := 1
	head, err := q.GetHead(ctx, t.ContentObjectID, t.LanguageID)
	switch {
	case err == nil:
		version = head.Version + 1
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("reading chain head: %w", err)
	}

	var id int64
	err = q.db.QueryRowContext(ctx, insertTranslation,
		t.ContentObjectID, t.LanguageID, version, t.Status, t.Slug, t.Title, t.Content,
		t.MinorEdit, util.NullInt64FromPtr(t.CreatorID), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("inserting translation version: %w", err)
	}

	var public sql.NullInt64
	if t.IsPublic() {
		public = util.NullInt64FromValue(id)
	}
	if _, err := q.db.ExecContext(ctx, upsertHead, t.ContentObjectID, t.LanguageID, id, public, version); err != nil {
		return nil, fmt.Errorf("updating chain head: %w", err)
	}

	return q.GetTranslation(ctx, id)
}

const slugTaken = `
SELECT EXISTS (
    SELECT 1
    FROM translation_heads h
    JOIN translations t ON t.id = h.latest_id
    JOIN content_objects co ON co.id = h.content_object_id
    WHERE co.region_id = ? AND co.kind = ? AND h.language_id = ? AND t.slug = ? AND co.id != ?
)`

// SlugTaken reports whether another object of the same kind in the region
// uses slug for its latest translation in the language.
func (q *Queries) SlugTaken(ctx context.Context, regionID int64, kind model.ContentKind, languageID int64, slug string, exceptObjectID int64) (bool, error) {
	var taken bool
	err := q.db.QueryRowContext(ctx, slugTaken, regionID, string(kind), languageID, slug, exceptObjectID).Scan(&taken)
	return taken, err
}
