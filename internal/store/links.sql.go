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

const upsertURL = `
INSERT INTO urls (url, type, created_at) VALUES (?, ?, ?)
ON CONFLICT (url) DO UPDATE SET type = excluded.type
RETURNING id`

// UpsertURL records a distinct URL string and returns its ID.
func (q *Queries) UpsertURL(ctx context.Context, rawURL, urlType string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, upsertURL, rawURL, urlType, time.Now().UTC()).Scan(&id)
	return id, err
}

const urlColumns = `u.id, u.url, u.type, u.status, u.message, u.last_checked, u.created_at`

func scanURL(s rowScanner) (model.URL, error) {
	var (
		u       model.URL
		status  sql.NullBool
		checked sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.URL, &u.Type, &status, &u.Message, &checked, &u.CreatedAt); err != nil {
		return u, err
	}
	if status.Valid {
		v := status.Bool
		u.Status = &v
	}
	u.LastChecked = util.PtrFromNullTime(checked)
	return u, nil
}

func (q *Queries) listURLs(ctx context.Context, query string, args ...any) ([]model.URL, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.URL
	for rows.Next() {
		u, err := scanURL(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

// GetURL returns the URL with the given ID.
func (q *Queries) GetURL(ctx context.Context, id int64) (model.URL, error) {
	u, err := scanURL(q.db.QueryRowContext(ctx, `SELECT `+urlColumns+` FROM urls u WHERE u.id = ?`, id))
	return u, notFound(err)
}

// ListURLs returns all URLs ordered by ID. A non-nil ids restricts the result
// to those IDs; an empty non-nil slice yields no URLs.
func (q *Queries) ListURLs(ctx context.Context, ids []int64) ([]model.URL, error) {
	if ids == nil {
		return q.listURLs(ctx, `SELECT `+urlColumns+` FROM urls u ORDER BY u.id`)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	return q.listURLs(ctx, `SELECT `+urlColumns+` FROM urls u WHERE u.id IN (`+in+`) ORDER BY u.id`, args...)
}

// ListURLsForCheckParams selects URLs due for a health check.
type ListURLsForCheckParams struct {
	Types         []string
	CheckedBefore time.Time
	Limit         int
}

// ListURLsForCheck returns never-checked URLs first, then the stalest ones.
func (q *Queries) ListURLsForCheck(ctx context.Context, arg ListURLsForCheckParams) ([]model.URL, error) {
	if len(arg.Types) == 0 {
		return nil, nil
	}
	in, args := inClause(arg.Types)
	args = append(args, arg.CheckedBefore, arg.Limit)
	return q.listURLs(ctx, `SELECT `+urlColumns+` FROM urls u
WHERE u.type IN (`+in+`) AND (u.last_checked IS NULL OR u.last_checked < ?)
ORDER BY u.last_checked IS NOT NULL, u.last_checked, u.id
LIMIT ?`, args...)
}

const updateURLStatus = `UPDATE urls SET status = ?, message = ?, last_checked = ? WHERE id = ?`

// UpdateURLStatus stores the result of a health check.
func (q *Queries) UpdateURLStatus(ctx context.Context, id int64, ok bool, message string, checkedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, updateURLStatus, ok, message, checkedAt.UTC(), id)
	return err
}

const deleteOrphanURLs = `DELETE FROM urls WHERE NOT EXISTS (SELECT 1 FROM links l WHERE l.url_id = urls.id)`

// DeleteOrphanURLs removes URLs no link refers to any more.
func (q *Queries) DeleteOrphanURLs(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteOrphanURLs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertLink = `
INSERT INTO links (url_id, translation_id, ignored, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT (url_id, translation_id) DO NOTHING`

// InsertLink records one occurrence of a URL in a translation.
func (q *Queries) InsertLink(ctx context.Context, urlID, translationID int64, ignore bool) error {
	_, err := q.db.ExecContext(ctx, insertLink, urlID, translationID, ignore, time.Now().UTC())
	return err
}

// DeleteLinksForTranslation removes the links of one translation row.
func (q *Queries) DeleteLinksForTranslation(ctx context.Context, translationID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM links WHERE translation_id = ?`, translationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteLinksForChain = `
DELETE FROM links WHERE translation_id IN (
    SELECT id FROM translations WHERE content_object_id = ? AND language_id = ?
)`

// DeleteLinksForChain removes the links of every version of a chain.
func (q *Queries) DeleteLinksForChain(ctx context.Context, objectID, languageID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteLinksForChain, objectID, languageID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listIgnoredURLsForChain = `
SELECT DISTINCT u.url
FROM links k
JOIN urls u ON u.id = k.url_id
JOIN translations t ON t.id = k.translation_id
WHERE t.content_object_id = ? AND t.language_id = ? AND k.ignored
ORDER BY u.url`

// ListIgnoredURLsForChain returns the URLs whose links in a chain are ignored.
func (q *Queries) ListIgnoredURLsForChain(ctx context.Context, objectID, languageID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listIgnoredURLsForChain, objectID, languageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

const linkSelect = `
SELECT k.id, k.url_id, k.translation_id, k.ignored, k.created_at,
       t.content_object_id, co.kind, co.region_id, r.slug, l.slug, t.title
FROM links k
JOIN translations t ON t.id = k.translation_id
JOIN content_objects co ON co.id = t.content_object_id
JOIN regions r ON r.id = co.region_id
JOIN languages l ON l.id = t.language_id`

func scanLink(s rowScanner, extra ...any) (model.Link, error) {
	var (
		k    model.Link
		kind string
	)
	dest := []any{&k.ID, &k.URLID, &k.TranslationID, &k.Ignore, &k.CreatedAt,
		&k.ContentObjectID, &kind, &k.RegionID, &k.RegionSlug, &k.LanguageSlug, &k.Title}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return k, err
	}
	k.Kind = model.ContentKind(kind)
	return k, nil
}

// ListLinks returns every link with the scope of its translation, optionally
// restricted to one region, ordered by ID.
func (q *Queries) ListLinks(ctx context.Context, regionID *int64) ([]model.Link, error) {
	region := util.NullInt64FromPtr(regionID)
	rows, err := q.db.QueryContext(ctx, linkSelect+`
WHERE (? IS NULL OR co.region_id = ?)
ORDER BY k.id`, region, region)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Link
	for rows.Next() {
		k, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	return items, rows.Err()
}

// LinkURL is a link together with the URL it points to.
type LinkURL struct {
	model.Link
	URL model.URL
}

// ListLinksForTranslation returns the links of one translation with their URLs.
func (q *Queries) ListLinksForTranslation(ctx context.Context, translationID int64) ([]LinkURL, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT k.id, k.url_id, k.translation_id, k.ignored, k.created_at,
       t.content_object_id, co.kind, co.region_id, r.slug, l.slug, t.title,
       `+urlColumns+`
FROM links k
JOIN urls u ON u.id = k.url_id
JOIN translations t ON t.id = k.translation_id
JOIN content_objects co ON co.id = t.content_object_id
JOIN regions r ON r.id = co.region_id
JOIN languages l ON l.id = t.language_id
WHERE k.translation_id = ?
ORDER BY k.id`, translationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []LinkURL
	for rows.Next() {
		var (
			item    LinkURL
			status  sql.NullBool
			checked sql.NullTime
		)
		u := &item.URL
		item.Link, err = scanLink(rows, &u.ID, &u.URL, &u.Type, &status, &u.Message, &checked, &u.CreatedAt)
		if err != nil {
			return nil, err
		}
		if status.Valid {
			v := status.Bool
			u.Status = &v
		}
		u.LastChecked = util.PtrFromNullTime(checked)
		items = append(items, item)
	}
	return items, rows.Err()
}

const setLinksIgnore = `
UPDATE links SET ignored = ?
WHERE url_id = ?
  AND (? IS NULL OR translation_id IN (
        SELECT t.id FROM translations t
        JOIN content_objects co ON co.id = t.content_object_id
        WHERE co.region_id = ?))`

// SetLinksIgnore toggles the ignore flag of a URL's links, optionally only
// those inside one region.
func (q *Queries) SetLinksIgnore(ctx context.Context, urlID int64, regionID *int64, ignore bool) (int64, error) {
	region := util.NullInt64FromPtr(regionID)
	res, err := q.db.ExecContext(ctx, setLinksIgnore, ignore, urlID, region, region)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListLinkFlags returns the links of every URL without their translation
// scope, optionally restricted to one region. Only ID, URLID, TranslationID
// and Ignore are set.
func (q *Queries) ListLinkFlags(ctx context.Context, regionID *int64) ([]model.Link, error) {
	query := `SELECT k.id, k.url_id, k.translation_id, k.ignored FROM links k ORDER BY k.id`
	var args []any
	if regionID != nil {
		query = `SELECT k.id, k.url_id, k.translation_id, k.ignored
FROM links k
JOIN translations t ON t.id = k.translation_id
JOIN content_objects co ON co.id = t.content_object_id
WHERE co.region_id = ?
ORDER BY k.id`
		args = append(args, *regionID)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Link
	for rows.Next() {
		var k model.Link
		if err := rows.Scan(&k.ID, &k.URLID, &k.TranslationID, &k.Ignore); err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	return items, rows.Err()
}
