// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/store"
	"github.com/olegiv/portal-cms/internal/util"
)

// bodyPolicy sanitizes editor-submitted translation bodies. Links keep their
// original rel attributes and may use the tel: scheme.
var bodyPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowURLSchemes("tel")
	p.RequireNoFollowOnLinks(false)
	return p
}()

// SanitizeBody strips unsafe markup from a translation body.
func SanitizeBody(body string) string {
	return bodyPolicy.Sanitize(body)
}

// SaveParams holds the fields of a new translation version.
type SaveParams struct {
	ObjectID     int64
	LanguageSlug string
	Title        string
	// Slug defaults to the slugified title.
	Slug    string
	Content string
	// Status defaults to draft.
	Status    string
	MinorEdit bool
	CreatorID *int64
}

// SaveTranslation appends a new version to the (object, language) chain and
// schedules a link-index rebuild. Within a region, language and kind the slug
// is made unique by suffixing -2, -3 and so on; imprints keep theirs.
// Saving the latest version's slug, title, body and status again changes
// nothing and returns the latest version.
func (s *Service) SaveTranslation(ctx context.Context, p SaveParams) (*model.Translation, error) {
	obj, err := s.Object(ctx, p.ObjectID)
	if err != nil {
		return nil, err
	}
	lang, err := s.Language(ctx, p.LanguageSlug)
	if err != nil {
		return nil, err
	}

	status := p.Status
	if status == "" {
		status = model.StatusDraft
	}
	if !model.ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	base := util.Slugify(p.Slug)
	if base == "" {
		base = util.Slugify(p.Title)
	}
	if base == "" {
		base = string(obj.Kind)
	}

	title := strings.TrimSpace(p.Title)
	body := SanitizeBody(p.Content)

	var (
		saved     *model.Translation
		unchanged bool
	)
	err = store.InTx(ctx, s.db, func(q *store.Queries) error {
		latest, err := q.GetLatestTranslation(ctx, obj.ID, lang.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			latest = nil
		case err != nil:
			return fmt.Errorf("reading latest version: %w", err)
		}

		slug := base
		if !obj.Kind.IsSingleton() {
			unique, err := util.UniqueSlug(base, func(candidate string) (bool, error) {
				return q.SlugTaken(ctx, obj.RegionID, obj.Kind, lang.ID, candidate, obj.ID)
			})
			if err != nil {
				return fmt.Errorf("checking slug: %w", err)
			}
			slug = unique
		}

		if latest != nil && latest.Slug == slug && latest.Title == title &&
			latest.Content == body && latest.Status == status {
			saved, unchanged = latest, true
			return nil
		}

		t, err := q.InsertTranslationVersion(ctx, &model.Translation{
			ContentObjectID: obj.ID,
			LanguageID:      lang.ID,
			Status:          status,
			Slug:            slug,
			Title:           title,
			Content:         body,
			MinorEdit:       p.MinorEdit,
			CreatorID:       p.CreatorID,
		})
		if err != nil {
			return err
		}
		saved = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving %s translation: %w", obj.Kind, err)
	}
	if unchanged {
		s.logger.Debug("translation unchanged, no new version",
			"translation_id", saved.ID, "version", saved.Version)
		return saved, nil
	}

	s.enqueue(ctx, saved)
	return saved, nil
}

// SaveNewVersion stores edited as the next version of its chain, stamped as
// a minor edit by creatorID. It runs on q so callers can batch it into their
// own transaction; the caller is responsible for scheduling a rebuild.
func SaveNewVersion(ctx context.Context, q *store.Queries, edited *model.Translation, creatorID *int64) (*model.Translation, error) {
	next := edited.Copy()
	next.ID = 0
	next.MinorEdit = true
	next.CreatorID = creatorID
	saved, err := q.InsertTranslationVersion(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("saving new version of translation %d: %w", edited.ID, err)
	}
	return saved, nil
}

func (s *Service) enqueue(ctx context.Context, t *model.Translation) {
	if s.index == nil {
		return
	}
	if err := s.index.Enqueue(ctx, t.ID); err != nil {
		s.logger.Error("link index enqueue failed",
			"translation_id", t.ID, "error", err, "category", model.EventCategoryLinkcheck)
	}
}

// Translation returns the translation row with the given ID.
func (s *Service) Translation(ctx context.Context, id int64) (*model.Translation, error) {
	t, err := s.queries.GetTranslation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrTranslationNotFound, id)
	}
	return t, err
}

// LatestTranslation returns the newest version of a chain, or nil if the
// object has no translation in the language.
func (s *Service) LatestTranslation(ctx context.Context, objectID int64, languageSlug string) (*model.Translation, error) {
	lang, err := s.Language(ctx, languageSlug)
	if err != nil {
		return nil, err
	}
	t, err := s.queries.GetLatestTranslation(ctx, objectID, lang.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// PublicTranslation returns the newest public translation of an object in a
// language. If there is none and the region's language node allows
// fallback, the parent language is tried, up the tree. It returns nil when
// nothing public is found.
func (s *Service) PublicTranslation(ctx context.Context, objectID int64, languageSlug string) (*model.Translation, error) {
	obj, err := s.Object(ctx, objectID)
	if err != nil {
		return nil, err
	}
	lang, err := s.Language(ctx, languageSlug)
	if errors.Is(err, ErrLanguageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	languageID := lang.ID
	visited := make(map[int64]bool)
	for !visited[languageID] {
		visited[languageID] = true

		t, err := s.queries.GetPublicTranslation(ctx, obj.ID, languageID)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("loading public translation: %w", err)
		}

		node, err := s.regionLanguage(ctx, obj.RegionID, languageID)
		if err != nil {
			return nil, fmt.Errorf("loading language tree: %w", err)
		}
		if node == nil || !node.Fallback || node.ParentLanguageID == nil {
			return nil, nil
		}
		languageID = *node.ParentLanguageID
	}
	return nil, nil
}

// PublicVersion returns the newest public version of t's chain, which may be
// t itself, or nil if the chain was never published.
func (s *Service) PublicVersion(ctx context.Context, t *model.Translation) (*model.Translation, error) {
	head, err := s.queries.GetHead(ctx, t.ContentObjectID, t.LanguageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if head.PublicID == nil {
		return nil, nil
	}
	if *head.PublicID == t.ID {
		return t, nil
	}
	return s.Translation(ctx, *head.PublicID)
}

// CopyParams selects the chain to copy and its target language.
type CopyParams struct {
	ObjectID     int64
	FromLanguage string
	ToLanguage   string
	CreatorID    *int64
}

// CopyTranslation creates a draft in the target language from the latest
// source version. Internal links are rewritten into the target language.
func (s *Service) CopyTranslation(ctx context.Context, p CopyParams) (*model.Translation, error) {
	src, err := s.LatestTranslation(ctx, p.ObjectID, p.FromLanguage)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: object %d in %q", ErrTranslationNotFound, p.ObjectID, p.FromLanguage)
	}

	body := src.Content
	if s.fixer != nil {
		fixed, err := s.fixer.FixInternalLinks(ctx, body, p.ToLanguage)
		if err != nil {
			return nil, fmt.Errorf("fixing internal links: %w", err)
		}
		body = fixed
	}

	return s.SaveTranslation(ctx, SaveParams{
		ObjectID:     p.ObjectID,
		LanguageSlug: p.ToLanguage,
		Title:        src.Title,
		Slug:         src.Slug,
		Content:      body,
		Status:       model.StatusDraft,
		CreatorID:    p.CreatorID,
	})
}
