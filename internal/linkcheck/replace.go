// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/olegiv/portal-cms/internal/content"
	"github.com/olegiv/portal-cms/internal/htmlrewrite"
	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/store"
	"github.com/olegiv/portal-cms/internal/updatelock"
)

// ErrEmptySearch is returned by ReplaceLinks without a search string.
var ErrEmptySearch = errors.New("search string is empty")

// ReplaceParams describes a bulk link replacement.
type ReplaceParams struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
	// PartialMatch replaces Search inside every URL containing it. Otherwise
	// a URL must equal Search, ignoring leading and trailing slashes, and is
	// replaced as a whole.
	PartialMatch bool `json:"partial_match"`
	// Region and Language limit the replacement when set.
	Region   string `json:"region,omitempty"`
	Language string `json:"language,omitempty"`
	UserID   *int64 `json:"user_id,omitempty"`
	// Commit writes the changes. Without it the replacement is a dry run.
	Commit bool `json:"commit"`
	// LinkTypes limits the replacement to URLs of these types when set.
	LinkTypes []string `json:"link_types,omitempty"`
}

// URLChange is one URL rewritten in a translation.
type URLChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ChangedTranslation is a translation whose body a replacement changed.
type ChangedTranslation struct {
	TranslationID   int64             `json:"translation_id"`
	ContentObjectID int64             `json:"content_object_id"`
	Kind            model.ContentKind `json:"kind"`
	Region          string            `json:"region"`
	Language        string            `json:"language"`
	Title           string            `json:"title"`
	Version         int               `json:"version"`
	// NewTranslationID is the saved version; zero on a dry run.
	NewTranslationID int64       `json:"new_translation_id,omitempty"`
	Changes          []URLChange `json:"changes"`
}

// ReplaceResult lists the translations a replacement changed.
type ReplaceResult struct {
	Committed    bool                 `json:"committed"`
	Translations []ChangedTranslation `json:"translations"`
}

func (p ReplaceParams) matches(rawURL string) bool {
	if p.PartialMatch {
		return strings.Contains(rawURL, p.Search)
	}
	return strings.Trim(p.Search, "/") == strings.Trim(rawURL, "/")
}

func (p ReplaceParams) replacement(rawURL string) string {
	if p.PartialMatch {
		return strings.ReplaceAll(rawURL, p.Search, p.Replace)
	}
	return p.Replace
}

// ReplaceLinks rewrites matching URLs in the latest translation of every
// page, event and POI chain. Each changed translation is saved as a new
// minor version by the acting user; its old links are dropped and the link
// index rebuilds them. The update lock is held throughout, and the call
// returns once the link index has caught up or the drain timeout expired,
// in which case the result is returned with an error wrapping
// linkindex.ErrDrainTimeout.
func (s *Service) ReplaceLinks(ctx context.Context, p ReplaceParams) (*ReplaceResult, error) {
	if p.Search == "" {
		return nil, ErrEmptySearch
	}

	scope := store.ListLatestTranslationsParams{}
	var err error
	if scope.RegionID, err = s.regionID(ctx, p.Region); err != nil {
		return nil, err
	}
	if p.Language != "" {
		lang, err := s.content.Language(ctx, p.Language)
		if err != nil {
			return nil, err
		}
		scope.LanguageID = &lang.ID
	}

	s.logger.Info("replacing content links",
		"search", p.Search, "replace", p.Replace, "partial", p.PartialMatch,
		"region", p.Region, "language", p.Language, "commit", p.Commit,
		"category", model.EventCategoryLinkcheck)

	result := &ReplaceResult{Committed: p.Commit, Translations: []ChangedTranslation{}}
	err = updatelock.WithLock(ctx, s.locker, func(ctx context.Context) error {
		for _, kind := range model.LinkableKinds {
			scope.Kind = kind
			translations, err := s.queries.ListLatestTranslations(ctx, scope)
			if err != nil {
				return fmt.Errorf("listing %s translations: %w", kind, err)
			}
			for _, t := range translations {
				changed, err := s.replaceIn(ctx, t, p)
				if err != nil {
					return err
				}
				if changed != nil {
					result.Translations = append(result.Translations, *changed)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replacing links: %w", err)
	}

	s.logger.Debug("waiting for link index", "category", model.EventCategoryLinkcheck)
	if err := s.index.Drain(ctx, s.drainTimeout); err != nil {
		return result, fmt.Errorf("waiting for link index: %w", err)
	}

	s.logger.Info("finished replacing content links",
		"search", p.Search, "replace", p.Replace, "translations", len(result.Translations),
		"category", model.EventCategoryLinkcheck)
	return result, nil
}

// replaceIn rewrites one translation. It returns nil when the body is
// unchanged.
func (s *Service) replaceIn(ctx context.Context, t *model.Translation, p ReplaceParams) (*ChangedTranslation, error) {
	links, err := s.queries.ListLinksForTranslation(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("listing links of translation %d: %w", t.ID, err)
	}

	body := t.Content
	var changes []URLChange
	for _, l := range links {
		old := l.URL.URL
		if !p.matches(old) {
			continue
		}
		if len(p.LinkTypes) > 0 && !slices.Contains(p.LinkTypes, l.URL.Type) {
			continue
		}
		fixed := p.replacement(old)
		body, err = htmlrewrite.ReplaceExact(body, old, fixed)
		if err != nil {
			return nil, fmt.Errorf("rewriting translation %d: %w", t.ID, err)
		}
		changes = append(changes, URLChange{Old: old, New: fixed})
		s.logger.Debug("replacing link", "old", old, "new", fixed, "translation_id", t.ID)
	}
	if body == t.Content {
		return nil, nil
	}

	changed := &ChangedTranslation{
		TranslationID:   t.ID,
		ContentObjectID: t.ContentObjectID,
		Kind:            t.Kind,
		Region:          t.RegionSlug,
		Language:        t.LanguageSlug,
		Title:           t.Title,
		Version:         t.Version,
		Changes:         changes,
	}
	if !p.Commit {
		return changed, nil
	}

	edited := t.Copy()
	edited.Content = body
	err = store.InTx(ctx, s.db, func(q *store.Queries) error {
		if _, err := q.DeleteLinksForTranslation(ctx, t.ID); err != nil {
			return fmt.Errorf("deleting links: %w", err)
		}
		saved, err := content.SaveNewVersion(ctx, q, edited, p.UserID)
		if err != nil {
			return err
		}
		changed.NewTranslationID = saved.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving translation %d: %w", t.ID, err)
	}

	if err := s.index.Enqueue(ctx, changed.NewTranslationID); err != nil {
		s.logger.Error("link index enqueue failed",
			"translation_id", changed.NewTranslationID, "error", err,
			"category", model.EventCategoryLinkcheck)
	}
	return changed, nil
}
