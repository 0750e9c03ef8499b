// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/store"
)

// FullURL returns the canonical webapp URL of a translation, for example
// https://integreat.app/augsburg/de/willkommen/kontakt/ for a child page.
func (s *Service) FullURL(ctx context.Context, t *model.Translation) (string, error) {
	segments := []string{t.RegionSlug, t.LanguageSlug}

	switch t.Kind {
	case model.KindPage:
		ancestors, err := s.ancestorSlugs(ctx, t)
		if err != nil {
			return "", err
		}
		segments = append(segments, ancestors...)
		segments = append(segments, t.Slug)
	case model.KindImprint:
		segments = append(segments, model.CategoryDisclaimer)
	default:
		segments = append(segments, t.Kind.Category(), t.Slug)
	}

	return joinURL(s.webappURL, segments), nil
}

// ancestorSlugs returns the slugs of the page's ancestors, root first, in the
// translation's language. Ancestors without a translation are skipped.
func (s *Service) ancestorSlugs(ctx context.Context, t *model.Translation) ([]string, error) {
	obj, err := s.Object(ctx, t.ContentObjectID)
	if err != nil {
		return nil, err
	}

	var slugs []string
	seen := map[int64]bool{obj.ID: true}
	for parentID := obj.ParentID; parentID != nil && !seen[*parentID]; {
		seen[*parentID] = true

		parent, err := s.queries.GetLatestTranslation(ctx, *parentID, t.LanguageID)
		switch {
		case err == nil:
			slugs = append(slugs, parent.Slug)
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("loading ancestor %d: %w", *parentID, err)
		}

		next, err := s.Object(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		parentID = next.ParentID
	}

	for i, j := 0, len(slugs)-1; i < j; i, j = i+1, j-1 {
		slugs[i], slugs[j] = slugs[j], slugs[i]
	}
	return slugs, nil
}

// ShortURL returns the short link of a page or imprint translation. Other
// kinds have none.
func (s *Service) ShortURL(t *model.Translation) (string, bool) {
	code, ok := t.Kind.ShortCode()
	if !ok {
		return "", false
	}
	return joinURL(s.shortLinksURL, []string{"s", code, strconv.FormatInt(t.ID, 10)}), true
}

func joinURL(base string, segments []string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	b.WriteByte('/')
	return b.String()
}
