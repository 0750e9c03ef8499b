// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package linkresolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/olegiv/portal-cms/internal/content"
	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/store"
)

// Resolver resolves internal links to public translations. A nil
// translation with a nil error means the link does not resolve.
type Resolver struct {
	classifier *Classifier
	content    *content.Service
	logger     *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(classifier *Classifier, svc *content.Service, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{classifier: classifier, content: svc, logger: logger}
}

// Classifier returns the resolver's classifier.
func (r *Resolver) Classifier() *Classifier {
	return r.classifier
}

func splitPath(path string) []string {
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	return strings.Split(strings.Trim(path, "/"), "/")
}

// PublicTranslationForLink resolves a webapp or short link. Webapp links
// written in currentLanguage do not resolve; pass "" to resolve them too.
func (r *Resolver) PublicTranslationForLink(ctx context.Context, rawURL, currentLanguage string) (*model.Translation, error) {
	u, kind := r.classifier.parse(rawURL)
	switch kind {
	case KindWebapp:
		return r.WebappLink(ctx, u.EscapedPath(), currentLanguage)
	case KindShortLink:
		t, err := r.ShortLink(ctx, u.EscapedPath())
		if errors.Is(err, content.ErrTranslationNotFound) {
			return nil, nil
		}
		return t, err
	default:
		return nil, nil
	}
}

// WebappLink resolves a path like /augsburg/de/events/sommerfest/ to the
// public translation of the object in the path's language. The path is
// percent-encoded and is decoded once.
func (r *Resolver) WebappLink(ctx context.Context, path, currentLanguage string) (*model.Translation, error) {
	parts := splitPath(path)
	if len(parts) < 3 {
		return nil, nil
	}

	regionSlug, languageSlug, rest := parts[0], parts[1], parts[2:]
	if currentLanguage != "" && languageSlug == currentLanguage {
		return nil, nil
	}

	kind := model.KindForCategory(rest[0])
	params := store.FindContentObjectsParams{
		RegionSlug:   regionSlug,
		Kind:         kind,
		LanguageSlug: languageSlug,
	}
	if !kind.IsSingleton() {
		params.Slug = rest[len(rest)-1]
	}

	objects, err := r.content.Queries().FindContentObjects(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("finding %s for %q: %w", kind, path, err)
	}
	if len(objects) == 0 {
		return nil, nil
	}
	if len(objects) > 1 {
		r.logger.Warn("violated uniqueness constraint for content slug",
			"region", regionSlug,
			"language", languageSlug,
			"slug", params.Slug,
			"kind", kind,
			"matches", len(objects),
			"used_object_id", objects[0].ID,
			"category", model.EventCategoryContent,
		)
	}

	return r.content.PublicTranslation(ctx, objects[0].ID, languageSlug)
}

// ShortLink resolves a path like /s/p/124/ to the public version of the
// referenced translation, which may be a newer row than 124. A well-formed
// path naming a missing translation returns content.ErrTranslationNotFound.
func (r *Resolver) ShortLink(ctx context.Context, path string) (*model.Translation, error) {
	parts := splitPath(path)
	if len(parts) != 3 || parts[0] != "s" {
		return nil, nil
	}
	kind, ok := model.KindForShortCode(parts[1])
	if !ok {
		return nil, nil
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, nil
	}

	t, err := r.content.Translation(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Kind != kind {
		return nil, fmt.Errorf("%w: %s %d", content.ErrTranslationNotFound, kind, id)
	}
	return r.content.PublicVersion(ctx, t)
}
