// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package linkresolve

import (
	"context"
	"strings"

	"github.com/olegiv/portal-cms/internal/htmlrewrite"
)

// Rewrite is a link re-targeted to another language.
type Rewrite struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// UpdateLinkLanguage points link at the public translation of the same
// object in target. The URL is always the canonical webapp URL, even for
// short links. Text equal to the source title becomes the target title and
// text equal to the old URL becomes the new URL; any other text is kept.
// It reports false when the link is not internal, already in target, or the
// object has no public translation in target.
func (r *Resolver) UpdateLinkLanguage(ctx context.Context, link, text, target string) (Rewrite, bool, error) {
	source, err := r.PublicTranslationForLink(ctx, link, target)
	if err != nil || source == nil {
		return Rewrite{}, false, err
	}

	translation, err := r.content.PublicTranslation(ctx, source.ContentObjectID, target)
	if err != nil || translation == nil {
		return Rewrite{}, false, err
	}

	fixed, err := r.content.FullURL(ctx, translation)
	if err != nil {
		return Rewrite{}, false, err
	}

	if text != "" {
		switch {
		case source.TitleMatches(text):
			text = translation.Title
		case strings.TrimSpace(link) == strings.TrimSpace(text):
			text = fixed
		}
	}
	return Rewrite{URL: fixed, Text: text}, true, nil
}

// FixInternalLinks re-targets every internal anchor of an HTML body to
// language. Anchors that do not resolve are left alone.
func (r *Resolver) FixInternalLinks(ctx context.Context, body, language string) (string, error) {
	var firstErr error
	out, err := htmlrewrite.RewriteAnchors(body, func(a htmlrewrite.Anchor) (string, string, bool) {
		if firstErr != nil {
			return "", "", false
		}
		rw, ok, err := r.UpdateLinkLanguage(ctx, a.Href, a.Text, language)
		if err != nil {
			firstErr = err
			return "", "", false
		}
		return rw.URL, rw.Text, ok
	})
	if err != nil {
		return "", err
	}
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
