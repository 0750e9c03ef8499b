// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/portal-cms/internal/model"
)

// Demo region seeded by Seed
const (
	DemoRegionSlug = "augsburg"
	DemoRegionName = "Stadt Augsburg"
)

type seedTranslation struct {
	language string
	slug     string
	title    string
	content  string
}

type seedObject struct {
	kind         model.ContentKind
	translations []seedTranslation
}

var demoObjects = []seedObject{
	{
		kind: model.KindPage,
		translations: []seedTranslation{
			{"de", "willkommen", "Willkommen", `<p>Willkommen in Augsburg. Mehr unter <a href="https://www.augsburg.de/">augsburg.de</a>.</p>`},
			{"en", "welcome", "Welcome", `<p>Welcome to Augsburg. More at <a href="https://www.augsburg.de/">augsburg.de</a>.</p>`},
		},
	},
	{
		kind: model.KindEvent,
		translations: []seedTranslation{
			{"de", "sommerfest", "Sommerfest", `<p>Kontakt: <a href="mailto:kultur@augsburg.de">kultur@augsburg.de</a></p>`},
			{"en", "summer-festival", "Summer festival", `<p>Contact: <a href="mailto:kultur@augsburg.de">kultur@augsburg.de</a></p>`},
		},
	},
	{
		kind: model.KindPOI,
		translations: []seedTranslation{
			{"de", "rathaus", "Rathaus", `<p>Telefon: <a href="tel:+498213240">0821 3240</a></p>`},
		},
	},
	{
		kind: model.KindImprint,
		translations: []seedTranslation{
			{"de", "impressum", "Impressum", `<p>Stadt Augsburg, Rathausplatz 1</p>`},
			{"en", "imprint", "Imprint", `<p>City of Augsburg, Rathausplatz 1</p>`},
		},
	},
}

// Seed creates a demo region with German and English content.
// It does nothing if the demo region already exists.
func Seed(ctx context.Context, db *sql.DB) error {
	queries := New(db)

	_, err := queries.GetRegionBySlug(ctx, DemoRegionSlug)
	if err == nil {
		slog.Info("demo region already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("checking for demo region: %w", err)
	}

	return InTx(ctx, db, func(q *Queries) error {
		region, err := q.CreateRegion(ctx, DemoRegionSlug, DemoRegionName)
		if err != nil {
			return fmt.Errorf("creating region: %w", err)
		}

		de, err := ensureLanguage(ctx, q, CreateLanguageParams{Slug: "de", Name: "German", NativeName: "Deutsch"})
		if err != nil {
			return err
		}
		en, err := ensureLanguage(ctx, q, CreateLanguageParams{Slug: "en", Name: "English", NativeName: "English"})
		if err != nil {
			return err
		}

		if _, err := q.UpsertRegionLanguage(ctx, model.RegionLanguage{
			RegionID: region.ID, LanguageID: de.ID, Active: true,
		}); err != nil {
			return fmt.Errorf("adding root language: %w", err)
		}
		if _, err := q.UpsertRegionLanguage(ctx, model.RegionLanguage{
			RegionID: region.ID, LanguageID: en.ID, ParentLanguageID: &de.ID, Active: true, Fallback: true,
		}); err != nil {
			return fmt.Errorf("adding child language: %w", err)
		}

		languages := map[string]int64{"de": de.ID, "en": en.ID}
		for _, so := range demoObjects {
			obj, err := q.CreateContentObject(ctx, so.kind, region.ID, nil)
			if err != nil {
				return fmt.Errorf("creating %s: %w", so.kind, err)
			}
			for _, st := range so.translations {
				if _, err := q.InsertTranslationVersion(ctx, &model.Translation{
					ContentObjectID: obj.ID,
					LanguageID:      languages[st.language],
					Status:          model.StatusPublic,
					Slug:            st.slug,
					Title:           st.title,
					Content:         st.content,
				}); err != nil {
					return fmt.Errorf("creating %s translation %q: %w", so.kind, st.slug, err)
				}
			}
		}

		slog.Info("seeded demo region", "region", region.Slug, "objects", len(demoObjects))
		return nil
	})
}

func ensureLanguage(ctx context.Context, q *Queries, arg CreateLanguageParams) (model.Language, error) {
	l, err := q.GetLanguageBySlug(ctx, arg.Slug)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return l, fmt.Errorf("looking up language %q: %w", arg.Slug, err)
	}
	l, err = q.CreateLanguage(ctx, arg)
	if err != nil {
		return l, fmt.Errorf("creating language %q: %w", arg.Slug, err)
	}
	return l, nil
}
