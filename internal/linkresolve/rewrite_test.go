// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package linkresolve

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/portal-cms/internal/content"
	"github.com/olegiv/portal-cms/internal/model"
)

func TestResolver_UpdateLinkLanguage(t *testing.T) {
	r, svc, _ := testResolver(t)
	ctx := context.Background()

	eventDE := webappURL + "/augsburg/de/events/sommerfest/"
	eventEN := webappURL + "/augsburg/en/events/summer-festival/"
	page := seeded(t, svc, model.KindPage, "de")

	tests := []struct {
		name     string
		link     string
		text     string
		target   string
		wantOK   bool
		wantURL  string
		wantText string
	}{
		{"title follows language", eventDE, "Sommerfest", "en", true, eventEN, "Summer festival"},
		{"title match ignores case and space", eventDE, "  sommerFEST ", "en", true, eventEN, "Summer festival"},
		{"url as text", eventDE, " " + eventDE + " ", "en", true, eventEN, eventEN},
		{"custom text kept", eventDE, "Hier klicken", "en", true, eventEN, "Hier klicken"},
		{"empty text kept", eventDE, "", "en", true, eventEN, ""},
		{"short link becomes full url", shortURL + shortPath("p", page.ID), "Willkommen", "en", true, webappURL + "/augsburg/en/welcome/", "Welcome"},
		{"already in target", eventDE, "Sommerfest", "de", false, "", ""},
		{"external", "https://www.augsburg.de/", "Stadt", "en", false, "", ""},
		{"unknown object", webappURL + "/augsburg/de/events/unknown/", "x", "en", false, "", ""},
		{"unknown target language", eventDE, "Sommerfest", "fr", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := r.UpdateLinkLanguage(ctx, tt.link, tt.text, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantURL, got.URL)
			assert.Equal(t, tt.wantText, got.Text)
		})
	}
}

func TestResolver_UpdateLinkLanguage_RoundTrip(t *testing.T) {
	r, svc, _ := testResolver(t)
	ctx := context.Background()

	got, ok, err := r.UpdateLinkLanguage(ctx, webappURL+"/augsburg/de/events/sommerfest/", "", "en")
	require.NoError(t, err)
	require.True(t, ok)

	u, err := url.Parse(got.URL)
	require.NoError(t, err)
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	require.Len(t, segments, 4)
	assert.Equal(t, "en", segments[1])

	en := seeded(t, svc, model.KindEvent, "en")
	assert.Equal(t, en.Slug, segments[3])
}

func TestResolver_UpdateLinkLanguage_Fallback(t *testing.T) {
	r, _, _ := testResolver(t)
	ctx := context.Background()

	// the POI has no English translation, en falls back to de
	got, ok, err := r.UpdateLinkLanguage(ctx, webappURL+"/augsburg/de/locations/rathaus/", "Rathaus", "en")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, webappURL+"/augsburg/de/locations/rathaus/", got.URL)
	assert.Equal(t, "Rathaus", got.Text)
}

func TestResolver_FixInternalLinks(t *testing.T) {
	r, _, _ := testResolver(t)
	ctx := context.Background()

	body := `<p><a href="https://integreat.app/augsburg/de/willkommen/">Willkommen</a> und ` +
		`<a href="https://www.augsburg.de/">extern</a> und ` +
		`<a href="https://integreat.app/augsburg/de/events/sommerfest/"><strong>Fest</strong></a></p>`

	out, err := r.FixInternalLinks(ctx, body, "en")
	require.NoError(t, err)

	assert.Contains(t, out, `<a href="https://integreat.app/augsburg/en/welcome/">Welcome</a>`)
	assert.Contains(t, out, `<a href="https://www.augsburg.de/">extern</a>`)
	assert.Contains(t, out, `<a href="https://integreat.app/augsburg/en/events/summer-festival/"><strong>Fest</strong></a>`)

	unchanged := `<p><a href="https://www.augsburg.de/">extern</a></p>`
	out, err = r.FixInternalLinks(ctx, unchanged, "en")
	require.NoError(t, err)
	assert.Equal(t, unchanged, out)
}

func TestResolver_CopyTranslationFixesLinks(t *testing.T) {
	_, svc, _ := testResolver(t)
	ctx := context.Background()

	page, err := svc.CreateObject(ctx, model.KindPage, "augsburg", nil)
	require.NoError(t, err)
	_, err = svc.SaveTranslation(ctx, content.SaveParams{
		ObjectID:     page.ID,
		LanguageSlug: "de",
		Title:        "Links",
		Content:      `<p><a href="https://integreat.app/augsburg/de/events/sommerfest/">Sommerfest</a></p>`,
		Status:       model.StatusPublic,
	})
	require.NoError(t, err)

	copied, err := svc.CopyTranslation(ctx, content.CopyParams{ObjectID: page.ID, FromLanguage: "de", ToLanguage: "en"})
	require.NoError(t, err)
	assert.Contains(t, copied.Content, `href="https://integreat.app/augsburg/en/events/summer-festival/"`)
	assert.Contains(t, copied.Content, "Summer festival")
}
