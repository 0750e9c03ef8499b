// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package linkcheck

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/portal-cms/internal/cache"
	"github.com/olegiv/portal-cms/internal/content"
	"github.com/olegiv/portal-cms/internal/linkindex"
	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/store"
	"github.com/olegiv/portal-cms/internal/updatelock"
)

const (
	augsburgURL = "https://www.augsburg.de/"
	mailtoURL   = "mailto:kultur@augsburg.de"
	telURL      = "tel:+498213240"
)

type testEnv struct {
	db      *sql.DB
	content *content.Service
	index   *linkindex.Indexer
	locker  *updatelock.Local
	svc     *Service
}

// newTestEnv creates a seeded, fully indexed database with a running
// link indexer.
func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	f, err := os.CreateTemp("", "pcms-linkcheck-test-*.db")
	require.NoError(t, err)
	dbPath := f.Name()
	_ = f.Close()

	db, err := store.NewDB(dbPath)
	require.NoError(t, err)
	c := cache.NewSimpleMemoryCache(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	locker := updatelock.NewLocal()
	ix := linkindex.New(db, locker, linkindex.Config{Workers: 2, OwnHosts: []string{"integreat.app"}}, nil)
	t.Cleanup(func() {
		ix.Stop()
		cancel()
		_ = c.Close()
		_ = db.Close()
		_ = os.Remove(dbPath)
	})

	require.NoError(t, store.Migrate(db))
	require.NoError(t, store.Seed(ctx, db))

	ix.Start(ctx)
	_, err = ix.ReindexAll(ctx)
	require.NoError(t, err)
	require.NoError(t, ix.Drain(ctx, 5*time.Second))

	svc := content.NewService(db, c, ix, content.Config{
		WebappURL:     "https://integreat.app",
		ShortLinksURL: "http://localhost:8000",
	}, nil)

	return &testEnv{
		db:      db,
		content: svc,
		index:   ix,
		locker:  locker,
		svc:     NewService(db, svc, ix, locker, cfg, nil),
	}
}

func (e *testEnv) urlID(t *testing.T, raw string) int64 {
	t.Helper()
	urls, err := store.New(e.db).ListURLs(context.Background(), nil)
	require.NoError(t, err)
	for _, u := range urls {
		if u.URL == raw {
			return u.ID
		}
	}
	t.Fatalf("url %q not tracked", raw)
	return 0
}

func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, e.index.Drain(context.Background(), 5*time.Second))
}

// addPage creates a public page in region with the given body.
func (e *testEnv) addPage(t *testing.T, region, language, title, body string) *model.Translation {
	t.Helper()
	ctx := context.Background()
	obj, err := e.content.CreateObject(ctx, model.KindPage, region, nil)
	require.NoError(t, err)
	tr, err := e.content.SaveTranslation(ctx, content.SaveParams{
		ObjectID:     obj.ID,
		LanguageSlug: language,
		Title:        title,
		Content:      body,
		Status:       model.StatusPublic,
	})
	require.NoError(t, err)
	e.drain(t)
	return tr
}

func (e *testEnv) addRegion(t *testing.T, slug string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.content.CreateRegion(ctx, slug, slug)
	require.NoError(t, err)
	_, err = e.content.AddRegionLanguage(ctx, slug, "de", "", false)
	require.NoError(t, err)
}

func urlsOf(entries []URLEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.URL.URL)
	}
	return out
}

// assertPartition checks that every URL falls into exactly one category
// and the counts add up.
func assertPartition(t *testing.T, svc *Service, region string) Counts {
	t.Helper()
	ctx := context.Background()

	all, counts, err := svc.FilterURLs(ctx, region, "", true)
	require.NoError(t, err)
	require.Equal(t, len(all), counts.All)

	seen := make(map[int64]string)
	total := 0
	for _, f := range []string{
		model.URLFilterIgnored, model.URLFilterValid, model.URLFilterInvalid,
		model.URLFilterEmail, model.URLFilterPhone, model.URLFilterUnchecked,
	} {
		entries, _, err := svc.FilterURLs(ctx, region, f, false)
		require.NoError(t, err)
		for _, e := range entries {
			if prev, dup := seen[e.ID]; dup {
				t.Errorf("url %q in %s and %s", e.URL.URL, prev, f)
			}
			seen[e.ID] = f
		}
		total += len(entries)
	}
	assert.Equal(t, counts.All, total)

	sum := counts.Valid + counts.Invalid + counts.Ignored + counts.Unchecked
	if counts.Email != nil {
		sum += *counts.Email
	}
	if counts.Phone != nil {
		sum += *counts.Phone
	}
	assert.Equal(t, counts.All, sum)
	return counts
}

func TestService_FilterURLs_Seeded(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()

	counts := assertPartition(t, env.svc, "")
	assert.Equal(t, 3, counts.All)
	assert.Equal(t, 1, counts.Unchecked)
	require.NotNil(t, counts.Email)
	require.NotNil(t, counts.Phone)
	assert.Equal(t, 1, *counts.Email)
	assert.Equal(t, 1, *counts.Phone)

	entries, _, err := env.svc.FilterURLs(ctx, "", model.URLFilterEmail, true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, mailtoURL, entries[0].URL.URL)
	require.Len(t, entries[0].Links, 2)
	assert.Equal(t, model.KindEvent, entries[0].Links[0].Kind)
	assert.Equal(t, store.DemoRegionSlug, entries[0].Links[0].RegionSlug)

	entries, _, err = env.svc.FilterURLs(ctx, "", "no-such-filter", false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{augsburgURL, mailtoURL, telURL}, urlsOf(entries))
}

func TestService_FilterURLs_Categories(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	q := store.New(env.db)

	env.addPage(t, store.DemoRegionSlug, "de", "Links",
		`<a href="https://ok.example.com/">ok</a> <a href="https://broken.example.com/">broken</a> `+
			`<a href="https://ignored.example.com/">ignored</a> <a href="#top">top</a> <a href="">leer</a>`)

	now := time.Now()
	require.NoError(t, q.UpdateURLStatus(ctx, env.urlID(t, "https://ok.example.com/"), true, "200 OK", now))
	require.NoError(t, q.UpdateURLStatus(ctx, env.urlID(t, "https://broken.example.com/"), false, "404 Not Found", now))
	// a checked mailto link is reported by its status
	require.NoError(t, q.UpdateURLStatus(ctx, env.urlID(t, mailtoURL), false, "no mx record", now))
	_, err := env.svc.SetIgnore(ctx, env.urlID(t, "https://ignored.example.com/"), "", true)
	require.NoError(t, err)

	counts := assertPartition(t, env.svc, "")
	assert.Equal(t, 6, counts.All, "anchor and empty links are ignored types")
	assert.Equal(t, 1, counts.Valid)
	assert.Equal(t, 2, counts.Invalid)
	assert.Equal(t, 1, counts.Ignored)
	assert.Equal(t, 1, counts.Unchecked)
	assert.Equal(t, 0, *counts.Email)
	assert.Equal(t, 1, *counts.Phone)

	tests := []struct {
		filter string
		want   []string
	}{
		{model.URLFilterValid, []string{"https://ok.example.com/"}},
		{model.URLFilterInvalid, []string{"https://broken.example.com/", mailtoURL}},
		{model.URLFilterIgnored, []string{"https://ignored.example.com/"}},
		{model.URLFilterUnchecked, []string{augsburgURL}},
		{model.URLFilterPhone, []string{telURL}},
		{model.URLFilterEmail, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			entries, _, err := env.svc.FilterURLs(ctx, "", tt.filter, false)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, urlsOf(entries))
		})
	}
}

func TestService_FilterURLs_Region(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()

	env.addRegion(t, "berlin")
	env.addPage(t, "berlin", "de", "Links", `<a href="https://www.berlin.de/">Berlin</a> <a href="`+augsburgURL+`">Augsburg</a>`)

	assert.Equal(t, 4, assertPartition(t, env.svc, "").All)
	assert.Equal(t, 3, assertPartition(t, env.svc, store.DemoRegionSlug).All)
	assert.Equal(t, 2, assertPartition(t, env.svc, "berlin").All)

	entries, err := env.svc.GetURLs(ctx, Filter{Region: "berlin", Prefetch: true})
	require.NoError(t, err)
	for _, e := range entries {
		for _, l := range e.Links {
			assert.Equal(t, "berlin", l.RegionSlug, "only links of the region are attached")
		}
	}

	// ignoring in one region leaves the other untouched
	n, err := env.svc.SetIgnore(ctx, env.urlID(t, augsburgURL), store.DemoRegionSlug, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, 1, assertPartition(t, env.svc, store.DemoRegionSlug).Ignored)
	assert.Equal(t, 0, assertPartition(t, env.svc, "berlin").Ignored)
	assert.Equal(t, 0, assertPartition(t, env.svc, "").Ignored, "one link is still active")

	_, err = env.svc.URLCount(ctx, "nowhere")
	assert.ErrorIs(t, err, content.ErrRegionNotFound)
}

func TestService_GetURLs_IDs(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()

	id := env.urlID(t, telURL)
	entries, err := env.svc.GetURLs(ctx, Filter{URLIDs: []int64{id}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, telURL, entries[0].URL.URL)
	require.Len(t, entries[0].Links, 1)
	assert.Empty(t, entries[0].Links[0].RegionSlug, "flags only without prefetch")

	entries, err = env.svc.GetURLs(ctx, Filter{URLIDs: []int64{}})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_DisabledAccounting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmailEnabled = false
	cfg.PhoneEnabled = false
	env := newTestEnv(t, cfg)

	counts := assertPartition(t, env.svc, "")
	assert.Equal(t, 1, counts.All)
	assert.Nil(t, counts.Email)
	assert.Nil(t, counts.Phone)
}

func TestConfig_IgnoredTypes(t *testing.T) {
	cfg := DefaultConfig()
	types := cfg.IgnoredTypes()
	assert.True(t, types[model.URLTypeAnchor])
	assert.True(t, types[model.URLTypeEmpty])
	assert.True(t, types[model.URLTypeInvalid])
	assert.False(t, types[model.URLTypeMailto])

	cfg.EmailEnabled = false
	assert.True(t, cfg.IgnoredTypes()[model.URLTypeMailto])
	assert.False(t, cfg.IgnoredTypes()[model.URLTypePhone])
}

func TestCategory(t *testing.T) {
	yes, no := true, false
	now := time.Now()
	active := []model.Link{{Ignore: false}, {Ignore: true}}
	ignored := []model.Link{{Ignore: true}}

	tests := []struct {
		name string
		e    URLEntry
		want string
	}{
		{"all links ignored wins over status", URLEntry{URL: model.URL{Status: &yes}, Links: ignored}, model.URLFilterIgnored},
		{"no links", URLEntry{URL: model.URL{Status: &no}}, model.URLFilterIgnored},
		{"valid", URLEntry{URL: model.URL{Status: &yes, LastChecked: &now}, Links: active}, model.URLFilterValid},
		{"invalid", URLEntry{URL: model.URL{Status: &no, LastChecked: &now}, Links: active}, model.URLFilterInvalid},
		{"unchecked mailto", URLEntry{URL: model.URL{Type: model.URLTypeMailto}, Links: active}, model.URLFilterEmail},
		{"unchecked phone", URLEntry{URL: model.URL{Type: model.URLTypePhone}, Links: active}, model.URLFilterPhone},
		{"unchecked", URLEntry{URL: model.URL{Type: model.URLTypeExternal}, Links: active}, model.URLFilterUnchecked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, category(tt.e))
		})
	}

	assert.Panics(t, func() {
		category(URLEntry{URL: model.URL{Type: model.URLTypeExternal, LastChecked: &now}, Links: active})
	})
}

func TestService_SetIgnore(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()
	id := env.urlID(t, augsburgURL)

	n, err := env.svc.SetIgnore(ctx, id, "", true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	entries, _, err := env.svc.FilterURLs(ctx, "", model.URLFilterIgnored, false)
	require.NoError(t, err)
	assert.Equal(t, []string{augsburgURL}, urlsOf(entries))

	_, err = env.svc.SetIgnore(ctx, id, "", false)
	require.NoError(t, err)
	entries, _, err = env.svc.FilterURLs(ctx, "", model.URLFilterIgnored, false)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = env.svc.SetIgnore(ctx, 99999, "", true)
	assert.ErrorIs(t, err, ErrURLNotFound)
}
