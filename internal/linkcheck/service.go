// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package linkcheck reports on the health of the URLs found in content,
// rewrites them in bulk and checks them against the network.
package linkcheck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/portal-cms/internal/content"
	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/store"
	"github.com/olegiv/portal-cms/internal/updatelock"
)

// ErrURLNotFound is returned when a URL ID is unknown.
var ErrURLNotFound = errors.New("url not found")

// Index is the asynchronous link index the service writes through.
type Index interface {
	Enqueue(ctx context.Context, translationID int64) error
	Drain(ctx context.Context, timeout time.Duration) error
}

// Config holds link check settings.
type Config struct {
	// IgnoredURLTypes are left out of every listing and count.
	IgnoredURLTypes []string
	EmailEnabled    bool
	PhoneEnabled    bool
	// DrainTimeout bounds the wait for the link index after a replace.
	DrainTimeout time.Duration
}

// DefaultConfig returns the default link check settings.
func DefaultConfig() Config {
	return Config{
		IgnoredURLTypes: []string{model.URLTypeAnchor, model.URLTypeEmpty, model.URLTypeInvalid},
		EmailEnabled:    true,
		PhoneEnabled:    true,
		DrainTimeout:    30 * time.Second,
	}
}

// IgnoredTypes returns the effective set of ignored URL types. Disabled
// email or phone accounting ignores mailto or phone links as well.
func (c Config) IgnoredTypes() map[string]bool {
	types := make(map[string]bool, len(c.IgnoredURLTypes)+2)
	for _, t := range c.IgnoredURLTypes {
		types[t] = true
	}
	if !c.EmailEnabled {
		types[model.URLTypeMailto] = true
	}
	if !c.PhoneEnabled {
		types[model.URLTypePhone] = true
	}
	return types
}

// Service provides URL reports and bulk link replacement.
type Service struct {
	db      *sql.DB
	queries *store.Queries
	content *content.Service
	index   Index
	locker  updatelock.Locker
	logger  *slog.Logger

	ignored      map[string]bool
	emailEnabled bool
	phoneEnabled bool
	drainTimeout time.Duration
}

// NewService creates a link check service.
func NewService(db *sql.DB, svc *content.Service, index Index, locker updatelock.Locker, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultConfig().DrainTimeout
	}
	return &Service{
		db:           db,
		queries:      store.New(db),
		content:      svc,
		index:        index,
		locker:       locker,
		logger:       logger,
		ignored:      cfg.IgnoredTypes(),
		emailEnabled: cfg.EmailEnabled,
		phoneEnabled: cfg.PhoneEnabled,
		drainTimeout: cfg.DrainTimeout,
	}
}

// Filter selects the URLs returned by GetURLs.
type Filter struct {
	// Region limits URLs and their links to one region. URLs without a
	// link in the region are dropped.
	Region string
	// URLIDs restricts the result to these IDs unless nil.
	URLIDs []int64
	// Prefetch loads the scope (object, region, language, title) of every
	// link. Without it only the ignore flags are loaded.
	Prefetch bool
}

// URLEntry is a URL with its links in scope.
type URLEntry struct {
	model.URL
	Links []model.Link `json:"links"`
}

// Counts holds the number of URLs per category. Email and Phone are nil
// when their accounting is disabled.
type Counts struct {
	All       int  `json:"number_all_urls"`
	Valid     int  `json:"number_valid_urls"`
	Unchecked int  `json:"number_unchecked_urls"`
	Ignored   int  `json:"number_ignored_urls"`
	Invalid   int  `json:"number_invalid_urls"`
	Email     *int `json:"number_email_urls,omitempty"`
	Phone     *int `json:"number_phone_urls,omitempty"`
}

func (s *Service) regionID(ctx context.Context, slug string) (*int64, error) {
	if slug == "" {
		return nil, nil
	}
	r, err := s.content.Region(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &r.ID, nil
}

// GetURLs returns the tracked URLs, minus ignored types, with their links.
func (s *Service) GetURLs(ctx context.Context, f Filter) ([]URLEntry, error) {
	regionID, err := s.regionID(ctx, f.Region)
	if err != nil {
		return nil, err
	}

	urls, err := s.queries.ListURLs(ctx, f.URLIDs)
	if err != nil {
		return nil, fmt.Errorf("listing urls: %w", err)
	}

	var links []model.Link
	if f.Prefetch {
		links, err = s.queries.ListLinks(ctx, regionID)
	} else {
		links, err = s.queries.ListLinkFlags(ctx, regionID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	byURL := make(map[int64][]model.Link)
	for _, l := range links {
		byURL[l.URLID] = append(byURL[l.URLID], l)
	}

	entries := make([]URLEntry, 0, len(urls))
	for _, u := range urls {
		if s.ignored[u.Type] {
			continue
		}
		scoped := byURL[u.ID]
		if regionID != nil && len(scoped) == 0 {
			continue
		}
		entries = append(entries, URLEntry{URL: u, Links: scoped})
	}
	return entries, nil
}

// category returns the single category of a URL. The first matching rule
// wins; a URL matching none is a programming error.
func category(e URLEntry) string {
	switch {
	case allIgnored(e.Links):
		return model.URLFilterIgnored
	case e.IsValid():
		return model.URLFilterValid
	case e.IsInvalid():
		return model.URLFilterInvalid
	case e.Type == model.URLTypeMailto:
		return model.URLFilterEmail
	case e.Type == model.URLTypePhone:
		return model.URLFilterPhone
	case e.LastChecked == nil:
		return model.URLFilterUnchecked
	}
	panic(fmt.Sprintf("linkcheck: url %d %q (type %s) fits no category", e.ID, e.URL.URL, e.Type))
}

// allIgnored reports whether every link is ignored. A URL without links
// counts as ignored.
func allIgnored(links []model.Link) bool {
	for _, l := range links {
		if !l.Ignore {
			return false
		}
	}
	return true
}

// FilterURLs returns the URLs of one category together with the counts of
// every category. An empty or unknown category returns all URLs.
func (s *Service) FilterURLs(ctx context.Context, region, urlFilter string, prefetch bool) ([]URLEntry, Counts, error) {
	entries, err := s.GetURLs(ctx, Filter{Region: region, Prefetch: prefetch})
	if err != nil {
		return nil, Counts{}, err
	}

	buckets := make(map[string][]URLEntry, 6)
	for _, e := range entries {
		c := category(e)
		buckets[c] = append(buckets[c], e)
	}

	counts := Counts{
		All:       len(entries),
		Valid:     len(buckets[model.URLFilterValid]),
		Unchecked: len(buckets[model.URLFilterUnchecked]),
		Ignored:   len(buckets[model.URLFilterIgnored]),
		Invalid:   len(buckets[model.URLFilterInvalid]),
	}
	if s.emailEnabled {
		n := len(buckets[model.URLFilterEmail])
		counts.Email = &n
	}
	if s.phoneEnabled {
		n := len(buckets[model.URLFilterPhone])
		counts.Phone = &n
	}

	switch urlFilter {
	case model.URLFilterValid, model.URLFilterInvalid, model.URLFilterIgnored,
		model.URLFilterUnchecked, model.URLFilterEmail, model.URLFilterPhone:
		return buckets[urlFilter], counts, nil
	default:
		return entries, counts, nil
	}
}

// URLCount returns the category counts, optionally for one region.
func (s *Service) URLCount(ctx context.Context, region string) (Counts, error) {
	_, counts, err := s.FilterURLs(ctx, region, "", false)
	return counts, err
}

// SetIgnore sets the ignore flag of a URL's links, only those inside region
// unless it is empty. It returns the number of links changed.
func (s *Service) SetIgnore(ctx context.Context, urlID int64, region string, ignore bool) (int64, error) {
	regionID, err := s.regionID(ctx, region)
	if err != nil {
		return 0, err
	}
	if _, err := s.queries.GetURL(ctx, urlID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w: %d", ErrURLNotFound, urlID)
		}
		return 0, err
	}

	var n int64
	err = updatelock.WithLock(ctx, s.locker, func(ctx context.Context) error {
		var err error
		n, err = s.queries.SetLinksIgnore(ctx, urlID, regionID, ignore)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("setting ignore flag of url %d: %w", urlID, err)
	}

	s.logger.Info("url ignore flag changed",
		"url_id", urlID, "region", region, "ignore", ignore, "links", n,
		"category", model.EventCategoryLinkcheck)
	return n, nil
}
