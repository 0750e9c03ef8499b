// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content manages regions, languages, content objects and their
// append-only translation chains, including public-translation fallback and
// the canonical URLs of a translation.
package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/portal-cms/internal/cache"
	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/store"
)

var (
	// ErrRegionNotFound is returned when a region slug is unknown.
	ErrRegionNotFound = errors.New("region not found")

	// ErrLanguageNotFound is returned when a language slug is unknown.
	ErrLanguageNotFound = errors.New("language not found")

	// ErrObjectNotFound is returned when a content object does not exist.
	ErrObjectNotFound = errors.New("content object not found")

	// ErrTranslationNotFound is returned when a translation does not exist.
	ErrTranslationNotFound = errors.New("translation not found")

	// ErrImprintExists is returned when a region already has an imprint.
	ErrImprintExists = errors.New("region already has an imprint")

	// ErrInvalidKind is returned for an unknown content kind.
	ErrInvalidKind = errors.New("invalid content kind")

	// ErrInvalidStatus is returned for an unknown translation status.
	ErrInvalidStatus = errors.New("invalid translation status")
)

// Enqueuer schedules a link-index rebuild for a saved translation.
type Enqueuer interface {
	Enqueue(ctx context.Context, translationID int64) error
}

// LinkFixer rewrites the internal links of an HTML body into a target language.
type LinkFixer interface {
	FixInternalLinks(ctx context.Context, body, languageSlug string) (string, error)
}

// Config holds the service settings.
type Config struct {
	WebappURL     string
	ShortLinksURL string
	CacheTTL      time.Duration
}

// Service provides content operations.
type Service struct {
	db      *sql.DB
	queries *store.Queries
	index   Enqueuer
	fixer   LinkFixer
	logger  *slog.Logger

	webappURL     string
	shortLinksURL string

	regions   *cache.TypedCache[model.Region]
	languages *cache.TypedCache[model.Language]
	nodes     *cache.TypedCache[model.RegionLanguage]
	cacher    cache.Cacher
}

// NewService creates a content service. index may be nil, in which case
// saved translations are not indexed.
func NewService(db *sql.DB, cacher cache.Cacher, index Enqueuer, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Service{
		db:            db,
		queries:       store.New(db),
		index:         index,
		logger:        logger,
		webappURL:     strings.TrimRight(cfg.WebappURL, "/"),
		shortLinksURL: strings.TrimRight(cfg.ShortLinksURL, "/"),
		regions:       cache.NewTypedCache[model.Region](cacher, cfg.CacheTTL),
		languages:     cache.NewTypedCache[model.Language](cacher, cfg.CacheTTL),
		nodes:         cache.NewTypedCache[model.RegionLanguage](cacher, cfg.CacheTTL),
		cacher:        cacher,
	}
}

// SetLinkFixer sets the fixer used by CopyTranslation.
func (s *Service) SetLinkFixer(f LinkFixer) {
	s.fixer = f
}

// Queries returns the underlying data access.
func (s *Service) Queries() *store.Queries {
	return s.queries
}

// Cache key prefixes
const (
	regionSlugKey   = "region:slug:"
	languageSlugKey = "language:slug:"
	languageIDKey   = "language:id:"
	nodeKey         = "node:"
)

// Region returns the region with the given slug.
func (s *Service) Region(ctx context.Context, slug string) (*model.Region, error) {
	r, err := s.regions.GetOrSet(ctx, regionSlugKey+slug, func() (*model.Region, error) {
		r, err := s.queries.GetRegionBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		return &r, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrRegionNotFound, slug)
	}
	return r, err
}

// Language returns the language with the given slug.
func (s *Service) Language(ctx context.Context, slug string) (*model.Language, error) {
	l, err := s.languages.GetOrSet(ctx, languageSlugKey+slug, func() (*model.Language, error) {
		l, err := s.queries.GetLanguageBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		return &l, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrLanguageNotFound, slug)
	}
	return l, err
}

// LanguageByID returns the language with the given ID.
func (s *Service) LanguageByID(ctx context.Context, id int64) (*model.Language, error) {
	l, err := s.languages.GetOrSet(ctx, languageIDKey+strconv.FormatInt(id, 10), func() (*model.Language, error) {
		l, err := s.queries.GetLanguage(ctx, id)
		if err != nil {
			return nil, err
		}
		return &l, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrLanguageNotFound, id)
	}
	return l, err
}

// regionLanguage returns the language tree node, or nil if the language is
// not enabled in the region.
func (s *Service) regionLanguage(ctx context.Context, regionID, languageID int64) (*model.RegionLanguage, error) {
	key := fmt.Sprintf("%s%d:%d", nodeKey, regionID, languageID)
	n, err := s.nodes.GetOrSet(ctx, key, func() (*model.RegionLanguage, error) {
		n, err := s.queries.GetRegionLanguage(ctx, regionID, languageID)
		if err != nil {
			return nil, err
		}
		return &n, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return n, err
}

// CreateRegion creates a region.
func (s *Service) CreateRegion(ctx context.Context, slug, name string) (*model.Region, error) {
	r, err := s.queries.CreateRegion(ctx, slug, name)
	if err != nil {
		return nil, fmt.Errorf("creating region %q: %w", slug, err)
	}
	_ = s.regions.Delete(ctx, regionSlugKey+slug)
	return &r, nil
}

// CreateLanguage creates a language.
func (s *Service) CreateLanguage(ctx context.Context, arg store.CreateLanguageParams) (*model.Language, error) {
	l, err := s.queries.CreateLanguage(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("creating language %q: %w", arg.Slug, err)
	}
	_ = s.languages.Delete(ctx, languageSlugKey+arg.Slug)
	return &l, nil
}

// AddRegionLanguage enables a language in a region. parentSlug is empty for
// the root language. With fallback set, objects without a public
// translation in the language fall back to the parent language.
func (s *Service) AddRegionLanguage(ctx context.Context, regionSlug, languageSlug, parentSlug string, fallback bool) (*model.RegionLanguage, error) {
	region, err := s.Region(ctx, regionSlug)
	if err != nil {
		return nil, err
	}
	lang, err := s.Language(ctx, languageSlug)
	if err != nil {
		return nil, err
	}

	node := model.RegionLanguage{
		RegionID:   region.ID,
		LanguageID: lang.ID,
		Active:     true,
		Fallback:   fallback,
	}
	if parentSlug != "" {
		parent, err := s.Language(ctx, parentSlug)
		if err != nil {
			return nil, err
		}
		node.ParentLanguageID = &parent.ID
	}

	saved, err := s.queries.UpsertRegionLanguage(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("adding language %q to region %q: %w", languageSlug, regionSlug, err)
	}
	if err := s.cacher.DeleteByPrefix(ctx, nodeKey); err != nil {
		s.logger.Warn("cache invalidation failed", "prefix", nodeKey, "error", err)
	}
	return &saved, nil
}

// CreateObject creates a content object in a region. A region holds at most
// one imprint.
func (s *Service) CreateObject(ctx context.Context, kind model.ContentKind, regionSlug string, parentID *int64) (*model.ContentObject, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	region, err := s.Region(ctx, regionSlug)
	if err != nil {
		return nil, err
	}
	if kind != model.KindPage {
		parentID = nil
	}

	var obj model.ContentObject
	err = store.InTx(ctx, s.db, func(q *store.Queries) error {
		if kind.IsSingleton() {
			n, err := q.CountContentObjects(ctx, region.ID, kind)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrImprintExists
			}
		}
		if parentID != nil {
			parent, err := q.GetContentObject(ctx, *parentID)
			if errors.Is(err, store.ErrNotFound) || (err == nil && (parent.Kind != model.KindPage || parent.RegionID != region.ID)) {
				return fmt.Errorf("%w: parent %d", ErrObjectNotFound, *parentID)
			}
			if err != nil {
				return err
			}
		}
		created, err := q.CreateContentObject(ctx, kind, region.ID, parentID)
		if err != nil {
			return err
		}
		obj = created
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", kind, err)
	}
	return &obj, nil
}

// Object returns the content object with the given ID.
func (s *Service) Object(ctx context.Context, id int64) (*model.ContentObject, error) {
	obj, err := s.queries.GetContentObject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrObjectNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &obj, nil
}
