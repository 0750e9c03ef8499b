// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/olegiv/portal-cms/internal/middleware"
)

// RouterConfig holds HTTP-level settings.
type RouterConfig struct {
	CORSOrigins []string
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int
	// ReadTimeout bounds read-only requests. Replacement runs are bounded
	// by the drain timeout instead.
	ReadTimeout time.Duration
}

// DefaultRouterConfig returns the default HTTP settings.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimit:   10,
		RateBurst:   20,
		ReadTimeout: 30 * time.Second,
	}
}

// Routes builds the API router.
func (h *Handler) Routes(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst).Middleware())
		}

		r.Group(func(r chi.Router) {
			if cfg.ReadTimeout > 0 {
				r.Use(middleware.Timeout(cfg.ReadTimeout))
			}
			r.Get("/linkcheck", h.ListURLs)
			r.Get("/linkcheck/count", h.CountURLs)
			r.Get("/links/translate", h.TranslateLink)
			r.Get("/jobs", h.ListJobs)
			r.Get("/events", h.ListEvents)
		})

		r.Post("/linkcheck/replace", h.ReplaceLinks)
		r.Post("/linkcheck/urls/{id}/ignore", h.SetIgnore)
		r.Post("/jobs/{source}/{name}/trigger", h.TriggerJob)
	})

	return r
}
