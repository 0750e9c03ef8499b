// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/olegiv/portal-cms/internal/linkcheck"
)

// URLListResponse is the body of GET /api/v1/linkcheck.
type URLListResponse struct {
	URLs   []linkcheck.URLEntry `json:"urls"`
	Counts linkcheck.Counts     `json:"counts"`
}

// ListURLs handles GET /api/v1/linkcheck?region=&filter=&prefetch=.
// Links carry their full scope unless prefetch=false.
func (h *Handler) ListURLs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	prefetch := true
	if raw := q.Get("prefetch"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			WriteBadRequest(w, "Invalid prefetch value", map[string]string{"prefetch": raw})
			return
		}
		prefetch = v
	}

	urls, counts, err := h.links.FilterURLs(r.Context(), q.Get("region"), q.Get("filter"), prefetch)
	if err != nil {
		h.writeServiceError(w, r, err, "list URLs")
		return
	}
	if urls == nil {
		urls = []linkcheck.URLEntry{}
	}

	WriteSuccess(w, URLListResponse{URLs: urls, Counts: counts}, &Meta{Total: int64(len(urls))})
}

// CountURLs handles GET /api/v1/linkcheck/count?region=.
func (h *Handler) CountURLs(w http.ResponseWriter, r *http.Request) {
	counts, err := h.links.URLCount(r.Context(), r.URL.Query().Get("region"))
	if err != nil {
		h.writeServiceError(w, r, err, "count URLs")
		return
	}
	WriteSuccess(w, counts, nil)
}

// ReplaceLinks handles POST /api/v1/linkcheck/replace. The body is a
// linkcheck.ReplaceParams; without "commit": true the run is a dry run.
// When the link index is still catching up afterwards the result is
// returned with 202 Accepted.
func (h *Handler) ReplaceLinks(w http.ResponseWriter, r *http.Request) {
	var p linkcheck.ReplaceParams
	if !decodeJSON(w, r, &p) {
		return
	}

	result, err := h.links.ReplaceLinks(r.Context(), p)
	switch {
	case errors.Is(err, linkcheck.ErrEmptySearch):
		WriteValidationError(w, map[string]string{"search": "Search string is required"})
	case err != nil && isDrainTimeout(err) && result != nil:
		h.logger.Warn("link index still catching up after replace", "error", err, "category", "linkcheck")
		WriteAccepted(w, result)
	case err != nil:
		h.writeServiceError(w, r, err, "replace links")
	default:
		WriteSuccess(w, result, &Meta{Total: int64(len(result.Translations))})
	}
}

// IgnoreRequest is the body of POST /api/v1/linkcheck/urls/{id}/ignore.
type IgnoreRequest struct {
	Region string `json:"region"`
	Ignore bool   `json:"ignore"`
}

// IgnoreResponse reports how many links changed.
type IgnoreResponse struct {
	URLID        int64 `json:"url_id"`
	Ignore       bool  `json:"ignore"`
	LinksChanged int64 `json:"links_changed"`
}

// SetIgnore handles POST /api/v1/linkcheck/urls/{id}/ignore.
func (h *Handler) SetIgnore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid URL ID", nil)
		return
	}

	var req IgnoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.links.SetIgnore(r.Context(), id, req.Region, req.Ignore)
	if err != nil {
		h.writeServiceError(w, r, err, "update URL")
		return
	}
	WriteSuccess(w, IgnoreResponse{URLID: id, Ignore: req.Ignore, LinksChanged: n}, nil)
}
