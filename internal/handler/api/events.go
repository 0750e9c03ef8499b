// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"

	"github.com/olegiv/portal-cms/internal/model"
	"github.com/olegiv/portal-cms/internal/store"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// ListEvents handles GET /api/v1/events?limit=. Newest events come first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteBadRequest(w, "Invalid limit", map[string]string{"limit": raw})
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := store.New(h.db).ListEvents(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err, "list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	WriteSuccess(w, events, &Meta{Total: int64(len(events))})
}
