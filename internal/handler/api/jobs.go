// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/portal-cms/internal/scheduler"
)

// ListJobs handles GET /api/v1/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := []scheduler.JobInfo{}
	if h.scheduler != nil {
		jobs = h.scheduler.Registry().List()
	}
	WriteSuccess(w, jobs, &Meta{Total: int64(len(jobs))})
}

// TriggerJob handles POST /api/v1/jobs/{source}/{name}/trigger. The job
// runs in the background.
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		WriteNotFound(w, "scheduler is not running")
		return
	}

	source, name := chi.URLParam(r, "source"), chi.URLParam(r, "name")
	if err := h.scheduler.Registry().TriggerNow(source, name); err != nil {
		h.writeServiceError(w, r, err, "trigger job")
		return
	}
	WriteAccepted(w, map[string]string{"source": source, "name": name, "status": "triggered"})
}
