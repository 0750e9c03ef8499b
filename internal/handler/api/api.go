// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON API for link health auditing, bulk link
// replacement and link translation.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/portal-cms/internal/cache"
	"github.com/olegiv/portal-cms/internal/content"
	"github.com/olegiv/portal-cms/internal/linkcheck"
	"github.com/olegiv/portal-cms/internal/linkindex"
	"github.com/olegiv/portal-cms/internal/linkresolve"
	"github.com/olegiv/portal-cms/internal/scheduler"
	"github.com/olegiv/portal-cms/internal/updatelock"
)

// maxBodySize limits JSON request bodies.
const maxBodySize = 1 << 20

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	db        *sql.DB
	cache     cache.Cacher
	links     *linkcheck.Service
	resolver  *linkresolve.Resolver
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
	startTime time.Time
}

// Deps are the services behind the API. Cache and Scheduler may be nil.
type Deps struct {
	DB        *sql.DB
	Cache     cache.Cacher
	Links     *linkcheck.Service
	Resolver  *linkresolve.Resolver
	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		db:        d.DB,
		cache:     d.Cache,
		links:     d.Links,
		resolver:  d.Resolver,
		scheduler: d.Scheduler,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains list metadata.
type Meta struct {
	Total int64 `json:"total"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteAccepted writes a 202 Accepted JSON response.
func WriteAccepted(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusAccepted, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// writeServiceError maps a service error to a response. Unknown errors
// are logged and reported as internal errors.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, content.ErrRegionNotFound),
		errors.Is(err, content.ErrLanguageNotFound),
		errors.Is(err, linkcheck.ErrURLNotFound),
		errors.Is(err, scheduler.ErrJobNotFound):
		WriteNotFound(w, err.Error())
	case errors.Is(err, updatelock.ErrLockNotAcquired),
		errors.Is(err, scheduler.ErrAlreadyRunning):
		WriteConflict(w, err.Error())
	case errors.Is(err, scheduler.ErrNotTriggerable):
		WriteBadRequest(w, err.Error(), nil)
	default:
		h.logger.Error("api request failed", "action", action, "path", r.URL.Path, "error", err)
		WriteInternalError(w, "Failed to "+action)
	}
}

// decodeJSON reads a JSON request body into v. On failure the response is
// written and false returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteBadRequest(w, "Invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

// parseIDParam parses the {id} URL parameter.
func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// isDrainTimeout reports whether err only means the link index is still
// catching up.
func isDrainTimeout(err error) bool {
	return errors.Is(err, linkindex.ErrDrainTimeout)
}
