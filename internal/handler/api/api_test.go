// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olegiv/portal-cms/internal/content"
	"github.com/olegiv/portal-cms/internal/linkcheck"
	"github.com/olegiv/portal-cms/internal/scheduler"
	"github.com/olegiv/portal-cms/internal/updatelock"
)

// assertStatusCode checks that the response has the expected status code.
func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("expected status %d, got %d", expected, w.Code)
	}
}

// assertErrorResponse unmarshals and validates an error response.
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Error.Code != expectedCode {
		t.Errorf("expected code '%s', got %s", expectedCode, resp.Error.Code)
	}
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusOK, map[string]string{"key": "value"})

	assertStatusCode(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %s", ct)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["key"] != "value" {
		t.Errorf("expected key 'value', got %s", resp["key"])
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	WriteSuccess(w, []string{"a", "b"}, &Meta{Total: 2})

	assertStatusCode(t, w, http.StatusOK)

	var resp struct {
		Data []string `json:"data"`
		Meta *Meta    `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("expected 2 items, got %d", len(resp.Data))
	}
	if resp.Meta == nil || resp.Meta.Total != 2 {
		t.Errorf("expected meta total 2, got %+v", resp.Meta)
	}
}

func TestWriteSuccess_NoMeta(t *testing.T) {
	w := httptest.NewRecorder()

	WriteSuccess(w, map[string]int{"n": 1}, nil)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if _, ok := raw["meta"]; ok {
		t.Error("meta should be omitted")
	}
}

func TestWriteAccepted(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAccepted(w, map[string]string{"status": "triggered"})
	assertStatusCode(t, w, http.StatusAccepted)
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name     string
		write    func(w http.ResponseWriter)
		wantCode int
		wantErr  string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "bad", nil) }, http.StatusBadRequest, "bad_request"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "missing") }, http.StatusNotFound, "not_found"},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "busy") }, http.StatusConflict, "conflict"},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, "boom") }, http.StatusInternalServerError, "internal_error"},
		{"validation", func(w http.ResponseWriter) {
			WriteValidationError(w, map[string]string{"search": "required"})
		}, http.StatusUnprocessableEntity, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assertStatusCode(t, w, tt.wantCode)
			assertErrorResponse(t, w, tt.wantErr)
		})
	}
}

func TestWriteValidationError_Details(t *testing.T) {
	w := httptest.NewRecorder()
	WriteValidationError(w, map[string]string{"url": "URL is required"})

	resp := assertErrorResponse(t, w, "validation_error")
	if resp.Error.Details["url"] != "URL is required" {
		t.Errorf("unexpected details: %v", resp.Error.Details)
	}
}

func TestWriteServiceError(t *testing.T) {
	h := NewHandler(Deps{})

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"region", fmt.Errorf("%w: nowhere", content.ErrRegionNotFound), http.StatusNotFound},
		{"language", content.ErrLanguageNotFound, http.StatusNotFound},
		{"url", linkcheck.ErrURLNotFound, http.StatusNotFound},
		{"job", scheduler.ErrJobNotFound, http.StatusNotFound},
		{"lock", updatelock.ErrLockNotAcquired, http.StatusConflict},
		{"running", scheduler.ErrAlreadyRunning, http.StatusConflict},
		{"not triggerable", scheduler.ErrNotTriggerable, http.StatusBadRequest},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/v1/linkcheck", nil)
			h.writeServiceError(w, r, tt.err, "do things")
			assertStatusCode(t, w, tt.wantCode)
		})
	}
}
