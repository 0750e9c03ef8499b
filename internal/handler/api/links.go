// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
)

// TranslateLinkResponse is the body of GET /api/v1/links/translate.
type TranslateLinkResponse struct {
	URL     string `json:"url"`
	Text    string `json:"text"`
	Changed bool   `json:"changed"`
}

// TranslateLink handles GET /api/v1/links/translate?url=&text=&language=.
// Unresolvable links come back unchanged.
func (h *Handler) TranslateLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	link, text, language := q.Get("url"), q.Get("text"), q.Get("language")

	fieldErrors := map[string]string{}
	if link == "" {
		fieldErrors["url"] = "URL is required"
	}
	if language == "" {
		fieldErrors["language"] = "Language is required"
	}
	if len(fieldErrors) > 0 {
		WriteValidationError(w, fieldErrors)
		return
	}

	rw, changed, err := h.resolver.UpdateLinkLanguage(r.Context(), link, text, language)
	if err != nil {
		h.writeServiceError(w, r, err, "translate link")
		return
	}
	if !changed {
		rw.URL, rw.Text = link, text
	}
	WriteSuccess(w, TranslateLinkResponse{URL: rw.URL, Text: rw.Text, Changed: changed}, nil)
}
