// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// Translation statuses
const (
	StatusDraft    = "draft"
	StatusReview   = "review"
	StatusPublic   = "public"
	StatusAutoSave = "auto_save"
)

// Translation is one version of a content object in one language.
// Rows are never updated: every edit inserts the next version.
type Translation struct {
	ID              int64       `json:"id"`
	ContentObjectID int64       `json:"content_object_id"`
	LanguageID      int64       `json:"language_id"`
	Version         int         `json:"version"`
	Status          string      `json:"status"`
	Slug            string      `json:"slug"`
	Title           string      `json:"title"`
	Content         string      `json:"content"`
	MinorEdit       bool        `json:"minor_edit"`
	CreatorID       *int64      `json:"creator_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	Kind            ContentKind `json:"kind"`
	RegionID        int64       `json:"region_id"`
	RegionSlug      string      `json:"region_slug"`
	LanguageSlug    string      `json:"language_slug"`
}

// IsPublic returns true if the translation has publish status.
func (t *Translation) IsPublic() bool {
	return t.Status == StatusPublic
}

// TitleMatches reports whether text equals the title ignoring case and
// surrounding whitespace.
func (t *Translation) TitleMatches(text string) bool {
	return strings.EqualFold(strings.TrimSpace(t.Title), strings.TrimSpace(text))
}

// Copy returns a detached copy of the translation.
func (t *Translation) Copy() *Translation {
	c := *t
	if t.CreatorID != nil {
		id := *t.CreatorID
		c.CreatorID = &id
	}
	return &c
}

// ValidStatus reports whether s is a known translation status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusReview, StatusPublic, StatusAutoSave:
		return true
	}
	return false
}

// TranslationHead indexes the latest and the latest public version of one
// (content object, language) chain.
type TranslationHead struct {
	ContentObjectID int64  `json:"content_object_id"`
	LanguageID      int64  `json:"language_id"`
	LatestID        int64  `json:"latest_id"`
	PublicID        *int64 `json:"public_id,omitempty"`
	Version         int    `json:"version"`
}
