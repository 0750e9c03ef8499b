// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// URL types assigned by the link index
const (
	URLTypeEmpty    = "empty"
	URLTypeAnchor   = "anchor"
	URLTypeMailto   = "mailto"
	URLTypePhone    = "phone"
	URLTypeInternal = "internal"
	URLTypeExternal = "external"
	URLTypeInvalid  = "invalid"
)

// URL health categories
const (
	URLFilterValid     = "valid"
	URLFilterInvalid   = "invalid"
	URLFilterIgnored   = "ignored"
	URLFilterUnchecked = "unchecked"
	URLFilterEmail     = "email"
	URLFilterPhone     = "phone"
)

// URL is a distinct link target found in translated content.
// Status is tri-state: nil means never checked.
type URL struct {
	ID          int64      `json:"id"`
	URL         string     `json:"url"`
	Type        string     `json:"type"`
	Status      *bool      `json:"status"`
	Message     string     `json:"message,omitempty"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsValid returns true if the URL was checked and found healthy.
func (u *URL) IsValid() bool {
	return u.Status != nil && *u.Status
}

// IsInvalid returns true if the URL was checked and found broken.
func (u *URL) IsInvalid() bool {
	return u.Status != nil && !*u.Status
}

// Link is one occurrence of a URL in a translation.
type Link struct {
	ID            int64     `json:"id"`
	URLID         int64     `json:"url_id"`
	TranslationID int64     `json:"translation_id"`
	Ignore        bool      `json:"ignore"`
	CreatedAt     time.Time `json:"created_at"`

	// Scope of the owning translation
	ContentObjectID int64       `json:"content_object_id"`
	Kind            ContentKind `json:"kind"`
	RegionID        int64       `json:"region_id"`
	RegionSlug      string      `json:"region_slug"`
	LanguageSlug    string      `json:"language_slug"`
	Title           string      `json:"title,omitempty"`
}
