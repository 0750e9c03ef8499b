// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Language text directions
const (
	DirectionLTR = "ltr"
	DirectionRTL = "rtl"
)

// Language represents a content language known to the CMS.
type Language struct {
	ID         int64     `json:"id"`
	Slug       string    `json:"slug"`        // en, de, ar, uk
	Name       string    `json:"name"`        // English, German
	NativeName string    `json:"native_name"` // English, Deutsch
	Direction  string    `json:"direction"`   // ltr, rtl
	CreatedAt  time.Time `json:"created_at"`
}

// IsRTL returns true if the language is right-to-left.
func (l *Language) IsRTL() bool {
	return l.Direction == DirectionRTL
}

// RegionLanguage is a node of a region's language tree.
// A node with Fallback set falls back to its parent language when content
// has no public translation in the node's own language.
type RegionLanguage struct {
	ID               int64  `json:"id"`
	RegionID         int64  `json:"region_id"`
	LanguageID       int64  `json:"language_id"`
	ParentLanguageID *int64 `json:"parent_language_id,omitempty"`
	Active           bool   `json:"active"`
	Fallback         bool   `json:"fallback"`
}

// IsRoot returns true if the node has no parent language.
func (n *RegionLanguage) IsRoot() bool {
	return n.ParentLanguageID == nil
}
