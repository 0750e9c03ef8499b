// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// ContentKind identifies one of the translatable content variants.
type ContentKind string

// Content kinds
const (
	KindPage    ContentKind = "page"
	KindEvent   ContentKind = "event"
	KindPOI     ContentKind = "poi"
	KindImprint ContentKind = "imprint"
)

// Webapp URL category segments
const (
	CategoryEvents     = "events"
	CategoryLocations  = "locations"
	CategoryDisclaimer = "disclaimer"
)

// Short link type codes
const (
	ShortCodePage    = "p"
	ShortCodeImprint = "i"
)

// AllKinds lists every content kind.
var AllKinds = []ContentKind{KindPage, KindEvent, KindPOI, KindImprint}

// LinkableKinds lists the kinds whose translations take part in bulk link replacement.
var LinkableKinds = []ContentKind{KindPage, KindEvent, KindPOI}

// KindForCategory maps the first path segment after the language of a webapp
// URL to a content kind. Unknown segments belong to the page tree.
func KindForCategory(segment string) ContentKind {
	switch segment {
	case CategoryEvents:
		return KindEvent
	case CategoryLocations:
		return KindPOI
	case CategoryDisclaimer:
		return KindImprint
	default:
		return KindPage
	}
}

// KindForShortCode maps a short link type code to a content kind.
func KindForShortCode(code string) (ContentKind, bool) {
	switch code {
	case ShortCodePage:
		return KindPage, true
	case ShortCodeImprint:
		return KindImprint, true
	default:
		return "", false
	}
}

// Category returns the webapp URL category segment of the kind.
// Pages have none since their path is built from the page tree.
func (k ContentKind) Category() string {
	switch k {
	case KindEvent:
		return CategoryEvents
	case KindPOI:
		return CategoryLocations
	case KindImprint:
		return CategoryDisclaimer
	default:
		return ""
	}
}

// ShortCode returns the short link type code, or false if the kind has no short links.
func (k ContentKind) ShortCode() (string, bool) {
	switch k {
	case KindPage:
		return ShortCodePage, true
	case KindImprint:
		return ShortCodeImprint, true
	default:
		return "", false
	}
}

// IsSingleton returns true for kinds that exist at most once per region.
func (k ContentKind) IsSingleton() bool {
	return k == KindImprint
}

// Valid reports whether k is a known kind.
func (k ContentKind) Valid() bool {
	for _, kind := range AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ContentObject is a page, event, POI or imprint belonging to one region.
type ContentObject struct {
	ID        int64       `json:"id"`
	Kind      ContentKind `json:"kind"`
	RegionID  int64       `json:"region_id"`
	ParentID  *int64      `json:"parent_id,omitempty"` // pages only
	CreatedAt time.Time   `json:"created_at"`
}
