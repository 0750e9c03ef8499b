// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package linkindex

import (
	"net/url"
	"strings"

	"github.com/olegiv/portal-cms/internal/model"
)

// ClassifyURL returns the URL type of a link value. Relative links and links
// to one of ownHosts are internal.
func ClassifyURL(raw string, ownHosts []string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)

	switch {
	case raw == "":
		return model.URLTypeEmpty
	case strings.HasPrefix(raw, "#"):
		return model.URLTypeAnchor
	case strings.HasPrefix(lower, "mailto:"):
		return model.URLTypeMailto
	case strings.HasPrefix(lower, "tel:"):
		return model.URLTypePhone
	}

	u, err := url.Parse(raw)
	if err != nil {
		return model.URLTypeInvalid
	}

	switch u.Scheme {
	case "":
		if u.Host == "" {
			return model.URLTypeInternal
		}
	case "http", "https":
		if u.Host == "" {
			return model.URLTypeInvalid
		}
	default:
		return model.URLTypeInvalid
	}

	for _, h := range ownHosts {
		if strings.EqualFold(u.Host, h) {
			return model.URLTypeInternal
		}
	}
	return model.URLTypeExternal
}

// HostsOf returns the host part of each base URL, skipping unparsable ones.
func HostsOf(baseURLs ...string) []string {
	hosts := make([]string, 0, len(baseURLs))
	for _, b := range baseURLs {
		if u, err := url.Parse(b); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
