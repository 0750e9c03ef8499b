// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package linkresolve maps internal links back to the translations they
// point at and re-targets them to another language.
package linkresolve

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind is the addressing scheme of a link.
type Kind string

// Link kinds
const (
	KindWebapp       Kind = "webapp"
	KindShortLink    Kind = "short-link"
	KindUnrecognized Kind = "unrecognized"
)

// Classifier tells webapp and short links apart by host.
type Classifier struct {
	webappOrigin  string
	webappHost    string
	shortLinkHost string
}

// NewClassifier creates a classifier for the given base URLs. Both must
// carry a host.
func NewClassifier(webappURL, shortLinksURL string) (*Classifier, error) {
	webapp, err := parseBase(webappURL)
	if err != nil {
		return nil, fmt.Errorf("webapp url: %w", err)
	}
	short, err := parseBase(shortLinksURL)
	if err != nil {
		return nil, fmt.Errorf("short links url: %w", err)
	}
	return &Classifier{
		webappOrigin:  webapp.Scheme + "://" + webapp.Host,
		webappHost:    webapp.Host,
		shortLinkHost: short.Host,
	}, nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%q has no host", raw)
	}
	return u, nil
}

// WebappHost returns the host of the webapp base URL.
func (c *Classifier) WebappHost() string {
	return c.webappHost
}

// Absolute resolves a root-relative path against the webapp origin. Other
// values are returned unchanged.
func (c *Classifier) Absolute(ref string) string {
	if strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//") {
		return c.webappOrigin + ref
	}
	return ref
}

// Classify returns the kind of rawURL. Hosts are compared exactly,
// including the port.
func (c *Classifier) Classify(rawURL string) Kind {
	_, kind := c.parse(rawURL)
	return kind
}

func (c *Classifier) parse(rawURL string) (*url.URL, Kind) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, KindUnrecognized
	}
	switch u.Host {
	case c.webappHost:
		return u, KindWebapp
	case c.shortLinkHost:
		return u, KindShortLink
	default:
		return u, KindUnrecognized
	}
}
