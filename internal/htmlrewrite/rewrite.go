// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package htmlrewrite walks the link-bearing attributes of rich-text HTML
// fragments. Rewrites are surgical: tags whose links are unchanged are
// written back byte for byte, so editor markup survives a bulk replace.
package htmlrewrite

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// linkAttrs are the attributes that hold a URL.
var linkAttrs = map[string]bool{
	"action":     true,
	"background": true,
	"cite":       true,
	"data":       true,
	"formaction": true,
	"href":       true,
	"longdesc":   true,
	"poster":     true,
	"src":        true,
}

// IsLinkAttr reports whether the attribute name carries a URL.
func IsLinkAttr(name string) bool {
	return linkAttrs[strings.ToLower(name)]
}

// RewriteLinks applies fn to every link-bearing attribute value in fragment
// and returns the rewritten fragment. fn receives the unescaped value and
// returns the replacement; returning the input leaves the tag untouched.
func RewriteLinks(fragment string, fn func(link string) string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var out strings.Builder
	out.Grow(len(fragment))

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("tokenizing html: %w", err)
			}
			return out.String(), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			tok := z.Token()
			changed := false
			for i, a := range tok.Attr {
				if a.Namespace != "" || !linkAttrs[a.Key] {
					continue
				}
				if v := fn(a.Val); v != a.Val {
					tok.Attr[i].Val = v
					changed = true
				}
			}
			if changed {
				out.WriteString(tok.String())
			} else {
				out.WriteString(raw)
			}
		default:
			out.Write(z.Raw())
		}
	}
}

// ReplaceExact rewrites every link whose value equals old exactly, ignoring
// surrounding whitespace.
func ReplaceExact(fragment, old, replacement string) (string, error) {
	return RewriteLinks(fragment, func(link string) string {
		if strings.TrimSpace(link) == old {
			return replacement
		}
		return link
	})
}
