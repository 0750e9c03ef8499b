// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package htmlrewrite

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkSelector matches every element carrying one of linkAttrs.
var linkSelector = func() string {
	sel := make([]string, 0, len(linkAttrs))
	for attr := range linkAttrs {
		sel = append(sel, "["+attr+"]")
	}
	return strings.Join(sel, ",")
}()

// ExtractLinks returns the distinct link values of fragment in document order.
// Values are trimmed; empty values are kept so the link index can report them.
func ExtractLinks(fragment string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		for _, a := range s.Nodes[0].Attr {
			if !linkAttrs[a.Key] {
				continue
			}
			v := strings.TrimSpace(a.Val)
			if seen[v] {
				continue
			}
			seen[v] = true
			links = append(links, v)
		}
	})
	return links, nil
}

// Anchor is an <a> element passed to RewriteAnchors.
type Anchor struct {
	Href string
	// Text is the anchor's text content.
	Text string
	// TextOnly is false when the anchor wraps other elements; such
	// anchors keep their content whatever text the callback returns.
	TextOnly bool
}

// RewriteAnchors calls fn for every <a href> in fragment. When fn returns
// ok, the href and (for text-only anchors) the text are replaced.
func RewriteAnchors(fragment string, fn func(Anchor) (href, text string, ok bool)) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	changed := false
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		a := Anchor{
			Href:     href,
			Text:     s.Text(),
			TextOnly: s.Children().Length() == 0,
		}
		newHref, newText, ok := fn(a)
		if !ok {
			return
		}
		if newHref != href {
			s.SetAttr("href", newHref)
			changed = true
		}
		if a.TextOnly && newText != a.Text {
			s.SetText(newText)
			changed = true
		}
	})

	if !changed {
		return fragment, nil
	}
	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out, nil
}
