// Package paginate splits extracted document text into logical pages.
//
// The extractor separates physical pages with markers of the form
// "-- 3 of 12 --". Paginate cuts the text on those markers; the resulting
// pages are what the reader displays and what annotations are keyed by.
package paginate

import (
	"regexp"
	"strings"
)

// Marker matches a page-break marker: two dashes, optional whitespace, a page
// number, "of", the page total, optional whitespace, two dashes.
var Marker = regexp.MustCompile(`--\s*\d+\s+of\s+\d+\s*--`)

// Page is one logical page of a document.
type Page struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// Paginate splits raw into trimmed, non-empty page strings in document order.
//
// Text made only of markers falls back to a single page holding raw untouched.
// Empty or whitespace-only text has no pages.
func Paginate(raw string) []string {
	parts := Marker.Split(raw, -1)

	pages := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			pages = append(pages, p)
		}
	}

	if len(pages) > 0 {
		return pages
	}
	if strings.TrimSpace(raw) != "" {
		return []string{raw}
	}
	return []string{}
}

// Pages is Paginate with 0-based indexes attached.
func Pages(raw string) []Page {
	texts := Paginate(raw)
	pages := make([]Page, len(texts))
	for i, content := range texts {
		pages[i] = Page{Index: i, Content: content}
	}
	return pages
}
