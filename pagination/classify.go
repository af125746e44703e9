// Package pagination drives the fetch/extract/continue loop of a crawl unit
// and classifies how a listing page exposes further results.
package pagination

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"catalog-crawler/adapters"
	"catalog-crawler/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// maxControlText bounds the text of an element treated as a labelled
// control. Containers whose text merely mentions a keyword are longer.
const maxControlText = 40

// controlText returns the lower-cased text of s, or "" when s is too long
// to be a control
func controlText(s *goquery.Selection) string {
	text := adapters.CleanText(s.Text())
	if text == "" || utf8.RuneCountInString(text) > maxControlText {
		return ""
	}
	return strings.ToLower(text)
}

func hasControl(doc *goquery.Document, selector string, words ...string) bool {
	found := false
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := controlText(s)
		for _, w := range words {
			if text != "" && strings.Contains(text, w) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// Classify detects the continuation pattern of a loaded listing page.
// Signals are checked in order: numbered or next links, load-more and
// infinite-scroll markers, then view-all controls.
func Classify(doc *goquery.Document, pageParam string) types.PaginationState {
	if pageParam == "" {
		pageParam = "page"
	}

	links := fmt.Sprintf(`a[href*="%s="], a[rel="next"]`, pageParam)
	if doc.Find(links).Length() > 0 || hasControl(doc, "button, a, span", "next") {
		return types.PaginationDiscrete
	}

	if doc.Find(`.infinite-scroll, [class*="infinite-scroll"]`).Length() > 0 ||
		hasControl(doc, "button, div", "load more", "loading") {
		return types.PaginationInfiniteScroll
	}

	if hasControl(doc, "a, button", "view all", "see all") {
		return types.PaginationViewAll
	}

	return types.PaginationUnknown
}
