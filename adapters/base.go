package adapters

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"catalog-crawler/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// BaseAdapter provides the DOM and URL helpers shared by every site adapter
// and by the discovery, extraction and traversal heuristics.
type BaseAdapter struct {
	logger types.Logger
}

// NewBaseAdapter creates a new base adapter
func NewBaseAdapter(logger types.Logger) *BaseAdapter {
	return &BaseAdapter{logger: logger}
}

// ParseHTML parses HTML content into a goquery document
func (b *BaseAdapter) ParseHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ExtractText returns the collapsed text of the first element matching selector
func (b *BaseAdapter) ExtractText(doc *goquery.Document, selector string) (string, error) {
	element := doc.Find(selector).First()
	if element.Length() == 0 {
		return "", fmt.Errorf("element not found with selector: %s", selector)
	}

	return CleanText(element.Text()), nil
}

// ExtractAttribute extracts an attribute value using a CSS selector
func (b *BaseAdapter) ExtractAttribute(doc *goquery.Document, selector string, attribute string) (string, error) {
	element := doc.Find(selector).First()
	if element.Length() == 0 {
		return "", fmt.Errorf("element not found with selector: %s", selector)
	}

	value, exists := element.Attr(attribute)
	if !exists {
		return "", fmt.Errorf("attribute %s not found on element %s", attribute, selector)
	}

	return strings.TrimSpace(value), nil
}

// RemoveDuplicateURLs removes duplicate URLs, keeping the first occurrence
func (b *BaseAdapter) RemoveDuplicateURLs(urls []string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			result = append(result, u)
		}
	}

	return result
}

// CleanText collapses runs of whitespace and trims the result, approximating
// what a browser reports as an element's rendered text
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most max runes and trims trailing whitespace
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}

// CleanupRef strips stray formatting characters (backticks) left in
// scraped or hand-edited links and trims surrounding whitespace
func CleanupRef(ref string) string {
	return strings.TrimSpace(strings.ReplaceAll(ref, "`", ""))
}

// ResolveURL resolves href against origin and returns an absolute http(s)
// URL, or "" when href is empty or cannot be resolved
func ResolveURL(origin, href string) string {
	href = CleanupRef(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		if IsAbsoluteURL(ref.String()) {
			return ref.String()
		}
		return ""
	}

	base, err := url.Parse(origin)
	if err != nil || !base.IsAbs() {
		return ""
	}

	return base.ResolveReference(ref).String()
}

// IsAbsoluteURL reports whether raw is an absolute http or https URL with a host
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// LayoutInt reads one of the integer data-layout-* attributes stamped on
// elements by browser snapshots. ok is false when the attribute is absent.
func LayoutInt(s *goquery.Selection, attr string) (int, bool) {
	v, exists := s.Attr(attr)
	if !exists {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsHidden reports whether a browser snapshot marked the element as not rendered
func IsHidden(s *goquery.Selection) bool {
	v, _ := s.Attr("data-layout-hidden")
	return v == "1"
}

// ImageSource returns the rendered source of an image, preferring the
// snapshot's resolved source over the raw attribute
func ImageSource(img *goquery.Selection) string {
	if src, ok := img.Attr("data-layout-src"); ok && src != "" {
		return src
	}
	if src, ok := img.Attr("src"); ok {
		return src
	}
	src, _ := img.Attr("data-src")
	return src
}
