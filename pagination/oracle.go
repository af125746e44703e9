package pagination

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"catalog-crawler/adapters"

	"github.com/PuerkitoBio/goquery"
)

// Verdict is a continuation oracle's answer
type Verdict int

const (
	Unknown Verdict = iota
	Yes
	No
)

func (v Verdict) String() string {
	switch v {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

// Signal is what the oracles see after a page has been extracted
type Signal struct {
	Doc       *goquery.Document
	URL       string
	PageParam string
	Page      int
	Extracted int
}

// ContinuationOracle decides whether more pages remain. Unknown defers to
// the next oracle in the chain.
type ContinuationOracle interface {
	Name() string
	Evaluate(sig Signal) Verdict
}

// DefaultOracles returns the chain in evaluation order
func DefaultOracles() []ContinuationOracle {
	return []ContinuationOracle{
		NextControlOracle{},
		NextTextOracle{},
		PageCountOracle{},
		URLPageOracle{},
	}
}

// HasNext runs the oracle chain. The first decisive verdict wins; a chain
// that never decides means no further pages.
func HasNext(oracles []ContinuationOracle, sig Signal) (bool, string) {
	for _, o := range oracles {
		switch o.Evaluate(sig) {
		case Yes:
			return true, o.Name()
		case No:
			return false, o.Name()
		}
	}
	return false, ""
}

var defaultNextSelectors = []string{
	`a._1LKTO3[rel="next"]`,
	`a[rel="next"]`,
	`a[aria-label="Next"]`,
}

// NextControlOracle looks for a visible next-page link. Without explicit
// selectors it also accepts any link carrying the signal's page parameter.
type NextControlOracle struct {
	Selectors []string
}

func (NextControlOracle) Name() string { return "next-control" }

func (o NextControlOracle) Evaluate(sig Signal) Verdict {
	if sig.Doc == nil {
		return Unknown
	}
	selectors := o.Selectors
	if len(selectors) == 0 {
		param := sig.PageParam
		if param == "" {
			param = "page"
		}
		selectors = append(append([]string(nil), defaultNextSelectors...), fmt.Sprintf(`a[href*="%s="]`, param))
	}
	for _, selector := range selectors {
		visible := sig.Doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return !adapters.IsHidden(s)
		})
		if visible.Length() > 0 {
			return Yes
		}
	}
	return Unknown
}

// NextTextOracle looks for a visible short control labelled "next"
type NextTextOracle struct{}

func (NextTextOracle) Name() string { return "next-text" }

func (NextTextOracle) Evaluate(sig Signal) Verdict {
	if sig.Doc == nil {
		return Unknown
	}
	found := false
	sig.Doc.Find("a, button, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !adapters.IsHidden(s) && strings.Contains(controlText(s), "next") {
			found = true
		}
		return !found
	})
	if found {
		return Yes
	}
	return Unknown
}

var (
	pageOfPattern  = regexp.MustCompile(`(?i)page\s+(\d+)\s+of\s+(\d[\d,]*)`)
	showingPattern = regexp.MustCompile(`(?i)showing\s+(\d[\d,]*)\s*[-–]\s*(\d[\d,]*)\s+of\s+(\d[\d,]*)`)
	pageCntPattern = regexp.MustCompile(`(?i)(\d[\d,]*)\s+pages?\b`)
	pageNumPattern = regexp.MustCompile(`(?i)\bpage\s+(\d+)`)
)

// PageCountOracle reads "Page X of Y", "Showing A–B of N" and "N pages"
// texts
type PageCountOracle struct{}

func (PageCountOracle) Name() string { return "page-count" }

func (PageCountOracle) Evaluate(sig Signal) Verdict {
	if sig.Doc == nil {
		return Unknown
	}
	text := adapters.CleanText(sig.Doc.Find("body").Text())

	if m := pageOfPattern.FindStringSubmatch(text); m != nil {
		return verdict(number(m[1]) < number(m[2]))
	}
	if m := showingPattern.FindStringSubmatch(text); m != nil {
		return verdict(number(m[2]) < number(m[3]))
	}
	if m := pageCntPattern.FindStringSubmatch(text); m != nil {
		current := sig.Page
		if p := pageNumPattern.FindStringSubmatch(text); p != nil {
			current = number(p[1])
		}
		if current <= 0 {
			current = 1
		}
		return verdict(current < number(m[1]))
	}
	return Unknown
}

// URLPageOracle assumes more pages only on page 1 of a listing that
// yielded entities
type URLPageOracle struct{}

func (URLPageOracle) Name() string { return "url-page" }

func (URLPageOracle) Evaluate(sig Signal) Verdict {
	u, err := url.Parse(sig.URL)
	if err != nil {
		return Unknown
	}
	param := sig.PageParam
	if param == "" {
		param = "page"
	}
	raw := u.Query().Get(param)
	if raw == "" {
		return Unknown
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return Unknown
	}
	return verdict(n == 1 && sig.Extracted > 0)
}

func verdict(b bool) Verdict {
	if b {
		return Yes
	}
	return No
}

func number(s string) int {
	n, _ := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	return n
}
