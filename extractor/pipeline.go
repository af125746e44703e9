package extractor

import (
	"strings"

	"catalog-crawler/adapters"
	"catalog-crawler/internal/config"
	"catalog-crawler/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// Strategy names the extraction pass that produced a result
type Strategy string

const (
	StrategyNone       Strategy = "none"
	StrategyRowGrouped Strategy = "row-grouped"
	StrategyDescriptor Strategy = "descriptor"
	StrategyGeneric    Strategy = "generic"
)

const sampleSize = 3

// Candidate is a raw product pulled from a listing card. Title and price
// are always non-empty; URL is absolute or empty.
type Candidate struct {
	Title  string `json:"title"`
	Price  string `json:"price"`
	Rating string `json:"rating"`
	URL    string `json:"url"`
}

// Result is the output of one page extraction
type Result struct {
	Strategy   Strategy
	Candidates []Candidate
}

// Pipeline turns a rendered listing page into product candidates
type Pipeline struct {
	site    *adapters.SiteAdapter
	origin  string
	generic config.GenericRule
	logger  types.Logger
}

// NewPipeline creates a pipeline for the site
func NewPipeline(site *adapters.SiteAdapter, logger types.Logger) *Pipeline {
	return &Pipeline{
		site:    site,
		origin:  site.Origin(),
		generic: site.Profile().Generic,
		logger:  logger,
	}
}

// Extract tries the row-grouped, descriptor and generic strategies in
// order and returns the first non-empty result
func (p *Pipeline) Extract(doc *goquery.Document, desc types.ExtractionRuleDescriptor) Result {
	strategies := []struct {
		name Strategy
		run  func(*goquery.Document, types.ExtractionRuleDescriptor) []Candidate
	}{
		{StrategyRowGrouped, p.rowGrouped},
		{StrategyDescriptor, p.descriptor},
		{StrategyGeneric, p.genericPass},
	}

	for _, s := range strategies {
		candidates := s.run(doc, desc)
		if len(candidates) == 0 {
			continue
		}
		base := p.documentBase(doc)
		for i := range candidates {
			candidates[i].URL = adapters.ResolveURL(base, candidates[i].URL)
		}
		p.logSample(s.name, candidates)
		return Result{Strategy: s.name, Candidates: candidates}
	}

	return Result{Strategy: StrategyNone}
}

// documentBase returns the page's <base href> resolved against the site
// origin, or the origin when the page declares none
func (p *Pipeline) documentBase(doc *goquery.Document) string {
	href, err := p.site.ExtractAttribute(doc, "base[href]", "href")
	if err != nil {
		return p.origin
	}
	if base := adapters.ResolveURL(p.origin, href); base != "" {
		return base
	}
	return p.origin
}

// rowGrouped handles listings whose cards sit inside row containers
func (p *Pipeline) rowGrouped(doc *goquery.Document, desc types.ExtractionRuleDescriptor) []Candidate {
	if desc.RowSelector == "" {
		return nil
	}
	cardSelector := desc.FallbackCardSelector
	if cardSelector == "" {
		cardSelector = "div[data-id]"
	}

	var out []Candidate
	doc.Find(desc.RowSelector).Each(func(_ int, row *goquery.Selection) {
		row.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
			title := first(card, desc.TitleSelector)
			p.add(&out, title.Text(), first(card, desc.PriceSelector).Text(),
				first(card, desc.RatingSelector).Text(), title.AttrOr("href", ""))
		})
	})
	return out
}

// descriptor applies the descriptor's selectors directly
func (p *Pipeline) descriptor(doc *goquery.Document, desc types.ExtractionRuleDescriptor) []Candidate {
	if desc.CardSelector == "" {
		return nil
	}

	var out []Candidate
	doc.Find(desc.CardSelector).Each(func(_ int, card *goquery.Selection) {
		title := first(card, desc.TitleSelector)
		p.add(&out, title.Text(), first(card, desc.PriceSelector).Text(),
			first(card, desc.RatingSelector).Text(), cardLink(card, title, desc.IsSpecialCase))
	})
	return out
}

func cardLink(card, title *goquery.Selection, preferTitle bool) string {
	titleHref := title.AttrOr("href", "")
	if preferTitle && titleHref != "" {
		return titleHref
	}
	if href := card.AttrOr("href", ""); href != "" {
		return href
	}
	if titleHref != "" {
		return titleHref
	}
	return card.Find("a[href]").First().AttrOr("href", "")
}

// genericPass scans the broad card selector trying several known
// alternatives for each field
func (p *Pipeline) genericPass(doc *goquery.Document, _ types.ExtractionRuleDescriptor) []Candidate {
	if p.generic.Card == "" {
		return nil
	}
	titles := strings.Join(p.generic.Titles, ", ")
	prices := strings.Join(p.generic.Prices, ", ")
	ratings := strings.Join(p.generic.Ratings, ", ")

	var out []Candidate
	doc.Find(p.generic.Card).Each(func(_ int, card *goquery.Selection) {
		titleEl := first(card, titles)
		if titleEl.Length() == 0 {
			titleEl = card
		}
		title := adapters.CleanText(titleEl.Text())
		if title == "" {
			title = titleEl.AttrOr("title", "")
		}

		var href string
		if goquery.NodeName(titleEl) == "a" {
			href = titleEl.AttrOr("href", "")
		} else if p.generic.ProductLink != "" {
			href = card.Find(p.generic.ProductLink).First().AttrOr("href", "")
		}

		p.add(&out, title, first(card, prices).Text(), first(card, ratings).Text(), href)
	})
	return out
}

// add normalises a candidate and keeps it only if it has a title and a
// price. The link stays raw until Extract resolves it.
func (p *Pipeline) add(out *[]Candidate, title, price, rating, href string) {
	c := Candidate{
		Title:  adapters.CleanText(title),
		Price:  adapters.CleanText(price),
		Rating: adapters.CleanText(rating),
		URL:    adapters.CleanupRef(href),
	}
	if c.Title == "" || c.Price == "" {
		return
	}
	*out = append(*out, c)
}

func (p *Pipeline) logSample(strategy Strategy, candidates []Candidate) {
	n := len(candidates)
	if n > sampleSize {
		n = sampleSize
	}
	for _, c := range candidates[:n] {
		p.logger.Debugf("Sample product (%s): %s | %s | %s | %s", strategy, c.Title, c.Price, c.Rating, c.URL)
	}
}

func first(s *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return s.Slice(0, 0)
	}
	return s.Find(selector).First()
}
