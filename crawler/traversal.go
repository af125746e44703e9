package crawler

import (
	"context"

	"catalog-crawler/adapters"
	"catalog-crawler/cache"
	"catalog-crawler/internal/types"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const maxSubcategoryName = 50

// Traversal expands a category into the leaf crawl units below it
type Traversal struct {
	site     *adapters.SiteAdapter
	cache    *cache.Store
	limiter  *rate.Limiter
	maxDepth int
	refresh  bool
	logger   types.Logger
}

// NewTraversal creates a traversal. store may be nil to disable the
// subcategory cache.
func NewTraversal(site *adapters.SiteAdapter, store *cache.Store, limiter *rate.Limiter, logger types.Logger) *Traversal {
	cfg := site.Config()
	return &Traversal{
		site:     site,
		cache:    store,
		limiter:  limiter,
		maxDepth: cfg.MaxDepth,
		refresh:  cfg.RefreshSubcategories,
		logger:   logger,
	}
}

// Expand returns the crawl units for node. A category without
// subcategories is its own single unit. visited guards against cycles in
// the subcategory mapping; depth counts levels below the top category.
func (t *Traversal) Expand(ctx context.Context, page types.Page, node types.CategoryNode, depth int, visited map[string]bool) ([]types.CrawlUnit, error) {
	if visited[node.Name] {
		return nil, nil
	}
	visited[node.Name] = true

	self := []types.CrawlUnit{t.unit(node)}
	if depth >= t.maxDepth || node.URL == "" {
		return self, nil
	}

	links, err := t.subcategories(ctx, page, node)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return self, nil
	}

	t.logger.Infof("Found %d subcategories for %s", len(links), node.Name)

	var units []types.CrawlUnit
	for _, link := range links {
		child := types.CategoryNode{
			Name:           link.Name,
			URL:            link.URL,
			ParentCategory: t.parentOf(link.Name, node.Name),
		}
		sub, err := t.Expand(ctx, page, child, depth+1, visited)
		if err != nil {
			t.logger.Warnf("Could not expand subcategory %s: %v", link.Name, err)
			sub = []types.CrawlUnit{t.unit(child)}
		}
		units = append(units, sub...)
	}

	if len(units) == 0 {
		return self, nil
	}
	return units, nil
}

func (t *Traversal) unit(node types.CategoryNode) types.CrawlUnit {
	parent := node.ParentCategory
	if parent == "" {
		parent = t.site.ParentCategory(node.Name)
	}
	return types.CrawlUnit{Name: node.Name, URL: node.URL, Parent: parent}
}

// parentOf keeps the static taxonomy parent when the subcategory is mapped
// and otherwise files it under the category it was found on
func (t *Traversal) parentOf(name, expandedFrom string) string {
	if t.site.IsMapped(name) {
		return t.site.ParentCategory(name)
	}
	return expandedFrom
}

func (t *Traversal) subcategories(ctx context.Context, page types.Page, node types.CategoryNode) ([]types.SubcategoryLink, error) {
	if t.cache != nil && !t.refresh {
		mapping, err := t.cache.Subcategories()
		if err != nil {
			t.logger.Warnf("Ignoring subcategory cache: %v", err)
		} else if links, ok := mapping[node.Name]; ok {
			t.logger.Debugf("Using %d cached subcategories for %s", len(links), node.Name)
			return links, nil
		}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := page.Navigate(ctx, node.URL, t.site.Config().Timeout); err != nil {
		return nil, ErrNavigation{Err: err}
	}
	t.site.DismissPopup(ctx, page)

	doc, err := page.Snapshot(ctx)
	if err != nil {
		t.logger.Warnf("Could not read %s for subcategories: %v", node.Name, err)
		return nil, nil
	}

	links := ExtractSubcategories(t.site, doc, node)
	if t.cache != nil {
		if err := t.cache.SaveSubcategories(node.Name, links); err != nil {
			t.logger.Warnf("Failed to save subcategories for %s: %v", node.Name, err)
		}
	}
	return links, nil
}

// ExtractSubcategories finds subcategory links with the site's primary
// selector, falling back to the attribute-based selector. Links back to the
// category itself and duplicates are dropped.
func ExtractSubcategories(site *adapters.SiteAdapter, doc *goquery.Document, self types.CategoryNode) []types.SubcategoryLink {
	sel := site.Profile().Subcategory
	for _, selector := range []string{sel.Primary, sel.Fallback} {
		if selector == "" {
			continue
		}
		if links := collectLinks(site, doc.Find(selector), self); len(links) > 0 {
			return links
		}
	}
	return []types.SubcategoryLink{}
}

// collectLinks keeps the first name seen for each URL, then drops repeated
// URLs and names in document order
func collectLinks(site *adapters.SiteAdapter, sel *goquery.Selection, self types.CategoryNode) []types.SubcategoryLink {
	var urls []string
	names := make(map[string]string)

	sel.Each(func(_ int, s *goquery.Selection) {
		name := adapters.CleanText(s.Text())
		if name == "" {
			name = adapters.CleanText(s.AttrOr("title", s.AttrOr("aria-label", "")))
		}
		name = adapters.Truncate(name, maxSubcategoryName)
		link := adapters.ResolveURL(site.Origin(), s.AttrOr("href", ""))

		if name == "" || link == "" || name == self.Name || link == self.URL {
			return
		}
		if _, ok := names[link]; !ok {
			names[link] = name
		}
		urls = append(urls, link)
	})

	var links []types.SubcategoryLink
	seenName := make(map[string]bool)
	for _, link := range site.RemoveDuplicateURLs(urls) {
		name := names[link]
		if seenName[name] {
			continue
		}
		seenName[name] = true
		links = append(links, types.SubcategoryLink{Name: name, URL: link})
	}
	return links
}
