// Package discovery extracts the site-wide category taxonomy from a landing
// page using layered heuristics.
package discovery

import (
	"context"
	"fmt"
	"sort"

	"catalog-crawler/adapters"
	"catalog-crawler/cache"
	"catalog-crawler/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// Agent runs the discovery strategies in priority order
type Agent struct {
	site       *adapters.SiteAdapter
	cache      *cache.Store
	logger     types.Logger
	strategies []Strategy
	minCount   int
}

// NewAgent creates a discovery agent for site. store may be nil, in which
// case the taxonomy is not persisted.
func NewAgent(site *adapters.SiteAdapter, store *cache.Store, logger types.Logger) *Agent {
	profile := site.Profile()
	builder := nodeBuilder{origin: site.Origin(), label: profile.CategoryLabel}

	minCount := site.Config().MinCategories
	if minCount <= 0 {
		minCount = types.DefaultConfig().MinCategories
	}

	return &Agent{
		site:     site,
		cache:    store,
		logger:   logger,
		minCount: minCount,
		strategies: []Strategy{
			horizontalRail{builder},
			knownRail{nodeBuilder: builder, selectors: profile.CategoryRails},
			navigationCards{nodeBuilder: builder, min: minCount},
			imageContext{builder},
			navScan{builder},
		},
	}
}

// Strategies returns the strategies in the order they are tried
func (a *Agent) Strategies() []Strategy {
	return append([]Strategy(nil), a.strategies...)
}

// Extract runs the strategies against doc. A strategy is tried only while
// fewer than the minimum number of unique categories has been collected.
func (a *Agent) Extract(doc *goquery.Document) []types.CategoryNode {
	var nodes []types.CategoryNode
	seen := make(map[string]bool)

	for _, strategy := range a.strategies {
		if len(nodes) >= a.minCount {
			break
		}
		found := strategy.Find(doc)
		added := 0
		for _, node := range found {
			if node.Name == "" || seen[node.Name] {
				continue
			}
			seen[node.Name] = true
			nodes = append(nodes, node)
			added++
		}
		a.logger.Debugf("Strategy %s found %d categories (%d new)", strategy.Name(), len(found), added)
	}

	return a.finalize(nodes)
}

// finalize fills links from the fallback dictionary, normalises references
// and derives the parent category
func (a *Agent) finalize(nodes []types.CategoryNode) []types.CategoryNode {
	for i := range nodes {
		node := &nodes[i]
		if fb, ok := a.site.FallbackCategory(node.Name); ok {
			if node.URL == "" {
				node.URL = fb.URL
			}
			if node.ImageRef == "" {
				node.ImageRef = fb.ImageRef
			}
		}

		node.URL = adapters.CleanupRef(node.URL)
		if !adapters.IsAbsoluteURL(node.URL) {
			node.URL = ""
		}
		node.ImageRef = adapters.CleanupRef(node.ImageRef)
		node.ParentCategory = a.site.ParentCategory(node.Name)
	}
	return nodes
}

// Discover loads the landing page, extracts the taxonomy and overwrites the
// taxonomy cache. Finding nothing is reported, not returned as an error.
func (a *Agent) Discover(ctx context.Context, page types.Page, landingURL string) ([]types.CategoryNode, error) {
	if landingURL == "" {
		landingURL = a.site.LandingURL()
	}

	a.logger.Infof("Discovering categories from %s", landingURL)
	if err := page.Navigate(ctx, landingURL, a.site.Config().Timeout); err != nil {
		return nil, fmt.Errorf("failed to load landing page %s: %w", landingURL, err)
	}
	a.site.DismissPopup(ctx, page)

	doc, err := page.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read landing page: %w", err)
	}

	nodes := a.Extract(doc)
	if len(nodes) == 0 {
		a.logger.Warn("No categories found on the landing page")
	} else {
		a.logger.Infof("Discovered %d categories", len(nodes))
	}

	if a.cache != nil {
		if err := a.cache.SaveTaxonomy(nodes); err != nil {
			a.logger.Warnf("Failed to save taxonomy: %v", err)
		}
	}
	return nodes, nil
}

// Cached returns the last saved taxonomy snapshot in discovery order.
// Entries with equal positions are ordered by name.
func (a *Agent) Cached() ([]types.CategoryNode, error) {
	if a.cache == nil {
		return nil, nil
	}
	entries, err := a.cache.Taxonomy()
	if err != nil {
		return nil, err
	}

	nodes := make([]types.CategoryNode, 0, len(entries))
	for name, entry := range entries {
		nodes = append(nodes, types.CategoryNode{
			Name:           name,
			URL:            entry.URL,
			ImageRef:       entry.Img,
			ParentCategory: a.site.ParentCategory(name),
		})
	}
	sort.Slice(nodes, func(i, j int) bool {
		pi, pj := entries[nodes[i].Name].Position, entries[nodes[j].Name].Position
		if pi != pj {
			return pi < pj
		}
		return nodes[i].Name < nodes[j].Name
	})
	return nodes, nil
}
