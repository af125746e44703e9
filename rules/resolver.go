// Package rules resolves the extraction rule descriptor used for a crawl
// unit: configured selectors first, then a learned or dynamically
// discovered card selector when the configured one does not materialise.
package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalog-crawler/adapters"
	"catalog-crawler/cache"
	"catalog-crawler/internal/types"
	"catalog-crawler/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCardSelector is used when no discovery candidate qualifies
const DefaultCardSelector = "div[data-id]"

const learnedCacheSize = 256

// Source tells where a resolved descriptor came from
type Source string

const (
	SourceConfigured Source = "configured"
	SourceGeneric    Source = "generic"
	SourceSpecial    Source = "special-case"
	SourceLearned    Source = "learned"
	SourceDiscovered Source = "discovered"
)

// Resolution is the descriptor chosen for one crawl unit
type Resolution struct {
	Descriptor types.ExtractionRuleDescriptor
	Source     Source
}

// Resolver maps category names to extraction rule descriptors
type Resolver struct {
	rules           map[string]types.ExtractionRuleDescriptor
	generic         types.ExtractionRuleDescriptor
	candidates      []string
	defaultSelector string
	probeTimeout    time.Duration
	minCards        int

	learned *lru.Cache[string, types.ExtractionRuleDescriptor]
	store   *cache.Store
	metrics *metrics.Metrics
	logger  types.Logger
}

// NewResolver builds a resolver from the site profile. Selectors learned by
// earlier runs are loaded from store when it is non-nil.
func NewResolver(site *adapters.SiteAdapter, store *cache.Store, m *metrics.Metrics, logger types.Logger) (*Resolver, error) {
	profile := site.Profile()
	cfg := site.Config()

	rules := make(map[string]types.ExtractionRuleDescriptor, len(profile.Rules))
	for name, desc := range profile.Rules {
		rules[name] = desc
	}

	defaultSelector := profile.Generic.Card
	if defaultSelector == "" {
		defaultSelector = DefaultCardSelector
	}

	learned, err := lru.New[string, types.ExtractionRuleDescriptor](learnedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create selector cache: %w", err)
	}

	r := &Resolver{
		rules: rules,
		generic: types.ExtractionRuleDescriptor{
			CardSelector:         defaultSelector,
			TitleSelector:        strings.Join(profile.Generic.Titles, ", "),
			PriceSelector:        strings.Join(profile.Generic.Prices, ", "),
			RatingSelector:       strings.Join(profile.Generic.Ratings, ", "),
			FallbackCardSelector: defaultSelector,
		},
		candidates:      append([]string(nil), profile.CardCandidates...),
		defaultSelector: defaultSelector,
		probeTimeout:    cfg.ProbeTimeout,
		minCards:        cfg.MinCards,
		learned:         learned,
		store:           store,
		metrics:         m,
		logger:          logger,
	}

	if store != nil {
		cached, err := store.Selectors()
		if err != nil {
			logger.Warnf("Ignoring selector cache: %v", err)
		}
		for name, desc := range cached {
			if desc.CardSelector != "" {
				learned.Add(name, desc)
			}
		}
	}

	return r, nil
}

// Lookup returns the configured descriptor for a category. ok is false for
// unconfigured categories; callers then use Generic.
func (r *Resolver) Lookup(name string) (types.ExtractionRuleDescriptor, bool) {
	desc, ok := r.rules[name]
	return desc, ok
}

// Generic returns the safe descriptor for unconfigured categories
func (r *Resolver) Generic() types.ExtractionRuleDescriptor {
	return r.generic
}

// Resolve probes the descriptor's card selector on the loaded page and
// falls back to a learned or discovered selector when it does not appear.
// Special-case descriptors are never replaced.
func (r *Resolver) Resolve(ctx context.Context, page types.Page, name string) Resolution {
	desc, ok := r.Lookup(name)
	source := SourceConfigured
	if !ok {
		desc = r.Generic()
		source = SourceGeneric
	}

	err := page.WaitForSelector(ctx, desc.CardSelector, r.probeTimeout)
	if err == nil {
		return Resolution{Descriptor: desc, Source: source}
	}

	if desc.IsSpecialCase {
		r.logger.Debugf("Selector %s not found for special case %s, keeping it", desc.CardSelector, name)
		return Resolution{Descriptor: desc, Source: SourceSpecial}
	}

	r.logger.Warnf("Selector %s not found for %s, trying alternatives", desc.CardSelector, name)

	if learned, ok := r.learned.Get(name); ok && learned.CardSelector != desc.CardSelector {
		if n, err := page.Count(ctx, learned.CardSelector); err == nil && n > r.minCards {
			r.logger.Infof("Using learned selector %s for %s (%d matches)", learned.CardSelector, name, n)
			r.metrics.IncFallback(string(SourceLearned))
			return Resolution{Descriptor: learned, Source: SourceLearned}
		}
	}

	resolved := desc
	selector, found := r.DiscoverCardSelector(ctx, page)
	resolved.CardSelector = selector
	r.metrics.IncFallback(string(SourceDiscovered))
	if !found {
		r.logger.Warnf("No card candidate matched more than %d elements for %s, using default %s", r.minCards, name, selector)
		return Resolution{Descriptor: resolved, Source: SourceDiscovered}
	}
	r.learned.Add(name, resolved)
	r.logger.Infof("Using discovered selector %s for %s", resolved.CardSelector, name)

	return Resolution{Descriptor: resolved, Source: SourceDiscovered}
}

// DiscoverCardSelector counts every card candidate on the page and returns
// the best one. found is false when no candidate qualified and the default
// selector was returned.
func (r *Resolver) DiscoverCardSelector(ctx context.Context, page types.Page) (selector string, found bool) {
	counts := make([]int, len(r.candidates))
	for i, candidate := range r.candidates {
		n, err := page.Count(ctx, candidate)
		if err != nil {
			r.logger.Debugf("Counting %s failed: %v", candidate, err)
			continue
		}
		counts[i] = n
		r.logger.Debugf("Selector %s: %d elements", candidate, n)
	}
	best := bestIndex(counts, r.candidates, r.minCards)
	if best < 0 {
		return r.defaultSelector, false
	}
	return r.candidates[best], true
}

// BestCandidate returns the candidate with the highest count strictly above
// minCount. Ties keep the earlier candidate. def is returned when none qualify.
func BestCandidate(counts []int, candidates []string, minCount int, def string) string {
	best := bestIndex(counts, candidates, minCount)
	if best < 0 {
		return def
	}
	return candidates[best]
}

func bestIndex(counts []int, candidates []string, minCount int) int {
	best := -1
	bestCount := minCount
	for i := range candidates {
		if i >= len(counts) {
			break
		}
		if counts[i] > bestCount {
			best = i
			bestCount = counts[i]
		}
	}
	return best
}

// Persist writes the learned descriptors to the selector cache
func (r *Resolver) Persist() error {
	if r.store == nil {
		return nil
	}
	out := make(map[string]types.ExtractionRuleDescriptor, r.learned.Len())
	for _, name := range r.learned.Keys() {
		if desc, ok := r.learned.Peek(name); ok {
			out[name] = desc
		}
	}
	return r.store.SaveSelectors(out)
}
