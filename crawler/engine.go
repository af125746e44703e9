// Package crawler ties discovery, rule resolution, pagination, extraction
// and persistence together into category crawls.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"catalog-crawler/adapters"
	"catalog-crawler/cache"
	"catalog-crawler/discovery"
	"catalog-crawler/extractor"
	"catalog-crawler/internal/types"
	"catalog-crawler/metrics"
	"catalog-crawler/pagination"
	"catalog-crawler/rules"
	"catalog-crawler/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PageFactory opens a new render session. utils.BrowserClient.NewPage
// satisfies it.
type PageFactory func(ctx context.Context) (types.Page, error)

// Options configures an Engine
type Options struct {
	Site    *adapters.SiteAdapter
	Pages   PageFactory
	Store   storage.Store
	Cache   *cache.Store
	Metrics *metrics.Metrics
	Logger  logrus.FieldLogger

	// RunID tags every persisted record; a random one is generated if empty
	RunID string

	Sleeper pagination.Sleeper
	Oracles []pagination.ContinuationOracle
}

// Engine crawls categories of one site
type Engine struct {
	site       *adapters.SiteAdapter
	config     *types.Config
	pages      PageFactory
	agent      *discovery.Agent
	resolver   *rules.Resolver
	pipeline   *extractor.Pipeline
	handoff    *storage.Handoff
	controller *pagination.Controller
	traversal  *Traversal
	metrics    *metrics.Metrics
	logger     logrus.FieldLogger
	runID      string
	persistMu  sync.Mutex
}

// NewEngine wires the crawl components for opts.Site
func NewEngine(opts Options) (*Engine, error) {
	if opts.Site == nil {
		return nil, errors.New("site adapter is required")
	}
	if opts.Pages == nil {
		return nil, errors.New("page factory is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	log := opts.Logger
	resolver, err := rules.NewResolver(opts.Site, opts.Cache, opts.Metrics, log)
	if err != nil {
		return nil, err
	}

	cfg := opts.Site.Config()
	limiter := pagination.NewLimiter(cfg.RequestDelay)

	ctrlOpts := []pagination.Option{
		pagination.WithLimiter(limiter),
		pagination.WithMetrics(opts.Metrics),
	}
	if opts.Sleeper != nil {
		ctrlOpts = append(ctrlOpts, pagination.WithSleeper(opts.Sleeper))
	}
	if opts.Oracles != nil {
		ctrlOpts = append(ctrlOpts, pagination.WithOracles(opts.Oracles...))
	}

	return &Engine{
		site:       opts.Site,
		config:     cfg,
		pages:      opts.Pages,
		agent:      discovery.NewAgent(opts.Site, opts.Cache, log),
		resolver:   resolver,
		pipeline:   extractor.NewPipeline(opts.Site, log),
		handoff:    storage.NewHandoff(opts.Store, opts.RunID, opts.Metrics, log),
		controller: pagination.NewController(opts.Site, log, ctrlOpts...),
		traversal:  NewTraversal(opts.Site, opts.Cache, limiter, log),
		metrics:    opts.Metrics,
		logger:     log,
		runID:      opts.RunID,
	}, nil
}

// RunID returns the identifier attached to records written by this engine
func (e *Engine) RunID() string {
	return e.runID
}

// Discover loads the landing page and refreshes the category taxonomy
func (e *Engine) Discover(ctx context.Context) ([]types.CategoryNode, error) {
	page, err := e.pages(ctx)
	if err != nil {
		return nil, ErrSession{Err: err}
	}
	defer page.Close()

	return e.agent.Discover(ctx, page, "")
}

// Taxonomy returns the cached taxonomy, discovering it when the cache is
// empty or refresh is set
func (e *Engine) Taxonomy(ctx context.Context, refresh bool) ([]types.CategoryNode, error) {
	if !refresh {
		nodes, err := e.agent.Cached()
		if err != nil {
			e.logger.Warnf("Could not read cached taxonomy: %v", err)
		} else if len(nodes) > 0 {
			e.logger.Infof("Using %d cached categories", len(nodes))
			return nodes, nil
		}
	}
	return e.Discover(ctx)
}

// CrawlCategory crawls one top-level category and every leaf subcategory
// below it. TotalExtracted is the sum over the leaves.
func (e *Engine) CrawlCategory(ctx context.Context, url, name string) (types.CrawlResult, error) {
	result := types.CrawlResult{Category: name}

	if url == "" {
		err := fmt.Errorf("category %s has no url", name)
		result.Error = err.Error()
		return result, err
	}

	page, err := e.pages(ctx)
	if err != nil {
		err = ErrSession{Err: err}
		e.metrics.IncUnitError(errorKindLabel(err))
		result.Error = err.Error()
		return result, err
	}
	defer page.Close()

	node := types.CategoryNode{Name: name, URL: url, ParentCategory: e.site.ParentCategory(name)}
	return e.crawl(ctx, page, node)
}

func (e *Engine) crawl(ctx context.Context, page types.Page, node types.CategoryNode) (types.CrawlResult, error) {
	log := e.logger.WithField("category", node.Name)
	result := types.CrawlResult{Category: node.Name}

	log.Infof("=== Scraping category: %s ===", node.Name)

	units, err := e.traversal.Expand(ctx, page, node, 0, make(map[string]bool))
	if err != nil {
		e.metrics.IncUnitError(errorKindLabel(err))
		log.Errorf("Failed to open category %s: %v", node.Name, err)
		result.Error = err.Error()
		return result, err
	}

	var lastErr error
	failed := 0
	for i := range units {
		if err := ctx.Err(); err != nil {
			lastErr = err
			failed += len(units) - i
			break
		}
		summary, err := e.crawlUnit(ctx, page, &units[i])
		result.Units = append(result.Units, summary)
		result.TotalExtracted += summary.Extracted
		if err != nil {
			lastErr = err
			failed++
		}
	}

	e.persistSelectors()

	log.Infof("=== Total scraped for %s: %d products across %d units ===", node.Name, result.TotalExtracted, len(units))

	if failed == len(units) && lastErr != nil {
		result.Error = lastErr.Error()
		return result, lastErr
	}
	return result, nil
}

// crawlUnit paginates through one leaf. A navigation failure aborts only
// this unit; persistence failures are logged and the crawl continues.
func (e *Engine) crawlUnit(ctx context.Context, page types.Page, unit *types.CrawlUnit) (types.UnitSummary, error) {
	log := e.logger.WithFields(logrus.Fields{
		"category": unit.Name,
		"parent":   unit.Parent,
	})

	if rule, ok := e.resolver.Lookup(unit.Name); ok {
		unit.Rule = rule
	} else {
		unit.Rule = e.resolver.Generic()
	}

	resolved := false
	proc := pagination.ProcessorFunc(func(ctx context.Context, page types.Page, u *types.CrawlUnit) (int, error) {
		if !resolved {
			res := e.resolver.Resolve(ctx, page, u.Name)
			u.Rule = res.Descriptor
			resolved = true
			log.Debugf("Using %s selectors, card %q", res.Source, u.Rule.CardSelector)
		}

		doc, err := page.Snapshot(ctx)
		if err != nil {
			return 0, err
		}

		found := e.pipeline.Extract(doc, u.Rule)
		e.metrics.AddProducts(string(found.Strategy), len(found.Candidates))

		if _, err := e.handoff.Submit(ctx, u, found.Candidates); err != nil {
			perr := ErrPersistence{Err: err}
			e.metrics.IncUnitError(errorKindLabel(perr))
			log.Errorf("Error saving products: %v", perr)
		}
		return len(found.Candidates), nil
	})

	err := e.controller.Run(ctx, page, unit, proc, log)

	summary := types.UnitSummary{
		Name:      unit.Name,
		URL:       unit.URL,
		Parent:    unit.Parent,
		Pages:     unit.PagesVisited,
		Extracted: unit.TotalExtracted,
		Inserted:  unit.Inserted,
		Rejected:  unit.Rejected,
	}

	if err != nil {
		if ctx.Err() == nil {
			err = ErrNavigation{Err: err}
		}
		e.metrics.IncUnitError(errorKindLabel(err))
		summary.Error = err.Error()
		log.Errorf("Error scraping %s: %v", unit.Name, err)
		return summary, err
	}

	log.Infof("=== %s Scraping Complete === %d pages, %d products (%d saved, %d rejected)",
		unit.Name, summary.Pages, summary.Extracted, summary.Inserted, summary.Rejected)
	return summary, nil
}

func (e *Engine) persistSelectors() {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	if err := e.resolver.Persist(); err != nil {
		e.logger.Warnf("Failed to save learned selectors: %v", err)
	}
}

// Run crawls nodes with at most MaxConcurrentRequests sessions open. A
// failed category is recorded in its result and does not stop the others.
func (e *Engine) Run(ctx context.Context, nodes []types.CategoryNode) types.RunSummary {
	summary := types.RunSummary{
		RunID:     e.runID,
		StartedAt: time.Now().UTC(),
		Results:   make([]types.CrawlResult, len(nodes)),
	}

	limit := e.config.MaxConcurrentRequests
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, node := range nodes {
		g.Go(func() error {
			res, err := e.CrawlCategory(ctx, node.URL, node.Name)
			if err != nil {
				e.logger.WithField("category", node.Name).Errorf("Category crawl failed: %v", err)
			}
			summary.Results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(summary.StartedAt)

	total := 0
	for _, r := range summary.Results {
		total += r.TotalExtracted
	}
	e.logger.WithFields(logrus.Fields{
		"run_id":     e.runID,
		"categories": len(nodes),
		"duration":   summary.Duration.Round(time.Millisecond),
	}).Infof("Scraping completed, %d products extracted", total)

	return summary
}
