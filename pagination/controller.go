package pagination

import (
	"context"
	"fmt"
	"time"

	"catalog-crawler/adapters"
	"catalog-crawler/internal/types"
	"catalog-crawler/metrics"

	"golang.org/x/time/rate"
)

// State is a step of the per-unit pagination loop
type State int

const (
	StateFetchPage State = iota
	StateProbePattern
	StatePrepare
	StateExtractEntities
	StateEvaluateContinuation
	StateTerminate
)

func (s State) String() string {
	switch s {
	case StateFetchPage:
		return "fetch-page"
	case StateProbePattern:
		return "probe-pattern"
	case StatePrepare:
		return "prepare"
	case StateExtractEntities:
		return "extract-entities"
	case StateEvaluateContinuation:
		return "evaluate-continuation"
	default:
		return "terminate"
	}
}

// Processor extracts and hands off the entities of the loaded page and
// returns how many were extracted
type Processor interface {
	ProcessPage(ctx context.Context, page types.Page, unit *types.CrawlUnit) (int, error)
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, page types.Page, unit *types.CrawlUnit) (int, error)

func (f ProcessorFunc) ProcessPage(ctx context.Context, page types.Page, unit *types.CrawlUnit) (int, error) {
	return f(ctx, page, unit)
}

// Controller runs the pagination state machine. One controller is shared
// by every unit of a site so its limiter spaces all page fetches.
type Controller struct {
	site     *adapters.SiteAdapter
	config   *types.Config
	limiter  *rate.Limiter
	scroller *ScrollDriver
	oracles  []ContinuationOracle
	sleep    Sleeper
	metrics  *metrics.Metrics
	logger   types.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithSleeper replaces the real-time sleeper used between scrolls
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleep = s }
}

// WithOracles replaces the continuation oracle chain
func WithOracles(oracles ...ContinuationOracle) Option {
	return func(c *Controller) { c.oracles = oracles }
}

// WithLimiter shares an existing politeness limiter
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Controller) { c.limiter = l }
}

// WithMetrics records page metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewLimiter allows one page fetch per delay
func NewLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// NewController creates a pagination controller for site
func NewController(site *adapters.SiteAdapter, logger types.Logger, opts ...Option) *Controller {
	c := &Controller{
		site:    site,
		config:  site.Config(),
		oracles: DefaultOracles(),
		sleep:   Sleep,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewLimiter(c.config.RequestDelay)
	}
	c.scroller = NewScrollDriver(c.config, c.sleep, logger)
	return c
}

// Run drives unit from its first page until the continuation oracles say
// stop, a later page comes back empty, or MaxPages is exceeded. Only a
// failed page load is returned as an error; it aborts the unit.
func (c *Controller) Run(ctx context.Context, page types.Page, unit *types.CrawlUnit, proc Processor, log types.Logger) error {
	if log == nil {
		log = c.logger
	}

	var (
		extracted int
		started   time.Time
	)

	unit.CurrentPage = 1
	state := StateFetchPage

	for state != StateTerminate {
		switch state {
		case StateFetchPage:
			if unit.CurrentPage > c.config.MaxPages {
				log.Infof("Reached the page limit (%d)", c.config.MaxPages)
				state = StateTerminate
				continue
			}
			started = time.Now()
			if err := c.fetch(ctx, page, unit, log); err != nil {
				return err
			}
			state = StateProbePattern

		case StateProbePattern:
			unit.State = c.probe(ctx, page, log)
			c.metrics.IncPage(unit.State.String())
			state = StatePrepare

		case StatePrepare:
			c.prepare(ctx, page, unit, log)
			state = StateExtractEntities

		case StateExtractEntities:
			n, err := proc.ProcessPage(ctx, page, unit)
			if err != nil {
				log.Warnf("Extraction failed on page %d: %v", unit.CurrentPage, err)
				n = 0
			}
			extracted = n
			unit.TotalExtracted += n
			unit.PagesVisited++
			log.Infof("Scraped %d products from page %d of %s", n, unit.CurrentPage, unit.Name)
			state = StateEvaluateContinuation

		case StateEvaluateContinuation:
			hasNext := c.evaluate(ctx, page, unit, extracted, log)
			c.metrics.ObservePage(time.Since(started))
			if !hasNext {
				state = StateTerminate
				continue
			}
			unit.CurrentPage++
			state = StateFetchPage
		}
	}

	return nil
}

func (c *Controller) fetch(ctx context.Context, page types.Page, unit *types.CrawlUnit, log types.Logger) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	pageURL := c.site.PageURL(unit.URL, unit.CurrentPage)
	log.Infof("Navigating to %s", pageURL)
	if err := page.Navigate(ctx, pageURL, c.config.Timeout); err != nil {
		return fmt.Errorf("failed to load page %d of %s: %w", unit.CurrentPage, unit.Name, err)
	}

	c.site.DismissPopup(ctx, page)
	return nil
}

func (c *Controller) probe(ctx context.Context, page types.Page, log types.Logger) types.PaginationState {
	doc, err := page.Snapshot(ctx)
	if err != nil {
		log.Debugf("Could not read page for pagination probe: %v", err)
		return types.PaginationUnknown
	}
	state := Classify(doc, c.site.Profile().PageParam)
	log.Debugf("Pagination type detected: %s", state)
	return state
}

func (c *Controller) prepare(ctx context.Context, page types.Page, unit *types.CrawlUnit, log types.Logger) {
	if unit.State == types.PaginationInfiniteScroll {
		selector := unit.Rule.FallbackCardSelector
		if selector == "" {
			selector = unit.Rule.CardSelector
		}
		n := c.scroller.Run(ctx, page, selector)
		log.Debugf("Infinite scroll finished after %d scrolls", n)
		return
	}

	rounds := LazyLoad(ctx, page, c.config.MaxLazyLoadRounds, c.config.LazyLoadDelay, c.sleep)
	log.Debugf("Lazy loading finished after %d rounds", rounds)
}

// evaluate decides whether to fetch another page. An empty first page is
// tolerated once; an empty later page ends the unit regardless of the
// oracles.
func (c *Controller) evaluate(ctx context.Context, page types.Page, unit *types.CrawlUnit, extracted int, log types.Logger) bool {
	if extracted == 0 {
		unit.ConsecutiveEmptyPages++
		if unit.CurrentPage > 1 {
			log.Infof("No products found on page %d, stopping pagination", unit.CurrentPage)
			return false
		}
		log.Infof("No products found on page %d, trying the next page", unit.CurrentPage)
		return true
	}
	unit.ConsecutiveEmptyPages = 0

	sig := Signal{
		PageParam: c.site.Profile().PageParam,
		Page:      unit.CurrentPage,
		Extracted: extracted,
	}
	if doc, err := page.Snapshot(ctx); err == nil {
		sig.Doc = doc
	} else {
		log.Debugf("Could not read page for continuation check: %v", err)
	}
	if loc, err := page.Location(ctx); err == nil {
		sig.URL = loc
	}

	hasNext, by := HasNext(c.oracles, sig)
	log.Infof("Page %d completed. Has next page: %v (%s)", unit.CurrentPage, hasNext, by)
	return hasNext
}
