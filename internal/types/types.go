package types

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// OtherCategory is the parent assigned to categories missing from the static taxonomy
const OtherCategory = "Other"

// CategoryNode represents one entry of the discovered category taxonomy.
// An empty URL means the category link has not been resolved yet.
type CategoryNode struct {
	Name           string `json:"name"`
	URL            string `json:"url,omitempty"`
	ImageRef       string `json:"img,omitempty"`
	ParentCategory string `json:"parent_category,omitempty"`
}

// ExtractionRuleDescriptor holds the selectors used to locate listing cards
// and their title/price/rating sub-elements for one category
type ExtractionRuleDescriptor struct {
	CardSelector         string `json:"card" yaml:"card"`
	TitleSelector        string `json:"title" yaml:"title"`
	PriceSelector        string `json:"price" yaml:"price"`
	RatingSelector       string `json:"rating" yaml:"rating"`
	FallbackCardSelector string `json:"fallback_card,omitempty" yaml:"fallback_card,omitempty"`
	// RowSelector marks categories whose cards sit inside intermediate row containers
	RowSelector   string `json:"row,omitempty" yaml:"row,omitempty"`
	IsSpecialCase bool   `json:"special_case,omitempty" yaml:"special_case,omitempty"`
}

// PaginationState describes how a listing page exposes further results
type PaginationState int

const (
	PaginationUnknown PaginationState = iota
	PaginationDiscrete
	PaginationInfiniteScroll
	PaginationViewAll
)

// String returns the label used in logs and metrics
func (p PaginationState) String() string {
	switch p {
	case PaginationDiscrete:
		return "discrete"
	case PaginationInfiniteScroll:
		return "infinite-scroll"
	case PaginationViewAll:
		return "view-all"
	default:
		return "unknown"
	}
}

// CrawlUnit is one category or subcategory traversed from its first page
// until the pagination loop terminates
type CrawlUnit struct {
	Name                  string
	URL                   string
	Parent                string
	Rule                  ExtractionRuleDescriptor
	State                 PaginationState
	CurrentPage           int
	ConsecutiveEmptyPages int
	PagesVisited          int
	TotalExtracted        int
	Inserted              int
	Rejected              int
}

// ProductRecord is a validated entity handed to the persistent store
type ProductRecord struct {
	Title          string    `json:"title" bson:"title"`
	Price          string    `json:"price" bson:"price"`
	Rating         string    `json:"rating" bson:"rating"`
	URL            string    `json:"url" bson:"url"`
	Category       string    `json:"category" bson:"category"`
	ParentCategory string    `json:"parent_category" bson:"parentCategory"`
	ScrapedAt      time.Time `json:"scraped_at" bson:"scrapedAt"`
	RunID          string    `json:"run_id,omitempty" bson:"runId,omitempty"`
}

// SubcategoryLink is a discovered child of a top-level category
type SubcategoryLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SubcategoryMapping maps a category name to its discovered subcategories.
// A missing key means "not yet discovered"; an empty slice means "none".
type SubcategoryMapping map[string][]SubcategoryLink

// UnitSummary reports the outcome of a single crawl unit
type UnitSummary struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Parent    string `json:"parent,omitempty"`
	Pages     int    `json:"pages"`
	Extracted int    `json:"extracted"`
	Inserted  int    `json:"inserted"`
	Rejected  int    `json:"rejected"`
	Error     string `json:"error,omitempty"`
}

// CrawlResult aggregates every leaf unit crawled for one top-level category
type CrawlResult struct {
	Category       string        `json:"category"`
	TotalExtracted int           `json:"total_extracted"`
	Units          []UnitSummary `json:"units"`
	Error          string        `json:"error,omitempty"`
}

// RunSummary represents the complete result of a crawl run
type RunSummary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Results   []CrawlResult `json:"results"`
}

// Config holds the crawl tunables
type Config struct {
	RequestDelay          time.Duration
	MaxRetries            int
	Timeout               time.Duration
	MaxConcurrentRequests int
	UseHeadlessBrowser    bool
	Headless              bool
	UserAgent             string

	MaxPages          int
	MaxScrolls        int
	MaxLazyLoadRounds int
	MaxDepth          int
	MinCategories     int
	MinCards          int

	ProbeTimeout  time.Duration
	PopupTimeout  time.Duration
	ScrollSettle  time.Duration
	ContentLoad   time.Duration
	LazyLoadDelay time.Duration

	RefreshSubcategories bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RequestDelay:          3 * time.Second,
		MaxRetries:            3,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
		UseHeadlessBrowser:    true,
		Headless:              true,
		UserAgent:             "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MaxPages:              50,
		MaxScrolls:            10,
		MaxLazyLoadRounds:     25,
		MaxDepth:              1,
		MinCategories:         8,
		MinCards:              5,
		ProbeTimeout:          10 * time.Second,
		PopupTimeout:          5 * time.Second,
		ScrollSettle:          2 * time.Second,
		ContentLoad:           3 * time.Second,
		LazyLoadDelay:         1 * time.Second,
	}
}

// Page is the render capability the crawl engine drives. One Page is one
// browser tab (or a static fetcher) and is not safe for concurrent use.
type Page interface {
	// Navigate loads url and waits for the document to be ready
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Snapshot returns the rendered document. Browser-backed pages annotate
	// elements with data-layout-* attributes before serialising.
	Snapshot(ctx context.Context) (*goquery.Document, error)

	// Location returns the URL currently loaded
	Location(ctx context.Context) (string, error)

	Click(ctx context.Context, selector string) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int64, error)

	// Count returns the number of elements matching selector
	Count(ctx context.Context, selector string) (int, error)

	Close() error
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
