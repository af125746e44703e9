// Package config loads the crawler's YAML configuration file.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"catalog-crawler/internal/types"
)

// Storage drivers
const (
	DriverMongoDB = "mongodb"
	DriverSQLite  = "sqlite"
)

// File is the on-disk configuration layout
type File struct {
	Crawl       Crawl   `yaml:"crawl"`
	Site        Site    `yaml:"site"`
	Storage     Storage `yaml:"storage"`
	CacheDir    string  `yaml:"cache_dir"`
	MetricsAddr string  `yaml:"metrics_addr"`
}

// Crawl holds the crawl tunables. Zero values are replaced by defaults;
// pointer fields are defaulted only when absent.
type Crawl struct {
	RequestDelay         time.Duration `yaml:"request_delay"`
	Timeout              time.Duration `yaml:"timeout"`
	MaxRetries           int           `yaml:"max_retries"`
	MaxConcurrent        int           `yaml:"max_concurrent"`
	MaxPages             int           `yaml:"max_pages"`
	MaxScrolls           int           `yaml:"max_scrolls"`
	MaxLazyLoadRounds    int           `yaml:"max_lazy_load_rounds"`
	MaxDepth             *int          `yaml:"max_depth,omitempty"`
	MinCategories        int           `yaml:"min_categories"`
	MinCards             int           `yaml:"min_cards"`
	ProbeTimeout         time.Duration `yaml:"probe_timeout"`
	PopupTimeout         time.Duration `yaml:"popup_timeout"`
	ScrollSettle         time.Duration `yaml:"scroll_settle"`
	ContentLoad          time.Duration `yaml:"content_load"`
	LazyLoadDelay        time.Duration `yaml:"lazy_load_delay"`
	UseBrowser           *bool         `yaml:"use_browser,omitempty"`
	Headless             *bool         `yaml:"headless,omitempty"`
	UserAgent            string        `yaml:"user_agent"`
	RefreshSubcategories bool          `yaml:"refresh_subcategories"`
}

// Site is a target site profile. Fields left empty are completed from the
// built-in profile by the adapters package.
type Site struct {
	Name               string                                    `yaml:"name"`
	Origin             string                                    `yaml:"origin"`
	LandingURL         string                                    `yaml:"landing_url"`
	PageParam          string                                    `yaml:"page_param"`
	PopupSelector      string                                    `yaml:"popup_selector"`
	Rules              map[string]types.ExtractionRuleDescriptor `yaml:"rules"`
	Generic            GenericRule                               `yaml:"generic"`
	CardCandidates     []string                                  `yaml:"card_candidates"`
	CategoryRails      []string                                  `yaml:"category_rails"`
	CategoryLabel      string                                    `yaml:"category_label"`
	Subcategory        SubcategorySelectors                      `yaml:"subcategory"`
	Taxonomy           []ParentCategory                          `yaml:"taxonomy"`
	FallbackCategories map[string]FallbackCategory               `yaml:"fallback_categories"`
}

// GenericRule is the last-resort extraction pass: a broad card selector and
// several known alternatives for each field
type GenericRule struct {
	Card        string   `yaml:"card"`
	Titles      []string `yaml:"titles"`
	Prices      []string `yaml:"prices"`
	Ratings     []string `yaml:"ratings"`
	ProductLink string   `yaml:"product_link"`
}

// SubcategorySelectors locate subcategory links on a category landing page
type SubcategorySelectors struct {
	Primary  string `yaml:"primary"`
	Fallback string `yaml:"fallback"`
}

// ParentCategory groups leaf categories under a top-level name
type ParentCategory struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Subcategories []string `yaml:"subcategories"`
}

// FallbackCategory is a statically known category link
type FallbackCategory struct {
	URL   string `yaml:"url"`
	Image string `yaml:"img"`
}

// Storage selects and configures the persistent store
type Storage struct {
	Driver     string        `yaml:"driver"`
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	SQLitePath string        `yaml:"sqlite_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Default returns a configuration with every default applied
func Default() *File {
	f := &File{}
	applyDefaults(f)
	return f
}

// Load loads configuration from a YAML file
func Load(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML, expanding ${VAR} references from the environment
func LoadFromBytes(data []byte) (*File, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	expanded := os.ExpandEnv(string(data))

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(&f)

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &f, nil
}

// Validate checks values that defaults cannot repair
func (f *File) Validate() error {
	switch f.Storage.Driver {
	case DriverMongoDB:
		if f.Storage.URI == "" {
			return fmt.Errorf("storage.uri is required for the %s driver", DriverMongoDB)
		}
	case DriverSQLite:
		if f.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the %s driver", DriverSQLite)
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", f.Storage.Driver)
	}

	if f.Crawl.MaxPages < 1 {
		return fmt.Errorf("crawl.max_pages must be positive")
	}
	if f.Crawl.MaxConcurrent < 1 {
		return fmt.Errorf("crawl.max_concurrent must be positive")
	}
	if f.Crawl.RequestDelay < 0 {
		return fmt.Errorf("crawl.request_delay cannot be negative")
	}

	for name, rule := range f.Site.Rules {
		if rule.CardSelector == "" {
			return fmt.Errorf("site.rules[%q]: card selector is required", name)
		}
	}

	return nil
}

// CrawlConfig converts the crawl section into the runtime configuration
func (f *File) CrawlConfig() *types.Config {
	c := f.Crawl
	cfg := &types.Config{
		RequestDelay:          c.RequestDelay,
		MaxRetries:            c.MaxRetries,
		Timeout:               c.Timeout,
		MaxConcurrentRequests: c.MaxConcurrent,
		UseHeadlessBrowser:    true,
		Headless:              true,
		UserAgent:             c.UserAgent,
		MaxPages:              c.MaxPages,
		MaxScrolls:            c.MaxScrolls,
		MaxLazyLoadRounds:     c.MaxLazyLoadRounds,
		MinCategories:         c.MinCategories,
		MinCards:              c.MinCards,
		ProbeTimeout:          c.ProbeTimeout,
		PopupTimeout:          c.PopupTimeout,
		ScrollSettle:          c.ScrollSettle,
		ContentLoad:           c.ContentLoad,
		LazyLoadDelay:         c.LazyLoadDelay,
		RefreshSubcategories:  c.RefreshSubcategories,
	}
	if c.UseBrowser != nil {
		cfg.UseHeadlessBrowser = *c.UseBrowser
	}
	if c.Headless != nil {
		cfg.Headless = *c.Headless
	}
	if c.MaxDepth != nil {
		cfg.MaxDepth = *c.MaxDepth
	}
	return cfg
}

func applyDefaults(f *File) {
	d := types.DefaultConfig()
	c := &f.Crawl

	if c.RequestDelay == 0 {
		c.RequestDelay = d.RequestDelay
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = d.MaxConcurrentRequests
	}
	if c.MaxPages == 0 {
		c.MaxPages = d.MaxPages
	}
	if c.MaxScrolls == 0 {
		c.MaxScrolls = d.MaxScrolls
	}
	if c.MaxLazyLoadRounds == 0 {
		c.MaxLazyLoadRounds = d.MaxLazyLoadRounds
	}
	if c.MaxDepth == nil {
		depth := d.MaxDepth
		c.MaxDepth = &depth
	}
	if c.MinCategories == 0 {
		c.MinCategories = d.MinCategories
	}
	if c.MinCards == 0 {
		c.MinCards = d.MinCards
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.PopupTimeout == 0 {
		c.PopupTimeout = d.PopupTimeout
	}
	if c.ScrollSettle == 0 {
		c.ScrollSettle = d.ScrollSettle
	}
	if c.ContentLoad == 0 {
		c.ContentLoad = d.ContentLoad
	}
	if c.LazyLoadDelay == 0 {
		c.LazyLoadDelay = d.LazyLoadDelay
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}

	if f.Storage.Driver == "" {
		f.Storage.Driver = DriverMongoDB
	}
	if f.Storage.Driver == DriverMongoDB && f.Storage.URI == "" {
		f.Storage.URI = "mongodb://localhost:27017"
	}
	if f.Storage.Database == "" {
		f.Storage.Database = "catalog"
	}
	if f.Storage.Driver == DriverSQLite && f.Storage.SQLitePath == "" {
		f.Storage.SQLitePath = "catalog.db"
	}
	if f.Storage.Timeout == 0 {
		f.Storage.Timeout = 30 * time.Second
	}

	if f.CacheDir == "" {
		f.CacheDir = ".cache"
	}
}
