package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-crawler/internal/app"
	"catalog-crawler/internal/config"
	"catalog-crawler/internal/types"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// options holds the command line flags
type options struct {
	configPath    string
	discover      bool
	category      string
	url           string
	all           bool
	refresh       bool
	output        string
	httpOnly      bool
	requestDelay  time.Duration
	maxPages      int
	maxConcurrent int
}

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration file")
	flag.BoolVar(&opts.discover, "discover", false, "Discover categories from the landing page and exit")
	flag.StringVar(&opts.category, "category", "", "Name of a single category to crawl")
	flag.StringVar(&opts.url, "url", "", "Listing URL of the category given with --category")
	flag.BoolVar(&opts.all, "all", false, "Crawl every category of the taxonomy")
	flag.BoolVar(&opts.refresh, "refresh", false, "Rediscover the taxonomy even if it is cached")
	flag.StringVar(&opts.output, "output", "", "Output file path (default: stdout)")
	flag.BoolVar(&opts.httpOnly, "http-only", false, "Use HTTP requests only (disable headless browser)")
	flag.DurationVar(&opts.requestDelay, "delay", 0, "Delay between page loads (overrides config)")
	flag.IntVar(&opts.maxPages, "max-pages", 0, "Maximum pages per category (overrides config)")
	flag.IntVar(&opts.maxConcurrent, "concurrent", 0, "Maximum categories crawled at once (overrides config)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	logger := app.NewLogger(*verbose)

	if err := opts.validate(); err != nil {
		logger.Fatal(err)
	}

	file, err := loadConfig(opts)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, logger, file, opts)
	stop()
	if err != nil {
		logger.Fatal(err)
	}
}

func (o options) validate() error {
	modes := 0
	for _, set := range []bool{o.discover, o.category != "", o.all} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("exactly one of --discover, --category or --all is required")
	}
	if o.category != "" && o.url == "" {
		return fmt.Errorf("--url is required with --category")
	}
	return nil
}

// loadConfig reads the configuration file, if any, and applies the flag
// overrides
func loadConfig(opts options) (*config.File, error) {
	file := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		file = loaded
	}
	if opts.requestDelay > 0 {
		file.Crawl.RequestDelay = opts.requestDelay
	}
	if opts.maxPages > 0 {
		file.Crawl.MaxPages = opts.maxPages
	}
	if opts.maxConcurrent > 0 {
		file.Crawl.MaxConcurrent = opts.maxConcurrent
	}
	if opts.httpOnly {
		off := false
		file.Crawl.UseBrowser = &off
	}
	return file, nil
}

// run executes one crawl mode. The store and the render backend are closed
// before it returns, whatever the outcome.
func run(ctx context.Context, logger *logrus.Logger, file *config.File, opts options) error {
	a, err := app.New(ctx, file, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close(context.Background())

	if file.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{}))
			logger.Infof("Serving metrics on %s", file.MetricsAddr)
			if err := http.ListenAndServe(file.MetricsAddr, mux); err != nil {
				logger.Warnf("Metrics server stopped: %v", err)
			}
		}()
	}

	startTime := time.Now()
	var output interface{}

	switch {
	case opts.discover:
		nodes, err := a.Engine.Discover(ctx)
		if err != nil {
			return fmt.Errorf("category discovery failed: %w", err)
		}
		output = nodes

	case opts.category != "":
		res, err := a.Engine.CrawlCategory(ctx, opts.url, opts.category)
		if err != nil {
			logger.Errorf("Crawl of %s failed: %v", opts.category, err)
		}
		output = types.RunSummary{
			RunID:     a.Engine.RunID(),
			StartedAt: startTime.UTC(),
			Duration:  time.Since(startTime),
			Results:   []types.CrawlResult{res},
		}

	case opts.all:
		nodes, err := a.Engine.Taxonomy(ctx, opts.refresh)
		if err != nil {
			return fmt.Errorf("failed to load categories: %w", err)
		}
		logger.Infof("Found %d categories to scrape", len(nodes))
		output = a.Engine.Run(ctx, nodes)
	}

	logger.Infof("Completed in %v", time.Since(startTime).Round(time.Millisecond))

	jsonData, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if opts.output == "" {
		fmt.Println(string(jsonData))
		return nil
	}
	if err := os.WriteFile(opts.output, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	logger.Infof("Results written to: %s", opts.output)
	return nil
}
