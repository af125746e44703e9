// Package app assembles a crawl engine from a configuration file.
package app

import (
	"context"
	"fmt"
	"os"

	"catalog-crawler/adapters"
	"catalog-crawler/cache"
	"catalog-crawler/crawler"
	"catalog-crawler/internal/config"
	"catalog-crawler/internal/types"
	"catalog-crawler/metrics"
	"catalog-crawler/storage"
	"catalog-crawler/utils"

	"github.com/sirupsen/logrus"
)

// NewLogger returns the logger shared by the binaries. LOG_LEVEL wins over
// the verbose flag.
func NewLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
			return logger
		}
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// App owns the engine and the resources behind it
type App struct {
	Engine  *crawler.Engine
	Site    *adapters.SiteAdapter
	Metrics *metrics.Metrics
	Config  *types.Config

	store   storage.Store
	browser *utils.BrowserClient
	http    *utils.HTTPClient
}

// New connects the store and the render backend and builds the engine
func New(ctx context.Context, file *config.File, logger *logrus.Logger) (*App, error) {
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := file.CrawlConfig()
	site := adapters.NewSiteAdapter(file.Site, cfg, logger)
	m := metrics.New()

	cacheStore, err := cache.New(file.CacheDir)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, file.Storage, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Site: site, Metrics: m, Config: cfg, store: store}

	var pages crawler.PageFactory
	if cfg.UseHeadlessBrowser {
		a.browser = utils.NewBrowserClient(cfg, logger)
		pages = a.browser.NewPage
		logger.Info("Using headless browser")
	} else {
		a.http = utils.NewHTTPClient(cfg, logger)
		pages = func(context.Context) (types.Page, error) {
			return utils.NewStaticPage(a.http, logger), nil
		}
		logger.Info("Using HTTP requests only")
	}

	engine, err := crawler.NewEngine(crawler.Options{
		Site:    site,
		Pages:   pages,
		Store:   store,
		Cache:   cacheStore,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Engine = engine
	return a, nil
}

// Close releases the browser, HTTP client and store
func (a *App) Close(ctx context.Context) {
	if a.browser != nil {
		a.browser.Close()
	}
	if a.http != nil {
		a.http.Close()
	}
	if a.store != nil {
		_ = a.store.Close(ctx)
	}
}
