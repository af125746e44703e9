package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"catalog-crawler/adapters"
	"catalog-crawler/discovery"
	"catalog-crawler/internal/app"
	"catalog-crawler/internal/config"
	"catalog-crawler/internal/types"
	"catalog-crawler/pagination"
	"catalog-crawler/rules"
	"catalog-crawler/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		target   = flag.String("url", "", "Page to probe (default: the site landing page)")
		file     = flag.String("file", "", "Inspect a saved HTML file instead of fetching")
		httpOnly = flag.Bool("http-only", false, "Fetch without a browser")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	logger := app.NewLogger(*verbose)

	cfg := types.DefaultConfig()
	cfg.UseHeadlessBrowser = !*httpOnly
	site := adapters.NewSiteAdapter(config.Site{}, cfg, logger)

	url := *target
	if url == "" {
		url = site.LandingURL()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var doc *goquery.Document
	if *file != "" {
		content, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *file, err)
		}
		doc, err = site.ParseHTML(string(content))
		if err != nil {
			log.Fatalf("Failed to parse %s: %v", *file, err)
		}
	} else {
		doc = fetch(ctx, site, cfg, logger, url)
	}

	fmt.Printf("=== %s ===\n", url)
	if title, err := site.ExtractText(doc, "title"); err == nil {
		fmt.Printf("Title: %s\n", title)
	}
	if canonical, err := site.ExtractAttribute(doc, `link[rel="canonical"]`, "href"); err == nil {
		fmt.Printf("Canonical: %s\n", canonical)
	}

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if link := adapters.ResolveURL(site.Origin(), s.AttrOr("href", "")); link != "" {
			hrefs = append(hrefs, link)
		}
	})
	fmt.Printf("Total links found: %d (%d unique)\n", doc.Find("a").Length(), len(site.RemoveDuplicateURLs(hrefs)))
	fmt.Printf("Pagination type: %s\n", pagination.Classify(doc, site.Profile().PageParam))

	fmt.Println("\nCard candidates:")
	profile := site.Profile()
	counts := make([]int, len(profile.CardCandidates))
	for i, selector := range profile.CardCandidates {
		counts[i] = doc.Find(selector).Length()
		fmt.Printf("  %-28s %d\n", selector, counts[i])
	}
	best := rules.BestCandidate(counts, profile.CardCandidates, cfg.MinCards, rules.DefaultCardSelector)
	fmt.Printf("Best card selector: %s\n", best)

	agent := discovery.NewAgent(site, nil, logger)
	nodes := agent.Extract(doc)
	fmt.Printf("\nCategories found: %d\n", len(nodes))
	for i, n := range nodes {
		fmt.Printf("  %d: %s -> %s (%s)\n", i+1, n.Name, n.URL, n.ParentCategory)
	}

	fmt.Printf("\nStatic taxonomy of %s:\n", site.GetSiteName())
	for _, parent := range site.ParentCategories() {
		fmt.Printf("  %s: %s\n", parent, strings.Join(site.Subcategories(parent), ", "))
	}

	extracted := 0
	for _, n := range counts {
		if n > extracted {
			extracted = n
		}
	}
	sig := pagination.Signal{Doc: doc, URL: url, PageParam: profile.PageParam, Page: 1, Extracted: extracted}
	hasNext, by := pagination.HasNext(pagination.DefaultOracles(), sig)
	fmt.Printf("\nHas next page: %v %s\n", hasNext, strings.TrimSpace("("+by+")"))
}

// fetch loads url with a browser or a plain HTTP page and returns its snapshot
func fetch(ctx context.Context, site *adapters.SiteAdapter, cfg *types.Config, logger *logrus.Logger, url string) *goquery.Document {
	var page types.Page
	if cfg.UseHeadlessBrowser {
		browser := utils.NewBrowserClient(cfg, logger)
		defer browser.Close()
		p, err := browser.NewPage(ctx)
		if err != nil {
			log.Fatalf("Failed to open browser: %v", err)
		}
		page = p
	} else {
		client := utils.NewHTTPClient(cfg, logger)
		defer client.Close()
		page = utils.NewStaticPage(client, logger)
	}
	defer page.Close()

	if err := page.Navigate(ctx, url, cfg.Timeout); err != nil {
		log.Fatalf("Failed to load %s: %v", url, err)
	}
	site.DismissPopup(ctx, page)

	doc, err := page.Snapshot(ctx)
	if err != nil {
		log.Fatalf("Failed to read page: %v", err)
	}
	return doc
}
