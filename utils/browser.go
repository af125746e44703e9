package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"catalog-crawler/internal/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// layoutScript stamps rendered geometry onto the live DOM so that a
// serialised snapshot can answer layout questions without a browser.
const layoutScript = `(() => {
  const root = document.documentElement;
  root.setAttribute('data-layout-vw', String(window.innerWidth));
  for (const el of document.querySelectorAll('body *')) {
    const r = el.getBoundingClientRect();
    el.setAttribute('data-layout-w', String(Math.round(r.width)));
    el.setAttribute('data-layout-h', String(Math.round(r.height)));
    if (el.offsetParent === null && getComputedStyle(el).position !== 'fixed') {
      el.setAttribute('data-layout-hidden', '1');
    } else {
      el.removeAttribute('data-layout-hidden');
    }
    if (el.tagName === 'IMG') {
      el.setAttribute('data-layout-src', el.currentSrc || el.src || '');
    }
  }
  return true;
})()`

// BrowserClient owns one headless Chrome process. Pages opened from it are
// separate tabs sharing cookies and cache.
type BrowserClient struct {
	config *types.Config
	logger types.Logger

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewBrowserClient creates a new browser client. Chrome is started lazily
// by the first NewPage call.
func NewBrowserClient(config *types.Config, logger types.Logger) *BrowserClient {
	return &BrowserClient{
		config: config,
		logger: logger,
	}
}

// start launches Chrome once
func (b *BrowserClient) start() error {
	if b.browserCtx != nil {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.config.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
	)
	if b.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.config.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(b.logger.Debugf),
		// CDP event decoding noise; real failures surface as action errors
		chromedp.WithErrorf(func(string, ...interface{}) {}),
	)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	b.allocCtx, b.allocCancel = allocCtx, allocCancel
	b.browserCtx, b.browserCancel = browserCtx, browserCancel
	b.logger.Debug("Browser started")
	return nil
}

// NewPage opens a new tab
func (b *BrowserClient) NewPage(ctx context.Context) (types.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.start(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	return &BrowserPage{ctx: tabCtx, cancel: cancel, logger: b.logger}, nil
}

// Close shuts the browser down
func (b *BrowserClient) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
}

// BrowserPage is a single Chrome tab implementing types.Page
type BrowserPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger types.Logger
}

// run executes actions on the tab, bounded by timeout (if positive) and by
// the caller's context
func (p *BrowserPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the body to be ready
func (p *BrowserPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	start := time.Now()
	err := p.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	p.logger.Debugf("Loaded %s in %v", url, time.Since(start))
	return nil
}

// Snapshot annotates layout and returns the rendered document
func (p *BrowserPage) Snapshot(ctx context.Context) (*goquery.Document, error) {
	var ok bool
	var html string

	err := p.run(ctx, 0,
		chromedp.Evaluate(layoutScript, &ok),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return doc, nil
}

// Location returns the current URL
func (p *BrowserPage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, 0, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// Click clicks the first element matching selector
func (p *BrowserPage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// WaitForSelector waits until selector is present in the DOM
func (p *BrowserPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to wait for element %s: %w", selector, err)
	}
	return nil
}

// ScrollToBottom scrolls the window to the end of the document
func (p *BrowserPage) ScrollToBottom(ctx context.Context) error {
	if err := p.run(ctx, 0, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

// ScrollHeight returns document.body.scrollHeight
func (p *BrowserPage) ScrollHeight(ctx context.Context) (int64, error) {
	var h int64
	if err := p.run(ctx, 0, chromedp.Evaluate(`document.body.scrollHeight`, &h)); err != nil {
		return 0, fmt.Errorf("failed to read scroll height: %w", err)
	}
	return h, nil
}

// Count returns the number of elements matching selector
func (p *BrowserPage) Count(ctx context.Context, selector string) (int, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return 0, err
	}

	var n int
	script := fmt.Sprintf(`document.querySelectorAll(%s).length`, quoted)
	if err := p.run(ctx, 0, chromedp.Evaluate(script, &n)); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", selector, err)
	}
	return n, nil
}

// Close closes the tab
func (p *BrowserPage) Close() error {
	p.cancel()
	return nil
}
