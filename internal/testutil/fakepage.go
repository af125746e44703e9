// Package testutil provides an in-memory types.Page for tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// FakePage serves HTML fixtures by URL. Each route holds a sequence of
// document states; every ScrollToBottom advances to the next state (and
// stays on the last one), which lets tests model lazy loading.
type FakePage struct {
	mu sync.Mutex

	routes   map[string][]string
	failures map[string]error

	// Default is served for URLs without a route; nil means navigation fails
	Default []string

	current string
	states  []string
	index   int

	Navigations []string
	Clicks      []string
	Scrolls     int
	Closed      bool
}

// NewFakePage creates an empty fake page
func NewFakePage() *FakePage {
	return &FakePage{
		routes:   make(map[string][]string),
		failures: make(map[string]error),
	}
}

// Route registers the document states served for url
func (f *FakePage) Route(url string, states ...string) *FakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[url] = states
	return f
}

// Fail makes navigation to url return err
func (f *FakePage) Fail(url string, err error) *FakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[url] = err
	return f
}

// Navigate loads the first state registered for url
func (f *FakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	f.Navigations = append(f.Navigations, url)
	if err, ok := f.failures[url]; ok {
		return err
	}

	states, ok := f.routes[url]
	if !ok {
		states = f.Default
	}
	if len(states) == 0 {
		return fmt.Errorf("navigation timeout: %s", url)
	}

	f.current = url
	f.states = states
	f.index = 0
	return nil
}

func (f *FakePage) document() (*goquery.Document, error) {
	if f.current == "" {
		return nil, fmt.Errorf("no page loaded")
	}
	return goquery.NewDocumentFromReader(strings.NewReader(f.states[f.index]))
}

// Snapshot returns the current document state
func (f *FakePage) Snapshot(ctx context.Context) (*goquery.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.document()
}

// Location returns the URL last navigated to
func (f *FakePage) Location(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

// Click records the click; it fails when nothing matches selector
func (f *FakePage) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("no element matches %s", selector)
	}
	f.Clicks = append(f.Clicks, selector)
	return nil
}

// WaitForSelector succeeds when selector matches the current state
func (f *FakePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("waiting for selector %q failed: timeout %v exceeded", selector, timeout)
	}
	return nil
}

// ScrollToBottom advances to the next document state
func (f *FakePage) ScrollToBottom(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Scrolls++
	if f.index < len(f.states)-1 {
		f.index++
	}
	return nil
}

// ScrollHeight reports the length of the current state
func (f *FakePage) ScrollHeight(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == "" {
		return 0, nil
	}
	return int64(len(f.states[f.index])), nil
}

// Count counts matches of selector in the current state
func (f *FakePage) Count(ctx context.Context, selector string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.document()
	if err != nil {
		return 0, err
	}
	return doc.Find(selector).Length(), nil
}

// Close marks the page closed
func (f *FakePage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Logger returns a discarding logrus logger with a capture hook
func Logger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}
