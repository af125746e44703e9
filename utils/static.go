package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-crawler/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnsupported is returned for interactions a static page cannot perform
var ErrUnsupported = errors.New("not supported without a browser")

// StaticPage implements types.Page over plain HTTP fetches. No JavaScript
// runs, so scrolling is a no-op and snapshots carry no layout attributes.
type StaticPage struct {
	client *HTTPClient
	logger types.Logger

	url  string
	html string
}

// NewStaticPage creates a page backed by client
func NewStaticPage(client *HTTPClient, logger types.Logger) *StaticPage {
	return &StaticPage{client: client, logger: logger}
}

// Navigate fetches url
func (s *StaticPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := s.client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	s.url = url
	s.html = string(body)
	return nil
}

func (s *StaticPage) document() (*goquery.Document, error) {
	if s.url == "" {
		return nil, fmt.Errorf("no page loaded")
	}
	return goquery.NewDocumentFromReader(strings.NewReader(s.html))
}

// Snapshot parses the fetched HTML
func (s *StaticPage) Snapshot(ctx context.Context) (*goquery.Document, error) {
	return s.document()
}

// Location returns the last fetched URL
func (s *StaticPage) Location(ctx context.Context) (string, error) {
	if s.url == "" {
		return "", fmt.Errorf("no page loaded")
	}
	return s.url, nil
}

// Click is not supported
func (s *StaticPage) Click(ctx context.Context, selector string) error {
	return fmt.Errorf("click %s: %w", selector, ErrUnsupported)
}

// WaitForSelector succeeds immediately if selector matches the fetched document
func (s *StaticPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	n, err := s.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("element not found with selector: %s", selector)
	}
	return nil
}

// ScrollToBottom does nothing
func (s *StaticPage) ScrollToBottom(ctx context.Context) error {
	return nil
}

// ScrollHeight returns the document length so that lazy-load loops stop
// after one round
func (s *StaticPage) ScrollHeight(ctx context.Context) (int64, error) {
	return int64(len(s.html)), nil
}

// Count returns the number of elements matching selector
func (s *StaticPage) Count(ctx context.Context, selector string) (int, error) {
	doc, err := s.document()
	if err != nil {
		return 0, err
	}
	return doc.Find(selector).Length(), nil
}

// Close releases idle connections
func (s *StaticPage) Close() error {
	s.client.Close()
	return nil
}
