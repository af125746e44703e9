package pagination

import (
	"context"
	"time"

	"catalog-crawler/internal/types"
)

// Sleeper pauses for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ScrollDriver loads infinite-scroll listings by scrolling until the card
// count stops growing
type ScrollDriver struct {
	MaxScrolls int
	Settle     time.Duration
	Content    time.Duration
	Sleep      Sleeper
	Logger     types.Logger
}

// NewScrollDriver creates a driver from the crawl configuration
func NewScrollDriver(cfg *types.Config, sleep Sleeper, logger types.Logger) *ScrollDriver {
	if sleep == nil {
		sleep = Sleep
	}
	return &ScrollDriver{
		MaxScrolls: cfg.MaxScrolls,
		Settle:     cfg.ScrollSettle,
		Content:    cfg.ContentLoad,
		Sleep:      sleep,
		Logger:     logger,
	}
}

// Run scrolls at most MaxScrolls times and returns the number of cycles
// performed. A cycle that leaves the card count unchanged ends the run;
// that is the expected outcome, not an error.
func (d *ScrollDriver) Run(ctx context.Context, page types.Page, cardSelector string) int {
	previous, err := page.Count(ctx, cardSelector)
	if err != nil {
		d.Logger.Debugf("Counting cards before scrolling failed: %v", err)
	}

	for i := 1; i <= d.MaxScrolls; i++ {
		if err := page.ScrollToBottom(ctx); err != nil {
			d.Logger.Debugf("Scroll %d failed: %v", i, err)
			return i
		}
		if err := d.Sleep(ctx, d.Settle); err != nil {
			return i
		}
		if err := d.Sleep(ctx, d.Content); err != nil {
			return i
		}

		current, err := page.Count(ctx, cardSelector)
		if err != nil {
			d.Logger.Debugf("Counting cards after scroll %d failed: %v", i, err)
			return i
		}
		d.Logger.Debugf("Scroll %d: %d cards", i, current)
		if current == previous {
			return i
		}
		previous = current
	}

	return d.MaxScrolls
}

// LazyLoad scrolls to the bottom until the document height stops growing,
// at most maxRounds times, and returns the rounds performed
func LazyLoad(ctx context.Context, page types.Page, maxRounds int, delay time.Duration, sleep Sleeper) int {
	if sleep == nil {
		sleep = Sleep
	}
	previous, err := page.ScrollHeight(ctx)
	if err != nil {
		return 0
	}

	for round := 1; round <= maxRounds; round++ {
		if err := page.ScrollToBottom(ctx); err != nil {
			return round
		}
		if err := sleep(ctx, delay); err != nil {
			return round
		}
		height, err := page.ScrollHeight(ctx)
		if err != nil || height <= previous {
			return round
		}
		previous = height
	}
	return maxRounds
}
