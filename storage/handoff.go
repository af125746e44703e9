package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"catalog-crawler/adapters"
	"catalog-crawler/extractor"
	"catalog-crawler/internal/types"
	"catalog-crawler/metrics"
)

// Outcome counts what happened to one page of candidates
type Outcome struct {
	Inserted int
	Rejected int
}

// Handoff attaches provenance to extracted candidates and submits them to
// the store as one batch per page
type Handoff struct {
	store   Store
	runID   string
	metrics *metrics.Metrics
	logger  types.Logger
	now     func() time.Time
}

// NewHandoff creates a handoff writing to store. runID tags every record.
func NewHandoff(store Store, runID string, m *metrics.Metrics, logger types.Logger) *Handoff {
	return &Handoff{
		store:   store,
		runID:   runID,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Validate returns why a record must not be persisted, or "" if it may be
func Validate(r types.ProductRecord) string {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return "missing title"
	case strings.TrimSpace(r.Price) == "":
		return "missing price"
	case !adapters.IsAbsoluteURL(r.URL):
		return fmt.Sprintf("url %q is not absolute", r.URL)
	}
	return ""
}

// Submit persists the candidates of one page. Rejected records are counted
// and logged; a store failure is returned but the caller is expected to
// carry on crawling.
func (h *Handoff) Submit(ctx context.Context, unit *types.CrawlUnit, candidates []extractor.Candidate) (Outcome, error) {
	var out Outcome
	if len(candidates) == 0 {
		return out, nil
	}

	scrapedAt := h.now().UTC()
	records := make([]types.ProductRecord, 0, len(candidates))
	for _, c := range candidates {
		record := types.ProductRecord{
			Title:          strings.TrimSpace(c.Title),
			Price:          strings.TrimSpace(c.Price),
			Rating:         strings.TrimSpace(c.Rating),
			URL:            c.URL,
			Category:       unit.Name,
			ParentCategory: unit.Parent,
			ScrapedAt:      scrapedAt,
			RunID:          h.runID,
		}
		if reason := Validate(record); reason != "" {
			h.logger.Debugf("Skipping product %q: %s", record.Title, reason)
			out.Rejected++
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		h.record(unit, out)
		return out, nil
	}

	res, err := h.store.InsertBatch(ctx, unit.Name, records)
	out.Inserted = res.InsertedCount
	out.Rejected += len(res.Rejected)
	for _, r := range res.Rejected {
		h.logger.Warnf("Error saving product %d: %s", r.Index, r.Reason)
	}
	if err != nil {
		out.Rejected += len(records) - res.InsertedCount - len(res.Rejected)
		h.record(unit, out)
		return out, fmt.Errorf("failed to save batch for %s: %w", unit.Name, err)
	}

	h.logger.Infof("Successfully saved %d products to database (%d rejected)", out.Inserted, out.Rejected)
	h.record(unit, out)
	return out, nil
}

func (h *Handoff) record(unit *types.CrawlUnit, out Outcome) {
	unit.Inserted += out.Inserted
	unit.Rejected += out.Rejected
	h.metrics.AddBatch(out.Inserted, out.Rejected)
}
