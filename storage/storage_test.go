package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"catalog-crawler/extractor"
	"catalog-crawler/internal/testutil"
	"catalog-crawler/internal/types"
	"catalog-crawler/metrics"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	reject     map[int]bool
	err        error
	collection string
	saved      []types.ProductRecord
}

func (f *fakeStore) InsertBatch(ctx context.Context, collection string, records []types.ProductRecord) (BatchResult, error) {
	f.collection = collection
	if f.err != nil {
		return BatchResult{}, f.err
	}
	var res BatchResult
	for i, r := range records {
		if f.reject[i] {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: "Document failed validation"})
			continue
		}
		f.saved = append(f.saved, r)
		res.InsertedCount++
	}
	return res, nil
}

func (f *fakeStore) Close(context.Context) error { return nil }

func candidates(n int) []extractor.Candidate {
	out := make([]extractor.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, extractor.Candidate{
			Title:  fmt.Sprintf(" Phone %d ", i),
			Price:  "₹9,999",
			Rating: "4.2",
			URL:    fmt.Sprintf("https://www.flipkart.com/phone-%d/p/itm%d", i, i),
		})
	}
	return out
}

func newHandoff(store Store, m *metrics.Metrics) *Handoff {
	logger, _ := testutil.Logger()
	h := NewHandoff(store, "run-1", m, logger)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return h
}

func TestSubmit_PartialBatchFailure(t *testing.T) {
	store := &fakeStore{reject: map[int]bool{3: true, 7: true}}
	m := metrics.New()
	h := newHandoff(store, m)
	unit := &types.CrawlUnit{Name: "Mobiles", Parent: "Electronics"}

	out, err := h.Submit(context.Background(), unit, candidates(10))

	require.NoError(t, err)
	assert.Equal(t, Outcome{Inserted: 8, Rejected: 2}, out)
	assert.Equal(t, 8, unit.Inserted)
	assert.Equal(t, 2, unit.Rejected)
	assert.Equal(t, "Mobiles", store.collection)
	assert.Equal(t, 8.0, promtest.ToFloat64(m.RecordsInserted))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.RecordsRejected))
}

func TestSubmit_AttachesProvenance(t *testing.T) {
	store := &fakeStore{}
	h := newHandoff(store, nil)
	unit := &types.CrawlUnit{Name: "Mobiles", Parent: "Electronics"}

	_, err := h.Submit(context.Background(), unit, candidates(1))
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	rec := store.saved[0]
	assert.Equal(t, "Phone 0", rec.Title)
	assert.Equal(t, "Mobiles", rec.Category)
	assert.Equal(t, "Electronics", rec.ParentCategory)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), rec.ScrapedAt)
}

func TestSubmit_PrevalidationRejectsBeforeStore(t *testing.T) {
	store := &fakeStore{}
	h := newHandoff(store, nil)
	unit := &types.CrawlUnit{Name: "Books"}

	batch := append(candidates(2),
		extractor.Candidate{Title: "No link", Price: "₹10"},
		extractor.Candidate{Title: "Relative", Price: "₹10", URL: "/p/1"},
		extractor.Candidate{Title: "   ", Price: "₹10", URL: "https://www.flipkart.com/p/2"},
	)

	out, err := h.Submit(context.Background(), unit, batch)

	require.NoError(t, err)
	assert.Equal(t, Outcome{Inserted: 2, Rejected: 3}, out)
	assert.Len(t, store.saved, 2)
}

func TestSubmit_StoreFailureIsReportedNotFatal(t *testing.T) {
	store := &fakeStore{err: errors.New("connection reset")}
	h := newHandoff(store, nil)
	unit := &types.CrawlUnit{Name: "Mobiles"}

	out, err := h.Submit(context.Background(), unit, candidates(4))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, Outcome{Inserted: 0, Rejected: 4}, out)
}

func TestSubmit_Empty(t *testing.T) {
	store := &fakeStore{}
	h := newHandoff(store, nil)

	out, err := h.Submit(context.Background(), &types.CrawlUnit{Name: "Mobiles"}, nil)

	require.NoError(t, err)
	assert.Equal(t, Outcome{}, out)
	assert.Empty(t, store.collection)
}

func TestValidate(t *testing.T) {
	ok := types.ProductRecord{Title: "A", Price: "₹1", URL: "https://www.flipkart.com/p/1"}
	assert.Empty(t, Validate(ok))

	noTitle := ok
	noTitle.Title = " "
	assert.Equal(t, "missing title", Validate(noTitle))

	noPrice := ok
	noPrice.Price = ""
	assert.Equal(t, "missing price", Validate(noPrice))

	relative := ok
	relative.URL = "/p/1"
	assert.Contains(t, Validate(relative), "not absolute")
}

func TestSQLiteStore_InsertBatch(t *testing.T) {
	logger, _ := testutil.Logger()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"), logger)
	require.NoError(t, err)
	defer store.Close(context.Background())

	now := time.Now().UTC()
	records := []types.ProductRecord{
		{Title: "Phone", Price: "₹1", URL: "https://www.flipkart.com/p/1", Category: "Mobiles", ScrapedAt: now},
		{Title: "Bad link", Price: "₹1", URL: "ftp://example.com/p", Category: "Mobiles", ScrapedAt: now},
		{Title: "Tablet", Price: "₹2", URL: "https://www.flipkart.com/p/2", Category: "Mobiles", ScrapedAt: now},
		{Title: "", Price: "₹2", URL: "https://www.flipkart.com/p/3", Category: "Mobiles", ScrapedAt: now},
	}

	res, err := store.InsertBatch(context.Background(), "Mobiles", records)

	require.NoError(t, err)
	assert.Equal(t, 2, res.InsertedCount)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.Equal(t, 3, res.Rejected[1].Index)

	n, err := store.Count(context.Background(), "Mobiles")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStore_WithHandoff(t *testing.T) {
	logger, _ := testutil.Logger()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"), logger)
	require.NoError(t, err)
	defer store.Close(context.Background())

	h := newHandoff(store, nil)
	out, err := h.Submit(context.Background(), &types.CrawlUnit{Name: "Laptops"}, candidates(5))

	require.NoError(t, err)
	assert.Equal(t, 5, out.Inserted)

	n, err := store.Count(context.Background(), "Laptops")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
