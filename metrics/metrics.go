// Package metrics exposes Prometheus collectors for the crawl engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawler. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry          *prometheus.Registry
	PagesTotal        *prometheus.CounterVec
	PageDuration      prometheus.Histogram
	ProductsExtracted *prometheus.CounterVec
	RecordsInserted   prometheus.Counter
	RecordsRejected   prometheus.Counter
	SelectorFallbacks *prometheus.CounterVec
	UnitErrors        *prometheus.CounterVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_pages_total",
			Help: "Listing pages fetched, by detected pagination pattern.",
		},
		[]string{"pagination"},
	)
	pageDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawler_page_duration_seconds",
			Help:    "Time spent fetching, preparing and extracting one listing page.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80},
		},
	)
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_products_extracted_total",
			Help: "Candidate products extracted, by extraction strategy.",
		},
		[]string{"strategy"},
	)
	inserted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_records_inserted_total",
			Help: "Product records accepted by the store.",
		},
	)
	rejected := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_records_rejected_total",
			Help: "Product records rejected by validation or by the store.",
		},
	)
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_selector_fallbacks_total",
			Help: "Card selector probes that fell back to discovery, by source.",
		},
		[]string{"source"},
	)
	unitErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_unit_errors_total",
			Help: "Crawl units aborted or degraded, by error kind.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(pages, pageDuration, products, inserted, rejected, fallbacks, unitErrors)

	return &Metrics{
		Registry:          registry,
		PagesTotal:        pages,
		PageDuration:      pageDuration,
		ProductsExtracted: products,
		RecordsInserted:   inserted,
		RecordsRejected:   rejected,
		SelectorFallbacks: fallbacks,
		UnitErrors:        unitErrors,
	}
}

// IncPage counts a fetched page.
func (m *Metrics) IncPage(pagination string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(pagination).Inc()
}

// ObservePage records how long a page took.
func (m *Metrics) ObservePage(d time.Duration) {
	if m == nil {
		return
	}
	m.PageDuration.Observe(d.Seconds())
}

// AddProducts counts extracted candidates.
func (m *Metrics) AddProducts(strategy string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ProductsExtracted.WithLabelValues(strategy).Add(float64(n))
}

// AddBatch counts the outcome of one persistence batch.
func (m *Metrics) AddBatch(inserted, rejected int) {
	if m == nil {
		return
	}
	m.RecordsInserted.Add(float64(inserted))
	m.RecordsRejected.Add(float64(rejected))
}

// IncFallback counts a selector fallback.
func (m *Metrics) IncFallback(source string) {
	if m == nil {
		return
	}
	m.SelectorFallbacks.WithLabelValues(source).Inc()
}

// IncUnitError counts a unit error by kind.
func (m *Metrics) IncUnitError(kind string) {
	if m == nil {
		return
	}
	m.UnitErrors.WithLabelValues(kind).Inc()
}
