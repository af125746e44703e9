package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncPage("discrete")
		m.ObservePage(time.Second)
		m.AddProducts("descriptor", 3)
		m.AddBatch(2, 1)
		m.IncFallback("discovered")
		m.IncUnitError("navigation")
	})
}

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.IncPage("discrete")
	m.IncPage("discrete")
	m.IncPage("infinite-scroll")
	m.AddProducts("descriptor", 24)
	m.AddProducts("generic", 0)
	m.AddBatch(20, 4)
	m.IncFallback("discovered")
	m.IncUnitError("persistence")
	m.ObservePage(3 * time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesTotal.WithLabelValues("discrete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesTotal.WithLabelValues("infinite-scroll")))
	assert.Equal(t, 24.0, testutil.ToFloat64(m.ProductsExtracted.WithLabelValues("descriptor")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.RecordsInserted))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RecordsRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SelectorFallbacks.WithLabelValues("discovered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnitErrors.WithLabelValues("persistence")))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "crawler_page_duration_seconds")
	assert.NotContains(t, names, "go_goroutines", "the registry is dedicated")
}
