package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.DocIndexed()
	m.DocIndexed()
	m.DocRejected("thin_content")
	m.SegmentFlushed()
	m.TermMerged(3)
	m.TermMerged(2)
	m.QueryDone("hit", 10*time.Millisecond)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	require.Equal(t, 2.0, testutil.ToFloat64(m.DocsIndexed))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DocsRejected.WithLabelValues("thin_content")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SegmentsFlushed))
	require.Equal(t, 2.0, testutil.ToFloat64(m.TermsMerged))
	require.Equal(t, 5.0, testutil.ToFloat64(m.PostingsMerged))
	require.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PostingCacheHits))
	require.Equal(t, 2.0, testutil.ToFloat64(m.PostingCacheMiss))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.DocIndexed()
		m.DocRejected("x")
		m.SegmentFlushed()
		m.TermMerged(1)
		m.QueryDone("hit", time.Second)
		m.CacheLookup(true)
	})
}

func TestHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.DocIndexed()

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "webindex_docs_indexed_total 1")
}

func TestCountersSummary(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.DocIndexed()
	m.DocRejected("thin_content")
	m.DocRejected("duplicate_url")
	m.QueryDone("hit", time.Millisecond)

	counters, err := Counters(reg)
	require.NoError(t, err)
	require.Equal(t, map[string]float64{
		"webindex_docs_indexed_total":  1,
		"webindex_docs_rejected_total": 2,
		"webindex_queries_total":       1,
	}, counters)
}
