// Package metrics defines the Prometheus collectors for index builds and
// queries. All methods are safe on a nil *Metrics, which disables recording.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	DocsIndexed      prometheus.Counter
	DocsRejected     *prometheus.CounterVec
	SegmentsFlushed  prometheus.Counter
	TermsMerged      prometheus.Counter
	PostingsMerged   prometheus.Counter
	QueriesTotal     *prometheus.CounterVec
	QueryLatency     prometheus.Histogram
	PostingCacheHits prometheus.Counter
	PostingCacheMiss prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webindex_docs_indexed_total",
			Help: "Documents accepted into the index.",
		}),
		DocsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webindex_docs_rejected_total",
			Help: "Documents skipped during the build, by reason.",
		}, []string{"reason"}),
		SegmentsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webindex_segments_flushed_total",
			Help: "Partial index segments written to disk.",
		}),
		TermsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webindex_terms_merged_total",
			Help: "Terms written to the final index.",
		}),
		PostingsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webindex_postings_merged_total",
			Help: "Postings written to the final index.",
		}),
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webindex_queries_total",
			Help: "Queries by outcome (hit, no_match, empty, error).",
		}, []string{"result"}),
		QueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webindex_query_latency_seconds",
			Help:    "Query latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		PostingCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webindex_posting_cache_hits_total",
			Help: "Posting list lookups served from memory.",
		}),
		PostingCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webindex_posting_cache_misses_total",
			Help: "Posting list lookups read from the index file.",
		}),
	}

	reg.MustRegister(
		m.DocsIndexed,
		m.DocsRejected,
		m.SegmentsFlushed,
		m.TermsMerged,
		m.PostingsMerged,
		m.QueriesTotal,
		m.QueryLatency,
		m.PostingCacheHits,
		m.PostingCacheMiss,
	)
	return m
}

func (m *Metrics) DocIndexed() {
	if m == nil {
		return
	}
	m.DocsIndexed.Inc()
}

func (m *Metrics) DocRejected(reason string) {
	if m == nil {
		return
	}
	m.DocsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SegmentFlushed() {
	if m == nil {
		return
	}
	m.SegmentsFlushed.Inc()
}

func (m *Metrics) TermMerged(postings int) {
	if m == nil {
		return
	}
	m.TermsMerged.Inc()
	m.PostingsMerged.Add(float64(postings))
}

func (m *Metrics) QueryDone(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(result).Inc()
	m.QueryLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.PostingCacheHits.Inc()
	} else {
		m.PostingCacheMiss.Inc()
	}
}

// HandlerFor serves only the collectors of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Counters gathers g and returns the non-zero counters by family name,
// summed over their label values.
func Counters(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	counters := make(map[string]float64)
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
		if total != 0 {
			counters[mf.GetName()] = total
		}
	}
	return counters, nil
}
