package search

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/civitas/internal/apperr"
)

// Metric names.
const (
	MetricSearchRequests       = "civitas_search_requests_total"
	MetricSearchDuration       = "civitas_search_duration_seconds"
	MetricSearchCandidates     = "civitas_search_candidates"
	MetricSearchCorruptRecords = "civitas_search_corrupt_records_total"
	MetricDetailViews          = "civitas_detail_views_total"
)

// Metrics records search engine behaviour. A nil *Metrics is a no-op.
type Metrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	candidates prometheus.Histogram
	corrupt    prometheus.Counter
	details    *prometheus.CounterVec
}

// NewMetrics creates unregistered search metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchRequests,
				Help: "Search requests by sort mode and outcome",
			},
			[]string{"sort", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSearchDuration,
				Help:    "Search latency in seconds, including geocoding",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"sort"},
		),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSearchCandidates,
			Help:    "Candidates matching the filters per search, before pagination",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		corrupt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSearchCorruptRecords,
			Help: "Stored profiles skipped by search because they are malformed",
		}),
		details: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDetailViews,
				Help: "Civilian detail reads by privacy state",
			},
			[]string{"state"},
		),
	}
}

// Register registers all metrics with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.candidates, m.corrupt, m.details} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeSearch(sort SortMode, err error, d time.Duration) {
	if m == nil {
		return
	}
	if !sort.Valid() {
		sort = "invalid"
	}
	m.requests.WithLabelValues(string(sort), outcome(err)).Inc()
	m.duration.WithLabelValues(string(sort)).Observe(d.Seconds())
}

func (m *Metrics) observeCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

func (m *Metrics) corruptRecord() {
	if m == nil {
		return
	}
	m.corrupt.Inc()
}

func (m *Metrics) detailView(state string) {
	if m == nil {
		return
	}
	m.details.WithLabelValues(state).Inc()
}

// outcome buckets an error into a low-cardinality label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperr.ErrInvalidQuery), errors.Is(err, apperr.ErrInvalidLocation):
		return "invalid"
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		return "upstream_error"
	default:
		return "error"
	}
}
