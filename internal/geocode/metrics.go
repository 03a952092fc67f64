package geocode

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricGeocodeRequests  = "civitas_geocode_requests_total"
	MetricGeocodeDuration  = "civitas_geocode_duration_seconds"
	MetricGeocodeCache     = "civitas_geocode_cache_total"
	MetricGeocodeCoalesced = "civitas_geocode_coalesced_total"
)

// Metrics records geocoder behaviour. A nil *Metrics is a no-op.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	cache    *prometheus.CounterVec
	coalesce prometheus.Counter
}

// NewMetrics creates unregistered geocoder metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGeocodeRequests,
				Help: "Upstream geocoding requests by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricGeocodeDuration,
				Help:    "Upstream geocoding latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGeocodeCache,
				Help: "Geocode cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		coalesce: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricGeocodeCoalesced,
			Help: "Lookups served by another in-flight identical lookup",
		}),
	}
}

// Register registers all metrics with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.cache, m.coalesce} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observe(source string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(source, outcome).Inc()
	m.duration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) cacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cache.WithLabelValues("hit").Inc()
	} else {
		m.cache.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) coalesced() {
	if m == nil {
		return
	}
	m.coalesce.Inc()
}
