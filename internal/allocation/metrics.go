package allocation

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/civitas/internal/apperr"
)

// Metric names.
const (
	MetricAllocations       = "civitas_allocations_total"
	MetricAuthorityRequests = "civitas_authority_requests_total"
)

// Metrics records allocation outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	attempts *prometheus.CounterVec
	requests *prometheus.CounterVec
}

// NewMetrics creates unregistered allocation metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAllocations,
				Help: "Allocation attempts by outcome",
			},
			[]string{"outcome"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuthorityRequests,
				Help: "Authority requests created by type",
			},
			[]string{"type"},
		),
	}
}

// Register registers all metrics with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.attempts, m.requests} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeRequest(t RequestType) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) observe(err error) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "allocated"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrBadRequest), errors.Is(err, apperr.ErrForbidden):
		return "rejected"
	default:
		return "error"
	}
}
