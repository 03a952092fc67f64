package outbox

import "github.com/prometheus/client_golang/prometheus"

// Metric names.
const (
	MetricOutboxDeliveries = "civitas_outbox_deliveries_total"
	MetricOutboxPending    = "civitas_outbox_pending"
)

// Delivery outcomes used as label values.
const (
	OutcomeDelivered = "delivered"
	OutcomeRetry     = "retry"
	OutcomeDropped   = "dropped"
)

// Metrics records outbox activity. A nil *Metrics is a no-op.
type Metrics struct {
	deliveries *prometheus.CounterVec
	pending    prometheus.Gauge
}

// NewMetrics creates unregistered outbox metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricOutboxDeliveries,
				Help: "Outbox delivery attempts by item kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricOutboxPending,
			Help: "Items waiting in the outbox after the last drain",
		}),
	}
}

// Register registers all metrics with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.deliveries, m.pending} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) delivery(kind Kind, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
