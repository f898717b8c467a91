package provisioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/artpar/hostprov/internal/core/domain"
)

var histogramBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Order outcomes used as metric labels.
const (
	OutcomeSuccess = "success"
	OutcomeWarning = "warning"
	OutcomeFailed  = "failed"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	orders       *prometheus.CounterVec
	orderLatency prometheus.Histogram
	steps        *prometheus.CounterVec
	stepLatency  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostprov",
			Subsystem: "provisioning",
			Name:      "orders_total",
			Help:      "Count of processed orders by outcome",
		}, []string{"outcome"}),
		orderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hostprov",
			Subsystem: "provisioning",
			Name:      "order_duration_seconds",
			Help:      "Latency distribution of complete pipeline runs",
			Buckets:   histogramBuckets,
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostprov",
			Subsystem: "provisioning",
			Name:      "steps_total",
			Help:      "Count of pipeline steps by status",
		}, []string{"step", "status"}),
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hostprov",
			Subsystem: "provisioning",
			Name:      "step_duration_seconds",
			Help:      "Latency distribution of pipeline steps",
			Buckets:   histogramBuckets,
		}, []string{"step"}),
	}

	for _, c := range []prometheus.Collector{m.orders, m.orderLatency, m.steps, m.stepLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeOrder(result domain.ProvisioningResult, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	switch {
	case !result.Success:
		outcome = OutcomeFailed
	case result.Warned():
		outcome = OutcomeWarning
	}
	m.orders.WithLabelValues(outcome).Inc()
	m.orderLatency.Observe(d.Seconds())
}

func (m *Metrics) countStep(step domain.StepName, status domain.StepStatus) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(string(step), string(status)).Inc()
}

func (m *Metrics) observeStep(step domain.StepName, d time.Duration) {
	if m == nil {
		return
	}
	m.stepLatency.WithLabelValues(string(step)).Observe(d.Seconds())
}
