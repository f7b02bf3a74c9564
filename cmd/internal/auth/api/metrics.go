package authapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-operation request counts and latency.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the auth collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unet",
			Subsystem: "auth",
			Name:      "requests_total",
			Help:      "Auth operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "unet",
			Subsystem: "auth",
			Name:      "request_duration_seconds",
			Help:      "Auth operation latency.",
			// Password hashing dominates; buckets cover 1ms..~4s.
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 13),
		}, []string{"op"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
