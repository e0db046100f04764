package harness

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	submitted    prometheus.Counter
	confirmed    prometheus.Counter
	failed       prometheus.Counter
	confirmation prometheus.Histogram
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harness", Subsystem: "invocations", Name: "submitted_total",
			Help: "invocations submitted to the ledger",
		}),
		confirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harness", Subsystem: "invocations", Name: "confirmed_total",
			Help: "invocations confirmed by the ledger",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harness", Subsystem: "invocations", Name: "failed_total",
			Help: "invocations rejected or unconfirmed",
		}),
		confirmation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harness", Subsystem: "invocations", Name: "confirmation_duration_seconds",
			Help:    "time between submission and confirmation",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	if registry != nil {
		registry.MustRegister(m.submitted, m.confirmed, m.failed, m.confirmation)
	}
	return m
}
