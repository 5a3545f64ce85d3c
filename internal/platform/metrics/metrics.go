package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsConfirmed prometheus.Counter
	SessionsTimedOut  prometheus.Counter
	SessionsFailed    prometheus.Counter
	SessionsCancelled prometheus.Counter
	SessionsEvicted   prometheus.Counter
	ActiveSessions    prometheus.Gauge
	HandshakeDuration prometheus.Histogram
}

// New creates all metrics and registers them on the default registry.
func New() *Metrics {
	return newWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewForTesting creates metrics on a throwaway registry so parallel tests
// never collide on registration.
func NewForTesting() *Metrics {
	return newWith(promauto.With(prometheus.NewRegistry()))
}

func newWith(factory promauto.Factory) *Metrics {
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrlink_sessions_started_total",
			Help: "Total number of handshakes opened",
		}),
		SessionsConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrlink_sessions_confirmed_total",
			Help: "Total number of handshakes that produced a credential",
		}),
		SessionsTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrlink_sessions_timeout_total",
			Help: "Total number of handshakes that expired unconfirmed",
		}),
		SessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrlink_sessions_failed_total",
			Help: "Total number of handshakes that ended in an error",
		}),
		SessionsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrlink_sessions_cancelled_total",
			Help: "Total number of handshakes cancelled by the caller",
		}),
		SessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrlink_sessions_evicted_total",
			Help: "Total number of in-flight handshakes replaced by a newer one",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qrlink_sessions_active",
			Help: "Number of handshakes currently waiting for confirmation",
		}),
		HandshakeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "qrlink_handshake_duration_seconds",
			Help:    "Time from handshake open to terminal state",
			Buckets: []float64{1, 5, 15, 30, 60, 90, 120, 150},
		}),
	}
}
