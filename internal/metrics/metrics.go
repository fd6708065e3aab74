// Package metrics records Prometheus metrics for backend operations.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

const (
	KindSecret = "secret"
	KindObject = "object"
)

var (
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	metricsOnce sync.Once
)

// InitMetrics registers the collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		operationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multicloud_backend_operations_total",
				Help: "Total number of backend operations by outcome",
			},
			[]string{"backend", "kind", "op", "status"},
		)

		operationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multicloud_backend_operation_duration_seconds",
				Help:    "Duration of backend operations in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"backend", "kind", "op"},
		)
	})
}

// Status classifies an operation error for the status label.
func Status(err error) string {
	switch {
	case err == nil:
		return "success"
	case mcerrors.IsNotFound(err):
		return "not_found"
	case mcerrors.IsDecryption(err):
		return "decryption_error"
	case mcerrors.IsConfiguration(err):
		return "configuration_error"
	case mcerrors.IsInvalidKey(err):
		return "invalid_key"
	default:
		return "error"
	}
}

// Record counts one operation and observes its duration.
func Record(backend, kind, op string, err error, elapsed time.Duration) {
	InitMetrics()
	operationsTotal.WithLabelValues(backend, kind, op, Status(err)).Inc()
	operationDuration.WithLabelValues(backend, kind, op).Observe(elapsed.Seconds())
}
