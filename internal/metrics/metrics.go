// Package metrics holds the Prometheus collectors exposed on the metrics
// server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rcount"

// Inference kinds.
const (
	KindAdhoc  = "adhoc"
	KindSaved  = "saved"
	KindSimple = "simple"
)

var (
	// Labels: method, route (chi pattern), status
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Labels: kind (adhoc, saved, simple), result (ok or an error code)
	inferences = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fuzzy",
		Name:      "inferences_total",
		Help:      "Fuzzy inferences by kind and result",
	}, []string{"kind", "result"})

	inferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "fuzzy",
		Name:      "inference_duration_seconds",
		Help:      "Fuzzy inference latency in seconds, including system build",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
	}, []string{"kind"})

	// Labels: operation (calculate, find_optimal_k), result (ok, error)
	knnRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "knn",
		Name:      "requests_total",
		Help:      "Nearest-neighbor requests by operation and result",
	}, []string{"operation", "result"})

	knnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "knn",
		Name:      "duration_seconds",
		Help:      "Nearest-neighbor request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation"})

	// Labels: operation (store method name)
	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Store operation failures",
	}, []string{"operation"})
)

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveInference records one inference. An empty code means success.
func ObserveInference(kind, code string, d time.Duration) {
	if code == "" {
		code = "ok"
	}
	inferences.WithLabelValues(kind, code).Inc()
	inferenceDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveKNN records one classifier request.
func ObserveKNN(operation string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	knnRequests.WithLabelValues(operation, result).Inc()
	knnDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// StoreError counts a failed store call.
func StoreError(operation string) {
	storeErrors.WithLabelValues(operation).Inc()
}
