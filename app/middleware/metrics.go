// Package middleware contains HTTP middleware for the submission API.
package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Pipeline-level counters, incremented by the submission handlers after a
// run finishes.
var (
	pipelineRowsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etl_rows_processed_total",
		Help: "Input rows seen across all pipeline runs",
	})

	pipelineRowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_rows_dropped_total",
			Help: "Rows removed by the validator, by reason",
		},
		[]string{"reason"},
	)

	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_runs_total",
			Help: "Pipeline runs by terminal status",
		},
		[]string{"status"},
	)

	profilePushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etl_profile_push_errors_total",
		Help: "Records the profile API failed to classify, retries included",
	})
)

// RecordRun updates the pipeline counters for one finished run.
func RecordRun(status string, inputRows, droppedImages, droppedCoords int) {
	pipelineRunsTotal.WithLabelValues(status).Inc()
	pipelineRowsProcessed.Add(float64(inputRows))
	pipelineRowsDropped.WithLabelValues("images").Add(float64(droppedImages))
	pipelineRowsDropped.WithLabelValues("coordinates").Add(float64(droppedCoords))
}

// RecordPushErrors counts records the profile push could not classify.
func RecordPushErrors(n int) {
	profilePushErrors.Add(float64(n))
}

// Metrics returns a Fiber v3 middleware that records basic Prometheus
// metrics. Labels stay low-cardinality by using the matched route template
// when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  route,
			"status": strconv.Itoa(c.Response().StatusCode()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}
