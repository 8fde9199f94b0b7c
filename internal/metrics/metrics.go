// Package metrics exposes Prometheus collectors for the HTTP layer, the
// ledger and the scheduled jobs.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/roadpoints/internal/points"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	ledgerEvents *prometheus.CounterVec
	pointsMoved  *prometheus.CounterVec
	jobRuns      *prometheus.CounterVec
	jobRowErrors *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadpoints_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roadpoints_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "path"}),
		ledgerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadpoints_ledger_events_total",
			Help: "Committed ledger and order events by type",
		}, []string{"type"}),
		pointsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadpoints_points_total",
			Help: "Points credited or debited",
		}, []string{"direction"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadpoints_job_runs_total",
			Help: "Scheduled job runs by outcome",
		}, []string{"job", "result"}),
		jobRowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadpoints_job_row_failures_total",
			Help: "Rows a scheduled job could not process",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roadpoints_job_duration_seconds",
			Help:    "Scheduled job duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.ledgerEvents, m.pointsMoved,
		m.jobRuns, m.jobRowErrors, m.jobDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Notify counts committed engine events.
func (m *Metrics) Notify(_ context.Context, ev points.Event) {
	m.ledgerEvents.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type != points.EventPointsChanged {
		return
	}
	switch {
	case ev.Delta > 0:
		m.pointsMoved.WithLabelValues("credit").Add(float64(ev.Delta))
	case ev.Delta < 0:
		m.pointsMoved.WithLabelValues("debit").Add(float64(-ev.Delta))
	}
}

// ObserveJob records one run of a scheduled job.
func (m *Metrics) ObserveJob(job string, d time.Duration, rowFailures int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	if rowFailures > 0 {
		m.jobRowErrors.WithLabelValues(job).Add(float64(rowFailures))
	}
}
