// Package telemetry exposes Prometheus metrics for ingestion, extraction,
// reconciliation and the HTTP API. A nil *Metrics is valid and records
// nothing, so components can run without metrics wired in.
package telemetry

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interchange"

// Message outcomes for the real-time listener.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeEmpty    = "empty"
)

// Metrics holds every collector the service registers.
type Metrics struct {
	registry *prometheus.Registry

	connections   prometheus.Counter
	messages      *prometheus.CounterVec // outcome
	segmentErrors *prometheus.CounterVec // format
	records       *prometheus.CounterVec // kind
	reconciled    *prometheus.CounterVec // result
	inflight      prometheus.Gauge
	httpRequests  *prometheus.CounterVec // method, route, status
	httpDuration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on a fresh registry
// together with the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections accepted by the real-time listener",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Real-time payloads by outcome",
		}, []string{"outcome"}), // accepted, rejected, empty
		segmentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_errors_total",
			Help:      "Segments skipped because a required field was missing",
		}, []string{"format"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Typed records extracted from segments",
		}, []string{"kind"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_claims_total",
			Help:      "Claims processed by reconciliation",
		}, []string{"result"}), // matched, unmatched
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_inflight",
			Help:      "Connections currently being processed",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	collectors := []prometheus.Collector{
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.connections, m.messages, m.segmentErrors, m.records,
		m.reconciled, m.inflight, m.httpRequests, m.httpDuration,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) Message(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SegmentErrors(format string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.segmentErrors.WithLabelValues(format).Add(float64(n))
}

func (m *Metrics) RecordExtracted(kind string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(kind).Inc()
}

// Reconciled adds the matched and unmatched counts of one run.
func (m *Metrics) Reconciled(matched, unmatched int) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues("matched").Add(float64(matched))
	m.reconciled.WithLabelValues("unmatched").Add(float64(unmatched))
}

// InflightAdd moves the in-flight connection gauge by delta.
func (m *Metrics) InflightAdd(delta int) {
	if m == nil {
		return
	}
	m.inflight.Add(float64(delta))
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
