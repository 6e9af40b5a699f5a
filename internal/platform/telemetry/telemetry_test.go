package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ConnectionAccepted()
	m.Message(OutcomeAccepted)
	m.SegmentErrors("x12", 2)
	m.RecordExtracted("claim")
	m.Reconciled(1, 1)
	m.InflightAdd(1)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCounters(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.ConnectionAccepted()
	m.ConnectionAccepted()
	m.Message(OutcomeRejected)
	m.SegmentErrors("hl7", 3)
	m.SegmentErrors("hl7", 0)
	m.RecordExtracted("observation")
	m.Reconciled(2, 1)
	m.InflightAdd(1)
	m.InflightAdd(-1)

	if got := testutil.ToFloat64(m.connections); got != 2 {
		t.Errorf("expected 2 connections, got %v", got)
	}
	if got := testutil.ToFloat64(m.messages.WithLabelValues(OutcomeRejected)); got != 1 {
		t.Errorf("expected 1 rejected message, got %v", got)
	}
	if got := testutil.ToFloat64(m.segmentErrors.WithLabelValues("hl7")); got != 3 {
		t.Errorf("expected 3 segment errors, got %v", got)
	}
	if got := testutil.ToFloat64(m.reconciled.WithLabelValues("matched")); got != 2 {
		t.Errorf("expected 2 matched, got %v", got)
	}
	if got := testutil.ToFloat64(m.reconciled.WithLabelValues("unmatched")); got != 1 {
		t.Errorf("expected 1 unmatched, got %v", got)
	}
	if got := testutil.ToFloat64(m.inflight); got != 0 {
		t.Errorf("expected inflight 0, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	m.RecordExtracted("claim")

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/metrics", m.Handler())
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`interchange_records_extracted_total{kind="claim"} 1`,
		`interchange_http_requests_total{method="GET",route="/boom",status="418"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}
