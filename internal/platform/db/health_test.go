package db

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHealthHandler_Disabled(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := HealthHandler(nil)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "disabled" {
		t.Errorf("expected status 'disabled', got %v", body["status"])
	}
}

func TestPoolStats_JSON(t *testing.T) {
	stats := &PoolStats{TotalConns: 2, MaxConns: 10, AcquireDuration: "1.5s", Healthy: true}
	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["total_conns"] != float64(2) || got["max_conns"] != float64(10) || got["healthy"] != true {
		t.Errorf("unexpected JSON: %s", data)
	}
}
