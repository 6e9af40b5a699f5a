package clinical

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_Parse(t *testing.T) {
	h := NewHandler(newTestService(t, nil, nil, nil))
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(sampleORU))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Parse(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		MessageType  string                   `json:"message_type"`
		ControlID    string                   `json:"control_id"`
		Records      []map[string]string      `json:"records"`
		Observations []ObservationRecord      `json:"observations"`
		Diagnostics  []map[string]interface{} `json:"diagnostics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.MessageType != "ORU^R01" || resp.ControlID != "MSG00001" {
		t.Errorf("unexpected header fields: %+v", resp)
	}
	if len(resp.Records) != 3 || resp.Records[1]["Patient Name"] != "Doe John" {
		t.Errorf("unexpected records: %+v", resp.Records)
	}
	if len(resp.Observations) != 2 || resp.Observations[0].TestName != "TestX" {
		t.Errorf("unexpected observations: %+v", resp.Observations)
	}
}

func TestHandler_Parse_ValidationFailed(t *testing.T) {
	h := NewHandler(newTestService(t, nil, nil, nil))
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("PID|1||123||Doe^John||19800101|M\n"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Parse(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing required segment: OBR") {
		t.Errorf("expected validation errors in body, got %s", rec.Body.String())
	}
}

func TestHandler_Parse_EmptyBody(t *testing.T) {
	h := NewHandler(newTestService(t, nil, nil, nil))
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Parse(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListObservations(t *testing.T) {
	repo := newMockMessageRepo()
	svc := newTestService(t, repo, nil, nil)
	if _, err := svc.Parse(context.Background(), msg(sampleORU)); err != nil {
		t.Fatal(err)
	}
	h := NewHandler(svc)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListObservations(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data    []StoredObservation `json:"data"`
		Total   int                 `json:"total"`
		HasMore bool                `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Total != 2 || !resp.HasMore {
		t.Errorf("unexpected page: %+v", resp)
	}
}

func TestHandler_ListObservations_StorageDisabled(t *testing.T) {
	h := NewHandler(newTestService(t, nil, nil, nil))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.ListObservations(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", err)
	}
}
