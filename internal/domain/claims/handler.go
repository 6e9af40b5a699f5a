package claims

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/interchange/internal/platform/auth"
	"github.com/ehr/interchange/internal/platform/segment"
	"github.com/ehr/interchange/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleBilling))
	g.POST("/claims/analyze", h.Analyze)
	g.POST("/reconciliations", h.CreateReconciliation)
	g.GET("/reconciliations", h.ListReconciliations)
	g.GET("/reconciliations/:id", h.GetReconciliation)
}

type extractedRecord struct {
	Position int            `json:"position"`
	Tag      string         `json:"tag"`
	Kind     string         `json:"kind"`
	Record   segment.Record `json:"record"`
}

type analyzeResponse struct {
	Claims      []ClaimRecord        `json:"claims"`
	Records     []extractedRecord    `json:"records"`
	Dump        string               `json:"dump"`
	Diagnostics []segment.Diagnostic `json:"diagnostics"`
}

type reconcileRequest struct {
	Claims   string `json:"claims"`
	Payments string `json:"payments"`
}

func (h *Handler) Analyze(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(string(body)) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "request body is empty")
	}

	a, err := h.svc.Analyze(c.Request().Context(), segment.Message{Source: "api", Text: string(body)})
	if err != nil {
		return validationResponse(c, err)
	}

	var dump strings.Builder
	if err := WriteDump(&dump, a); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := analyzeResponse{
		Claims:      a.Claims.Values(),
		Records:     []extractedRecord{},
		Dump:        dump.String(),
		Diagnostics: nonNil(a.Diagnostics),
	}
	for _, e := range a.Extractions {
		if e.Record == nil {
			continue
		}
		resp.Records = append(resp.Records, extractedRecord{
			Position: e.Position,
			Tag:      e.Segment.Tag(),
			Kind:     e.Record.Kind(),
			Record:   e.Record,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateReconciliation(c echo.Context) error {
	var req reconcileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Claims) == "" || strings.TrimSpace(req.Payments) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "claims and payments are required")
	}

	run, err := h.svc.Reconcile(c.Request().Context(),
		segment.Message{Source: "api:claims", Text: req.Claims},
		segment.Message{Source: "api:payments", Text: req.Payments})
	if err != nil {
		return validationResponse(c, err)
	}
	return c.JSON(http.StatusCreated, run)
}

func (h *Handler) ListReconciliations(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRuns(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return storageError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetReconciliation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	run, err := h.svc.GetRun(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "reconciliation not found")
		}
		return storageError(err)
	}
	return c.JSON(http.StatusOK, run)
}

func validationResponse(c echo.Context, err error) error {
	var vfe *segment.ValidationFailedError
	if errors.As(err, &vfe) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"message": "validation failed",
			"source":  vfe.Source,
			"errors":  vfe.Errors,
		})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func storageError(err error) error {
	if errors.Is(err, ErrStorageDisabled) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
