package clinical

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/interchange/internal/platform/auth"
	"github.com/ehr/interchange/internal/platform/hl7v2"
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
	g := api.Group("", auth.RequireRole(auth.RoleClinical))
	g.POST("/hl7v2/parse", h.Parse)
	g.GET("/observations", h.ListObservations)
}

type parseResponse struct {
	MessageType  string               `json:"message_type"`
	ControlID    string               `json:"control_id"`
	Records      []interface{}        `json:"records"`
	Observations []ObservationRecord  `json:"observations"`
	Diagnostics  []segment.Diagnostic `json:"diagnostics"`
}

func (h *Handler) Parse(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Parse(c.Request().Context(), segment.Message{Source: "api", Text: string(body)})
	if errors.Is(err, hl7v2.ErrNoSegments) {
		return echo.NewHTTPError(http.StatusBadRequest, "request body is empty")
	}
	if err != nil {
		var vfe *segment.ValidationFailedError
		if errors.As(err, &vfe) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"message": "validation failed",
				"errors":  vfe.Errors,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	diags := res.Diagnostics
	if diags == nil {
		diags = []segment.Diagnostic{}
	}
	return c.JSON(http.StatusOK, parseResponse{
		MessageType:  res.Message.Type(),
		ControlID:    res.Message.ControlID(),
		Records:      documentEntries(res.Records),
		Observations: res.Observations,
		Diagnostics:  diags,
	})
}

func (h *Handler) ListObservations(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListObservations(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		if errors.Is(err, ErrStorageDisabled) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
