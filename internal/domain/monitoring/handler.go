package monitoring

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthwatch/healthwatch/internal/platform/auth"
	"github.com/healthwatch/healthwatch/pkg/pagination"
)

// Handler provides HTTP handlers for the caregiver dashboard.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the dashboard routes on the /api group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleViewer, auth.RoleCaregiver))
	read.GET("/patient", h.GetPatient)
	read.GET("/vitals", h.GetVitals)
	read.GET("/trend", h.GetTrend)
	read.GET("/health-data", h.GetHealthData)
	read.GET("/health-summary", h.GetHealthSummary)
	read.GET("/stats", h.GetStats)
	read.GET("/insights", h.ListInsights)

	write := api.Group("", auth.RequireRole(auth.RoleCaregiver))
	write.POST("/sync", h.Sync)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context())
	if err != nil {
		return httpError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetVitals(c echo.Context) error {
	v, err := h.svc.GetVitals(c.Request().Context())
	if err != nil {
		return httpError(err, "Vitals not found")
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetTrend(c echo.Context) error {
	trend, err := h.svc.GetTrend(c.Request().Context())
	if err != nil {
		return httpError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, trend)
}

func (h *Handler) GetHealthData(c echo.Context) error {
	samples, err := h.svc.ListHealthData(c.Request().Context(), periodParam(c))
	if err != nil {
		return httpError(err, "No health data found for this period")
	}
	return c.JSON(http.StatusOK, samples)
}

func (h *Handler) GetHealthSummary(c echo.Context) error {
	sum, err := h.svc.GetHealthSummary(c.Request().Context(), periodParam(c))
	if err != nil {
		return httpError(err, "No health data found for this period")
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) Sync(c echo.Context) error {
	view, err := h.svc.Sync(c.Request().Context())
	if err != nil {
		return httpError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return httpError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListInsights(c echo.Context) error {
	limit, err := pagination.LimitFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, err := h.svc.ListInsights(c.Request().Context(), c.QueryParam("state"), limit)
	if err != nil {
		return httpError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, items)
}

func periodParam(c echo.Context) string {
	if p := c.QueryParam("period"); p != "" {
		return p
	}
	return PeriodWeek
}

func httpError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFoundMsg)
	case errors.Is(err, ErrInvalidState):
		return echo.NewHTTPError(http.StatusBadRequest, "state must be stable or risk")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
