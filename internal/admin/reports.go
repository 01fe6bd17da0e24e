package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GET /admin/reports
func (h *Handler) ListReports(c echo.Context) error {
	items, err := h.reports.Open(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"reports": items})
}

// POST /admin/reports/:id/resolve
func (h *Handler) ResolveReport(c echo.Context) error {
	adminID, ok := c.Get("user_id").(string)
	if !ok || adminID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	reportID := c.Param("id")
	if reportID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing report id"})
	}
	if err := h.reports.Resolve(c.Request().Context(), reportID, adminID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "report resolved", "report_id": reportID})
}
