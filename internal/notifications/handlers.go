package notifications

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

type notificationView struct {
	*domain.Notification
	TimeDisplay string `json:"time_display"`
}

// GET /notifications?type=purchase|chat|all
func (h *Handler) List(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	items, err := h.hub.List(c.Request().Context(), userID, c.QueryParam("type"))
	if err != nil {
		return err
	}
	now := h.hub.Now()
	out := make([]notificationView, 0, len(items))
	for _, n := range items {
		out = append(out, notificationView{Notification: n, TimeDisplay: TimeDisplay(n.CreatedAt, now)})
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": out})
}

// POST /notifications/mark-read
func (h *Handler) MarkRead(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		IDs []string `json:"notification_ids"`
	}
	if err := c.Bind(&req); err != nil || len(req.IDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "notification_ids required"})
	}

	n, err := h.hub.MarkRead(c.Request().Context(), req.IDs, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"marked": n})
}

// POST /notifications/read-all
func (h *Handler) MarkAllRead(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	n, err := h.hub.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"marked": n, "unread_count": 0})
}

// GET /notifications/unread-count
func (h *Handler) UnreadCount(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	n, err := h.hub.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"unread_count": n})
}
