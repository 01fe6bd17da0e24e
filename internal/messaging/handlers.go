package messaging

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	rooms  *Directory
	ledger *Ledger
}

func NewHandler(rooms *Directory, ledger *Ledger) *Handler {
	return &Handler{rooms: rooms, ledger: ledger}
}

func currentUser(c echo.Context) (string, bool) {
	userID, ok := c.Get("user_id").(string)
	return userID, ok && userID != ""
}

// GET /chat/rooms
func (h *Handler) ListRooms(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rooms, err := h.rooms.ListRooms(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": rooms})
}

// POST /chat/rooms
// Accepts user_id and item_id from the JSON body or the query string.
func (h *Handler) OpenRoom(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		UserID string `json:"user_id" query:"user_id"`
		ItemID string `json:"item_id" query:"item_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.UserID == "" {
		req.UserID = c.QueryParam("user_id")
	}
	if req.ItemID == "" {
		req.ItemID = c.QueryParam("item_id")
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}

	var itemID *string
	if req.ItemID != "" {
		itemID = &req.ItemID
	}
	room, err := h.rooms.GetOrCreateRoom(c.Request().Context(), userID, req.UserID, itemID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"room": room})
}

// DELETE /chat/rooms/:id
func (h *Handler) DeleteRoom(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	if err := h.rooms.DeleteRoom(c.Request().Context(), c.Param("id"), userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GET /chat/rooms/:id/messages
func (h *Handler) History(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	msgs, err := h.ledger.FetchHistory(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// POST /chat/rooms/:id/messages
// The receiver defaults to the other participant when omitted.
func (h *Handler) Send(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		ReceiverID string `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	ctx := c.Request().Context()
	roomID := c.Param("id")
	if req.ReceiverID == "" {
		room, err := h.rooms.Room(ctx, roomID, userID)
		if err != nil {
			return err
		}
		req.ReceiverID = room.Other(userID)
	}

	msg, err := h.ledger.Send(ctx, roomID, userID, req.ReceiverID, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": msg})
}

// POST /chat/rooms/:id/read
func (h *Handler) MarkRead(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	n, err := h.ledger.MarkRoomRead(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"marked": n})
}

// GET /chat/rooms/:id/unread-count
func (h *Handler) RoomUnreadCount(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	n, err := h.ledger.RoomUnreadCount(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"unread_count": n})
}

// GET /chat/unread-count
func (h *Handler) UnreadCount(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	n, err := h.ledger.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"unread_count": n})
}
