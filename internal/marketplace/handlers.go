package marketplace

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type Handler struct {
	engine  *Engine
	reports *Reports
}

func NewHandler(engine *Engine, reports *Reports) *Handler {
	return &Handler{engine: engine, reports: reports}
}

func currentUser(c echo.Context) (string, bool) {
	userID, ok := c.Get("user_id").(string)
	return userID, ok && userID != ""
}

// =========================
// CreateListing - seller registers a listing reference
// =========================
func (h *Handler) CreateListing(c echo.Context) error {
	sellerID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	l, err := h.engine.RegisterListing(c.Request().Context(), sellerID, req.Title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"listing": l})
}

// =========================
// GetListing - listing with negotiation state
// =========================
func (h *Handler) GetListing(c echo.Context) error {
	viewerID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	detail, err := h.engine.ListingDetail(c.Request().Context(), c.Param("id"), viewerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"listing": detail})
}

// =========================
// RequestPurchase - buyer asks to buy
// =========================
func (h *Handler) RequestPurchase(c echo.Context) error {
	buyerID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	listingID := c.Param("id")
	if listingID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing listing id in URL"})
	}

	pr, err := h.engine.RequestPurchase(c.Request().Context(), listingID, buyerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"purchase_request": pr,
		"message":          "Purchase request sent. Awaiting seller response.",
	})
}

// =========================
// Sent / Received - request inboxes
// =========================
func (h *Handler) Sent(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	out, err := h.engine.Sent(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"purchase_requests": out})
}

func (h *Handler) Received(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	out, err := h.engine.Received(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"purchase_requests": out})
}

// =========================
// Accept / Decline / Cancel - state transitions
// =========================
func (h *Handler) Accept(c echo.Context) error {
	return h.transition(c, h.engine.Accept)
}

func (h *Handler) Decline(c echo.Context) error {
	return h.transition(c, h.engine.Decline)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, h.engine.Cancel)
}

func (h *Handler) transition(c echo.Context, apply func(ctx context.Context, requestID, actorID string) (*domain.PurchaseRequest, error)) error {
	actorID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	requestID := c.Param("id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing request id in URL"})
	}

	pr, err := apply(c.Request().Context(), requestID, actorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"purchase_request": pr})
}

// =========================
// GetRequest - a single request, for its requester or the seller
// =========================
func (h *Handler) GetRequest(c echo.Context) error {
	viewerID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	pr, err := h.engine.Request(c.Request().Context(), c.Param("id"), viewerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"purchase_request": pr})
}

// =========================
// ToggleReport - report or unreport a listing
// =========================
func (h *Handler) ToggleReport(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Reason  string  `json:"reason"`
		Details *string `json:"details"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	reported, report, err := h.reports.Toggle(c.Request().Context(), c.Param("id"), userID, req.Reason, req.Details)
	if err != nil {
		return err
	}
	if !reported {
		return c.JSON(http.StatusOK, echo.Map{"reported": false, "message": "Item unreported successfully"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"reported": true, "report": report, "message": "Item reported successfully"})
}

// =========================
// MyReports - reports filed by the caller
// =========================
func (h *Handler) MyReports(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	out, err := h.reports.Mine(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"reports": out})
}
