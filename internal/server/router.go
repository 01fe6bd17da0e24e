// Package server assembles the HTTP surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/swapmeet/internal/admin"
	"github.com/sudo-init-do/swapmeet/internal/domain"
	"github.com/sudo-init-do/swapmeet/internal/marketplace"
	"github.com/sudo-init-do/swapmeet/internal/messaging"
	mware "github.com/sudo-init-do/swapmeet/internal/middleware"
	"github.com/sudo-init-do/swapmeet/internal/notifications"
)

type Deps struct {
	AppName      string
	JWTSecret    string
	CORSOrigins  []string
	RateLimitRPS float64
	Store        domain.Store

	Marketplace   *marketplace.Handler
	Messaging     *messaging.Handler
	Notifications *notifications.Handler
	Admin         *admin.Handler
	Realtime      *messaging.RealtimeHub
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = mware.ErrorHandler

	// Basic middleware
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(mware.RequestLogger())
	if len(d.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: d.CORSOrigins}))
	}

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": d.AppName})
	})
	e.GET("/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	auth := mware.JWTMiddleware(d.JWTSecret)

	// Live events; the token comes in the query string
	e.GET("/ws", d.Realtime.Serve, auth)

	// Protected routes
	api := e.Group("", auth)
	if d.RateLimitRPS > 0 {
		api.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(d.RateLimitRPS))))
	}
	api.Use(mware.Timeout(15 * time.Second))

	m := d.Marketplace
	api.POST("/listings", m.CreateListing)
	api.GET("/listings/:id", m.GetListing)
	api.POST("/listings/:id/purchase-requests", m.RequestPurchase)
	api.POST("/listings/:id/report", m.ToggleReport)
	api.GET("/reports/me", m.MyReports)
	api.GET("/purchase-requests/sent", m.Sent)
	api.GET("/purchase-requests/received", m.Received)
	api.GET("/purchase-requests/:id", m.GetRequest)
	api.POST("/purchase-requests/:id/accept", m.Accept)
	api.POST("/purchase-requests/:id/decline", m.Decline)
	api.POST("/purchase-requests/:id/cancel", m.Cancel)

	chat := d.Messaging
	api.GET("/chat/rooms", chat.ListRooms)
	api.POST("/chat/rooms", chat.OpenRoom)
	api.DELETE("/chat/rooms/:id", chat.DeleteRoom)
	api.GET("/chat/rooms/:id/messages", chat.History)
	api.POST("/chat/rooms/:id/messages", chat.Send)
	api.POST("/chat/rooms/:id/read", chat.MarkRead)
	api.GET("/chat/rooms/:id/unread-count", chat.RoomUnreadCount)
	api.GET("/chat/unread-count", chat.UnreadCount)

	n := d.Notifications
	api.GET("/notifications", n.List)
	api.POST("/notifications/mark-read", n.MarkRead)
	api.POST("/notifications/read-all", n.MarkAllRead)
	api.GET("/notifications/unread-count", n.UnreadCount)

	// Admin routes
	adm := e.Group("/admin", auth, mware.RequireRoles("admin"))
	adm.GET("/stats", d.Admin.Stats)
	adm.GET("/reports", d.Admin.ListReports)
	adm.POST("/reports/:id/resolve", d.Admin.ResolveReport)

	return e
}
