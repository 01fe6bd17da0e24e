package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/swapmeet/internal/admin"
	"github.com/sudo-init-do/swapmeet/internal/domain"
	"github.com/sudo-init-do/swapmeet/internal/marketplace"
	"github.com/sudo-init-do/swapmeet/internal/middleware"
	"github.com/sudo-init-do/swapmeet/internal/notifications"
	"github.com/sudo-init-do/swapmeet/internal/testutil"
)

func seed(t *testing.T, store domain.Store) (*marketplace.Reports, string) {
	t.Helper()
	ctx := context.Background()
	rec := &testutil.Recorder{}
	engine := marketplace.NewEngine(store, notifications.NewHub(store, rec), rec)
	reports := marketplace.NewReports(store)

	l, err := engine.RegisterListing(ctx, "seller", "Desk")
	require.NoError(t, err)
	_, err = engine.RequestPurchase(ctx, l.ID, "buyer")
	require.NoError(t, err)
	_, rep, err := reports.Toggle(ctx, l.ID, "buyer", "Spam", nil)
	require.NoError(t, err)
	return reports, rep.ID
}

func TestStatsAndWipe(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	seed(t, store)

	s, err := admin.Stats(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Listings)
	assert.Equal(t, 1, s.PendingRequests)
	assert.Equal(t, 1, s.Notifications)
	assert.Equal(t, 1, s.OpenReports)

	deleted, err := admin.Wipe(ctx, store)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted["listings"])
	assert.EqualValues(t, 1, deleted["purchase_requests"])

	s, err = admin.Stats(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{}, *s)
}

func TestResolveReportHandler(t *testing.T) {
	store := testutil.NewStore(t)
	reports, reportID := seed(t, store)
	h := admin.NewHandler(store, reports)

	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.POST("/admin/reports/:id/resolve", h.ResolveReport, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", "admin-1")
			return next(c)
		}
	})
	e.GET("/admin/reports", h.ListReports)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reports/"+reportID+"/resolve", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reports/"+reportID+"/resolve", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Reports []domain.ItemReport `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Reports)
}
