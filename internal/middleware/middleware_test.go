package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/swapmeet/internal/domain"
	"github.com/sudo-init-do/swapmeet/internal/utils"
)

const secret = "test-secret"

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	return e
}

func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get("user_id"), "role": c.Get("role")})
}

func TestJWTMiddleware(t *testing.T) {
	e := newEcho()
	e.GET("/me", whoami, JWTMiddleware(secret))

	tok, err := utils.IssueToken(secret, "u1", "member", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"header", "/me", "Bearer " + tok, http.StatusOK},
		{"query", "/me?token=" + tok, "", http.StatusOK},
		{"missing", "/me", "", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)

			if tt.want == http.StatusOK {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "u1", body["user_id"])
				assert.Equal(t, "member", body["role"])
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	e := newEcho()
	g := e.Group("/admin", JWTMiddleware(secret), RequireRoles("admin"))
	g.GET("/stats", whoami)

	admin, err := utils.IssueToken(secret, "a", "admin", time.Hour)
	require.NoError(t, err)
	member, err := utils.IssueToken(secret, "m", "member", time.Hour)
	require.NoError(t, err)

	for tok, want := range map[string]int{admin: http.StatusOK, member: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
}

func TestErrorHandlerMapsDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: request is accepted", domain.ErrInvalidState), http.StatusConflict},
		{domain.ErrDuplicateRequest, http.StatusConflict},
		{domain.ErrAlreadySold, http.StatusConflict},
		{domain.ErrSelfPurchase, http.StatusBadRequest},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrTxConflict, http.StatusServiceUnavailable},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			e := newEcho()
			e.GET("/", func(c echo.Context) error { return tt.err })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.want, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.want >= http.StatusInternalServerError {
				assert.Equal(t, http.StatusText(tt.want), body["error"], "server-side causes are not echoed")
			} else {
				assert.Equal(t, tt.err.Error(), body["error"])
			}
		})
	}
}

func TestErrorHandlerPassesEchoErrors(t *testing.T) {
	e := newEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
