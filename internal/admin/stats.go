// Package admin exposes operator views over marketplace data.
package admin

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/swapmeet/internal/domain"
	"github.com/sudo-init-do/swapmeet/internal/marketplace"
)

type Handler struct {
	store   domain.Store
	reports *marketplace.Reports
}

func NewHandler(store domain.Store, reports *marketplace.Reports) *Handler {
	return &Handler{store: store, reports: reports}
}

// Stats counts rows across the marketplace tables in one snapshot.
func Stats(ctx context.Context, store domain.Store) (*domain.Stats, error) {
	var s *domain.Stats
	err := store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		s, err = r.Admin.Stats(ctx)
		return err
	})
	return s, err
}

// Wipe deletes all marketplace data and returns rows removed per table.
func Wipe(ctx context.Context, store domain.Store) (map[string]int64, error) {
	var out map[string]int64
	err := store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		out, err = r.Admin.Wipe(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Warn().Interface("deleted", out).Msg("marketplace data wiped")
	return out, nil
}

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	s, err := Stats(c.Request().Context(), h.store)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}
