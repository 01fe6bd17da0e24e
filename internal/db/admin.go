package db

import (
	"context"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type AdminRepo struct {
	q querier
}

var _ domain.AdminRepository = (*AdminRepo)(nil)

func (r *AdminRepo) Stats(ctx context.Context) (*domain.Stats, error) {
	s := &domain.Stats{}
	counts := []struct {
		dst   *int
		query string
	}{
		{&s.Listings, `SELECT COUNT(*) FROM listings`},
		{&s.SoldListings, `SELECT COUNT(*) FROM listings WHERE is_sold = TRUE`},
		{&s.PendingRequests, `SELECT COUNT(*) FROM purchase_requests WHERE status = 'pending'`},
		{&s.AcceptedRequests, `SELECT COUNT(*) FROM purchase_requests WHERE status = 'accepted'`},
		{&s.Rooms, `SELECT COUNT(*) FROM chat_rooms`},
		{&s.Messages, `SELECT COUNT(*) FROM messages`},
		{&s.Notifications, `SELECT COUNT(*) FROM notifications`},
		{&s.OpenReports, `SELECT COUNT(*) FROM item_reports WHERE resolved = FALSE`},
	}
	for _, c := range counts {
		if err := r.q.QueryRow(ctx, c.query).Scan(c.dst); err != nil {
			return nil, wrapErr("stats", err)
		}
	}
	return s, nil
}

// wipeOrder deletes children before parents.
var wipeOrder = []string{"messages", "chat_rooms", "notifications", "purchase_requests", "item_reports", "listings"}

func (r *AdminRepo) Wipe(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(wipeOrder))
	for _, table := range wipeOrder {
		res, err := r.q.Exec(ctx, `DELETE FROM `+table)
		if err != nil {
			return nil, wrapErr("wipe "+table, err)
		}
		out[table] = res.RowsAffected()
	}
	return out, nil
}
