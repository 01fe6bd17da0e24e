package db

import (
	"context"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type ListingRepo struct {
	q querier
}

var _ domain.ListingRepository = (*ListingRepo)(nil)

func (r *ListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO listings (id, seller_id, title, is_sold, created_at) VALUES ($1, $2, $3, $4, $5)`,
		l.ID, l.SellerID, l.Title, l.IsSold, l.CreatedAt,
	)
	if err != nil {
		return wrapErr("insert listing", err)
	}
	return nil
}

func (r *ListingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	l := &domain.Listing{}
	err := r.q.QueryRow(ctx,
		`SELECT id, seller_id, title, is_sold, created_at FROM listings WHERE id = $1`, id,
	).Scan(&l.ID, &l.SellerID, &l.Title, &l.IsSold, &l.CreatedAt)
	if err != nil {
		return nil, wrapErr("get listing", err)
	}
	return l, nil
}

func (r *ListingRepo) MarkSold(ctx context.Context, id string) (bool, error) {
	res, err := r.q.Exec(ctx, `UPDATE listings SET is_sold = TRUE WHERE id = $1 AND is_sold = FALSE`, id)
	if err != nil {
		return false, wrapErr("mark listing sold", err)
	}
	return res.RowsAffected() == 1, nil
}
