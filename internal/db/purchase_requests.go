package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type PurchaseRequestRepo struct {
	q querier
}

var _ domain.PurchaseRequestRepository = (*PurchaseRequestRepo)(nil)

const purchaseRequestColumns = `id, listing_id, requester_id, status, is_active, created_at, updated_at`

func scanPurchaseRequest(row pgx.Row) (*domain.PurchaseRequest, error) {
	pr := &domain.PurchaseRequest{}
	var status string
	if err := row.Scan(&pr.ID, &pr.ListingID, &pr.RequesterID, &status, &pr.IsActive, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
		return nil, err
	}
	pr.Status = domain.RequestStatus(status)
	return pr, nil
}

func (r *PurchaseRequestRepo) Create(ctx context.Context, pr *domain.PurchaseRequest) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO purchase_requests (`+purchaseRequestColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pr.ID, pr.ListingID, pr.RequesterID, string(pr.Status), pr.IsActive, pr.CreatedAt, pr.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert purchase request", err)
	}
	return nil
}

func (r *PurchaseRequestRepo) GetByID(ctx context.Context, id string) (*domain.PurchaseRequest, error) {
	pr, err := scanPurchaseRequest(r.q.QueryRow(ctx,
		`SELECT `+purchaseRequestColumns+` FROM purchase_requests WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapErr("get purchase request", err)
	}
	return pr, nil
}

func (r *PurchaseRequestRepo) FindPending(ctx context.Context, listingID, requesterID string) (*domain.PurchaseRequest, error) {
	pr, err := scanPurchaseRequest(r.q.QueryRow(ctx,
		`SELECT `+purchaseRequestColumns+` FROM purchase_requests
         WHERE listing_id = $1 AND requester_id = $2 AND status = 'pending'`, listingID, requesterID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find pending purchase request", err)
	}
	return pr, nil
}

func (r *PurchaseRequestRepo) Transition(ctx context.Context, id string, from, to domain.RequestStatus, active bool, at time.Time) (bool, error) {
	res, err := r.q.Exec(ctx,
		`UPDATE purchase_requests SET status = $1, is_active = $2, updated_at = $3
         WHERE id = $4 AND status = $5`,
		string(to), active, at, id, string(from),
	)
	if err != nil {
		return false, wrapErr("transition purchase request", err)
	}
	return res.RowsAffected() == 1, nil
}

func (r *PurchaseRequestRepo) DeclinePending(ctx context.Context, listingID, exceptID string, at time.Time) ([]*domain.PurchaseRequest, error) {
	rows, err := r.q.Query(ctx,
		`UPDATE purchase_requests SET status = 'declined', is_active = FALSE, updated_at = $1
         WHERE listing_id = $2 AND status = 'pending' AND id <> $3
         RETURNING `+purchaseRequestColumns,
		at, listingID, exceptID,
	)
	if err != nil {
		return nil, wrapErr("decline pending purchase requests", err)
	}
	defer rows.Close()

	var out []*domain.PurchaseRequest
	for rows.Next() {
		pr, err := scanPurchaseRequest(rows)
		if err != nil {
			return nil, wrapErr("scan declined purchase request", err)
		}
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("decline pending purchase requests", err)
	}
	return out, nil
}

func (r *PurchaseRequestRepo) ListByRequester(ctx context.Context, requesterID string) ([]*domain.PurchaseRequestView, error) {
	return r.listViews(ctx, `WHERE pr.requester_id = $1`, requesterID)
}

func (r *PurchaseRequestRepo) ListBySeller(ctx context.Context, sellerID string) ([]*domain.PurchaseRequestView, error) {
	return r.listViews(ctx, `WHERE l.seller_id = $1`, sellerID)
}

func (r *PurchaseRequestRepo) listViews(ctx context.Context, where string, arg string) ([]*domain.PurchaseRequestView, error) {
	rows, err := r.q.Query(ctx,
		`SELECT pr.id, pr.listing_id, pr.requester_id, pr.status, pr.is_active, pr.created_at, pr.updated_at,
                l.title, l.seller_id, l.is_sold
         FROM purchase_requests pr
         JOIN listings l ON l.id = pr.listing_id `+where+`
         ORDER BY pr.created_at DESC, pr.id DESC`, arg,
	)
	if err != nil {
		return nil, wrapErr("list purchase requests", err)
	}
	defer rows.Close()

	var out []*domain.PurchaseRequestView
	for rows.Next() {
		v := &domain.PurchaseRequestView{}
		var status string
		if err := rows.Scan(&v.ID, &v.ListingID, &v.RequesterID, &status, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
			&v.ListingTitle, &v.SellerID, &v.ListingSold); err != nil {
			return nil, wrapErr("scan purchase request", err)
		}
		v.Status = domain.RequestStatus(status)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list purchase requests", err)
	}
	return out, nil
}

func (r *PurchaseRequestRepo) ActiveRequesters(ctx context.Context, listingID string) ([]string, error) {
	rows, err := r.q.Query(ctx,
		`SELECT requester_id FROM purchase_requests
         WHERE listing_id = $1 AND is_active = TRUE ORDER BY created_at ASC, id ASC`, listingID,
	)
	if err != nil {
		return nil, wrapErr("list active requesters", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("scan requester", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list active requesters", err)
	}
	return out, nil
}
