package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type ListingRepo struct {
	q querier
}

var _ domain.ListingRepository = (*ListingRepo)(nil)

func (r *ListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO listings (id, seller_id, title, is_sold, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.SellerID, l.Title, l.IsSold, toNanos(l.CreatedAt),
	)
	if err != nil {
		return wrapErr("insert listing", err)
	}
	return nil
}

func (r *ListingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	l := &domain.Listing{}
	var created int64
	err := r.q.QueryRowContext(ctx,
		`SELECT id, seller_id, title, is_sold, created_at FROM listings WHERE id = ?`, id,
	).Scan(&l.ID, &l.SellerID, &l.Title, &l.IsSold, &created)
	if err != nil {
		return nil, wrapErr("get listing", err)
	}
	l.CreatedAt = fromNanos(created)
	return l, nil
}

func (r *ListingRepo) MarkSold(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE listings SET is_sold = 1 WHERE id = ? AND is_sold = 0`, id)
	if err != nil {
		return false, wrapErr("mark listing sold", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("mark listing sold", err)
	}
	return n == 1, nil
}

type PurchaseRequestRepo struct {
	q querier
}

var _ domain.PurchaseRequestRepository = (*PurchaseRequestRepo)(nil)

const purchaseRequestColumns = `id, listing_id, requester_id, status, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPurchaseRequest(row scanner) (*domain.PurchaseRequest, error) {
	pr := &domain.PurchaseRequest{}
	var status string
	var created, updated int64
	if err := row.Scan(&pr.ID, &pr.ListingID, &pr.RequesterID, &status, &pr.IsActive, &created, &updated); err != nil {
		return nil, err
	}
	pr.Status = domain.RequestStatus(status)
	pr.CreatedAt = fromNanos(created)
	pr.UpdatedAt = fromNanos(updated)
	return pr, nil
}

func (r *PurchaseRequestRepo) Create(ctx context.Context, pr *domain.PurchaseRequest) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO purchase_requests (`+purchaseRequestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pr.ID, pr.ListingID, pr.RequesterID, string(pr.Status), pr.IsActive, toNanos(pr.CreatedAt), toNanos(pr.UpdatedAt),
	)
	if err != nil {
		return wrapErr("insert purchase request", err)
	}
	return nil
}

func (r *PurchaseRequestRepo) GetByID(ctx context.Context, id string) (*domain.PurchaseRequest, error) {
	pr, err := scanPurchaseRequest(r.q.QueryRowContext(ctx,
		`SELECT `+purchaseRequestColumns+` FROM purchase_requests WHERE id = ?`, id,
	))
	if err != nil {
		return nil, wrapErr("get purchase request", err)
	}
	return pr, nil
}

func (r *PurchaseRequestRepo) FindPending(ctx context.Context, listingID, requesterID string) (*domain.PurchaseRequest, error) {
	pr, err := scanPurchaseRequest(r.q.QueryRowContext(ctx,
		`SELECT `+purchaseRequestColumns+` FROM purchase_requests
		 WHERE listing_id = ? AND requester_id = ? AND status = 'pending'`, listingID, requesterID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find pending purchase request", err)
	}
	return pr, nil
}

func (r *PurchaseRequestRepo) Transition(ctx context.Context, id string, from, to domain.RequestStatus, active bool, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE purchase_requests SET status = ?, is_active = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), active, toNanos(at), id, string(from),
	)
	if err != nil {
		return false, wrapErr("transition purchase request", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("transition purchase request", err)
	}
	return n == 1, nil
}

func (r *PurchaseRequestRepo) DeclinePending(ctx context.Context, listingID, exceptID string, at time.Time) ([]*domain.PurchaseRequest, error) {
	rows, err := r.q.QueryContext(ctx,
		`UPDATE purchase_requests SET status = 'declined', is_active = 0, updated_at = ?
		 WHERE listing_id = ? AND status = 'pending' AND id <> ?
		 RETURNING `+purchaseRequestColumns,
		toNanos(at), listingID, exceptID,
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
	return r.listViews(ctx, `WHERE pr.requester_id = ?`, requesterID)
}

func (r *PurchaseRequestRepo) ListBySeller(ctx context.Context, sellerID string) ([]*domain.PurchaseRequestView, error) {
	return r.listViews(ctx, `WHERE l.seller_id = ?`, sellerID)
}

func (r *PurchaseRequestRepo) listViews(ctx context.Context, where, arg string) ([]*domain.PurchaseRequestView, error) {
	rows, err := r.q.QueryContext(ctx,
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
		var created, updated int64
		if err := rows.Scan(&v.ID, &v.ListingID, &v.RequesterID, &status, &v.IsActive, &created, &updated,
			&v.ListingTitle, &v.SellerID, &v.ListingSold); err != nil {
			return nil, wrapErr("scan purchase request", err)
		}
		v.Status = domain.RequestStatus(status)
		v.CreatedAt = fromNanos(created)
		v.UpdatedAt = fromNanos(updated)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list purchase requests", err)
	}
	return out, nil
}

func (r *PurchaseRequestRepo) ActiveRequesters(ctx context.Context, listingID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT requester_id FROM purchase_requests
		 WHERE listing_id = ? AND is_active = 1 ORDER BY created_at ASC, id ASC`, listingID,
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
