package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type ReportRepo struct {
	q querier
}

var _ domain.ReportRepository = (*ReportRepo)(nil)

const reportColumns = `id, listing_id, reporter_id, reason, details, created_at, resolved, resolved_at, resolved_by`

func scanReport(row scanner) (*domain.ItemReport, error) {
	rep := &domain.ItemReport{}
	var details, resolvedBy sql.NullString
	var created int64
	var resolvedAt sql.NullInt64
	if err := row.Scan(&rep.ID, &rep.ListingID, &rep.ReporterID, &rep.Reason, &details,
		&created, &rep.Resolved, &resolvedAt, &resolvedBy); err != nil {
		return nil, err
	}
	rep.Details = fromNullString(details)
	rep.CreatedAt = fromNanos(created)
	rep.ResolvedAt = fromNullNanos(resolvedAt)
	rep.ResolvedBy = fromNullString(resolvedBy)
	return rep, nil
}

func (r *ReportRepo) FindOpen(ctx context.Context, listingID, reporterID string) (*domain.ItemReport, error) {
	rep, err := scanReport(r.q.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM item_reports WHERE listing_id = ? AND reporter_id = ? AND resolved = 0`,
		listingID, reporterID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find open report", err)
	}
	return rep, nil
}

func (r *ReportRepo) Create(ctx context.Context, rep *domain.ItemReport) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO item_reports (id, listing_id, reporter_id, reason, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.ListingID, rep.ReporterID, rep.Reason, rep.Details, toNanos(rep.CreatedAt),
	)
	if err != nil {
		return wrapErr("insert report", err)
	}
	return nil
}

func (r *ReportRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM item_reports WHERE id = ?`, id); err != nil {
		return wrapErr("delete report", err)
	}
	return nil
}

func (r *ReportRepo) ListByReporter(ctx context.Context, reporterID string) ([]*domain.ItemReport, error) {
	return r.list(ctx, `WHERE reporter_id = ?`, reporterID)
}

func (r *ReportRepo) ListOpen(ctx context.Context) ([]*domain.ItemReport, error) {
	return r.list(ctx, `WHERE resolved = 0`)
}

func (r *ReportRepo) list(ctx context.Context, where string, args ...any) ([]*domain.ItemReport, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM item_reports `+where+` ORDER BY created_at DESC, id DESC`, args...,
	)
	if err != nil {
		return nil, wrapErr("list reports", err)
	}
	defer rows.Close()

	var out []*domain.ItemReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, wrapErr("scan report", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list reports", err)
	}
	return out, nil
}

func (r *ReportRepo) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE item_reports SET resolved = 1, resolved_at = ?, resolved_by = ? WHERE id = ? AND resolved = 0`,
		toNanos(at), resolvedBy, id,
	)
	if err != nil {
		return false, wrapErr("resolve report", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("resolve report", err)
	}
	return n == 1, nil
}

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
		{&s.SoldListings, `SELECT COUNT(*) FROM listings WHERE is_sold = 1`},
		{&s.PendingRequests, `SELECT COUNT(*) FROM purchase_requests WHERE status = 'pending'`},
		{&s.AcceptedRequests, `SELECT COUNT(*) FROM purchase_requests WHERE status = 'accepted'`},
		{&s.Rooms, `SELECT COUNT(*) FROM chat_rooms`},
		{&s.Messages, `SELECT COUNT(*) FROM messages`},
		{&s.Notifications, `SELECT COUNT(*) FROM notifications`},
		{&s.OpenReports, `SELECT COUNT(*) FROM item_reports WHERE resolved = 0`},
	}
	for _, c := range counts {
		if err := r.q.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, wrapErr("stats", err)
		}
	}
	return s, nil
}

var wipeOrder = []string{"messages", "chat_rooms", "notifications", "purchase_requests", "item_reports", "listings"}

func (r *AdminRepo) Wipe(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(wipeOrder))
	for _, table := range wipeOrder {
		res, err := r.q.ExecContext(ctx, `DELETE FROM `+table)
		if err != nil {
			return nil, wrapErr("wipe "+table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, wrapErr("wipe "+table, err)
		}
		out[table] = n
	}
	return out, nil
}
