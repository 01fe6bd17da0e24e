package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type ReportRepo struct {
	q querier
}

var _ domain.ReportRepository = (*ReportRepo)(nil)

const reportColumns = `id, listing_id, reporter_id, reason, details, created_at, resolved, resolved_at, resolved_by`

func scanReport(row pgx.Row) (*domain.ItemReport, error) {
	rep := &domain.ItemReport{}
	err := row.Scan(&rep.ID, &rep.ListingID, &rep.ReporterID, &rep.Reason, &rep.Details,
		&rep.CreatedAt, &rep.Resolved, &rep.ResolvedAt, &rep.ResolvedBy)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *ReportRepo) FindOpen(ctx context.Context, listingID, reporterID string) (*domain.ItemReport, error) {
	rep, err := scanReport(r.q.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM item_reports
         WHERE listing_id = $1 AND reporter_id = $2 AND resolved = FALSE`, listingID, reporterID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find open report", err)
	}
	return rep, nil
}

func (r *ReportRepo) Create(ctx context.Context, rep *domain.ItemReport) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO item_reports (id, listing_id, reporter_id, reason, details, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		rep.ID, rep.ListingID, rep.ReporterID, rep.Reason, rep.Details, rep.CreatedAt,
	)
	if err != nil {
		return wrapErr("insert report", err)
	}
	return nil
}

func (r *ReportRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM item_reports WHERE id = $1`, id); err != nil {
		return wrapErr("delete report", err)
	}
	return nil
}

func (r *ReportRepo) ListByReporter(ctx context.Context, reporterID string) ([]*domain.ItemReport, error) {
	return r.list(ctx, `WHERE reporter_id = $1`, reporterID)
}

func (r *ReportRepo) ListOpen(ctx context.Context) ([]*domain.ItemReport, error) {
	return r.list(ctx, `WHERE resolved = FALSE`)
}

func (r *ReportRepo) list(ctx context.Context, where string, args ...any) ([]*domain.ItemReport, error) {
	rows, err := r.q.Query(ctx,
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
	res, err := r.q.Exec(ctx,
		`UPDATE item_reports SET resolved = TRUE, resolved_at = $1, resolved_by = $2
         WHERE id = $3 AND resolved = FALSE`,
		at, resolvedBy, id,
	)
	if err != nil {
		return false, wrapErr("resolve report", err)
	}
	return res.RowsAffected() == 1, nil
}
