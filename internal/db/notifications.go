package db

import (
	"context"
	"time"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type NotificationRepo struct {
	q querier
}

var _ domain.NotificationRepository = (*NotificationRepo)(nil)

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO notifications (id, recipient_id, type, message, related_item, created_at, is_read, read_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.RecipientID, string(n.Type), n.Message, n.RelatedItem, n.CreatedAt, n.IsRead, n.ReadAt,
	)
	if err != nil {
		return wrapErr("insert notification", err)
	}
	return nil
}

func (r *NotificationRepo) List(ctx context.Context, recipientID string, typ domain.NotificationType) ([]*domain.Notification, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, recipient_id, type, message, related_item, created_at, is_read, read_at
         FROM notifications
         WHERE recipient_id = $1 AND ($2::text = '' OR type = $2::text)
         ORDER BY created_at DESC, id DESC`, recipientID, string(typ),
	)
	if err != nil {
		return nil, wrapErr("list notifications", err)
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n := &domain.Notification{}
		var typ string
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &n.Message, &n.RelatedItem, &n.CreatedAt, &n.IsRead, &n.ReadAt); err != nil {
			return nil, wrapErr("scan notification", err)
		}
		n.Type = domain.NotificationType(typ)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list notifications", err)
	}
	return out, nil
}

// MarkRead only touches rows owned by recipientID; foreign ids are ignored.
func (r *NotificationRepo) MarkRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int, error) {
	res, err := r.q.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = $1
         WHERE recipient_id = $2 AND id = ANY($3) AND is_read = FALSE`,
		at, recipientID, ids,
	)
	if err != nil {
		return 0, wrapErr("mark notifications read", err)
	}
	return int(res.RowsAffected()), nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	res, err := r.q.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE recipient_id = $2 AND is_read = FALSE`,
		at, recipientID,
	)
	if err != nil {
		return 0, wrapErr("mark all notifications read", err)
	}
	return int(res.RowsAffected()), nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`, recipientID,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("count unread notifications", err)
	}
	return n, nil
}
