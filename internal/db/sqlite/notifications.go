package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type NotificationRepo struct {
	q querier
}

var _ domain.NotificationRepository = (*NotificationRepo)(nil)

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, type, message, related_item, created_at, is_read, read_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, string(n.Type), n.Message, n.RelatedItem, toNanos(n.CreatedAt), n.IsRead, toNullNanos(n.ReadAt),
	)
	if err != nil {
		return wrapErr("insert notification", err)
	}
	return nil
}

func (r *NotificationRepo) List(ctx context.Context, recipientID string, typ domain.NotificationType) ([]*domain.Notification, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, recipient_id, type, message, related_item, created_at, is_read, read_at
		 FROM notifications
		 WHERE recipient_id = ?1 AND (?2 = '' OR type = ?2)
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
		var related sql.NullString
		var created int64
		var readAt sql.NullInt64
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &n.Message, &related, &created, &n.IsRead, &readAt); err != nil {
			return nil, wrapErr("scan notification", err)
		}
		n.Type = domain.NotificationType(typ)
		n.RelatedItem = fromNullString(related)
		n.CreatedAt = fromNanos(created)
		n.ReadAt = fromNullNanos(readAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list notifications", err)
	}
	return out, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, toNanos(at), recipientID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ?
		 WHERE recipient_id = ? AND is_read = 0 AND id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, wrapErr("mark notifications read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("mark notifications read", err)
	}
	return int(n), nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE recipient_id = ? AND is_read = 0`,
		toNanos(at), recipientID,
	)
	if err != nil {
		return 0, wrapErr("mark all notifications read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("mark all notifications read", err)
	}
	return int(n), nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0`, recipientID,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("count unread notifications", err)
	}
	return n, nil
}
