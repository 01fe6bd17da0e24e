package db

import (
	"context"
	"time"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type MessageRepo struct {
	q querier
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO messages (id, room_id, sender_id, receiver_id, content, sent_at, is_read, read_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.RoomID, m.SenderID, m.ReceiverID, m.Content, m.Timestamp, m.IsRead, m.ReadAt,
	)
	if err != nil {
		return wrapErr("insert message", err)
	}
	return nil
}

func (r *MessageRepo) ListForRoom(ctx context.Context, roomID string) ([]*domain.Message, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, room_id, sender_id, receiver_id, content, sent_at, is_read, read_at
         FROM messages WHERE room_id = $1 ORDER BY sent_at ASC, id ASC`, roomID,
	)
	if err != nil {
		return nil, wrapErr("list messages", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Timestamp, &m.IsRead, &m.ReadAt); err != nil {
			return nil, wrapErr("scan message", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list messages", err)
	}
	return out, nil
}

func (r *MessageRepo) MarkRoomRead(ctx context.Context, roomID, receiverID string, at time.Time) (int, error) {
	res, err := r.q.Exec(ctx,
		`UPDATE messages SET is_read = TRUE, read_at = GREATEST($1::timestamptz, sent_at)
         WHERE room_id = $2 AND receiver_id = $3 AND is_read = FALSE`,
		at, roomID, receiverID,
	)
	if err != nil {
		return 0, wrapErr("mark room read", err)
	}
	return int(res.RowsAffected()), nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, receiverID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = FALSE`, receiverID,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("count unread messages", err)
	}
	return n, nil
}

func (r *MessageRepo) CountUnreadInRoom(ctx context.Context, roomID, receiverID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE room_id = $1 AND receiver_id = $2 AND is_read = FALSE`, roomID, receiverID,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("count unread room messages", err)
	}
	return n, nil
}
