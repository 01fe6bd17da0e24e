package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type RoomRepo struct {
	q querier
}

var _ domain.RoomRepository = (*RoomRepo)(nil)

func scanRoom(row scanner) (*domain.ChatRoom, error) {
	room := &domain.ChatRoom{}
	var item sql.NullString
	var created int64
	if err := row.Scan(&room.ID, &room.UserAID, &room.UserBID, &item, &created); err != nil {
		return nil, err
	}
	room.ItemID = fromNullString(item)
	room.CreatedAt = fromNanos(created)
	return room, nil
}

func (r *RoomRepo) Find(ctx context.Context, userA, userB string, itemID *string) (*domain.ChatRoom, error) {
	room, err := scanRoom(r.q.QueryRowContext(ctx,
		`SELECT id, user_a_id, user_b_id, item_id, created_at FROM chat_rooms
		 WHERE user_a_id = ? AND user_b_id = ? AND COALESCE(item_id, '') = COALESCE(?, '')`,
		userA, userB, itemID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find room", err)
	}
	return room, nil
}

func (r *RoomRepo) Create(ctx context.Context, room *domain.ChatRoom) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO chat_rooms (id, user_a_id, user_b_id, item_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		room.ID, room.UserAID, room.UserBID, room.ItemID, toNanos(room.CreatedAt),
	)
	if err != nil {
		return wrapErr("insert room", err)
	}
	return nil
}

func (r *RoomRepo) GetByID(ctx context.Context, id string) (*domain.ChatRoom, error) {
	room, err := scanRoom(r.q.QueryRowContext(ctx,
		`SELECT id, user_a_id, user_b_id, item_id, created_at FROM chat_rooms WHERE id = ?`, id,
	))
	if err != nil {
		return nil, wrapErr("get room", err)
	}
	return room, nil
}

func (r *RoomRepo) ListForUser(ctx context.Context, userID string) ([]*domain.RoomSummary, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT s.id, s.user_a_id, s.user_b_id, s.item_id, s.created_at, s.unread, s.last_at FROM (
			SELECT cr.id, cr.user_a_id, cr.user_b_id, cr.item_id, cr.created_at,
			       (SELECT COUNT(*) FROM messages m
			         WHERE m.room_id = cr.id AND m.receiver_id = ?1 AND m.is_read = 0) AS unread,
			       (SELECT MAX(m.sent_at) FROM messages m WHERE m.room_id = cr.id) AS last_at
			FROM chat_rooms cr
			WHERE cr.user_a_id = ?1 OR cr.user_b_id = ?1
		) s
		ORDER BY COALESCE(s.last_at, s.created_at) DESC, s.id`, userID)
	if err != nil {
		return nil, wrapErr("list rooms", err)
	}
	defer rows.Close()

	var out []*domain.RoomSummary
	for rows.Next() {
		s := &domain.RoomSummary{}
		var item sql.NullString
		var created int64
		var lastAt sql.NullInt64
		if err := rows.Scan(&s.ID, &s.UserAID, &s.UserBID, &item, &created, &s.UnreadCount, &lastAt); err != nil {
			return nil, wrapErr("scan room", err)
		}
		s.ItemID = fromNullString(item)
		s.CreatedAt = fromNanos(created)
		s.LastMessageTime = fromNullNanos(lastAt)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list rooms", err)
	}
	return out, nil
}

func (r *RoomRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM chat_rooms WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete room", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("delete room", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type MessageRepo struct {
	q querier
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, sender_id, receiver_id, content, sent_at, is_read, read_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, m.SenderID, m.ReceiverID, m.Content, toNanos(m.Timestamp), m.IsRead, toNullNanos(m.ReadAt),
	)
	if err != nil {
		return wrapErr("insert message", err)
	}
	return nil
}

func (r *MessageRepo) ListForRoom(ctx context.Context, roomID string) ([]*domain.Message, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, room_id, sender_id, receiver_id, content, sent_at, is_read, read_at
		 FROM messages WHERE room_id = ? ORDER BY sent_at ASC, id ASC`, roomID,
	)
	if err != nil {
		return nil, wrapErr("list messages", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		var sent int64
		var readAt sql.NullInt64
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.ReceiverID, &m.Content, &sent, &m.IsRead, &readAt); err != nil {
			return nil, wrapErr("scan message", err)
		}
		m.Timestamp = fromNanos(sent)
		m.ReadAt = fromNullNanos(readAt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list messages", err)
	}
	return out, nil
}

func (r *MessageRepo) MarkRoomRead(ctx context.Context, roomID, receiverID string, at time.Time) (int, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE messages SET is_read = 1, read_at = MAX(?, sent_at)
		 WHERE room_id = ? AND receiver_id = ? AND is_read = 0`,
		toNanos(at), roomID, receiverID,
	)
	if err != nil {
		return 0, wrapErr("mark room read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("mark room read", err)
	}
	return int(n), nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, receiverID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = 0`, receiverID,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("count unread messages", err)
	}
	return n, nil
}

func (r *MessageRepo) CountUnreadInRoom(ctx context.Context, roomID, receiverID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE room_id = ? AND receiver_id = ? AND is_read = 0`, roomID, receiverID,
	).Scan(&n)
	if err != nil {
		return 0, wrapErr("count unread room messages", err)
	}
	return n, nil
}
