package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type RoomRepo struct {
	q querier
}

var _ domain.RoomRepository = (*RoomRepo)(nil)

func (r *RoomRepo) Find(ctx context.Context, userA, userB string, itemID *string) (*domain.ChatRoom, error) {
	room := &domain.ChatRoom{}
	err := r.q.QueryRow(ctx,
		`SELECT id, user_a_id, user_b_id, item_id, created_at FROM chat_rooms
         WHERE user_a_id = $1 AND user_b_id = $2 AND COALESCE(item_id, '') = COALESCE($3::text, '')`,
		userA, userB, itemID,
	).Scan(&room.ID, &room.UserAID, &room.UserBID, &room.ItemID, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find room", err)
	}
	return room, nil
}

func (r *RoomRepo) Create(ctx context.Context, room *domain.ChatRoom) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO chat_rooms (id, user_a_id, user_b_id, item_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		room.ID, room.UserAID, room.UserBID, room.ItemID, room.CreatedAt,
	)
	if err != nil {
		return wrapErr("insert room", err)
	}
	return nil
}

func (r *RoomRepo) GetByID(ctx context.Context, id string) (*domain.ChatRoom, error) {
	room := &domain.ChatRoom{}
	err := r.q.QueryRow(ctx,
		`SELECT id, user_a_id, user_b_id, item_id, created_at FROM chat_rooms WHERE id = $1`, id,
	).Scan(&room.ID, &room.UserAID, &room.UserBID, &room.ItemID, &room.CreatedAt)
	if err != nil {
		return nil, wrapErr("get room", err)
	}
	return room, nil
}

// ListForUser orders rooms by latest activity, falling back to creation time.
func (r *RoomRepo) ListForUser(ctx context.Context, userID string) ([]*domain.RoomSummary, error) {
	rows, err := r.q.Query(ctx, `
        SELECT s.id, s.user_a_id, s.user_b_id, s.item_id, s.created_at, s.unread, s.last_at FROM (
            SELECT cr.id, cr.user_a_id, cr.user_b_id, cr.item_id, cr.created_at,
                   (SELECT COUNT(*) FROM messages m
                     WHERE m.room_id = cr.id AND m.receiver_id = $1 AND m.is_read = FALSE) AS unread,
                   (SELECT MAX(m.sent_at) FROM messages m WHERE m.room_id = cr.id) AS last_at
            FROM chat_rooms cr
            WHERE cr.user_a_id = $1 OR cr.user_b_id = $1
        ) s
        ORDER BY COALESCE(s.last_at, s.created_at) DESC, s.id`, userID)
	if err != nil {
		return nil, wrapErr("list rooms", err)
	}
	defer rows.Close()

	var out []*domain.RoomSummary
	for rows.Next() {
		s := &domain.RoomSummary{}
		var lastAt *time.Time
		if err := rows.Scan(&s.ID, &s.UserAID, &s.UserBID, &s.ItemID, &s.CreatedAt, &s.UnreadCount, &lastAt); err != nil {
			return nil, wrapErr("scan room", err)
		}
		s.LastMessageTime = lastAt
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list rooms", err)
	}
	return out, nil
}

func (r *RoomRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.Exec(ctx, `DELETE FROM chat_rooms WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete room", err)
	}
	if res.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
