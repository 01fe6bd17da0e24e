// Package messaging implements item-scoped direct chat between two users.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

// Directory owns chat room identity: one room per unordered user pair and item.
type Directory struct {
	store domain.Store
	now   func() time.Time
}

func NewDirectory(store domain.Store) *Directory {
	return &Directory{store: store, now: time.Now}
}

// GetOrCreateRoom returns the room for {userX, userY} and itemID, creating it
// if needed. The result is the same regardless of argument order, and
// concurrent callers converge on a single room.
func (d *Directory) GetOrCreateRoom(ctx context.Context, userX, userY string, itemID *string) (*domain.ChatRoom, error) {
	if strings.TrimSpace(userX) == "" || strings.TrimSpace(userY) == "" {
		return nil, fmt.Errorf("%w: both users are required", domain.ErrInvalidInput)
	}
	if userX == userY {
		return nil, fmt.Errorf("%w: cannot open a room with yourself", domain.ErrInvalidInput)
	}
	if itemID != nil {
		trimmed := strings.TrimSpace(*itemID)
		if trimmed == "" {
			itemID = nil
		} else {
			itemID = &trimmed
		}
	}
	a, b := domain.CanonicalPair(userX, userY)

	var room *domain.ChatRoom
	err := d.store.WithTx(ctx, func(r *domain.Repositories) error {
		room = nil
		existing, err := r.Rooms.Find(ctx, a, b, itemID)
		if err != nil {
			return err
		}
		if existing != nil {
			room = existing
			return nil
		}
		fresh := &domain.ChatRoom{
			ID:        uuid.New().String(),
			UserAID:   a,
			UserBID:   b,
			ItemID:    itemID,
			CreatedAt: d.now().UTC().Truncate(time.Microsecond),
		}
		if err := r.Rooms.Create(ctx, fresh); err != nil {
			return err
		}
		room = fresh
		return nil
	})
	if errors.Is(err, domain.ErrConflict) {
		// lost the insert race; the winner's row is committed now
		err = d.store.WithTx(ctx, func(r *domain.Repositories) error {
			var ferr error
			room, ferr = r.Rooms.Find(ctx, a, b, itemID)
			if ferr == nil && room == nil {
				ferr = fmt.Errorf("room vanished after conflict: %w", domain.ErrNotFound)
			}
			return ferr
		})
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

// Room returns a room the viewer participates in.
func (d *Directory) Room(ctx context.Context, roomID, viewerID string) (*domain.ChatRoom, error) {
	var room *domain.ChatRoom
	err := d.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		room, err = r.Rooms.GetByID(ctx, roomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(viewerID) {
		return nil, domain.ErrForbidden
	}
	return room, nil
}

// ListRooms returns the user's rooms with unread counts, most recent activity first.
func (d *Directory) ListRooms(ctx context.Context, userID string) ([]*domain.RoomSummary, error) {
	var out []*domain.RoomSummary
	err := d.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		out, err = r.Rooms.ListForUser(ctx, userID)
		return err
	})
	return out, err
}

// DeleteRoom removes a room and its messages. Only participants may delete.
func (d *Directory) DeleteRoom(ctx context.Context, roomID, actorID string) error {
	return d.store.WithTx(ctx, func(r *domain.Repositories) error {
		room, err := r.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.HasParticipant(actorID) {
			return domain.ErrForbidden
		}
		return r.Rooms.Delete(ctx, roomID)
	})
}
