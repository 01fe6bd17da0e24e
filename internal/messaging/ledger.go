package messaging

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/sudo-init-do/swapmeet/internal/domain"
	"github.com/sudo-init-do/swapmeet/internal/notifications"
)

const MaxContentLength = 5000

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(crand.Reader, 0)
)

// newMessageID returns a ULID stamped with at, so ids sort with send time.
func newMessageID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// Ledger stores messages and tracks their read state.
type Ledger struct {
	store domain.Store
	hub   *notifications.Hub
	pub   domain.Publisher
}

func NewLedger(store domain.Store, hub *notifications.Hub, pub domain.Publisher) *Ledger {
	return &Ledger{store: store, hub: hub, pub: pub}
}

type readReceipt struct {
	RoomID   string    `json:"room_id"`
	ReaderID string    `json:"reader_id"`
	Count    int       `json:"count"`
	ReadAt   time.Time `json:"read_at"`
}

// Send appends a message to the room. When the room is tied to an item, the
// receiver gets a chat notification recorded in the same transaction.
func (l *Ledger) Send(ctx context.Context, roomID, senderID, receiverID, content string) (*domain.Message, error) {
	var (
		msg  *domain.Message
		note *domain.Notification
	)
	err := l.store.WithTx(ctx, func(r *domain.Repositories) error {
		msg, note = nil, nil

		room, err := r.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.HasParticipant(senderID) {
			return domain.ErrForbidden
		}
		if receiverID != room.Other(senderID) {
			return fmt.Errorf("%w: receiver is not the other participant", domain.ErrInvalidInput)
		}
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("%w: content is empty", domain.ErrInvalidInput)
		}
		if utf8.RuneCountInString(content) > MaxContentLength {
			return fmt.Errorf("%w: content exceeds %d characters", domain.ErrInvalidInput, MaxContentLength)
		}

		now := l.hub.Now()
		m := &domain.Message{
			ID:         newMessageID(now),
			RoomID:     roomID,
			SenderID:   senderID,
			ReceiverID: receiverID,
			Content:    content,
			Timestamp:  now,
		}
		if err := r.Messages.Create(ctx, m); err != nil {
			return err
		}
		msg = m

		if room.ItemID == nil {
			return nil
		}
		label, err := itemLabel(ctx, r, *room.ItemID)
		if err != nil {
			return err
		}
		note, err = l.hub.Record(ctx, r, receiverID, domain.NotificationChat,
			fmt.Sprintf("You have a new message about '%s'", label), &label)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, to := range []string{receiverID, senderID} {
		l.publish(domain.EventMessageCreated, to, msg.Timestamp, msg)
	}
	if note != nil {
		l.hub.Deliver(note)
	}
	return msg, nil
}

// itemLabel prefers the listing title and falls back to the raw item id for
// items the listing table does not know about.
func itemLabel(ctx context.Context, r *domain.Repositories, itemID string) (string, error) {
	listing, err := r.Listings.GetByID(ctx, itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return itemID, nil
	}
	if err != nil {
		return "", err
	}
	return listing.Title, nil
}

// FetchHistory returns every message in the room oldest first and, in the
// same transaction, marks the ones addressed to viewerID as read.
// Calling it again without new messages changes nothing.
func (l *Ledger) FetchHistory(ctx context.Context, roomID, viewerID string) ([]*domain.Message, error) {
	var (
		msgs  []*domain.Message
		room  *domain.ChatRoom
		count int
		at    time.Time
	)
	err := l.store.WithTx(ctx, func(r *domain.Repositories) error {
		msgs, count = nil, 0
		var err error
		room, err = r.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.HasParticipant(viewerID) {
			return domain.ErrForbidden
		}
		at = l.hub.Now()
		count, err = r.Messages.MarkRoomRead(ctx, roomID, viewerID, at)
		if err != nil {
			return err
		}
		msgs, err = r.Messages.ListForRoom(ctx, roomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if count > 0 {
		l.publish(domain.EventMessagesRead, room.Other(viewerID), at, readReceipt{RoomID: roomID, ReaderID: viewerID, Count: count, ReadAt: at})
	}
	return msgs, nil
}

// MarkRoomRead marks every unread message addressed to viewerID in the room
// as read and returns how many changed.
func (l *Ledger) MarkRoomRead(ctx context.Context, roomID, viewerID string) (int, error) {
	var (
		room  *domain.ChatRoom
		count int
		at    time.Time
	)
	err := l.store.WithTx(ctx, func(r *domain.Repositories) error {
		count = 0
		var err error
		room, err = r.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.HasParticipant(viewerID) {
			return domain.ErrForbidden
		}
		at = l.hub.Now()
		count, err = r.Messages.MarkRoomRead(ctx, roomID, viewerID, at)
		return err
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		l.publish(domain.EventMessagesRead, room.Other(viewerID), at, readReceipt{RoomID: roomID, ReaderID: viewerID, Count: count, ReadAt: at})
	}
	return count, nil
}

// UnreadCount counts unread messages addressed to viewerID across all rooms.
func (l *Ledger) UnreadCount(ctx context.Context, viewerID string) (int, error) {
	var n int
	err := l.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		n, err = r.Messages.CountUnread(ctx, viewerID)
		return err
	})
	return n, err
}

func (l *Ledger) RoomUnreadCount(ctx context.Context, roomID, viewerID string) (int, error) {
	var n int
	err := l.store.WithTx(ctx, func(r *domain.Repositories) error {
		room, err := r.Rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.HasParticipant(viewerID) {
			return domain.ErrForbidden
		}
		n, err = r.Messages.CountUnreadInRoom(ctx, roomID, viewerID)
		return err
	})
	return n, err
}

func (l *Ledger) publish(typ domain.EventType, to string, at time.Time, data any) {
	if l.pub == nil {
		return
	}
	l.pub.Publish(domain.Event{
		ID:          uuid.New().String(),
		Type:        typ,
		RecipientID: to,
		OccurredAt:  at,
		Data:        data,
	})
}
