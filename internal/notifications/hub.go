// Package notifications records in-app notifications and pushes them to live
// delivery channels once the surrounding transaction has committed.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type Hub struct {
	store domain.Store
	pub   domain.Publisher
	now   func() time.Time
}

type Option func(*Hub)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func NewHub(store domain.Store, pub domain.Publisher, opts ...Option) *Hub {
	h := &Hub{store: store, pub: pub, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Now is the hub's clock truncated to the precision every store keeps.
func (h *Hub) Now() time.Time {
	return h.now().UTC().Truncate(time.Microsecond)
}

// Record inserts a notification using the repositories of the caller's
// transaction. Call Deliver after the transaction commits.
func (h *Hub) Record(ctx context.Context, r *domain.Repositories, recipientID string, typ domain.NotificationType, text string, relatedItem *string) (*domain.Notification, error) {
	if strings.TrimSpace(recipientID) == "" || !typ.Valid() || strings.TrimSpace(text) == "" {
		return nil, domain.ErrInvalidInput
	}
	n := &domain.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Type:        typ,
		Message:     text,
		RelatedItem: relatedItem,
		CreatedAt:   h.Now(),
	}
	if err := r.Notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("record notification: %w", err)
	}
	return n, nil
}

// Deliver publishes committed notifications. It never blocks.
func (h *Hub) Deliver(ns ...*domain.Notification) {
	if h.pub == nil {
		return
	}
	for _, n := range ns {
		h.pub.Publish(domain.Event{
			ID:          n.ID,
			Type:        domain.EventNotificationCreated,
			RecipientID: n.RecipientID,
			OccurredAt:  n.CreatedAt,
			Data:        n,
		})
	}
}

// Notify records a notification in its own transaction and delivers it.
func (h *Hub) Notify(ctx context.Context, recipientID string, typ domain.NotificationType, text string, relatedItem *string) (*domain.Notification, error) {
	var n *domain.Notification
	err := h.store.WithTx(ctx, func(r *domain.Repositories) error {
		n = nil
		var err error
		n, err = h.Record(ctx, r, recipientID, typ, text, relatedItem)
		return err
	})
	if err != nil {
		return nil, err
	}
	h.Deliver(n)
	return n, nil
}

// MarkRead marks the given notifications read. Ids not owned by recipientID
// are ignored. Returns how many rows changed.
func (h *Hub) MarkRead(ctx context.Context, ids []string, recipientID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err := h.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		n, err = r.Notifications.MarkRead(ctx, recipientID, ids, h.Now())
		return err
	})
	return n, err
}

// MarkAllRead resets the recipient's unread count to zero.
func (h *Hub) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := h.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		n, err = r.Notifications.MarkAllRead(ctx, recipientID, h.Now())
		return err
	})
	return n, err
}

func (h *Hub) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := h.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		n, err = r.Notifications.CountUnread(ctx, recipientID)
		return err
	})
	return n, err
}

// List returns the recipient's notifications, newest first. filter is a
// notification type, or "" / "all" for every type.
func (h *Hub) List(ctx context.Context, recipientID, filter string) ([]*domain.Notification, error) {
	var typ domain.NotificationType
	if filter != "" && filter != "all" {
		typ = domain.NotificationType(filter)
		if !typ.Valid() {
			return nil, fmt.Errorf("%w: unknown notification type %q", domain.ErrInvalidInput, filter)
		}
	}
	var out []*domain.Notification
	err := h.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		out, err = r.Notifications.List(ctx, recipientID, typ)
		return err
	})
	return out, err
}
