package domain

import (
	"context"
	"time"
)

type EventType string

const (
	EventNotificationCreated EventType = "notification.created"
	EventMessageCreated      EventType = "message.created"
	EventMessagesRead        EventType = "messages.read"
	EventRequestUpdated      EventType = "purchase_request.updated"
)

// Event is a post-commit fact pushed to live delivery channels.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	RecipientID string    `json:"recipient_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Data        any       `json:"data"`
}

// Sink delivers events to one external channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt Event) error
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(evt Event)
}
