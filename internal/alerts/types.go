package alerts

import "time"

// Task type constants
const (
	TaskPushNotification = "push:notification"
	TaskPushMessage      = "push:message"
)

// QueueAlerts is the asynq queue push tasks are enqueued on.
const QueueAlerts = "alerts"

// PushPayload is what the worker forwards to the push provider.
type PushPayload struct {
	EventID     string    `json:"event_id"`
	RecipientID string    `json:"recipient_id"`
	Kind        string    `json:"kind"` // purchase|chat|message
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	RelatedItem string    `json:"related_item,omitempty"`
	RoomID      string    `json:"room_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
