package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

const maxPushBody = 140

// Enqueuer is the subset of *asynq.Client the sink uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Sink turns notification and message events into push tasks. It is a
// fan-out sink; the asynq worker does the actual delivery.
type Sink struct {
	client Enqueuer
}

var _ domain.Sink = (*Sink)(nil)

func NewSink(client Enqueuer) *Sink {
	return &Sink{client: client}
}

// NewClient connects an asynq client to redisAddr.
func NewClient(redisAddr string) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
}

func (s *Sink) Name() string { return "push-queue" }

// Deliver enqueues one task per event. The event id doubles as the task id,
// so a re-published event is not pushed twice.
func (s *Sink) Deliver(ctx context.Context, evt domain.Event) error {
	task, err := newPushTask(evt)
	if err != nil || task == nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueAlerts),
		asynq.TaskID(evt.ID),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// newPushTask returns nil for events that are not pushed.
func newPushTask(evt domain.Event) (*asynq.Task, error) {
	var (
		typ     string
		payload PushPayload
	)
	switch evt.Type {
	case domain.EventNotificationCreated:
		n, ok := evt.Data.(*domain.Notification)
		if !ok {
			return nil, fmt.Errorf("notification event %s carries %T", evt.ID, evt.Data)
		}
		typ = TaskPushNotification
		payload = PushPayload{
			Kind:  string(n.Type),
			Title: titleFor(n.Type),
			Body:  n.Message,
		}
		if n.RelatedItem != nil {
			payload.RelatedItem = *n.RelatedItem
		}
	case domain.EventMessageCreated:
		m, ok := evt.Data.(*domain.Message)
		if !ok {
			return nil, fmt.Errorf("message event %s carries %T", evt.ID, evt.Data)
		}
		// the sender gets the same event for its other sessions; no push for that
		if m.ReceiverID != evt.RecipientID {
			return nil, nil
		}
		typ = TaskPushMessage
		payload = PushPayload{
			Kind:   "message",
			Title:  "New message",
			Body:   truncate(m.Content, maxPushBody),
			RoomID: m.RoomID,
		}
	default:
		return nil, nil
	}

	payload.EventID = evt.ID
	payload.RecipientID = evt.RecipientID
	payload.OccurredAt = evt.OccurredAt
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, b), nil
}

func titleFor(t domain.NotificationType) string {
	switch t {
	case domain.NotificationPurchase:
		return "Purchase request update"
	case domain.NotificationChat:
		return "New chat message"
	default:
		return "Notification"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
