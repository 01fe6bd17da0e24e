package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type fakePusher struct {
	got []PushPayload
	err error
}

func (f *fakePusher) Push(_ context.Context, p PushPayload) error {
	f.got = append(f.got, p)
	return f.err
}

func notificationEvent() domain.Event {
	item := "Red Bike"
	n := &domain.Notification{
		ID:          "n1",
		RecipientID: "seller",
		Type:        domain.NotificationPurchase,
		Message:     "A buyer requested to buy your item 'Red Bike'",
		RelatedItem: &item,
	}
	return domain.Event{ID: n.ID, Type: domain.EventNotificationCreated, RecipientID: "seller", OccurredAt: time.Now(), Data: n}
}

func TestSinkEnqueuesNotifications(t *testing.T) {
	q := &fakeEnqueuer{}
	sink := NewSink(q)

	require.NoError(t, sink.Deliver(context.Background(), notificationEvent()))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TaskPushNotification, q.tasks[0].Type())

	var p PushPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &p))
	assert.Equal(t, "n1", p.EventID)
	assert.Equal(t, "seller", p.RecipientID)
	assert.Equal(t, "purchase", p.Kind)
	assert.Equal(t, "Red Bike", p.RelatedItem)
}

func TestSinkPushesMessagesToReceiverOnly(t *testing.T) {
	q := &fakeEnqueuer{}
	sink := NewSink(q)
	m := &domain.Message{ID: "m1", RoomID: "r1", SenderID: "a", ReceiverID: "b", Content: "hello"}

	toSender := domain.Event{ID: "e1", Type: domain.EventMessageCreated, RecipientID: "a", Data: m}
	toReceiver := domain.Event{ID: "e2", Type: domain.EventMessageCreated, RecipientID: "b", Data: m}
	read := domain.Event{ID: "e3", Type: domain.EventMessagesRead, RecipientID: "a"}

	for _, evt := range []domain.Event{toSender, toReceiver, read} {
		require.NoError(t, sink.Deliver(context.Background(), evt))
	}
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TaskPushMessage, q.tasks[0].Type())
}

func TestSinkTreatsDuplicateTaskAsDelivered(t *testing.T) {
	sink := NewSink(&fakeEnqueuer{err: asynq.ErrTaskIDConflict})
	assert.NoError(t, sink.Deliver(context.Background(), notificationEvent()))

	sink = NewSink(&fakeEnqueuer{err: errors.New("redis down")})
	assert.Error(t, sink.Deliver(context.Background(), notificationEvent()))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestWebhookPusher(t *testing.T) {
	var gotAuth, gotKey string
	var got PushPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewWebhookPusher(srv.URL, "tok")
	require.NoError(t, p.Push(context.Background(), PushPayload{EventID: "e1", RecipientID: "u", Body: "hi"}))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "e1", gotKey)
	assert.Equal(t, "hi", got.Body)
}

func TestWebhookPusherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "provider down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookPusher(srv.URL, "").Push(context.Background(), PushPayload{EventID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")

	assert.Error(t, NewWebhookPusher("", "").Push(context.Background(), PushPayload{}))
}

func TestHandlePush(t *testing.T) {
	pusher := &fakePusher{}
	h := handlePush(pusher)

	b, err := json.Marshal(PushPayload{EventID: "e1", RecipientID: "u"})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), asynq.NewTask(TaskPushNotification, b)))
	require.Len(t, pusher.got, 1)
	assert.Equal(t, "e1", pusher.got[0].EventID)

	err = h(context.Background(), asynq.NewTask(TaskPushNotification, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	pusher.err = errors.New("boom")
	assert.Error(t, h(context.Background(), asynq.NewTask(TaskPushMessage, b)))
}
