package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

type memSink struct {
	name string
	err  error

	mu   sync.Mutex
	seen []domain.Event
}

func (s *memSink) Name() string { return s.name }

func (s *memSink) Deliver(_ context.Context, evt domain.Event) error {
	s.mu.Lock()
	s.seen = append(s.seen, evt)
	s.mu.Unlock()
	return s.err
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	a := &memSink{name: "a"}
	b := &memSink{name: "b"}
	d := New(Options{Buffer: 16, Workers: 2}, a, b)
	d.Start(context.Background())

	for i := 0; i < 10; i++ {
		d.Publish(domain.Event{Type: domain.EventNotificationCreated, RecipientID: "u1"})
	}
	d.Close()

	assert.Equal(t, 10, a.count())
	assert.Equal(t, 10, b.count())
}

func TestDispatcherPublishNeverBlocks(t *testing.T) {
	d := New(Options{Buffer: 1, Workers: 1})

	// not started, so the second event has nowhere to go
	d.Publish(domain.Event{Type: domain.EventMessageCreated})
	d.Publish(domain.Event{Type: domain.EventMessageCreated})

	assert.Len(t, d.queue, 1)
}

func TestDispatcherPublishAfterCloseIsDropped(t *testing.T) {
	s := &memSink{name: "s"}
	d := New(Options{Buffer: 4, Workers: 1}, s)
	d.Start(context.Background())
	d.Close()

	assert.NotPanics(t, func() {
		d.Publish(domain.Event{Type: domain.EventMessageCreated})
	})
	assert.Equal(t, 0, s.count())
}

func TestDeliverAggregatesSinkFailures(t *testing.T) {
	ok := &memSink{name: "ok"}
	bad1 := &memSink{name: "bad1", err: errors.New("boom")}
	bad2 := &memSink{name: "bad2", err: errors.New("bang")}
	d := New(Options{}, bad1, ok, bad2)

	err := d.deliver(context.Background(), domain.Event{Type: domain.EventMessagesRead})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad1: boom")
	assert.Contains(t, err.Error(), "bad2: bang")
	assert.Equal(t, 1, ok.count(), "a failing sink must not stop the others")
}
