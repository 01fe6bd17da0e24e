package messaging_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/swapmeet/internal/domain"
	"github.com/sudo-init-do/swapmeet/internal/messaging"
	"github.com/sudo-init-do/swapmeet/internal/notifications"
	"github.com/sudo-init-do/swapmeet/internal/testutil"
)

type chatFixture struct {
	store  domain.Store
	rec    *testutil.Recorder
	clock  *testutil.Clock
	hub    *notifications.Hub
	dir    *messaging.Directory
	ledger *messaging.Ledger
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	store := testutil.NewStore(t)
	rec := &testutil.Recorder{}
	clock := testutil.NewClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	hub := notifications.NewHub(store, rec, notifications.WithClock(clock.Now))
	return &chatFixture{
		store:  store,
		rec:    rec,
		clock:  clock,
		hub:    hub,
		dir:    messaging.NewDirectory(store),
		ledger: messaging.NewLedger(store, hub, rec),
	}
}

func (f *chatFixture) listing(t *testing.T, id, seller, title string) {
	t.Helper()
	err := f.store.WithTx(context.Background(), func(r *domain.Repositories) error {
		return r.Listings.Create(context.Background(), &domain.Listing{
			ID: id, SellerID: seller, Title: title, CreatedAt: f.clock.Now(),
		})
	})
	require.NoError(t, err)
}

func TestFetchHistoryMarksReadOnce(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	room, err := f.dir.GetOrCreateRoom(ctx, "alice", "bob", nil)
	require.NoError(t, err)

	_, err = f.ledger.Send(ctx, room.ID, "alice", "bob", "hi bob")
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.ledger.Send(ctx, room.ID, "alice", "bob", "still there?")
	require.NoError(t, err)

	unread, err := f.ledger.RoomUnreadCount(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	// the sender viewing does not mark anything
	_, err = f.ledger.FetchHistory(ctx, room.ID, "alice")
	require.NoError(t, err)
	unread, err = f.ledger.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	f.clock.Advance(time.Minute)
	msgs, err := f.ledger.FetchHistory(ctx, room.ID, "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi bob", msgs[0].Content)
	for _, m := range msgs {
		assert.True(t, m.IsRead)
		require.NotNil(t, m.ReadAt)
		assert.False(t, m.ReadAt.Before(m.Timestamp))
	}
	firstRead := *msgs[0].ReadAt
	require.Len(t, f.rec.OfType(domain.EventMessagesRead), 1)

	f.clock.Advance(time.Minute)
	again, err := f.ledger.FetchHistory(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.True(t, firstRead.Equal(*again[0].ReadAt), "read_at must not move on refetch")
	assert.Len(t, f.rec.OfType(domain.EventMessagesRead), 1)

	unread, err = f.ledger.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestReadAtNeverPrecedesTimestamp(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	room, err := f.dir.GetOrCreateRoom(ctx, "alice", "bob", nil)
	require.NoError(t, err)

	_, err = f.ledger.Send(ctx, room.ID, "alice", "bob", "from the future")
	require.NoError(t, err)

	// reader clock behind the send time
	f.clock.Advance(-time.Hour)
	n, err := f.ledger.MarkRoomRead(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs, err := f.ledger.FetchHistory(ctx, room.ID, "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].ReadAt)
	assert.True(t, msgs[0].ReadAt.Equal(msgs[0].Timestamp))
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	room, err := f.dir.GetOrCreateRoom(ctx, "alice", "bob", nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		roomID   string
		sender   string
		receiver string
		content  string
		want     error
	}{
		{"missing room", "nope", "alice", "bob", "hi", domain.ErrNotFound},
		{"outsider", room.ID, "mallory", "bob", "hi", domain.ErrForbidden},
		{"wrong receiver", room.ID, "alice", "carol", "hi", domain.ErrInvalidInput},
		{"self receiver", room.ID, "alice", "alice", "hi", domain.ErrInvalidInput},
		{"blank", room.ID, "alice", "bob", "   ", domain.ErrInvalidInput},
		{"too long", room.ID, "alice", "bob", strings.Repeat("x", messaging.MaxContentLength+1), domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Send(ctx, tt.roomID, tt.sender, tt.receiver, tt.content)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	msgs, err := f.ledger.FetchHistory(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendNotifiesOnlyForItemRooms(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.listing(t, "bike-1", "alice", "Red Bike")

	general, err := f.dir.GetOrCreateRoom(ctx, "alice", "bob", nil)
	require.NoError(t, err)
	_, err = f.ledger.Send(ctx, general.ID, "bob", "alice", "hey")
	require.NoError(t, err)

	notes, err := f.hub.List(ctx, "alice", "chat")
	require.NoError(t, err)
	assert.Empty(t, notes)

	itemRoom, err := f.dir.GetOrCreateRoom(ctx, "alice", "bob", strPtr("bike-1"))
	require.NoError(t, err)
	_, err = f.ledger.Send(ctx, itemRoom.ID, "bob", "alice", "is the bike available?")
	require.NoError(t, err)

	notes, err = f.hub.List(ctx, "alice", "chat")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "You have a new message about 'Red Bike'", notes[0].Message)
	require.NotNil(t, notes[0].RelatedItem)
	assert.Equal(t, "Red Bike", *notes[0].RelatedItem)

	bobNotes, err := f.hub.List(ctx, "bob", "")
	require.NoError(t, err)
	assert.Empty(t, bobNotes, "the sender is never notified")

	assert.Len(t, f.rec.OfType(domain.EventNotificationCreated), 1)
	assert.Len(t, f.rec.OfType(domain.EventMessageCreated), 4)
}

func TestSendFallsBackToItemID(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	room, err := f.dir.GetOrCreateRoom(ctx, "alice", "bob", strPtr("ext-42"))
	require.NoError(t, err)
	_, err = f.ledger.Send(ctx, room.ID, "alice", "bob", "hello")
	require.NoError(t, err)

	notes, err := f.hub.List(ctx, "bob", "chat")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "You have a new message about 'ext-42'", notes[0].Message)
}

func TestMessagesSortByTimestamp(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	room, err := f.dir.GetOrCreateRoom(ctx, "alice", "bob", nil)
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.ledger.Send(ctx, room.ID, "alice", "bob", text)
		require.NoError(t, err)
		f.clock.Advance(time.Millisecond)
	}

	msgs, err := f.ledger.FetchHistory(ctx, room.ID, "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
	assert.Equal(t, "three", msgs[2].Content)

	rooms, err := f.dir.ListRooms(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, 3, rooms[0].UnreadCount)
	require.NotNil(t, rooms[0].LastMessageTime)
}

func TestReadStateRequiresParticipant(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	room, err := f.dir.GetOrCreateRoom(ctx, "alice", "bob", nil)
	require.NoError(t, err)
	_, err = f.ledger.Send(ctx, room.ID, "alice", "bob", "hello")
	require.NoError(t, err)

	_, err = f.ledger.MarkRoomRead(ctx, room.ID, "mallory")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.ledger.RoomUnreadCount(ctx, room.ID, "mallory")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.ledger.RoomUnreadCount(ctx, "no-such-room", "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.MarkRoomRead(ctx, "no-such-room", "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := f.ledger.RoomUnreadCount(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "rejected calls leave read state alone")
}
