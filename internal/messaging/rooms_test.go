package messaging_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/swapmeet/internal/domain"
	"github.com/sudo-init-do/swapmeet/internal/messaging"
	"github.com/sudo-init-do/swapmeet/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestGetOrCreateRoomIsSymmetric(t *testing.T) {
	ctx := context.Background()
	dir := messaging.NewDirectory(testutil.NewStore(t))

	first, err := dir.GetOrCreateRoom(ctx, "zoe", "adam", strPtr("item-1"))
	require.NoError(t, err)
	second, err := dir.GetOrCreateRoom(ctx, "adam", "zoe", strPtr("item-1"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "adam", first.UserAID)
	assert.Equal(t, "zoe", first.UserBID)
}

func TestGetOrCreateRoomScopesByItem(t *testing.T) {
	ctx := context.Background()
	dir := messaging.NewDirectory(testutil.NewStore(t))

	general, err := dir.GetOrCreateRoom(ctx, "a", "b", nil)
	require.NoError(t, err)
	emptyItem, err := dir.GetOrCreateRoom(ctx, "b", "a", strPtr(""))
	require.NoError(t, err)
	assert.Equal(t, general.ID, emptyItem.ID, "empty item id means no item")
	assert.Nil(t, emptyItem.ItemID)

	one, err := dir.GetOrCreateRoom(ctx, "a", "b", strPtr("item-1"))
	require.NoError(t, err)
	two, err := dir.GetOrCreateRoom(ctx, "a", "b", strPtr("item-2"))
	require.NoError(t, err)

	assert.NotEqual(t, general.ID, one.ID)
	assert.NotEqual(t, one.ID, two.ID)

	rooms, err := dir.ListRooms(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, rooms, 3)
}

func TestGetOrCreateRoomTrimsItemID(t *testing.T) {
	ctx := context.Background()
	dir := messaging.NewDirectory(testutil.NewStore(t))

	general, err := dir.GetOrCreateRoom(ctx, "alice", "bob", nil)
	require.NoError(t, err)
	blank, err := dir.GetOrCreateRoom(ctx, "bob", "alice", strPtr("  "))
	require.NoError(t, err)
	assert.Equal(t, general.ID, blank.ID, "whitespace item id means no item")
	assert.Nil(t, blank.ItemID)

	scoped, err := dir.GetOrCreateRoom(ctx, "alice", "bob", strPtr("item-9"))
	require.NoError(t, err)
	padded, err := dir.GetOrCreateRoom(ctx, "bob", "alice", strPtr(" item-9 "))
	require.NoError(t, err)
	assert.Equal(t, scoped.ID, padded.ID)
	require.NotNil(t, padded.ItemID)
	assert.Equal(t, "item-9", *padded.ItemID)
}

func TestGetOrCreateRoomRejectsBadPairs(t *testing.T) {
	dir := messaging.NewDirectory(testutil.NewStore(t))

	_, err := dir.GetOrCreateRoom(context.Background(), "a", "a", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = dir.GetOrCreateRoom(context.Background(), "a", " ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetOrCreateRoomConcurrentCallersShareOneRoom(t *testing.T) {
	ctx := context.Background()
	dir := messaging.NewDirectory(testutil.NewStore(t))

	const callers = 8
	var (
		mu  sync.Mutex
		ids = map[string]struct{}{}
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < callers; i++ {
		x, y := "alice", "bob"
		if i%2 == 1 {
			x, y = y, x
		}
		g.Go(func() error {
			room, err := dir.GetOrCreateRoom(gctx, x, y, strPtr("lamp"))
			if err != nil {
				return err
			}
			mu.Lock()
			ids[room.ID] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, ids, 1)

	rooms, err := dir.ListRooms(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestRoomAccessAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := messaging.NewDirectory(testutil.NewStore(t))

	room, err := dir.GetOrCreateRoom(ctx, "a", "b", nil)
	require.NoError(t, err)

	_, err = dir.Room(ctx, room.ID, "mallory")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.ErrorIs(t, dir.DeleteRoom(ctx, room.ID, "mallory"), domain.ErrForbidden)
	require.NoError(t, dir.DeleteRoom(ctx, room.ID, "b"))

	_, err = dir.Room(ctx, room.ID, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
