package marketplace_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/swapmeet/internal/domain"
	"github.com/sudo-init-do/swapmeet/internal/marketplace"
	"github.com/sudo-init-do/swapmeet/internal/notifications"
	"github.com/sudo-init-do/swapmeet/internal/testutil"
)

type fixture struct {
	store  domain.Store
	rec    *testutil.Recorder
	clock  *testutil.Clock
	hub    *notifications.Hub
	engine *marketplace.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	rec := &testutil.Recorder{}
	clock := testutil.NewClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	hub := notifications.NewHub(store, rec, notifications.WithClock(clock.Now))
	return &fixture{
		store:  store,
		rec:    rec,
		clock:  clock,
		hub:    hub,
		engine: marketplace.NewEngine(store, hub, rec),
	}
}

func (f *fixture) listing(t *testing.T, seller, title string) *domain.Listing {
	t.Helper()
	l, err := f.engine.RegisterListing(context.Background(), seller, title)
	require.NoError(t, err)
	return l
}

func errOnly(_ *domain.PurchaseRequest, err error) error { return err }

func (f *fixture) request(t *testing.T, id string) *domain.PurchaseRequest {
	t.Helper()
	var pr *domain.PurchaseRequest
	err := f.store.WithTx(context.Background(), func(r *domain.Repositories) error {
		var err error
		pr, err = r.PurchaseRequests.GetByID(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	return pr
}

func (f *fixture) sold(t *testing.T, listingID string) bool {
	t.Helper()
	var l *domain.Listing
	err := f.store.WithTx(context.Background(), func(r *domain.Repositories) error {
		var err error
		l, err = r.Listings.GetByID(context.Background(), listingID)
		return err
	})
	require.NoError(t, err)
	return l.IsSold
}

func TestRequestPurchaseNotifiesSeller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "seller", "Oak Desk")

	pr, err := f.engine.RequestPurchase(ctx, l.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, pr.Status)
	assert.True(t, pr.IsActive)

	notes, err := f.hub.List(ctx, "seller", "purchase")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "A buyer requested to buy your item 'Oak Desk'", notes[0].Message)
	require.NotNil(t, notes[0].RelatedItem)
	assert.Equal(t, "Oak Desk", *notes[0].RelatedItem)

	assert.Len(t, f.rec.OfType(domain.EventNotificationCreated), 1)
}

func TestRequestPurchaseRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "seller", "Lamp")

	_, err := f.engine.RequestPurchase(ctx, "missing", "buyer")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.engine.RequestPurchase(ctx, l.ID, "seller")
	assert.ErrorIs(t, err, domain.ErrSelfPurchase)

	pr, err := f.engine.RequestPurchase(ctx, l.ID, "buyer")
	require.NoError(t, err)
	require.NoError(t, errOnly(f.engine.Accept(ctx, pr.ID, "seller")))

	_, err = f.engine.RequestPurchase(ctx, l.ID, "late-buyer")
	assert.ErrorIs(t, err, domain.ErrAlreadySold)

	// failed calls leave no notification behind
	notes, err := f.hub.List(ctx, "seller", "")
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestDuplicateThenCancelThenRerequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "S", "Camera")

	first, err := f.engine.RequestPurchase(ctx, l.ID, "B1")
	require.NoError(t, err)

	_, err = f.engine.RequestPurchase(ctx, l.ID, "B1")
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	require.NoError(t, errOnly(f.engine.Cancel(ctx, first.ID, "B1")))
	cancelled := f.request(t, first.ID)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.False(t, cancelled.IsActive)

	// repeated cancel is a no-op
	require.NoError(t, errOnly(f.engine.Cancel(ctx, first.ID, "B1")))

	second, err := f.engine.RequestPurchase(ctx, l.ID, "B1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, domain.StatusPending, second.Status)
}

func TestAcceptCascadesAndSellsListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "S", "Guitar")

	r1, err := f.engine.RequestPurchase(ctx, l.ID, "B1")
	require.NoError(t, err)
	r2, err := f.engine.RequestPurchase(ctx, l.ID, "B2")
	require.NoError(t, err)
	r3, err := f.engine.RequestPurchase(ctx, l.ID, "B3")
	require.NoError(t, err)
	require.NoError(t, errOnly(f.engine.Cancel(ctx, r3.ID, "B3")))

	require.NoError(t, errOnly(f.engine.Accept(ctx, r1.ID, "S")))

	got1 := f.request(t, r1.ID)
	assert.Equal(t, domain.StatusAccepted, got1.Status)
	got2 := f.request(t, r2.ID)
	assert.Equal(t, domain.StatusDeclined, got2.Status)
	assert.False(t, got2.IsActive)
	got3 := f.request(t, r3.ID)
	assert.Equal(t, domain.StatusCancelled, got3.Status, "terminal states are never rewritten")
	assert.True(t, f.sold(t, l.ID))

	_, err = f.engine.Accept(ctx, r2.ID, "S")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	b1Notes, err := f.hub.List(ctx, "B1", "purchase")
	require.NoError(t, err)
	require.Len(t, b1Notes, 1)
	assert.Contains(t, b1Notes[0].Message, "accepted")

	b2Notes, err := f.hub.List(ctx, "B2", "purchase")
	require.NoError(t, err)
	require.Len(t, b2Notes, 1)
	assert.Contains(t, b2Notes[0].Message, "declined")

	detail, err := f.engine.ListingDetail(ctx, l.ID, "S")
	require.NoError(t, err)
	assert.True(t, detail.IsSold)
	assert.Equal(t, 1, detail.PurchaseRequestCount)
	assert.Equal(t, []string{"B1"}, detail.PurchaseRequesters)
}

func TestTransitionsReturnCommittedRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "S", "Mirror")
	winner, err := f.engine.RequestPurchase(ctx, l.ID, "B1")
	require.NoError(t, err)
	loser, err := f.engine.RequestPurchase(ctx, l.ID, "B2")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	accepted, err := f.engine.Accept(ctx, winner.ID, "S")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)
	assert.True(t, accepted.IsActive)
	assert.Equal(t, f.request(t, winner.ID), accepted)

	// the cascade already declined B2
	_, err = f.engine.Decline(ctx, loser.ID, "S")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	other := f.listing(t, "S", "Rug")
	pending, err := f.engine.RequestPurchase(ctx, other.ID, "B3")
	require.NoError(t, err)
	declined, err := f.engine.Decline(ctx, pending.ID, "S")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, declined.Status)
	assert.Equal(t, f.request(t, pending.ID), declined)

	third := f.listing(t, "S", "Vase")
	pending, err = f.engine.RequestPurchase(ctx, third.ID, "B4")
	require.NoError(t, err)
	cancelled, err := f.engine.Cancel(ctx, pending.ID, "B4")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.False(t, cancelled.IsActive)

	again, err := f.engine.Cancel(ctx, pending.ID, "B4")
	require.NoError(t, err)
	assert.Equal(t, cancelled, again, "repeated cancel returns the stored row unchanged")
}

func TestTransitionsRequireTheRightActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "S", "Chair")
	pr, err := f.engine.RequestPurchase(ctx, l.ID, "B")
	require.NoError(t, err)

	assert.ErrorIs(t, errOnly(f.engine.Accept(ctx, pr.ID, "B")), domain.ErrUnauthorized)
	assert.ErrorIs(t, errOnly(f.engine.Decline(ctx, pr.ID, "stranger")), domain.ErrUnauthorized)
	assert.ErrorIs(t, errOnly(f.engine.Cancel(ctx, pr.ID, "S")), domain.ErrUnauthorized)
	assert.ErrorIs(t, errOnly(f.engine.Accept(ctx, "missing", "S")), domain.ErrNotFound)

	// nothing moved
	assert.Equal(t, domain.StatusPending, f.request(t, pr.ID).Status)
	assert.False(t, f.sold(t, l.ID))
}

func TestTerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "S", "Bike")
	pr, err := f.engine.RequestPurchase(ctx, l.ID, "B")
	require.NoError(t, err)

	require.NoError(t, errOnly(f.engine.Decline(ctx, pr.ID, "S")))
	declined := f.request(t, pr.ID)
	assert.Equal(t, domain.StatusDeclined, declined.Status)
	assert.False(t, declined.IsActive)

	assert.ErrorIs(t, errOnly(f.engine.Decline(ctx, pr.ID, "S")), domain.ErrInvalidState)
	assert.ErrorIs(t, errOnly(f.engine.Accept(ctx, pr.ID, "S")), domain.ErrInvalidState)
	assert.ErrorIs(t, errOnly(f.engine.Cancel(ctx, pr.ID, "B")), domain.ErrInvalidState)
	assert.False(t, f.sold(t, l.ID))

	notes, err := f.hub.List(ctx, "B", "purchase")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Your purchase request for 'Bike' was declined", notes[0].Message)
}

func TestSentAndReceivedViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "S", "Kettle")
	_, err := f.engine.RequestPurchase(ctx, l.ID, "B")
	require.NoError(t, err)

	sent, err := f.engine.Sent(ctx, "B")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "Kettle", sent[0].ListingTitle)
	assert.Equal(t, "S", sent[0].SellerID)

	received, err := f.engine.Received(ctx, "S")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "B", received[0].RequesterID)

	none, err := f.engine.Received(ctx, "B")
	require.NoError(t, err)
	assert.Empty(t, none)

	detail, err := f.engine.ListingDetail(ctx, l.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, 1, detail.PurchaseRequestCount)
	assert.Nil(t, detail.PurchaseRequesters, "only the seller sees requesters")
}

func TestConcurrentAcceptsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "S", "Sofa")

	const buyers = 6
	ids := make([]string, buyers)
	for i := range ids {
		pr, err := f.engine.RequestPurchase(ctx, l.ID, "B"+string(rune('a'+i)))
		require.NoError(t, err)
		ids[i] = pr.ID
	}

	var wins, losses atomic.Int32
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := f.engine.Accept(ctx, id, "S")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrInvalidState):
				losses.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, buyers-1, losses.Load())

	received, err := f.engine.Received(ctx, "S")
	require.NoError(t, err)
	accepted := 0
	for _, pr := range received {
		switch pr.Status {
		case domain.StatusAccepted:
			accepted++
		case domain.StatusPending:
			t.Fatalf("request %s still pending after sale", pr.ID)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.True(t, f.sold(t, l.ID))
}

func TestReadersNeverSeeSoldWithPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "S", "Table")

	var target string
	for _, b := range []string{"B1", "B2", "B3", "B4"} {
		pr, err := f.engine.RequestPurchase(ctx, l.ID, b)
		require.NoError(t, err)
		target = pr.ID
	}

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		return errOnly(f.engine.Accept(ctx, target, "S"))
	})
	g.Go(func() error {
		for {
			var (
				sold    bool
				pending int
			)
			err := f.store.WithTx(ctx, func(r *domain.Repositories) error {
				listing, err := r.Listings.GetByID(ctx, l.ID)
				if err != nil {
					return err
				}
				views, err := r.PurchaseRequests.ListBySeller(ctx, "S")
				if err != nil {
					return err
				}
				sold, pending = listing.IsSold, 0
				for _, v := range views {
					if v.Status == domain.StatusPending {
						pending++
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if sold && pending > 0 {
				return errors.New("observed a sold listing with pending requests")
			}
			select {
			case <-done:
				return nil
			case <-time.After(time.Millisecond):
			}
		}
	})
	require.NoError(t, g.Wait())
}

func TestAcceptPublishesRequestUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.listing(t, "S", "Vase")
	r1, err := f.engine.RequestPurchase(ctx, l.ID, "B1")
	require.NoError(t, err)
	_, err = f.engine.RequestPurchase(ctx, l.ID, "B2")
	require.NoError(t, err)

	before := len(f.rec.OfType(domain.EventRequestUpdated))
	require.NoError(t, errOnly(f.engine.Accept(ctx, r1.ID, "S")))

	// accepted + one cascade decline, each to requester and seller
	assert.Equal(t, 4, len(f.rec.OfType(domain.EventRequestUpdated))-before)
}
