// Package marketplace runs the purchase-request lifecycle between buyers and
// sellers, plus the listing and report records it depends on.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/swapmeet/internal/domain"
	"github.com/sudo-init-do/swapmeet/internal/notifications"
)

// Engine is the purchase-request state machine. It keeps no state of its own;
// every decision is taken inside a store transaction.
type Engine struct {
	store domain.Store
	hub   *notifications.Hub
	pub   domain.Publisher
}

func NewEngine(store domain.Store, hub *notifications.Hub, pub domain.Publisher) *Engine {
	return &Engine{store: store, hub: hub, pub: pub}
}

// outcome collects what a transaction changed so it can be announced after commit.
type outcome struct {
	notes   []*domain.Notification
	updated []*domain.PurchaseRequest
	sellers map[string]string
}

func (o *outcome) reset() {
	o.notes, o.updated = nil, nil
	o.sellers = map[string]string{}
}

func (e *Engine) record(ctx context.Context, r *domain.Repositories, o *outcome, to, text, item string) error {
	n, err := e.hub.Record(ctx, r, to, domain.NotificationPurchase, text, &item)
	if err != nil {
		return err
	}
	o.notes = append(o.notes, n)
	return nil
}

// =========================
// RequestPurchase - buyer asks to buy a listing
// =========================
func (e *Engine) RequestPurchase(ctx context.Context, listingID, requesterID string) (*domain.PurchaseRequest, error) {
	if requesterID == "" {
		return nil, domain.ErrUnauthorized
	}

	var (
		pr *domain.PurchaseRequest
		o  outcome
	)
	err := e.store.WithTx(ctx, func(r *domain.Repositories) error {
		pr = nil
		o.reset()

		listing, err := r.Listings.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.IsSold {
			return domain.ErrAlreadySold
		}
		if listing.SellerID == requesterID {
			return domain.ErrSelfPurchase
		}
		existing, err := r.PurchaseRequests.FindPending(ctx, listingID, requesterID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateRequest
		}

		now := e.hub.Now()
		fresh := &domain.PurchaseRequest{
			ID:          uuid.New().String(),
			ListingID:   listingID,
			RequesterID: requesterID,
			Status:      domain.StatusPending,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := r.PurchaseRequests.Create(ctx, fresh); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.ErrDuplicateRequest
			}
			return err
		}
		pr = fresh
		o.updated = append(o.updated, fresh)
		o.sellers[fresh.ID] = listing.SellerID

		return e.record(ctx, r, &o, listing.SellerID,
			fmt.Sprintf("A buyer requested to buy your item '%s'", listing.Title), listing.Title)
	})
	if err != nil {
		return nil, err
	}
	e.announce(&o)
	return pr, nil
}

// =========================
// Accept - seller accepts one request and sells the listing
// =========================
//
// The listing flip, the acceptance and the cascade decline of every other
// pending request commit together or not at all.
func (e *Engine) Accept(ctx context.Context, requestID, actorID string) (*domain.PurchaseRequest, error) {
	var (
		result *domain.PurchaseRequest
		o      outcome
	)
	err := e.store.WithTx(ctx, func(r *domain.Repositories) error {
		result = nil
		o.reset()

		pr, listing, err := loadRequest(ctx, r, requestID)
		if err != nil {
			return err
		}
		if listing.SellerID != actorID {
			return domain.ErrUnauthorized
		}
		if pr.Status != domain.StatusPending {
			return fmt.Errorf("%w: request is %s", domain.ErrInvalidState, pr.Status)
		}

		sold, err := r.Listings.MarkSold(ctx, listing.ID)
		if err != nil {
			return err
		}
		if !sold {
			return fmt.Errorf("%w: listing already sold", domain.ErrInvalidState)
		}

		now := e.hub.Now()
		ok, err := r.PurchaseRequests.Transition(ctx, pr.ID, domain.StatusPending, domain.StatusAccepted, true, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: request no longer pending", domain.ErrInvalidState)
		}
		pr.Status, pr.IsActive, pr.UpdatedAt = domain.StatusAccepted, true, now
		result = pr

		declined, err := r.PurchaseRequests.DeclinePending(ctx, listing.ID, pr.ID, now)
		if err != nil {
			return err
		}

		o.updated = append(o.updated, pr)
		o.sellers[pr.ID] = listing.SellerID
		if err := e.record(ctx, r, &o, pr.RequesterID,
			fmt.Sprintf("Your purchase request for '%s' was accepted", listing.Title), listing.Title); err != nil {
			return err
		}
		for _, d := range declined {
			o.updated = append(o.updated, d)
			o.sellers[d.ID] = listing.SellerID
			if err := e.record(ctx, r, &o, d.RequesterID,
				fmt.Sprintf("Your purchase request for '%s' was declined because the item was sold", listing.Title), listing.Title); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.announce(&o)
	return result, nil
}

// =========================
// Decline - seller turns down a pending request
// =========================
func (e *Engine) Decline(ctx context.Context, requestID, actorID string) (*domain.PurchaseRequest, error) {
	var (
		result *domain.PurchaseRequest
		o      outcome
	)
	err := e.store.WithTx(ctx, func(r *domain.Repositories) error {
		result = nil
		o.reset()

		pr, listing, err := loadRequest(ctx, r, requestID)
		if err != nil {
			return err
		}
		if listing.SellerID != actorID {
			return domain.ErrUnauthorized
		}
		if pr.Status != domain.StatusPending {
			return fmt.Errorf("%w: request is %s", domain.ErrInvalidState, pr.Status)
		}

		now := e.hub.Now()
		ok, err := r.PurchaseRequests.Transition(ctx, pr.ID, domain.StatusPending, domain.StatusDeclined, false, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: request no longer pending", domain.ErrInvalidState)
		}
		pr.Status, pr.IsActive, pr.UpdatedAt = domain.StatusDeclined, false, now
		result = pr

		o.updated = append(o.updated, pr)
		o.sellers[pr.ID] = listing.SellerID
		return e.record(ctx, r, &o, pr.RequesterID,
			fmt.Sprintf("Your purchase request for '%s' was declined", listing.Title), listing.Title)
	})
	if err != nil {
		return nil, err
	}
	e.announce(&o)
	return result, nil
}

// =========================
// Cancel - requester withdraws a request
// =========================
//
// Cancelling an already cancelled request succeeds without changes.
func (e *Engine) Cancel(ctx context.Context, requestID, actorID string) (*domain.PurchaseRequest, error) {
	var (
		result *domain.PurchaseRequest
		o      outcome
	)
	err := e.store.WithTx(ctx, func(r *domain.Repositories) error {
		result = nil
		o.reset()

		pr, listing, err := loadRequest(ctx, r, requestID)
		if err != nil {
			return err
		}
		if pr.RequesterID != actorID {
			return domain.ErrUnauthorized
		}
		switch pr.Status {
		case domain.StatusCancelled:
			result = pr
			return nil
		case domain.StatusPending:
		default:
			return fmt.Errorf("%w: request is %s", domain.ErrInvalidState, pr.Status)
		}

		now := e.hub.Now()
		ok, err := r.PurchaseRequests.Transition(ctx, pr.ID, domain.StatusPending, domain.StatusCancelled, false, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: request no longer pending", domain.ErrInvalidState)
		}
		pr.Status, pr.IsActive, pr.UpdatedAt = domain.StatusCancelled, false, now
		result = pr

		o.updated = append(o.updated, pr)
		o.sellers[pr.ID] = listing.SellerID
		return e.record(ctx, r, &o, listing.SellerID,
			fmt.Sprintf("A buyer cancelled their request for your item '%s'", listing.Title), listing.Title)
	})
	if err != nil {
		return nil, err
	}
	e.announce(&o)
	return result, nil
}

// Sent lists the requests userID made, newest first.
func (e *Engine) Sent(ctx context.Context, userID string) ([]*domain.PurchaseRequestView, error) {
	var out []*domain.PurchaseRequestView
	err := e.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		out, err = r.PurchaseRequests.ListByRequester(ctx, userID)
		return err
	})
	return out, err
}

// Received lists the requests made on userID's listings, newest first.
func (e *Engine) Received(ctx context.Context, userID string) ([]*domain.PurchaseRequestView, error) {
	var out []*domain.PurchaseRequestView
	err := e.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		out, err = r.PurchaseRequests.ListBySeller(ctx, userID)
		return err
	})
	return out, err
}

// Request returns a single request to its requester or the listing's seller.
func (e *Engine) Request(ctx context.Context, requestID, viewerID string) (*domain.PurchaseRequest, error) {
	var pr *domain.PurchaseRequest
	err := e.store.WithTx(ctx, func(r *domain.Repositories) error {
		found, listing, err := loadRequest(ctx, r, requestID)
		if err != nil {
			return err
		}
		if viewerID != found.RequesterID && viewerID != listing.SellerID {
			return domain.ErrUnauthorized
		}
		pr = found
		return nil
	})
	return pr, err
}

func loadRequest(ctx context.Context, r *domain.Repositories, requestID string) (*domain.PurchaseRequest, *domain.Listing, error) {
	pr, err := r.PurchaseRequests.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	listing, err := r.Listings.GetByID(ctx, pr.ListingID)
	if err != nil {
		return nil, nil, err
	}
	return pr, listing, nil
}

type requestUpdate struct {
	RequestID   string               `json:"request_id"`
	ListingID   string               `json:"listing_id"`
	RequesterID string               `json:"requester_id"`
	Status      domain.RequestStatus `json:"status"`
	IsActive    bool                 `json:"is_active"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// announce hands committed changes to the fan-out. It never blocks.
func (e *Engine) announce(o *outcome) {
	e.hub.Deliver(o.notes...)
	if e.pub == nil {
		return
	}
	for _, pr := range o.updated {
		data := requestUpdate{
			RequestID:   pr.ID,
			ListingID:   pr.ListingID,
			RequesterID: pr.RequesterID,
			Status:      pr.Status,
			IsActive:    pr.IsActive,
			UpdatedAt:   pr.UpdatedAt,
		}
		for _, to := range []string{pr.RequesterID, o.sellers[pr.ID]} {
			e.pub.Publish(domain.Event{
				ID:          uuid.New().String(),
				Type:        domain.EventRequestUpdated,
				RecipientID: to,
				OccurredAt:  pr.UpdatedAt,
				Data:        data,
			})
		}
	}
}
