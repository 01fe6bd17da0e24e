package marketplace

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

const maxTitleLength = 200

// RegisterListing stores the reference row for a listing owned by sellerID.
// Listing content itself lives with the listing service.
func (e *Engine) RegisterListing(ctx context.Context, sellerID, title string) (*domain.Listing, error) {
	title = strings.TrimSpace(title)
	if sellerID == "" {
		return nil, domain.ErrUnauthorized
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title exceeds %d characters", domain.ErrInvalidInput, maxTitleLength)
	}

	l := &domain.Listing{
		ID:        uuid.New().String(),
		SellerID:  sellerID,
		Title:     title,
		CreatedAt: e.hub.Now(),
	}
	err := e.store.WithTx(ctx, func(r *domain.Repositories) error {
		return r.Listings.Create(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListingDetail returns the listing with its active request count. Only the
// seller sees who the requesters are.
func (e *Engine) ListingDetail(ctx context.Context, listingID, viewerID string) (*domain.ListingDetail, error) {
	var out *domain.ListingDetail
	err := e.store.WithTx(ctx, func(r *domain.Repositories) error {
		l, err := r.Listings.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		requesters, err := r.PurchaseRequests.ActiveRequesters(ctx, listingID)
		if err != nil {
			return err
		}
		out = &domain.ListingDetail{Listing: *l, PurchaseRequestCount: len(requesters)}
		if viewerID == l.SellerID {
			out.PurchaseRequesters = requesters
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
