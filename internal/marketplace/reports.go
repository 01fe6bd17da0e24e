package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

const maxReasonLength = 255

// Reports records item reports. Moderation beyond recording and resolving
// them happens elsewhere.
type Reports struct {
	store domain.Store
	now   func() time.Time
}

func NewReports(store domain.Store) *Reports {
	return &Reports{store: store, now: time.Now}
}

// Toggle reports the listing, or withdraws the caller's open report if one
// exists. reported tells which happened; report is nil on withdrawal.
func (s *Reports) Toggle(ctx context.Context, listingID, reporterID, reason string, details *string) (reported bool, report *domain.ItemReport, err error) {
	reason = strings.TrimSpace(reason)
	err = s.store.WithTx(ctx, func(r *domain.Repositories) error {
		reported, report = false, nil

		l, err := r.Listings.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if l.SellerID == reporterID {
			return fmt.Errorf("%w: you cannot report your own item", domain.ErrInvalidInput)
		}

		existing, err := r.Reports.FindOpen(ctx, listingID, reporterID)
		if err != nil {
			return err
		}
		if existing != nil {
			return r.Reports.Delete(ctx, existing.ID)
		}

		if reason == "" {
			return fmt.Errorf("%w: reason is required when reporting an item", domain.ErrInvalidInput)
		}
		if utf8.RuneCountInString(reason) > maxReasonLength {
			return fmt.Errorf("%w: reason exceeds %d characters", domain.ErrInvalidInput, maxReasonLength)
		}
		if details != nil && strings.TrimSpace(*details) == "" {
			details = nil
		}
		rep := &domain.ItemReport{
			ID:         uuid.New().String(),
			ListingID:  listingID,
			ReporterID: reporterID,
			Reason:     reason,
			Details:    details,
			CreatedAt:  s.now().UTC().Truncate(time.Microsecond),
		}
		if err := r.Reports.Create(ctx, rep); err != nil {
			return err
		}
		reported, report = true, rep
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return reported, report, nil
}

// Mine lists every report reporterID filed, resolved ones included.
func (s *Reports) Mine(ctx context.Context, reporterID string) ([]*domain.ItemReport, error) {
	var out []*domain.ItemReport
	err := s.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		out, err = r.Reports.ListByReporter(ctx, reporterID)
		return err
	})
	return out, err
}

func (s *Reports) Open(ctx context.Context) ([]*domain.ItemReport, error) {
	var out []*domain.ItemReport
	err := s.store.WithTx(ctx, func(r *domain.Repositories) error {
		var err error
		out, err = r.Reports.ListOpen(ctx)
		return err
	})
	return out, err
}

// Resolve closes an open report. Unknown and already resolved reports are
// both reported as not found.
func (s *Reports) Resolve(ctx context.Context, reportID, adminID string) error {
	return s.store.WithTx(ctx, func(r *domain.Repositories) error {
		ok, err := r.Reports.Resolve(ctx, reportID, adminID, s.now().UTC().Truncate(time.Microsecond))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("report %s: %w", reportID, domain.ErrNotFound)
		}
		return nil
	})
}
