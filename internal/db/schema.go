package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Migrate creates missing tables and indexes. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"listings", s.ensureListingsTable},
		{"purchase_requests", s.ensurePurchaseRequestsTable},
		{"chat", s.ensureChatTables},
		{"notifications", s.ensureNotificationsTable},
		{"item_reports", s.ensureReportsTable},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("ensure %s: %w", step.name, err)
		}
	}
	log.Debug().Msg("postgres schema ensured")
	return nil
}

func (s *Store) ensureListingsTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS listings (
            id TEXT PRIMARY KEY,
            seller_id TEXT NOT NULL,
            title TEXT NOT NULL,
            is_sold BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_listings_seller ON listings(seller_id);
    `)
	return err
}

// ensurePurchaseRequestsTable keeps at most one pending request per
// (listing, requester) through a partial unique index.
func (s *Store) ensurePurchaseRequestsTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS purchase_requests (
            id TEXT PRIMARY KEY,
            listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
            requester_id TEXT NOT NULL,
            status TEXT NOT NULL CHECK (status IN ('pending','accepted','declined','cancelled')),
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE UNIQUE INDEX IF NOT EXISTS uq_purchase_requests_pending
            ON purchase_requests(listing_id, requester_id) WHERE status = 'pending';
        CREATE INDEX IF NOT EXISTS idx_purchase_requests_listing ON purchase_requests(listing_id, status);
        CREATE INDEX IF NOT EXISTS idx_purchase_requests_requester ON purchase_requests(requester_id, created_at);
    `)
	return err
}

// ensureChatTables creates rooms and messages. NULL item ids are folded to ''
// in the unique index so item-less rooms are unique per pair too.
func (s *Store) ensureChatTables(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS chat_rooms (
            id TEXT PRIMARY KEY,
            user_a_id TEXT NOT NULL,
            user_b_id TEXT NOT NULL,
            item_id TEXT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (user_a_id <> user_b_id)
        );
        CREATE UNIQUE INDEX IF NOT EXISTS uq_chat_rooms_pair_item
            ON chat_rooms(user_a_id, user_b_id, COALESCE(item_id, ''));
        CREATE INDEX IF NOT EXISTS idx_chat_rooms_user_b ON chat_rooms(user_b_id);

        CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sender_id TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            content TEXT NOT NULL,
            sent_at TIMESTAMPTZ NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            read_at TIMESTAMPTZ NULL,
            CHECK ((is_read AND read_at IS NOT NULL AND read_at >= sent_at) OR (NOT is_read AND read_at IS NULL))
        );
        CREATE INDEX IF NOT EXISTS idx_messages_room_sent ON messages(room_id, sent_at, id);
        CREATE INDEX IF NOT EXISTS idx_messages_receiver_unread ON messages(receiver_id) WHERE is_read = FALSE;
    `)
	return err
}

func (s *Store) ensureNotificationsTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS notifications (
            id TEXT PRIMARY KEY,
            recipient_id TEXT NOT NULL,
            type TEXT NOT NULL CHECK (type IN ('purchase','chat')),
            message TEXT NOT NULL,
            related_item TEXT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            read_at TIMESTAMPTZ NULL
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created ON notifications(recipient_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_notifications_recipient_unread ON notifications(recipient_id) WHERE is_read = FALSE;
    `)
	return err
}

func (s *Store) ensureReportsTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS item_reports (
            id TEXT PRIMARY KEY,
            listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
            reporter_id TEXT NOT NULL,
            reason TEXT NOT NULL,
            details TEXT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            resolved BOOLEAN NOT NULL DEFAULT FALSE,
            resolved_at TIMESTAMPTZ NULL,
            resolved_by TEXT NULL
        );
        CREATE UNIQUE INDEX IF NOT EXISTS uq_item_reports_open
            ON item_reports(listing_id, reporter_id) WHERE resolved = FALSE;
        CREATE INDEX IF NOT EXISTS idx_item_reports_reporter ON item_reports(reporter_id, created_at);
    `)
	return err
}
