package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sudo-init-do/swapmeet/internal/db"
	"github.com/sudo-init-do/swapmeet/internal/domain"
)

const storeName = "sqlite"

// Store is the embedded SQLite implementation of domain.Store. Transactions
// take the write lock up front (BEGIN IMMEDIATE), which serializes writers.
type Store struct {
	db    *sql.DB
	retry db.RetryPolicy
}

var _ domain.Store = (*Store)(nil)

// DSN returns a modernc DSN for path with the pragmas the store relies on.
func DSN(path string) string {
	params := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
		"_txlock=immediate",
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// Open opens the database file at path and applies migrations.
func Open(ctx context.Context, path string, retry db.RetryPolicy) (*Store, error) {
	conn, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: conn, retry: retry}
	if err := s.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("opened sqlite store")
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WithTx(ctx context.Context, fn func(r *domain.Repositories) error) error {
	return db.Retry(ctx, s.retry, storeName, isRetryable, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if err := fn(newRepositories(tx)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// Migrate runs idempotent CREATE TABLE / CREATE INDEX statements.
// Timestamps are stored as unix nanoseconds.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id TEXT PRIMARY KEY,
			seller_id TEXT NOT NULL,
			title TEXT NOT NULL,
			is_sold INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_seller ON listings(seller_id);`,
		`CREATE TABLE IF NOT EXISTS purchase_requests (
			id TEXT PRIMARY KEY,
			listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
			requester_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending','accepted','declined','cancelled')),
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_purchase_requests_pending
			ON purchase_requests(listing_id, requester_id) WHERE status = 'pending';`,
		`CREATE INDEX IF NOT EXISTS idx_purchase_requests_listing ON purchase_requests(listing_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_purchase_requests_requester ON purchase_requests(requester_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS chat_rooms (
			id TEXT PRIMARY KEY,
			user_a_id TEXT NOT NULL,
			user_b_id TEXT NOT NULL,
			item_id TEXT NULL,
			created_at INTEGER NOT NULL,
			CHECK (user_a_id <> user_b_id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_chat_rooms_pair_item
			ON chat_rooms(user_a_id, user_b_id, COALESCE(item_id, ''));`,
		`CREATE INDEX IF NOT EXISTS idx_chat_rooms_user_b ON chat_rooms(user_b_id);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			content TEXT NOT NULL,
			sent_at INTEGER NOT NULL,
			is_read INTEGER NOT NULL DEFAULT 0,
			read_at INTEGER NULL,
			CHECK ((is_read = 1 AND read_at IS NOT NULL AND read_at >= sent_at) OR (is_read = 0 AND read_at IS NULL))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_sent ON messages(room_id, sent_at, id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver_unread ON messages(receiver_id, is_read);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			recipient_id TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('purchase','chat')),
			message TEXT NOT NULL,
			related_item TEXT NULL,
			created_at INTEGER NOT NULL,
			is_read INTEGER NOT NULL DEFAULT 0,
			read_at INTEGER NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created ON notifications(recipient_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS item_reports (
			id TEXT PRIMARY KEY,
			listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
			reporter_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			details TEXT NULL,
			created_at INTEGER NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0,
			resolved_at INTEGER NULL,
			resolved_by TEXT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_item_reports_open
			ON item_reports(listing_id, reporter_id) WHERE resolved = 0;`,
		`CREATE INDEX IF NOT EXISTS idx_item_reports_reporter ON item_reports(reporter_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// querier is satisfied by *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func newRepositories(q querier) *domain.Repositories {
	return &domain.Repositories{
		Listings:         &ListingRepo{q: q},
		PurchaseRequests: &PurchaseRequestRepo{q: q},
		Rooms:            &RoomRepo{q: q},
		Messages:         &MessageRepo{q: q},
		Notifications:    &NotificationRepo{q: q},
		Reports:          &ReportRepo{q: q},
		Admin:            &AdminRepo{q: q},
	}
}

func isRetryable(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

func wrapErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
