package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/swapmeet/internal/domain"
)

const storeName = "postgres"

type Options struct {
	URL      string // takes precedence over the discrete fields
	User     string
	Password string
	Host     string
	Port     int
	Name     string
	SSLMode  string
	MaxConns int32
	Retry    RetryPolicy
}

// DSN builds a postgres connection URL.
func (o Options) DSN() string {
	if o.URL != "" {
		return o.URL
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(o.User),
		url.QueryEscape(o.Password),
		o.Host,
		o.Port,
		o.Name,
		sslMode,
	)
}

// Store is the Postgres implementation of domain.Store. Every transaction
// runs at SERIALIZABLE isolation.
type Store struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

var _ domain.Store = (*Store)(nil)

// Open connects to Postgres and bootstraps the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	log.Info().Str("host", opts.Host).Str("db", opts.Name).Msg("connected to postgres")

	s := &Store{pool: pool, retry: opts.Retry.withDefaults()}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// WithTx runs fn in a serializable transaction and replays it on
// serialization failures and deadlocks.
func (s *Store) WithTx(ctx context.Context, fn func(r *domain.Repositories) error) error {
	return Retry(ctx, s.retry, storeName, isRetryable, func() error {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(newRepositories(tx)); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// querier is satisfied by pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
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
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return false
}

// wrapErr maps unique violations to domain.ErrConflict and annotates the rest.
func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, domain.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}
