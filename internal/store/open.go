// Package store picks the domain.Store implementation named by configuration.
package store

import (
	"context"
	"fmt"

	"github.com/sudo-init-do/swapmeet/internal/config"
	"github.com/sudo-init-do/swapmeet/internal/db"
	"github.com/sudo-init-do/swapmeet/internal/db/sqlite"
	"github.com/sudo-init-do/swapmeet/internal/domain"
)

// RetryPolicy builds the transaction retry policy from cfg.
func RetryPolicy(cfg *config.Config) db.RetryPolicy {
	return db.RetryPolicy{
		MaxAttempts: cfg.TxMaxAttempts,
		MinBackoff:  cfg.TxMinBackoff,
		MaxBackoff:  cfg.TxMaxBackoff,
	}
}

// Open connects the configured store and applies migrations.
func Open(ctx context.Context, cfg *config.Config) (domain.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		s, err := db.Open(ctx, db.Options{
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			Name:     cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
			MaxConns: cfg.DBMaxConns,
			Retry:    RetryPolicy(cfg),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.SQLitePath, RetryPolicy(cfg))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
