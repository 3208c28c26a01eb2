// Package database opens the PostgreSQL connection to the order store.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tacoshare-tracking-api/pkg/config"

	_ "github.com/lib/pq"
)

// ErrNotInitialized is returned by Health before Connect succeeded
var ErrNotInitialized = errors.New("database connection not initialized")

// Connect opens the order database and verifies it answers
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := Health(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	return db, nil
}

// Health checks database connectivity with a timeout
// Returns nil if healthy, error otherwise
func Health(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return ErrNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
