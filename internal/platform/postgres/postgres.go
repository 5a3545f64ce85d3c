// Package postgres opens the shared database handle and applies the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection. Returns nil if the
// URL is empty (database not configured, memory stores take over).
func Open(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// Migrate applies the schema. Idempotent; every statement guards itself.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS api_profiles (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		app_id BIGINT NOT NULL,
		app_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		account_id BIGINT,
		phone_number TEXT,
		blob TEXT NOT NULL,
		api_profile_id BIGINT REFERENCES api_profiles(id),
		api_profile_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credentials_user_id ON credentials (user_id)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		action TEXT NOT NULL,
		user_id BIGINT,
		details TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		client TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events (user_id)`,
}
