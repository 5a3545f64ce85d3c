package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists audit events in the audit_events table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	var userID any
	if !event.UserID.IsZero() {
		userID = int64(event.UserID)
	}
	query := `
		INSERT INTO audit_events (id, action, user_id, details, subject, client, ip, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, string(event.Action), userID, event.Details, event.Subject,
		event.Client, event.IP, event.RequestID, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
