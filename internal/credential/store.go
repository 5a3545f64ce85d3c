// Package credential persists finished credentials for later reuse.
package credential

import (
	"context"
	"time"

	id "qrlink/pkg/domain"
)

// Record is one stored credential. AccountID and Phone mirror the
// best-effort enrichment of the handshake and may be nil.
type Record struct {
	ID          int64
	UserID      id.UserID
	AccountID   *int64
	Phone       *string
	Blob        string
	ProfileID   id.ProfileID
	ProfileName string
	CreatedAt   time.Time
}

// Store is the persistence gateway for finished credentials.
type Store interface {
	// Save stores the record and fills in its ID and CreatedAt.
	Save(ctx context.Context, rec *Record) error
	// ListByUser returns the user's credentials, newest first, with blobs
	// opened for reuse.
	ListByUser(ctx context.Context, userID id.UserID) ([]Record, error)
	// Count reports how many credentials the user has stored.
	Count(ctx context.Context, userID id.UserID) (int, error)
}
