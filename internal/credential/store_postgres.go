package credential

import (
	"context"
	"database/sql"
	"fmt"

	id "qrlink/pkg/domain"
	"qrlink/pkg/platform/seal"
)

// PostgresStore implements Store on the shared database handle. When a
// sealer is configured, blobs are encrypted before they hit a row and
// opened transparently on reads; rows written before sealing was enabled
// stay readable.
type PostgresStore struct {
	db     *sql.DB
	sealer *seal.Sealer
}

// NewPostgresStore creates a Postgres-backed credential store. sealer may
// be nil to store blobs in the clear.
func NewPostgresStore(db *sql.DB, sealer *seal.Sealer) *PostgresStore {
	return &PostgresStore{db: db, sealer: sealer}
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	blob := rec.Blob
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(blob)
		if err != nil {
			return fmt.Errorf("seal credential: %w", err)
		}
		blob = sealed
	}

	query := `
		INSERT INTO credentials (user_id, account_id, phone_number, blob, api_profile_id, api_profile_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		int64(rec.UserID), rec.AccountID, rec.Phone, blob, int64(rec.ProfileID), rec.ProfileName).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]Record, error) {
	query := `
		SELECT id, user_id, account_id, phone_number, blob, api_profile_id, api_profile_name, created_at
		FROM credentials
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, int64(userID))
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.AccountID, &r.Phone, &r.Blob,
			&r.ProfileID, &r.ProfileName, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		if s.sealer != nil && seal.IsSealed(r.Blob) {
			opened, err := s.sealer.Open(r.Blob)
			if err != nil {
				return nil, fmt.Errorf("open credential %d: %w", r.ID, err)
			}
			r.Blob = opened
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, userID id.UserID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE user_id = $1`, int64(userID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return n, nil
}
