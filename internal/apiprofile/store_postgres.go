package apiprofile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"qrlink/internal/linker/models"
	id "qrlink/pkg/domain"
	"qrlink/pkg/platform/sentinel"
)

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore implements Store on the shared database handle.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed profile store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, profile *models.APIProfile) error {
	query := `
		INSERT INTO api_profiles (name, app_id, app_hash)
		VALUES ($1, $2, $3)
		RETURNING id, is_active, created_at
	`
	err := s.db.QueryRowContext(ctx, query, profile.Name, profile.AppID, profile.AppHash).
		Scan(&profile.ID, &profile.Active, &profile.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert api profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, profileID id.ProfileID) (models.APIProfile, error) {
	query := `
		SELECT id, name, app_id, app_hash, is_active, created_at
		FROM api_profiles
		WHERE id = $1
	`
	var p models.APIProfile
	err := s.db.QueryRowContext(ctx, query, int64(profileID)).
		Scan(&p.ID, &p.Name, &p.AppID, &p.AppHash, &p.Active, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.APIProfile{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.APIProfile{}, fmt.Errorf("select api profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]models.APIProfile, error) {
	query := `
		SELECT id, name, app_id, app_hash, is_active, created_at
		FROM api_profiles
		WHERE is_active
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list api profiles: %w", err)
	}
	defer rows.Close()

	var out []models.APIProfile
	for rows.Next() {
		var p models.APIProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.AppID, &p.AppHash, &p.Active, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Deactivate(ctx context.Context, profileID id.ProfileID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_profiles SET is_active = FALSE WHERE id = $1`, int64(profileID))
	if err != nil {
		return fmt.Errorf("deactivate api profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate api profile: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
