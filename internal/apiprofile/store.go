// Package apiprofile stores the application identities handshakes are
// opened with.
package apiprofile

import (
	"context"

	"qrlink/internal/linker/models"
	id "qrlink/pkg/domain"
)

// Store persists API profiles. Implementations return sentinel.ErrNotFound
// for missing rows and sentinel.ErrConflict for duplicate names.
type Store interface {
	Create(ctx context.Context, profile *models.APIProfile) error
	GetByID(ctx context.Context, profileID id.ProfileID) (models.APIProfile, error)
	ListActive(ctx context.Context) ([]models.APIProfile, error)
	Deactivate(ctx context.Context, profileID id.ProfileID) error
}
