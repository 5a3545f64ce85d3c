package httptransport

import (
	"errors"
	"strings"

	id "qrlink/pkg/domain"
	dErrors "qrlink/pkg/domain-errors"
	"qrlink/pkg/platform/sentinel"
)

// StartSessionRequest is the body for POST /sessions.
type StartSessionRequest struct {
	UserID    int64 `json:"user_id"`
	ProfileID int64 `json:"profile_id"`

	// Parsed values (populated by Validate)
	userID    id.UserID
	profileID id.ProfileID
}

// Validate checks and parses the request.
func (r *StartSessionRequest) Validate() error {
	if r.UserID <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "user_id must be a positive integer")
	}
	if r.ProfileID <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "profile_id must be a positive integer")
	}
	r.userID = id.UserID(r.UserID)
	r.profileID = id.ProfileID(r.ProfileID)
	return nil
}

// CreateProfileRequest is the body for POST /api-profiles.
type CreateProfileRequest struct {
	Name    string `json:"name"`
	AppID   int64  `json:"app_id"`
	AppHash string `json:"app_hash"`
}

// Validate checks the request fields.
func (r *CreateProfileRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if len(r.Name) > 64 {
		return dErrors.New(dErrors.CodeInvalidInput, "name must be at most 64 characters")
	}
	if r.AppID <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "app_id must be a positive integer")
	}
	r.AppHash = strings.TrimSpace(r.AppHash)
	if r.AppHash == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "app_hash is required")
	}
	return nil
}

// translateStoreErr maps store sentinels onto domain errors for the API.
func translateStoreErr(err error, entity string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, entity+" already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}
}
