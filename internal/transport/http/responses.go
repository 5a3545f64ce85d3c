package httptransport

import (
	"time"

	"qrlink/internal/linker/models"
	"qrlink/internal/linker/registry"
)

// SessionResponse describes a pending session. Only pending sessions are
// queryable; terminal outcomes travel through the completion sink.
type SessionResponse struct {
	UserID       int64                `json:"user_id"`
	ProfileID    int64                `json:"profile_id"`
	Profile      string               `json:"profile"`
	State        string               `json:"state"`
	ChallengeURL string               `json:"challenge_url"`
	Device       models.DeviceProfile `json:"device"`
	CreatedAt    time.Time            `json:"created_at"`
}

// FromSession converts a registry session to its API shape.
func FromSession(s *registry.Session) SessionResponse {
	return SessionResponse{
		UserID:       int64(s.UserID),
		ProfileID:    int64(s.ProfileID),
		Profile:      s.ProfileName,
		State:        string(models.StatePending),
		ChallengeURL: s.ChallengeURL,
		Device:       s.Device,
		CreatedAt:    s.CreatedAt,
	}
}

// ProfileListResponse wraps GET /api-profiles.
type ProfileListResponse struct {
	Profiles []models.APIProfile `json:"profiles"`
}
