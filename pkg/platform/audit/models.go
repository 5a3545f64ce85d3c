// Package audit records key domain actions for operational visibility.
//
// Events are emitted from domain logic, queued through a Recorder, and
// persisted by a background Worker so the hot path never blocks on the
// audit store.
package audit

import (
	"time"

	id "qrlink/pkg/domain"
)

// Action names one auditable thing that happened.
type Action string

const (
	ActionChallengeIssued       Action = "challenge_issued"
	ActionSessionLinked         Action = "session_linked"
	ActionSessionTimeout        Action = "session_timeout"
	ActionSessionFailed         Action = "session_failed"
	ActionSessionCancelled      Action = "session_cancelled"
	ActionAPIProfileAdded       Action = "api_profile_added"
	ActionAPIProfileDeactivated Action = "api_profile_deactivated"
)

// Event is one audit record. Keep it transport-agnostic so stores can fan
// out without knowing where the event came from.
type Event struct {
	ID      string
	Action  Action
	UserID  id.UserID
	Details string
	// Subject is the authenticated API caller that triggered the action,
	// empty for events raised outside an authenticated request.
	Subject string
	// Client is the compact descriptor of the calling client, when known.
	Client    string
	IP        string
	RequestID string
	Timestamp time.Time
}
