// Package models holds the value types of the account-linking domain.
package models

import (
	"time"

	id "qrlink/pkg/domain"
)

// DeviceProfile is the emulated client fingerprint presented to the remote
// service when a handshake is opened. Immutable value.
type DeviceProfile struct {
	Model         string `json:"model"`
	SystemVersion string `json:"system_version"`
	AppVersion    string `json:"app_version"`
}

// APIProfile is the application identity a handshake is authenticated with,
// distinct from the end user's identity.
type APIProfile struct {
	ID        id.ProfileID `json:"id"`
	Name      string       `json:"name"`
	AppID     int64        `json:"app_id"`
	AppHash   string       `json:"-"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
}

// Credential is the durable, reusable secret produced by a confirmed
// handshake. AccountID and Phone are best-effort enrichment and may be nil;
// Degraded marks a credential whose enrichment fetch failed.
type Credential struct {
	Blob        string
	AccountID   *int64
	Phone       *string
	ProfileName string
	Degraded    bool
}

// State is the waiter's position in its lifecycle. PENDING is the only
// non-terminal state.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateTimeout   State = "timeout"
	StateError     State = "error"
)

// Completion is the asynchronous outcome delivered once per session. Exactly
// one of Credential or Err is set; State is always terminal.
type Completion struct {
	UserID     id.UserID
	ProfileID  id.ProfileID
	State      State
	Credential *Credential
	Err        error
	Elapsed    time.Duration
}
