// Package gateway defines the boundary to the external account service.
//
// The concrete wire protocol lives behind these interfaces; the linking
// core only needs to open a handshake, wait for its out-of-band
// confirmation, and pull the finished credential off the connection.
package gateway

import (
	"context"
	"errors"

	"qrlink/internal/linker/models"
)

// Typed failures for Open. Anything else coming out of an implementation is
// treated as a connect failure by the caller.
var (
	// ErrConnectFailed: the network connection could not be established.
	ErrConnectFailed = errors.New("gateway: connect failed")
	// ErrProfileRejected: the remote service refused the application identity.
	ErrProfileRejected = errors.New("gateway: api profile rejected")
)

// Gateway opens login handshakes against the external account service.
type Gateway interface {
	// Open connects with the given application and device identity and
	// initiates a login challenge. On success the returned Handshake owns a
	// live connection; the caller must eventually Disconnect it.
	Open(ctx context.Context, profile models.APIProfile, dev models.DeviceProfile) (Handshake, error)
}

// Identity is the best-effort account info fetched after authorization.
type Identity struct {
	AccountID int64
	Phone     string
}

// Handshake is one login attempt bound to an exclusive connection handle.
// None of its methods are safe for concurrent use; a handshake belongs to
// exactly one waiter.
type Handshake interface {
	// ChallengeURL returns the opaque challenge token to be rendered
	// out-of-band (e.g. as a scannable code). Stable for the lifetime of
	// the handshake.
	ChallengeURL() string

	// Wait blocks until the challenge is confirmed on the account owner's
	// device or ctx is done. Returns ctx.Err() on expiry or cancellation.
	Wait(ctx context.Context) error

	// Authorized reports whether the connection reached an authorized state.
	Authorized(ctx context.Context) (bool, error)

	// ExportCredential extracts the durable credential blob. Only valid
	// once Authorized reported true.
	ExportCredential(ctx context.Context) (string, error)

	// Identity fetches account ID and phone for enrichment. Best-effort:
	// callers must tolerate failure.
	Identity(ctx context.Context) (Identity, error)

	// Disconnect closes the underlying connection. Idempotent; errors are
	// advisory and never escalate past the caller's logs.
	Disconnect(ctx context.Context) error
}
