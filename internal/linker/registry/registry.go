// Package registry tracks the single in-flight handshake each user may hold.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"qrlink/internal/linker/gateway"
	"qrlink/internal/linker/models"
	id "qrlink/pkg/domain"
)

// Session is one user's in-flight handshake. The Handshake (and its
// connection) is exclusively owned by this entry until the registry drops it.
type Session struct {
	UserID       id.UserID
	ProfileID    id.ProfileID
	ProfileName  string
	Handshake    gateway.Handshake
	ChallengeURL string
	Device       models.DeviceProfile
	CreatedAt    time.Time
}

// disconnectTimeout bounds the best-effort teardown of a replaced or
// removed connection so a stuck disconnect cannot wedge the registry.
const disconnectTimeout = 5 * time.Second

// Registry is the only object mutated by more than one task. All operations
// take the one mutex, so put/get/remove are linearized per user: a later Put
// always fully evicts the earlier session's handle before the new entry
// becomes visible.
type Registry struct {
	mu       sync.Mutex
	sessions map[id.UserID]*Session
	logger   *slog.Logger

	// onEvict is invoked (outside the map write, inside the lock) whenever
	// an older session is displaced by Put. Used for metrics.
	onEvict func()
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[id.UserID]*Session),
		logger:   logger,
	}
}

// OnEvict registers a callback fired when Put displaces a prior session.
func (r *Registry) OnEvict(fn func()) { r.onEvict = fn }

// Put installs the session for its user. Any prior session for the same
// user is disconnected first; disconnect failures are logged and ignored.
func (r *Registry) Put(ctx context.Context, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[s.UserID]; ok {
		r.disconnect(ctx, old)
		if r.onEvict != nil {
			r.onEvict()
		}
	}
	r.sessions[s.UserID] = s
}

// Get returns the user's current session, if any.
func (r *Registry) Get(userID id.UserID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Remove drops whatever session the user currently holds, disconnecting it
// first. Reports whether an entry existed. Idempotent.
func (r *Registry) Remove(ctx context.Context, userID id.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		return false
	}
	r.disconnect(ctx, s)
	delete(r.sessions, userID)
	return true
}

// Evict removes the entry only if it still is the given session. A waiter
// finishing on a stale handle after cancellation or replacement is a no-op
// here: eviction is keyed by identity, not by presence alone.
func (r *Registry) Evict(ctx context.Context, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[s.UserID]
	if !ok || current != s {
		return false
	}
	r.disconnect(ctx, s)
	delete(r.sessions, s.UserID)
	return true
}

// Len reports how many handshakes are in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// disconnect tears down a session's connection. Best-effort, never fatal:
// the outcome of the handshake has already been decided by the caller.
func (r *Registry) disconnect(ctx context.Context, s *Session) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()
	if err := s.Handshake.Disconnect(dctx); err != nil {
		r.logger.Warn("disconnect failed",
			"user_id", s.UserID,
			"error", err,
		)
	}
}
