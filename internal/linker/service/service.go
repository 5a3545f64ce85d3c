// Package service drives QR-challenge login handshakes end to end: start,
// bounded wait for confirmation, credential export, persistence, and the
// asynchronous completion callback.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"qrlink/internal/apiprofile"
	"qrlink/internal/credential"
	"qrlink/internal/linker/device"
	"qrlink/internal/linker/gateway"
	"qrlink/internal/linker/models"
	"qrlink/internal/linker/registry"
	"qrlink/internal/platform/metrics"
	"qrlink/internal/ratelimit"
	id "qrlink/pkg/domain"
	dErrors "qrlink/pkg/domain-errors"
	"qrlink/pkg/platform/audit"
	"qrlink/pkg/platform/sentinel"
)

// CompletionSink receives the terminal outcome of a session, exactly once
// per session that runs to completion. Implementations must not block for
// long; they are called from the waiter goroutine.
type CompletionSink interface {
	Deliver(ctx context.Context, completion models.Completion)
}

// Config carries the waiter timings. Both durations are injectable so tests
// can shrink them.
type Config struct {
	// ConfirmTimeout bounds how long a challenge stays scannable.
	ConfirmTimeout time.Duration
	// AuthGrace is the settle delay between confirmation and the
	// authorization check; the remote side needs a moment to finalize.
	AuthGrace time.Duration
}

// Deps are the collaborators a Manager needs. All fields except Sink are
// required.
type Deps struct {
	Profiles    apiprofile.Store
	Credentials credential.Store
	Devices     device.Selector
	Gateway     gateway.Gateway
	Registry    *registry.Registry
	Limiter     ratelimit.Limiter
	Auditor     *audit.Recorder
	Metrics     *metrics.Metrics
	Sink        CompletionSink
	Logger      *slog.Logger
}

// Manager owns the lifecycle of every in-flight handshake. Each started
// session gets one waiter goroutine; Close cancels them all and waits.
type Manager struct {
	cfg  Config
	deps Deps

	// baseCtx parents every waiter so a session outlives the HTTP request
	// that started it but not the process.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager. Waiters run until Close.
func NewManager(cfg Config, deps Deps) *Manager {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 120 * time.Second
	}
	if cfg.AuthGrace < 0 {
		cfg.AuthGrace = 0
	}
	deps.Registry.OnEvict(deps.Metrics.SessionsEvicted.Inc)

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		deps:    deps,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// StartSession opens a handshake for the user with the given API profile and
// returns the session holding the challenge URL. Any prior in-flight session
// for the same user is evicted. The confirmation outcome arrives later
// through the CompletionSink.
func (m *Manager) StartSession(ctx context.Context, userID id.UserID, profileID id.ProfileID) (*registry.Session, error) {
	if userID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if profileID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "api profile id is required")
	}

	allowed, retryAfter, err := m.deps.Limiter.Allow(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "rate limiter check failed")
	}
	if !allowed {
		return nil, dErrors.Newf(dErrors.CodeTooManyRequests,
			"session start cooldown active, retry in %s", retryAfter.Round(time.Second))
	}

	profile, err := m.deps.Profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "api profile %s not found", profileID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load api profile")
	}
	if !profile.Active {
		return nil, dErrors.Newf(dErrors.CodeProfileRejected, "api profile %q is deactivated", profile.Name)
	}

	dev := m.deps.Devices.Select()

	hs, err := m.deps.Gateway.Open(ctx, profile, dev)
	if err != nil {
		if errors.Is(err, gateway.ErrProfileRejected) {
			return nil, dErrors.Wrapf(err, dErrors.CodeProfileRejected,
				"remote service rejected api profile %q", profile.Name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to open handshake connection")
	}

	session := &registry.Session{
		UserID:       userID,
		ProfileID:    profile.ID,
		ProfileName:  profile.Name,
		Handshake:    hs,
		ChallengeURL: hs.ChallengeURL(),
		Device:       dev,
		CreatedAt:    time.Now(),
	}
	m.deps.Registry.Put(ctx, session)
	m.deps.Metrics.SessionsStarted.Inc()
	m.deps.Metrics.ActiveSessions.Set(float64(m.deps.Registry.Len()))

	m.deps.Auditor.Record(ctx, audit.Event{
		Action:  audit.ActionChallengeIssued,
		UserID:  userID,
		Details: fmt.Sprintf("profile=%s device=%s", profile.Name, dev.Model),
	})
	m.deps.Logger.InfoContext(ctx, "handshake started",
		"user_id", userID,
		"profile", profile.Name,
		"device", dev.Model,
	)

	m.wg.Add(1)
	go m.runWaiter(session)

	return session, nil
}

// CancelSession drops the user's in-flight session, if any. Idempotent:
// cancelling an absent session reports false without error. The waiter of a
// cancelled session finishes silently; no completion is delivered.
func (m *Manager) CancelSession(ctx context.Context, userID id.UserID) bool {
	removed := m.deps.Registry.Remove(ctx, userID)
	if !removed {
		return false
	}
	m.deps.Metrics.SessionsCancelled.Inc()
	m.deps.Metrics.ActiveSessions.Set(float64(m.deps.Registry.Len()))
	m.deps.Auditor.Record(ctx, audit.Event{
		Action: audit.ActionSessionCancelled,
		UserID: userID,
	})
	m.deps.Logger.InfoContext(ctx, "session cancelled", "user_id", userID)
	return true
}

// Lookup returns the user's in-flight session, if one exists.
func (m *Manager) Lookup(userID id.UserID) (*registry.Session, bool) {
	return m.deps.Registry.Get(userID)
}

// Close cancels every in-flight waiter and blocks until they finish.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
