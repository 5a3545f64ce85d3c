package service

import (
	"context"
	"errors"
	"time"

	"qrlink/internal/credential"
	"qrlink/internal/linker/models"
	"qrlink/internal/linker/registry"
	dErrors "qrlink/pkg/domain-errors"
	"qrlink/pkg/platform/audit"
)

// outcome is what awaitConfirmation resolved the handshake to. Exactly one
// of cred or err is set for terminal states.
type outcome struct {
	state models.State
	cred  *models.Credential
	err   error
}

// runWaiter follows one handshake from challenge to terminal state. It runs
// in its own goroutine and always ends by evicting the session from the
// registry, which also disconnects the handshake. A waiter whose session was
// already removed (cancel or replacement) finishes silently: the eviction is
// keyed by session identity, and only the owner reports an outcome.
func (m *Manager) runWaiter(s *registry.Session) {
	defer m.wg.Done()

	out := m.awaitConfirmation(s)

	owned := m.deps.Registry.Evict(m.baseCtx, s)
	m.deps.Metrics.ActiveSessions.Set(float64(m.deps.Registry.Len()))
	if !owned {
		m.deps.Logger.Debug("waiter finished on displaced session",
			"user_id", s.UserID,
			"state", out.state,
		)
		return
	}

	elapsed := time.Since(s.CreatedAt)
	m.deps.Metrics.HandshakeDuration.Observe(elapsed.Seconds())
	m.report(s, out, elapsed)
}

// awaitConfirmation runs the waiter state machine: bounded wait for the
// challenge scan, settle grace, authorization check, credential export,
// best-effort identity enrichment.
func (m *Manager) awaitConfirmation(s *registry.Session) outcome {
	wctx, cancel := context.WithTimeout(m.baseCtx, m.cfg.ConfirmTimeout)
	defer cancel()

	if err := s.Handshake.Wait(wctx); err != nil {
		if wctx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
			return outcome{
				state: models.StateTimeout,
				err: dErrors.Newf(dErrors.CodeTimeout,
					"challenge not confirmed within %s", m.cfg.ConfirmTimeout),
			}
		}
		return outcome{
			state: models.StateError,
			err:   dErrors.Wrap(err, dErrors.CodeUnavailable, "handshake wait failed"),
		}
	}

	// The remote side may still be finalizing the session right after the
	// scan; checking too early reports unauthorized for a login that is
	// about to succeed.
	if m.cfg.AuthGrace > 0 {
		select {
		case <-time.After(m.cfg.AuthGrace):
		case <-m.baseCtx.Done():
			return outcome{
				state: models.StateError,
				err:   dErrors.Wrap(m.baseCtx.Err(), dErrors.CodeUnavailable, "shutting down"),
			}
		}
	}

	authorized, err := s.Handshake.Authorized(m.baseCtx)
	if err != nil {
		return outcome{
			state: models.StateError,
			err:   dErrors.Wrap(err, dErrors.CodeUnavailable, "authorization check failed"),
		}
	}
	if !authorized {
		return outcome{
			state: models.StateError,
			err: dErrors.New(dErrors.CodeAuthIncomplete,
				"challenge confirmed but session never became authorized"),
		}
	}

	blob, err := s.Handshake.ExportCredential(m.baseCtx)
	if err != nil {
		return outcome{
			state: models.StateError,
			err:   dErrors.Wrap(err, dErrors.CodeInternal, "credential export failed"),
		}
	}

	cred := &models.Credential{
		Blob:        blob,
		ProfileName: s.ProfileName,
	}

	// Enrichment is best-effort: the credential is already complete, so a
	// failed identity fetch degrades the record instead of failing it.
	identity, err := s.Handshake.Identity(m.baseCtx)
	if err != nil {
		cred.Degraded = true
		m.deps.Logger.Warn("identity enrichment failed",
			"user_id", s.UserID,
			"error", err,
		)
	} else {
		if identity.AccountID != 0 {
			accountID := identity.AccountID
			cred.AccountID = &accountID
		}
		if identity.Phone != "" {
			phone := identity.Phone
			cred.Phone = &phone
		}
	}

	return outcome{state: models.StateConfirmed, cred: cred}
}

// report persists the credential (on success), emits metrics and audit, and
// delivers the completion. Called only by the waiter that owned the session
// at eviction time.
func (m *Manager) report(s *registry.Session, out outcome, elapsed time.Duration) {
	ctx := context.WithoutCancel(m.baseCtx)

	switch out.state {
	case models.StateConfirmed:
		m.deps.Metrics.SessionsConfirmed.Inc()
		if err := m.deps.Credentials.Save(ctx, &credential.Record{
			UserID:      s.UserID,
			AccountID:   out.cred.AccountID,
			Phone:       out.cred.Phone,
			Blob:        out.cred.Blob,
			ProfileID:   s.ProfileID,
			ProfileName: s.ProfileName,
		}); err != nil {
			// The completion still carries the credential; losing the
			// durable copy is an operator problem, not the user's.
			m.deps.Logger.Error("failed to persist credential",
				"user_id", s.UserID,
				"error", err,
			)
		}
		m.deps.Auditor.Record(ctx, audit.Event{
			Action:  audit.ActionSessionLinked,
			UserID:  s.UserID,
			Details: "profile=" + s.ProfileName,
		})
		// Best effort; the count only feeds the log line.
		stored, err := m.deps.Credentials.Count(ctx, s.UserID)
		if err != nil {
			m.deps.Logger.Warn("failed to count credentials",
				"user_id", s.UserID,
				"error", err,
			)
		}
		m.deps.Logger.Info("session linked",
			"user_id", s.UserID,
			"profile", s.ProfileName,
			"degraded", out.cred.Degraded,
			"stored_credentials", stored,
			"elapsed", elapsed,
		)
	case models.StateTimeout:
		m.deps.Metrics.SessionsTimedOut.Inc()
		m.deps.Auditor.Record(ctx, audit.Event{
			Action: audit.ActionSessionTimeout,
			UserID: s.UserID,
		})
		m.deps.Logger.Info("challenge timed out",
			"user_id", s.UserID,
			"elapsed", elapsed,
		)
	default:
		m.deps.Metrics.SessionsFailed.Inc()
		m.deps.Auditor.Record(ctx, audit.Event{
			Action:  audit.ActionSessionFailed,
			UserID:  s.UserID,
			Details: out.err.Error(),
		})
		m.deps.Logger.Error("handshake failed",
			"user_id", s.UserID,
			"error", out.err,
			"elapsed", elapsed,
		)
	}

	if m.deps.Sink != nil {
		m.deps.Sink.Deliver(ctx, models.Completion{
			UserID:     s.UserID,
			ProfileID:  s.ProfileID,
			State:      out.state,
			Credential: out.cred,
			Err:        out.err,
			Elapsed:    elapsed,
		})
	}
}
