package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrlink/internal/apiprofile"
	"qrlink/internal/credential"
	"qrlink/internal/linker/device"
	gwmemory "qrlink/internal/linker/gateway/memory"
	"qrlink/internal/linker/models"
	"qrlink/internal/linker/registry"
	"qrlink/internal/platform/metrics"
	"qrlink/internal/ratelimit"
	id "qrlink/pkg/domain"
	dErrors "qrlink/pkg/domain-errors"
	"qrlink/pkg/platform/audit"
	"qrlink/pkg/testutil"
)

type captureSink struct {
	ch chan models.Completion
}

func (s *captureSink) Deliver(ctx context.Context, c models.Completion) { s.ch <- c }

type fixture struct {
	manager     *Manager
	gateway     *gwmemory.Gateway
	profiles    *apiprofile.InMemoryStore
	credentials *credential.InMemoryStore
	registry    *registry.Registry
	metrics     *metrics.Metrics
	completions chan models.Completion
	profileID   id.ProfileID
}

func newFixture(t *testing.T, cfg Config, gw *gwmemory.Gateway) *fixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	f := &fixture{
		gateway:     gw,
		profiles:    apiprofile.NewInMemoryStore(),
		credentials: credential.NewInMemoryStore(),
		registry:    registry.New(logger),
		metrics:     metrics.NewForTesting(),
		completions: make(chan models.Completion, 8),
	}

	profile := &models.APIProfile{Name: "desktop", AppID: 2040, AppHash: "hash", Active: true}
	require.NoError(t, f.profiles.Create(context.Background(), profile))
	f.profileID = profile.ID

	f.manager = NewManager(cfg, Deps{
		Profiles:    f.profiles,
		Credentials: f.credentials,
		Devices:     device.Fixed{Profile: device.Profiles[0]},
		Gateway:     gw,
		Registry:    f.registry,
		Limiter:     ratelimit.Unlimited{},
		Auditor:     audit.NewRecorder(logger, 64),
		Metrics:     f.metrics,
		Sink:        &captureSink{ch: f.completions},
		Logger:      logger,
	})
	t.Cleanup(f.manager.Close)
	return f
}

func (f *fixture) waitCompletion(t *testing.T) models.Completion {
	t.Helper()
	select {
	case c := <-f.completions:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("no completion delivered")
		return models.Completion{}
	}
}

func (f *fixture) assertNoCompletion(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.completions:
		t.Fatalf("unexpected completion: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestStartSession_ConfirmedHandshake(t *testing.T) {
	gw := gwmemory.New(20 * time.Millisecond)
	gw.Identity.AccountID = 777
	gw.Identity.Phone = "+4915112345678"
	f := newFixture(t, Config{ConfirmTimeout: 2 * time.Second, AuthGrace: 10 * time.Millisecond}, gw)

	session, err := f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ChallengeURL)
	assert.Equal(t, device.Profiles[0], session.Device)

	completion := f.waitCompletion(t)
	assert.Equal(t, models.StateConfirmed, completion.State)
	require.NotNil(t, completion.Credential)
	assert.NotEmpty(t, completion.Credential.Blob)
	require.NotNil(t, completion.Credential.AccountID)
	assert.Equal(t, int64(777), *completion.Credential.AccountID)
	require.NotNil(t, completion.Credential.Phone)
	assert.Equal(t, "+4915112345678", *completion.Credential.Phone)
	assert.False(t, completion.Credential.Degraded)
	assert.NoError(t, completion.Err)

	records, err := f.credentials.ListByUser(context.Background(), id.UserID(42))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, completion.Credential.Blob, records[0].Blob)
	assert.Equal(t, "desktop", records[0].ProfileName)

	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, int64(1), gw.Last().Disconnects())
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.SessionsConfirmed))
}

func TestStartSession_Timeout(t *testing.T) {
	gw := gwmemory.New(0) // never confirms
	f := newFixture(t, Config{ConfirmTimeout: 50 * time.Millisecond, AuthGrace: time.Millisecond}, gw)

	_, err := f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
	require.NoError(t, err)

	completion := f.waitCompletion(t)
	assert.Equal(t, models.StateTimeout, completion.State)
	assert.Nil(t, completion.Credential)
	assert.True(t, dErrors.HasCode(completion.Err, dErrors.CodeTimeout))

	records, err := f.credentials.ListByUser(context.Background(), id.UserID(42))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, int64(1), gw.Last().Disconnects())
}

func TestStartSession_ConfirmedButNeverAuthorized(t *testing.T) {
	gw := gwmemory.New(10 * time.Millisecond)
	gw.Authorize = false
	f := newFixture(t, Config{ConfirmTimeout: 2 * time.Second, AuthGrace: time.Millisecond}, gw)

	_, err := f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
	require.NoError(t, err)

	completion := f.waitCompletion(t)
	assert.Equal(t, models.StateError, completion.State)
	assert.Nil(t, completion.Credential)
	assert.True(t, dErrors.HasCode(completion.Err, dErrors.CodeAuthIncomplete))
	assert.Equal(t, int64(1), gw.Last().Disconnects())
}

func TestStartSession_DegradedEnrichment(t *testing.T) {
	gw := gwmemory.New(10 * time.Millisecond)
	gw.IdentityErr = context.DeadlineExceeded
	f := newFixture(t, Config{ConfirmTimeout: 2 * time.Second, AuthGrace: time.Millisecond}, gw)

	_, err := f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
	require.NoError(t, err)

	completion := f.waitCompletion(t)
	assert.Equal(t, models.StateConfirmed, completion.State)
	require.NotNil(t, completion.Credential)
	assert.True(t, completion.Credential.Degraded)
	assert.Nil(t, completion.Credential.AccountID)
	assert.Nil(t, completion.Credential.Phone)

	// The credential itself still persists; only enrichment is missing.
	records, err := f.credentials.ListByUser(context.Background(), id.UserID(42))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].AccountID)
}

func TestStartSession_ReplacesPriorSession(t *testing.T) {
	gw := gwmemory.New(0)
	f := newFixture(t, Config{ConfirmTimeout: 2 * time.Second, AuthGrace: time.Millisecond}, gw)

	_, err := f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
	require.NoError(t, err)
	first := gw.Last()

	_, err = f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
	require.NoError(t, err)
	second := gw.Last()

	require.NotSame(t, first, second)
	assert.Equal(t, int64(1), first.Disconnects())
	assert.Equal(t, 1, f.registry.Len())

	// The displaced waiter resolves on a stale handle: nothing delivered.
	first.Confirm()
	f.assertNoCompletion(t)

	second.Confirm()
	completion := f.waitCompletion(t)
	assert.Equal(t, models.StateConfirmed, completion.State)
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.SessionsEvicted))
}

func TestCancelSession(t *testing.T) {
	gw := gwmemory.New(0)
	f := newFixture(t, Config{ConfirmTimeout: 2 * time.Second, AuthGrace: time.Millisecond}, gw)
	userID := id.UserID(42)

	testutil.Given(t, "a user with a pending handshake", func(t *testing.T) {
		_, err := f.manager.StartSession(context.Background(), userID, f.profileID)
		require.NoError(t, err)
	})

	testutil.When(t, "the session is cancelled", func(t *testing.T) {
		assert.True(t, f.manager.CancelSession(context.Background(), userID))
	})

	testutil.Then(t, "the session is evicted and the connection closed", func(t *testing.T) {
		assert.Equal(t, 0, f.registry.Len())
		assert.Equal(t, int64(1), gw.Last().Disconnects())
	})

	testutil.Then(t, "cancelling again is a no-op", func(t *testing.T) {
		assert.False(t, f.manager.CancelSession(context.Background(), userID))
	})

	testutil.Then(t, "a late confirmation reports nothing", func(t *testing.T) {
		gw.Last().Confirm()
		f.assertNoCompletion(t)

		records, err := f.credentials.ListByUser(context.Background(), userID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestStartSession_InputErrors(t *testing.T) {
	gw := gwmemory.New(0)
	f := newFixture(t, Config{ConfirmTimeout: 2 * time.Second}, gw)

	t.Run("zero user id", func(t *testing.T) {
		_, err := f.manager.StartSession(context.Background(), id.UserID(0), f.profileID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := f.manager.StartSession(context.Background(), id.UserID(42), id.ProfileID(9999))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("deactivated profile", func(t *testing.T) {
		inactive := &models.APIProfile{Name: "retired", AppID: 6, AppHash: "h", Active: true}
		require.NoError(t, f.profiles.Create(context.Background(), inactive))
		require.NoError(t, f.profiles.Deactivate(context.Background(), inactive.ID))

		_, err := f.manager.StartSession(context.Background(), id.UserID(42), inactive.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProfileRejected))
	})

	t.Run("gateway rejects profile", func(t *testing.T) {
		gw.RejectProfiles = map[string]bool{"desktop": true}
		defer func() { gw.RejectProfiles = nil }()

		_, err := f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProfileRejected))
		assert.Equal(t, 0, f.registry.Len())
	})

	t.Run("connect failure", func(t *testing.T) {
		gw.OpenErr = context.DeadlineExceeded
		defer func() { gw.OpenErr = nil }()

		_, err := f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func TestStartSession_RateLimited(t *testing.T) {
	gw := gwmemory.New(0)
	f := newFixture(t, Config{ConfirmTimeout: 2 * time.Second}, gw)
	f.manager.deps.Limiter = ratelimit.NewInMemoryCooldown(time.Minute)

	_, err := f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
	require.NoError(t, err)

	_, err = f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTooManyRequests))

	// The limiter is per user.
	_, err = f.manager.StartSession(context.Background(), id.UserID(43), f.profileID)
	require.NoError(t, err)
}

func TestClose_DrainsWaiters(t *testing.T) {
	gw := gwmemory.New(0)
	f := newFixture(t, Config{ConfirmTimeout: time.Minute, AuthGrace: time.Millisecond}, gw)

	_, err := f.manager.StartSession(context.Background(), id.UserID(42), f.profileID)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		f.manager.Close()
		close(done)
	}()

	completion := f.waitCompletion(t)
	assert.Equal(t, models.StateError, completion.State)
	assert.True(t, dErrors.HasCode(completion.Err, dErrors.CodeUnavailable))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, 0, f.registry.Len())
}
