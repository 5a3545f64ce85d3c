package httptransport

//go:generate mockgen -source=handler.go -destination=mocks/session-mocks.go -package=mocks SessionService

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"qrlink/internal/apiprofile"
	"qrlink/internal/linker/device"
	"qrlink/internal/linker/models"
	"qrlink/internal/linker/registry"
	"qrlink/internal/transport/http/mocks"
	id "qrlink/pkg/domain"
	dErrors "qrlink/pkg/domain-errors"
	"qrlink/pkg/platform/audit"
	"qrlink/pkg/testutil"
)

type fakeSessions struct {
	session   *registry.Session
	startErr  error
	cancelled bool
}

func (f *fakeSessions) StartSession(ctx context.Context, userID id.UserID, profileID id.ProfileID) (*registry.Session, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.session, nil
}

func (f *fakeSessions) CancelSession(ctx context.Context, userID id.UserID) bool {
	was := f.cancelled
	f.cancelled = true
	return !was
}

func (f *fakeSessions) Lookup(userID id.UserID) (*registry.Session, bool) {
	if f.session != nil && f.session.UserID == userID {
		return f.session, true
	}
	return nil, false
}

type staticValidator struct{}

func (staticValidator) ValidateToken(token string) (string, error) {
	if token == "good-token" {
		return "tester", nil
	}
	return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}

func pendingSession() *registry.Session {
	return &registry.Session{
		UserID:       id.UserID(42),
		ProfileID:    id.ProfileID(1),
		ProfileName:  "desktop",
		ChallengeURL: "tg://login?token=abc",
		Device:       device.Profiles[0],
		CreatedAt:    time.Now(),
	}
}

func newTestRouter(t *testing.T, sessions SessionService) (http.Handler, *apiprofile.InMemoryStore) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	profiles := apiprofile.NewInMemoryStore()
	handler := New(sessions, profiles, audit.NewRecorder(logger, 16), logger)
	router := NewRouter(RouterConfig{
		Handler:   handler,
		Validator: staticValidator{},
		Logger:    logger,
		Checks: map[string]HealthCheck{
			"postgres": func(ctx context.Context) error { return nil },
		},
	})
	return router, profiles
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer good-token")
	return req
}

func TestStartSessionEndpoint(t *testing.T) {
	t.Run("requires bearer token", func(t *testing.T) {
		router, _ := newTestRouter(t, &fakeSessions{session: pendingSession()})
		req := testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]any{"user_id": 42, "profile_id": 1})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("returns challenge on success", func(t *testing.T) {
		router, _ := newTestRouter(t, &fakeSessions{session: pendingSession()})
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]any{"user_id": 42, "profile_id": 1}))
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[SessionResponse](t, rr)
		assert.Equal(t, int64(42), resp.UserID)
		assert.Equal(t, "pending", resp.State)
		assert.Equal(t, "tg://login?token=abc", resp.ChallengeURL)
		assert.Equal(t, "Samsung SM-G991B", resp.Device.Model)
	})

	t.Run("rejects non-positive ids", func(t *testing.T) {
		router, _ := newTestRouter(t, &fakeSessions{})
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]any{"user_id": 0, "profile_id": 1}))
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "invalid_input")
	})

	t.Run("maps rate limit to 429", func(t *testing.T) {
		router, _ := newTestRouter(t, &fakeSessions{
			startErr: dErrors.New(dErrors.CodeTooManyRequests, "cooldown active"),
		})
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]any{"user_id": 42, "profile_id": 1}))
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
		testutil.AssertErrorCode(t, rr, "too_many_requests")
	})

	t.Run("passes parsed ids to the service", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sessions := mocks.NewMockSessionService(ctrl)
		sessions.EXPECT().
			StartSession(gomock.Any(), id.UserID(42), id.ProfileID(7)).
			Return(pendingSession(), nil)

		router, _ := newTestRouter(t, sessions)
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]any{"user_id": 42, "profile_id": 7}))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
	})

	t.Run("maps profile rejection to 422", func(t *testing.T) {
		router, _ := newTestRouter(t, &fakeSessions{
			startErr: dErrors.New(dErrors.CodeProfileRejected, "remote service rejected api profile"),
		})
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]any{"user_id": 42, "profile_id": 1}))
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	})
}

func TestGetSessionEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSessions{session: pendingSession()})

	t.Run("returns pending session", func(t *testing.T) {
		req := authed(testutil.NewRequest(t, http.MethodGet, "/sessions/42"))
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[SessionResponse](t, rr)
		assert.Equal(t, "desktop", resp.Profile)
	})

	t.Run("unknown user is 404", func(t *testing.T) {
		req := authed(testutil.NewRequest(t, http.MethodGet, "/sessions/99"))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("malformed user id is 400", func(t *testing.T) {
		req := authed(testutil.NewRequest(t, http.MethodGet, "/sessions/not-a-number"))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestCancelSessionEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeSessions{session: pendingSession()})

	req := authed(testutil.NewRequest(t, http.MethodDelete, "/sessions/42"))
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	// Cancelling again stays 204: the operation is idempotent.
	req = authed(testutil.NewRequest(t, http.MethodDelete, "/sessions/42"))
	rr = testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusNoContent)
}

func TestProfileEndpoints(t *testing.T) {
	router, profiles := newTestRouter(t, &fakeSessions{})

	t.Run("create", func(t *testing.T) {
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/api-profiles", CreateProfileRequest{
			Name: "desktop", AppID: 2040, AppHash: "hash",
		}))
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[models.APIProfile](t, rr)
		assert.NotZero(t, resp.ID)
		assert.True(t, resp.Active)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/api-profiles", CreateProfileRequest{
			Name: "desktop", AppID: 2040, AppHash: "hash",
		}))
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusConflict)
		testutil.AssertErrorCode(t, rr, "conflict")
	})

	t.Run("missing app_hash is rejected", func(t *testing.T) {
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/api-profiles", CreateProfileRequest{
			Name: "another", AppID: 6,
		}))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("list never exposes app_hash", func(t *testing.T) {
		req := authed(testutil.NewRequest(t, http.MethodGet, "/api-profiles"))
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.NotContains(t, string(testutil.ReadBody(t, rr)), "hash")
	})

	t.Run("deactivate", func(t *testing.T) {
		listed, err := profiles.ListActive(context.Background())
		require.NoError(t, err)
		require.Len(t, listed, 1)

		req := authed(testutil.NewRequest(t, http.MethodPost, "/api-profiles/"+listed[0].ID.String()+"/deactivate"))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusNoContent)

		listed, err = profiles.ListActive(context.Background())
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("deactivate unknown profile is 404", func(t *testing.T) {
		req := authed(testutil.NewRequest(t, http.MethodPost, "/api-profiles/9999/deactivate"))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router, _ := newTestRouter(t, &fakeSessions{})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("degraded dependency flips status", func(t *testing.T) {
		logger := slog.New(slog.DiscardHandler)
		profiles := apiprofile.NewInMemoryStore()
		handler := New(&fakeSessions{}, profiles, audit.NewRecorder(logger, 16), logger)
		router := NewRouter(RouterConfig{
			Handler:   handler,
			Validator: staticValidator{},
			Logger:    logger,
			Checks: map[string]HealthCheck{
				"postgres": func(ctx context.Context) error { return errors.New("connection refused") },
			},
		})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	})
}
