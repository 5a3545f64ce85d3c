// Package httptransport is the JSON API surface. Handlers stay thin: decode,
// delegate to the linking service or stores, translate errors.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qrlink/internal/apiprofile"
	"qrlink/internal/linker/models"
	"qrlink/internal/linker/registry"
	id "qrlink/pkg/domain"
	dErrors "qrlink/pkg/domain-errors"
	"qrlink/pkg/platform/audit"
	"qrlink/pkg/platform/httputil"
)

// SessionService defines the linking operations the API exposes.
type SessionService interface {
	StartSession(ctx context.Context, userID id.UserID, profileID id.ProfileID) (*registry.Session, error)
	CancelSession(ctx context.Context, userID id.UserID) bool
	Lookup(userID id.UserID) (*registry.Session, bool)
}

// Handler wires the session and profile endpoints.
type Handler struct {
	sessions SessionService
	profiles apiprofile.Store
	auditor  *audit.Recorder
	logger   *slog.Logger
}

// New constructs the API handler with its dependencies.
func New(sessions SessionService, profiles apiprofile.Store, auditor *audit.Recorder, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		profiles: profiles,
		auditor:  auditor,
		logger:   logger,
	}
}

// Register mounts the authenticated endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions", h.HandleStartSession)
	r.Get("/sessions/{userID}", h.HandleGetSession)
	r.Delete("/sessions/{userID}", h.HandleCancelSession)

	r.Get("/api-profiles", h.HandleListProfiles)
	r.Post("/api-profiles", h.HandleCreateProfile)
	r.Post("/api-profiles/{profileID}/deactivate", h.HandleDeactivateProfile)
}

// HandleStartSession handles POST /sessions.
func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[StartSessionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, err := h.sessions.StartSession(ctx, req.userID, req.profileID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start session",
			"user_id", req.UserID,
			"profile_id", req.ProfileID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromSession(session))
}

// HandleGetSession handles GET /sessions/{userID}.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, ok := h.sessions.Lookup(userID)
	if !ok {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "no session in flight for user %s", userID))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleCancelSession handles DELETE /sessions/{userID}. Idempotent: a
// missing session still returns 204.
func (h *Handler) HandleCancelSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cancelled := h.sessions.CancelSession(ctx, userID)
	h.logger.InfoContext(ctx, "session cancel requested",
		"user_id", userID,
		"cancelled", cancelled,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListProfiles handles GET /api-profiles.
func (h *Handler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.ListActive(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list api profiles"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ProfileListResponse{Profiles: profiles})
}

// HandleCreateProfile handles POST /api-profiles.
func (h *Handler) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[CreateProfileRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile := &models.APIProfile{
		Name:    req.Name,
		AppID:   req.AppID,
		AppHash: req.AppHash,
		Active:  true,
	}
	if err := h.profiles.Create(ctx, profile); err != nil {
		httputil.WriteError(w, translateStoreErr(err, "api profile"))
		return
	}

	h.auditor.Record(ctx, audit.Event{
		Action:  audit.ActionAPIProfileAdded,
		Details: "profile=" + profile.Name,
	})
	h.logger.InfoContext(ctx, "api profile created",
		"profile_id", profile.ID,
		"profile", profile.Name,
	)
	httputil.WriteJSON(w, http.StatusCreated, profile)
}

// HandleDeactivateProfile handles POST /api-profiles/{profileID}/deactivate.
func (h *Handler) HandleDeactivateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profileID, err := id.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.profiles.Deactivate(ctx, profileID); err != nil {
		httputil.WriteError(w, translateStoreErr(err, "api profile"))
		return
	}

	h.auditor.Record(ctx, audit.Event{
		Action:  audit.ActionAPIProfileDeactivated,
		Details: "profile_id=" + profileID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}
