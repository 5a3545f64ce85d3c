package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"qrlink/pkg/requestcontext"
)

// TokenValidator validates an API bearer token and returns its subject.
type TokenValidator interface {
	ValidateToken(tokenString string) (subject string, err error)
}

// RequireAuth rejects requests without a valid bearer token. The validated
// subject lands in the request context for audit attribution.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "Missing bearer token")
				return
			}

			subject, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := requestcontext.WithSubject(r.Context(), subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + desc + `"}`))
}
