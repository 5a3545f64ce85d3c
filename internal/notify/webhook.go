// Package notify delivers session completions to interested consumers.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"qrlink/internal/linker/models"
)

// completionPayload is the webhook body. The credential blob itself never
// leaves the service; consumers fetch it through the API if they need it.
type completionPayload struct {
	UserID    int64  `json:"user_id"`
	ProfileID int64  `json:"profile_id"`
	State     string `json:"state"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`

	AccountID *int64  `json:"account_id,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Degraded  bool    `json:"degraded,omitempty"`
}

// Webhook POSTs every completion to a fixed URL. Delivery is best-effort:
// failures are logged, never retried, and never affect the session outcome.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewWebhook(url string, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (w *Webhook) Deliver(ctx context.Context, c models.Completion) {
	payload := completionPayload{
		UserID:    int64(c.UserID),
		ProfileID: int64(c.ProfileID),
		State:     string(c.State),
		ElapsedMS: c.Elapsed.Milliseconds(),
	}
	if c.Err != nil {
		payload.Error = c.Err.Error()
	}
	if c.Credential != nil {
		payload.AccountID = c.Credential.AccountID
		payload.Phone = c.Credential.Phone
		payload.Degraded = c.Credential.Degraded
	}

	body, err := json.Marshal(payload)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to encode completion payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to build webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.WarnContext(ctx, "completion webhook delivery failed",
			"user_id", c.UserID,
			"error", err,
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.logger.WarnContext(ctx, "completion webhook rejected",
			"user_id", c.UserID,
			"status", resp.StatusCode,
		)
		return
	}
	w.logger.DebugContext(ctx, "completion delivered",
		"user_id", c.UserID,
		"state", c.State,
	)
}

// LogSink writes completions to the log only. Used when no webhook URL is
// configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, c models.Completion) {
	attrs := []any{
		"user_id", c.UserID,
		"state", c.State,
		"elapsed", c.Elapsed,
	}
	if c.Err != nil {
		attrs = append(attrs, "error", fmt.Sprint(c.Err))
	}
	s.Logger.InfoContext(ctx, "session completed", attrs...)
}
