package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"qrlink/pkg/requestcontext"
)

// Recorder accepts events from domain logic and hands them to the worker
// queue without blocking. Audit is operational, not compliance-grade: when
// the queue is full the event is dropped and counted in the logs rather
// than stalling a handshake.
type Recorder struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewRecorder creates a recorder with the given queue depth.
func NewRecorder(logger *slog.Logger, depth int) *Recorder {
	if depth <= 0 {
		depth = 256
	}
	return &Recorder{
		inbox:  make(chan Event, depth),
		logger: logger,
	}
}

// Record enriches the event from ctx (request ID, authenticated subject,
// client descriptor, IP, timestamp) and queues it.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Subject == "" {
		event.Subject = requestcontext.Subject(ctx)
	}
	if event.Client == "" {
		event.Client = requestcontext.ClientDevice(ctx)
	}
	if event.Client == "" {
		// No parsed descriptor; fall back to the raw User-Agent.
		event.Client = requestcontext.UserAgent(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}

	select {
	case r.inbox <- event:
	default:
		r.logger.Warn("audit queue full, dropping event",
			"action", event.Action,
			"user_id", event.UserID,
		)
	}
}

// Inbox exposes the queue for the worker.
func (r *Recorder) Inbox() <-chan Event { return r.inbox }

// Worker consumes audit events from the recorder and persists them. It
// keeps background processing testable without wiring queue infrastructure.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

// NewWorker creates a worker draining inbox into store.
func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until ctx is cancelled. Store failures are logged
// and the loop keeps going; one bad insert must not kill the trail.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
