package usagelog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/usagegate/usagegate/internal/events"
	"github.com/usagegate/usagegate/internal/metrics"
)

// Recorder accepts consumption-attempt records. Recording is best-effort
// telemetry: implementations report failure but callers never let it roll
// back or block the primary decision.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// publishTimeout bounds the fire-and-forget publish so a wedged broker
// cannot stall a request handler.
const publishTimeout = 2 * time.Second

// EventLogger publishes entries to the usage stream; an async consumer
// persists them. This keeps the log write out of the allocation path
// entirely.
type EventLogger struct {
	pub *events.Publisher
}

func NewEventLogger(pub *events.Publisher) *EventLogger {
	return &EventLogger{pub: pub}
}

func (l *EventLogger) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	// Detach from the request context deadline but stay bounded.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := l.pub.PublishUsageRecorded(pubCtx, events.UsageRecorded{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Component: entry.Component,
		Action:    entry.Action,
		Amount:    entry.Amount,
		Outcome:   entry.Outcome,
		Reference: entry.Reference,
		Detail:    entry.Detail,
		Timestamp: entry.CreatedAt,
	})
	if err != nil {
		metrics.UsageLogFailuresTotal.Inc()
		slog.Warn("usage log: publish failed", "error", err, "component", entry.Component, "user_id", entry.UserID)
		return err
	}
	return nil
}

// DirectLogger writes entries straight to the database. Used when NATS is
// disabled; failures are still swallowed by callers.
type DirectLogger struct {
	repo *Repository
}

func NewDirectLogger(repo *Repository) *DirectLogger {
	return &DirectLogger{repo: repo}
}

func (l *DirectLogger) Record(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	insCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := l.repo.Insert(insCtx, &entry); err != nil {
		metrics.UsageLogFailuresTotal.Inc()
		slog.Warn("usage log: insert failed", "error", err, "component", entry.Component, "user_id", entry.UserID)
		return err
	}
	return nil
}

var (
	_ Recorder = (*EventLogger)(nil)
	_ Recorder = (*DirectLogger)(nil)
)
