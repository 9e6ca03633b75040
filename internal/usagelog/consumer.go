package usagelog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/usagegate/usagegate/internal/events"
)

// Consumer listens on the usage event subject and persists entries to the
// database.
type Consumer struct {
	repo        *Repository
	consumerMgr *events.ConsumerManager
}

// NewConsumer creates a new usage event Consumer.
func NewConsumer(repo *Repository, consumerMgr *events.ConsumerManager) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, events.StreamUsage, "usage-persister", events.SubjectUsageRecorded)
	if err != nil {
		return err
	}

	slog.Info("usage log consumer started", "consumer", "usage-persister")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(events.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("usage log consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var event events.UsageRecorded
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("usage log consumer: unmarshaling event", "error", err)
		_ = msg.Nak()
		return
	}

	entry := EntryFromEvent(event)
	if err := c.repo.Insert(ctx, entry); err != nil {
		slog.Error("usage log consumer: persisting entry", "error", err, "component", event.Component)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()

	slog.Debug("usage log consumer: persisted entry",
		"component", event.Component,
		"outcome", event.Outcome,
		"user_id", event.UserID,
	)
}

// EntryFromEvent converts a published usage event to its table row.
func EntryFromEvent(event events.UsageRecorded) *Entry {
	return &Entry{
		ID:        event.ID,
		UserID:    event.UserID,
		Component: event.Component,
		Action:    event.Action,
		Amount:    event.Amount,
		Outcome:   event.Outcome,
		Reference: event.Reference,
		Detail:    event.Detail,
		CreatedAt: event.Timestamp,
	}
}
