package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/usagegate/usagegate/internal/metrics"
	"github.com/usagegate/usagegate/internal/plan"
	"github.com/usagegate/usagegate/internal/usagelog"
)

// TierSource resolves a user to their active plan tier.
type TierSource interface {
	Tier(ctx context.Context, userID uuid.UUID) (plan.Tier, error)
}

// Service tracks coarse-grained plan entitlements with periodic resets.
type Service struct {
	repo     *Repository
	tiers    TierSource
	registry plan.Registry
	usage    usagelog.Recorder
	timeout  time.Duration
}

func NewService(repo *Repository, tiers TierSource, registry plan.Registry, usage usagelog.Recorder, timeout time.Duration) *Service {
	return &Service{
		repo:     repo,
		tiers:    tiers,
		registry: registry,
		usage:    usage,
		timeout:  timeout,
	}
}

// prepare materializes the record, supersedes a changed tier ceiling, and
// applies the lazy window reset. Shared by check and consume.
func (s *Service) prepare(ctx context.Context, userID uuid.UUID, rt ResourceType) error {
	tier, err := s.tiers.Tier(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolving tier: %w", err)
	}
	limit := LimitFor(s.registry.Limits(tier), rt)

	if _, err := s.repo.GetOrCreate(ctx, userID, rt, limit); err != nil {
		return err
	}
	if err := s.repo.SyncLimit(ctx, userID, rt, limit); err != nil {
		return err
	}
	if _, err := s.repo.ResetIfStale(ctx, userID, rt); err != nil {
		return err
	}
	return nil
}

// Check reports usage against the plan ceiling without consuming. The only
// mutation it may perform is the lazy window reset.
func (s *Service) Check(ctx context.Context, userID uuid.UUID, rt ResourceType) (*Status, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.prepare(ctx, userID, rt); err != nil {
		return nil, err
	}

	rec, err := s.repo.get(ctx, userID, rt)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Allowed:   rec.Used < rec.Limit,
		Used:      rec.Used,
		Limit:     rec.Limit,
		Remaining: rec.Remaining(),
	}
	if !st.Allowed {
		st.Reason = ReasonQuotaExceeded
	}
	return st, nil
}

// Consume counts amount units against the plan ceiling, denying when the
// ceiling would be exceeded. Denial mutates nothing.
func (s *Service) Consume(ctx context.Context, userID uuid.UUID, rt ResourceType, amount int64) (*Status, error) {
	if amount < 1 {
		amount = 1
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.prepare(ctx, userID, rt); err != nil {
		metrics.DecisionsTotal.WithLabelValues("quota", "error").Inc()
		return nil, err
	}

	rec, consumed, err := s.repo.TryConsume(ctx, userID, rt, amount)
	if err != nil {
		metrics.DecisionsTotal.WithLabelValues("quota", "error").Inc()
		return nil, err
	}

	outcome := usagelog.OutcomeAllowed
	decision := "allowed"
	if !consumed {
		outcome = usagelog.OutcomeDenied
		decision = "denied"
	}

	metrics.DecisionsTotal.WithLabelValues("quota", decision).Inc()
	_ = s.usage.Record(ctx, usagelog.Entry{
		UserID:    userID,
		Component: usagelog.ComponentQuota,
		Action:    "consume_quota",
		Amount:    amount,
		Outcome:   outcome,
		Reference: string(rt),
	})

	st := &Status{
		Allowed:   consumed,
		Used:      rec.Used,
		Limit:     rec.Limit,
		Remaining: rec.Remaining(),
	}
	if !consumed {
		st.Reason = ReasonQuotaExceeded
	}
	return st, nil
}
