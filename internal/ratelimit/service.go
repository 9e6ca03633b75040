package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/usagegate/usagegate/internal/metrics"
	"github.com/usagegate/usagegate/internal/plan"
	"github.com/usagegate/usagegate/internal/usagelog"
)

// TierSource resolves a user to their active plan tier. Narrow interface so
// the service does not depend on the full plan store.
type TierSource interface {
	Tier(ctx context.Context, userID uuid.UUID) (plan.Tier, error)
}

// Service enforces the short-horizon per-user ceilings.
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

// CheckAndConsume applies the three-window check for one action of the given
// cost. A denial identifies the violated window and how long to back off;
// an allowance reports per-window headroom. Storage faults come back as
// errors, never as denials.
func (s *Service) CheckAndConsume(ctx context.Context, userID uuid.UUID, cost int64) (*Decision, error) {
	if cost < 1 {
		cost = 1
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tier, err := s.tiers.Tier(ctx, userID)
	if err != nil {
		metrics.DecisionsTotal.WithLabelValues("ratelimit", "error").Inc()
		return nil, fmt.Errorf("resolving tier: %w", err)
	}
	limits := s.registry.Limits(tier)

	now := time.Now().UTC()
	rec, violated, err := s.repo.CheckAndConsume(ctx, userID, limits, cost, now)
	if err != nil {
		metrics.DecisionsTotal.WithLabelValues("ratelimit", "error").Inc()
		return nil, err
	}

	if violated != "" {
		metrics.DecisionsTotal.WithLabelValues("ratelimit", "denied").Inc()
		_ = s.usage.Record(ctx, usagelog.Entry{
			UserID:    userID,
			Component: usagelog.ComponentRateLimit,
			Action:    "check_rate_limit",
			Amount:    cost,
			Outcome:   usagelog.OutcomeDenied,
			Reference: violated.DeniedReason(),
		})
		return &Decision{
			Allowed:           false,
			Reason:            violated.DeniedReason(),
			RetryAfterSeconds: rec.RetryAfterSeconds(violated, now),
		}, nil
	}

	metrics.DecisionsTotal.WithLabelValues("ratelimit", "allowed").Inc()
	_ = s.usage.Record(ctx, usagelog.Entry{
		UserID:    userID,
		Component: usagelog.ComponentRateLimit,
		Action:    "check_rate_limit",
		Amount:    cost,
		Outcome:   usagelog.OutcomeAllowed,
	})

	remaining := rec.Remaining()
	return &Decision{Allowed: true, Remaining: &remaining}, nil
}

// Status reports the three windows as they stand, applying pending resets in
// the reply without persisting them.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tier, err := s.tiers.Tier(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving tier: %w", err)
	}
	limits := s.registry.Limits(tier)

	now := time.Now().UTC()
	rec, err := s.repo.Get(ctx, userID, limits, now)
	if err != nil {
		return nil, err
	}

	rec.SyncLimits(limits)
	rec.Advance(now)
	return rec, nil
}
