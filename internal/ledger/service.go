package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/usagegate/usagegate/internal/metrics"
	"github.com/usagegate/usagegate/internal/usagelog"
)

// Service is the credit allocator.
type Service struct {
	repo    *Repository
	usage   usagelog.Recorder
	timeout time.Duration
}

func NewService(repo *Repository, usage usagelog.Recorder, timeout time.Duration) *Service {
	return &Service{
		repo:    repo,
		usage:   usage,
		timeout: timeout,
	}
}

// BalanceSummary is the wire shape of a balance read.
type BalanceSummary struct {
	UserID         uuid.UUID       `json:"user_id"`
	TotalAvailable int64           `json:"total_available"`
	Buckets        []*CreditBucket `json:"buckets"`
}

// Consume takes need credits from the user's buckets, all or nothing.
// The second return distinguishes the insufficient-credits denial from
// success; storage faults surface as errors and never as denials.
func (s *Service) Consume(ctx context.Context, userID uuid.UUID, need int64, reference string) (*Receipt, bool, error) {
	if need < 1 {
		need = 1
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	receipt, consumed, err := s.repo.Consume(ctx, userID, need, now)
	if err != nil {
		metrics.DecisionsTotal.WithLabelValues("credits", "error").Inc()
		return nil, false, err
	}

	if !consumed {
		metrics.DecisionsTotal.WithLabelValues("credits", "denied").Inc()
		_ = s.usage.Record(ctx, usagelog.Entry{
			UserID:    userID,
			Component: usagelog.ComponentCredits,
			Action:    "consume_credits",
			Amount:    need,
			Outcome:   usagelog.OutcomeDenied,
			Reference: reference,
		})
		return nil, false, nil
	}

	metrics.DecisionsTotal.WithLabelValues("credits", "allowed").Inc()
	metrics.CreditsConsumedTotal.Add(float64(receipt.CreditsConsumed))

	detail, _ := json.Marshal(receipt)
	_ = s.usage.Record(ctx, usagelog.Entry{
		UserID:    userID,
		Component: usagelog.ComponentCredits,
		Action:    "consume_credits",
		Amount:    need,
		Outcome:   usagelog.OutcomeAllowed,
		Reference: reference,
		Detail:    detail,
	})
	return receipt, true, nil
}

// Grant creates a new bucket for the user.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, bucketType BucketType, priority int, credits int64, expiresAt time.Time) (*CreditBucket, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	b := &CreditBucket{
		ID:               uuid.New(),
		UserID:           userID,
		BucketType:       bucketType,
		Priority:         priority,
		RemainingCredits: credits,
		Status:           StatusActive,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Grant(ctx, b); err != nil {
		return nil, err
	}

	detail, _ := json.Marshal(map[string]any{
		"bucket_id":   b.ID,
		"bucket_type": b.BucketType,
		"expires_at":  b.ExpiresAt,
	})
	_ = s.usage.Record(ctx, usagelog.Entry{
		UserID:    userID,
		Component: usagelog.ComponentCredits,
		Action:    "grant_credits",
		Amount:    credits,
		Outcome:   usagelog.OutcomeAllowed,
		Detail:    detail,
	})
	return b, nil
}

// Balance reports the user's buckets and total availability, applying the
// expiry sweep on the way through.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	buckets, err := s.repo.Balance(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = []*CreditBucket{}
	}
	return &BalanceSummary{
		UserID:         userID,
		TotalAvailable: TotalAvailable(buckets),
		Buckets:        buckets,
	}, nil
}

// Refund restores credits to the buckets a previous receipt named. The
// engine never refunds implicitly; this is the compensation call for
// callers whose own action failed after consumption committed.
func (s *Service) Refund(ctx context.Context, userID uuid.UUID, uses []BucketUse, reference string) (int64, error) {
	if len(uses) == 0 {
		return 0, fmt.Errorf("refund needs at least one bucket")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	restored, err := s.repo.Refund(ctx, userID, uses, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	detail, _ := json.Marshal(uses)
	_ = s.usage.Record(ctx, usagelog.Entry{
		UserID:    userID,
		Component: usagelog.ComponentCredits,
		Action:    "refund_credits",
		Amount:    restored,
		Outcome:   usagelog.OutcomeAllowed,
		Reference: reference,
		Detail:    detail,
	})
	return restored, nil
}
