package account

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/usagegate/usagegate/internal/metrics"
	"github.com/usagegate/usagegate/internal/usagelog"
)

// Service manages subscription-linked prepaid balances.
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

// Result is the outcome of an account mutation.
type Result struct {
	Success bool     `json:"success"`
	Account *Account `json:"account"`
	Reason  string   `json:"reason,omitempty"`
}

// AddCredits credits the account and records the source of funds.
func (s *Service) AddCredits(ctx context.Context, userID, subscriptionID uuid.UUID, amountCents int64, source string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	acc, err := s.repo.AddCredits(ctx, userID, subscriptionID, amountCents)
	if err != nil {
		metrics.DecisionsTotal.WithLabelValues("account", "error").Inc()
		return nil, err
	}

	metrics.DecisionsTotal.WithLabelValues("account", "allowed").Inc()
	detail, _ := json.Marshal(map[string]any{
		"subscription_id": subscriptionID,
		"credit_source":   source,
		"balance_cents":   acc.BalanceCents,
	})
	_ = s.usage.Record(ctx, usagelog.Entry{
		UserID:    userID,
		Component: usagelog.ComponentAccount,
		Action:    ActionAddCredits,
		Amount:    amountCents,
		Outcome:   usagelog.OutcomeAllowed,
		Reference: source,
		Detail:    detail,
	})
	return &Result{Success: true, Account: acc}, nil
}

// UseCredits debits the account when the balance covers the amount. An
// insufficient balance is a denial, not an error.
func (s *Service) UseCredits(ctx context.Context, userID, subscriptionID uuid.UUID, amountCents int64, source string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	acc, debited, err := s.repo.UseCredits(ctx, userID, subscriptionID, amountCents)
	if err != nil {
		metrics.DecisionsTotal.WithLabelValues("account", "error").Inc()
		return nil, err
	}

	outcome := usagelog.OutcomeAllowed
	decision := "allowed"
	if !debited {
		outcome = usagelog.OutcomeDenied
		decision = "denied"
	}
	metrics.DecisionsTotal.WithLabelValues("account", decision).Inc()

	detail, _ := json.Marshal(map[string]any{
		"subscription_id": subscriptionID,
		"credit_source":   source,
		"balance_cents":   acc.BalanceCents,
	})
	_ = s.usage.Record(ctx, usagelog.Entry{
		UserID:    userID,
		Component: usagelog.ComponentAccount,
		Action:    ActionUseCredits,
		Amount:    amountCents,
		Outcome:   outcome,
		Reference: source,
		Detail:    detail,
	})

	if !debited {
		return &Result{Success: false, Account: acc, Reason: ReasonInsufficientBalance}, nil
	}
	return &Result{Success: true, Account: acc}, nil
}

// Get returns the account's current totals.
func (s *Service) Get(ctx context.Context, userID, subscriptionID uuid.UUID) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.Get(ctx, userID, subscriptionID)
}
