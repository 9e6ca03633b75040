package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles credit_accounts PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `user_id, subscription_id, balance_cents,
	lifetime_added_cents, lifetime_used_cents, updated_at`

// AddCredits credits the account, creating it on first use.
func (r *Repository) AddCredits(ctx context.Context, userID, subscriptionID uuid.UUID, amountCents int64) (*Account, error) {
	acc := &Account{}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO credit_accounts
			(user_id, subscription_id, balance_cents, lifetime_added_cents,
			 lifetime_used_cents, updated_at)
		VALUES ($1, $2, $3, $3, 0, NOW())
		ON CONFLICT (user_id, subscription_id) DO UPDATE
		SET balance_cents = credit_accounts.balance_cents + $3,
		    lifetime_added_cents = credit_accounts.lifetime_added_cents + $3,
		    updated_at = NOW()
		RETURNING `+accountColumns,
		userID, subscriptionID, amountCents).Scan(
		&acc.UserID, &acc.SubscriptionID, &acc.BalanceCents,
		&acc.LifetimeAddedCents, &acc.LifetimeUsedCents, &acc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("adding account credits: %w", err)
	}
	return acc, nil
}

// UseCredits debits the account only when the balance covers the amount.
// The conditional update makes the check-and-debit atomic without explicit
// locking. The bool reports whether the debit happened; a false with the
// current account means the balance fell short.
func (r *Repository) UseCredits(ctx context.Context, userID, subscriptionID uuid.UUID, amountCents int64) (*Account, bool, error) {
	acc := &Account{}
	err := r.pool.QueryRow(ctx, `
		UPDATE credit_accounts
		SET balance_cents = balance_cents - $3,
		    lifetime_used_cents = lifetime_used_cents + $3,
		    updated_at = NOW()
		WHERE user_id = $1 AND subscription_id = $2 AND balance_cents >= $3
		RETURNING `+accountColumns,
		userID, subscriptionID, amountCents).Scan(
		&acc.UserID, &acc.SubscriptionID, &acc.BalanceCents,
		&acc.LifetimeAddedCents, &acc.LifetimeUsedCents, &acc.UpdatedAt)
	if err == nil {
		return acc, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("using account credits: %w", err)
	}

	// Either the account does not exist or the balance fell short;
	// report the current state either way.
	acc, err = r.Get(ctx, userID, subscriptionID)
	if err != nil {
		return nil, false, err
	}
	return acc, false, nil
}

// Get returns the account, or a zero-balance one when none exists yet.
func (r *Repository) Get(ctx context.Context, userID, subscriptionID uuid.UUID) (*Account, error) {
	acc := &Account{}
	err := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM credit_accounts
		WHERE user_id = $1 AND subscription_id = $2`,
		userID, subscriptionID).Scan(
		&acc.UserID, &acc.SubscriptionID, &acc.BalanceCents,
		&acc.LifetimeAddedCents, &acc.LifetimeUsedCents, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &Account{UserID: userID, SubscriptionID: subscriptionID}, nil
		}
		return nil, fmt.Errorf("querying credit account: %w", err)
	}
	return acc, nil
}
