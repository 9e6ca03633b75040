package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists which tier each user is on. The billing platform calls
// SetTier on subscription changes; the engine reads it when materializing
// quota and rate-limit records.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Tier returns the user's active tier, defaulting to free when the user has
// never been assigned one.
func (s *Store) Tier(ctx context.Context, userID uuid.UUID) (Tier, error) {
	var tier Tier
	err := s.pool.QueryRow(ctx,
		`SELECT tier FROM user_plans WHERE user_id = $1`, userID,
	).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TierFree, nil
		}
		return "", fmt.Errorf("querying user tier: %w", err)
	}
	return tier, nil
}

// SetTier records the user's active tier.
func (s *Store) SetTier(ctx context.Context, userID uuid.UUID, tier Tier) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_plans (user_id, tier, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier, updated_at = NOW()`,
		userID, tier)
	if err != nil {
		return fmt.Errorf("upserting user tier: %w", err)
	}
	return nil
}
