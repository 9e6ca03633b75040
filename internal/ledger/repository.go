package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/usagegate/usagegate/internal/metrics"
)

// Repository handles credit_buckets PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// lockActive loads and row-locks the user's active buckets in the
// deterministic deduction order. Locking serializes concurrent consumptions
// for one user; two simultaneous calls see each other's committed state,
// never a stale snapshot.
const lockActive = `
	SELECT id, user_id, bucket_type, priority, remaining_credits, used_credits,
	       status, expires_at, created_at, updated_at
	FROM credit_buckets
	WHERE user_id = $1 AND status = 'active'
	ORDER BY priority ASC, expires_at ASC, created_at ASC
	FOR UPDATE`

// Consume runs the full allocation sequence in one transaction: lock the
// user's active buckets, sweep expirations, check sufficiency, deduct.
// When the total falls short the transaction still commits, but it carries
// only the expiry transitions; no balance is touched. The returned bool
// reports whether the consumption happened.
func (r *Repository) Consume(ctx context.Context, userID uuid.UUID, need int64, now time.Time) (*Receipt, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("beginning consume tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	buckets, err := scanBuckets(tx.Query(ctx, lockActive, userID))
	if err != nil {
		return nil, false, err
	}

	swept := Sweep(buckets, now)

	receipt, mutated, ok := Allocate(buckets, need)
	if !ok {
		// Persist the sweep alone; the failed consumption must leave
		// every balance exactly as it found it.
		for _, b := range swept {
			if err := updateBucket(ctx, tx, b); err != nil {
				return nil, false, err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("committing expiry sweep: %w", err)
		}
		metrics.BucketsExpiredTotal.Add(float64(len(swept)))
		return nil, false, nil
	}

	for _, b := range swept {
		if err := updateBucket(ctx, tx, b); err != nil {
			return nil, false, err
		}
	}
	for _, b := range mutated {
		if err := updateBucket(ctx, tx, b); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("committing consume tx: %w", err)
	}
	// Counters reflect committed transitions only.
	metrics.BucketsExpiredTotal.Add(float64(len(swept)))
	return receipt, true, nil
}

// Grant inserts a new bucket.
func (r *Repository) Grant(ctx context.Context, b *CreditBucket) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO credit_buckets
			(id, user_id, bucket_type, priority, remaining_credits,
			 used_credits, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 'active', $6, NOW(), NOW())`,
		b.ID, b.UserID, b.BucketType, b.Priority, b.RemainingCredits, b.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting credit bucket: %w", err)
	}
	return nil
}

// Balance lists all of the user's buckets, applying and persisting the same
// expiry sweep as consumption on the way through.
func (r *Repository) Balance(ctx context.Context, userID uuid.UUID, now time.Time) ([]*CreditBucket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning balance tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	buckets, err := scanBuckets(tx.Query(ctx, `
		SELECT id, user_id, bucket_type, priority, remaining_credits, used_credits,
		       status, expires_at, created_at, updated_at
		FROM credit_buckets
		WHERE user_id = $1
		ORDER BY priority ASC, expires_at ASC, created_at ASC
		FOR UPDATE`, userID))
	if err != nil {
		return nil, err
	}

	swept := Sweep(buckets, now)
	for _, b := range swept {
		if err := updateBucket(ctx, tx, b); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing balance tx: %w", err)
	}
	metrics.BucketsExpiredTotal.Add(float64(len(swept)))
	return buckets, nil
}

// Refund restores credits to the buckets a receipt named, capped per bucket
// at what it has actually spent. Buckets already expired still take the
// refund; the restored credits are simply never spendable again, which keeps
// conservation intact.
func (r *Repository) Refund(ctx context.Context, userID uuid.UUID, uses []BucketUse, now time.Time) (int64, error) {
	ids := make([]uuid.UUID, 0, len(uses))
	for _, u := range uses {
		ids = append(ids, u.BucketID)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning refund tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	buckets, err := scanBuckets(tx.Query(ctx, `
		SELECT id, user_id, bucket_type, priority, remaining_credits, used_credits,
		       status, expires_at, created_at, updated_at
		FROM credit_buckets
		WHERE user_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`, userID, ids))
	if err != nil {
		return 0, err
	}

	byID := make(map[uuid.UUID]*CreditBucket, len(buckets))
	for _, b := range buckets {
		byID[b.ID] = b
	}

	restored := Restore(byID, uses)
	if restored == 0 {
		return 0, nil
	}

	for _, b := range buckets {
		if err := updateBucket(ctx, tx, b); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing refund tx: %w", err)
	}
	return restored, nil
}

func updateBucket(ctx context.Context, tx pgx.Tx, b *CreditBucket) error {
	_, err := tx.Exec(ctx, `
		UPDATE credit_buckets
		SET remaining_credits = $2, used_credits = $3, status = $4, updated_at = NOW()
		WHERE id = $1`,
		b.ID, b.RemainingCredits, b.UsedCredits, b.Status)
	if err != nil {
		return fmt.Errorf("updating credit bucket: %w", err)
	}
	return nil
}

func scanBuckets(rows pgx.Rows, err error) ([]*CreditBucket, error) {
	if err != nil {
		return nil, fmt.Errorf("querying credit buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*CreditBucket
	for rows.Next() {
		b := &CreditBucket{}
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.BucketType, &b.Priority,
			&b.RemainingCredits, &b.UsedCredits, &b.Status,
			&b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning credit bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credit buckets: %w", err)
	}
	return buckets, nil
}
