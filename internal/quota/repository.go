package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Repository handles quota_records PostgreSQL operations. All mutations are
// single-statement conditional updates, so no explicit locking is needed.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetOrCreate returns the quota row for (user, resource), materializing it
// from the tier ceiling on first access. Creation is idempotent under
// concurrent first access.
func (r *Repository) GetOrCreate(ctx context.Context, userID uuid.UUID, rt ResourceType, limit int64) (*Record, error) {
	if rt.Windowed() {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO quota_records (user_id, resource_type, "limit", used, reset_at, updated_at)
			 VALUES ($1, $2, $3, 0, NOW() + $4::interval, NOW())
			 ON CONFLICT (user_id, resource_type) DO NOTHING`,
			userID, rt, limit, rt.Window().String())
		if err != nil {
			return nil, fmt.Errorf("ensuring quota record: %w", err)
		}
	} else {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO quota_records (user_id, resource_type, "limit", used, reset_at, updated_at)
			 VALUES ($1, $2, $3, 0, NULL, NOW())
			 ON CONFLICT (user_id, resource_type) DO NOTHING`,
			userID, rt, limit)
		if err != nil {
			return nil, fmt.Errorf("ensuring quota record: %w", err)
		}
	}

	return r.get(ctx, userID, rt)
}

// ResetIfStale performs the lazy window reset for windowed resources:
// used goes back to zero and reset_at advances to now + window. Returns
// true if a reset was performed.
func (r *Repository) ResetIfStale(ctx context.Context, userID uuid.UUID, rt ResourceType) (bool, error) {
	if !rt.Windowed() {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE quota_records
		 SET used = 0, reset_at = NOW() + $3::interval, updated_at = NOW()
		 WHERE user_id = $1 AND resource_type = $2 AND reset_at <= NOW()`,
		userID, rt, rt.Window().String())
	if err != nil {
		return false, fmt.Errorf("resetting quota record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SyncLimit supersedes the record with a new tier ceiling. For resources
// that reset on plan change the usage counter is also zeroed. No-op when
// the ceiling already matches.
func (r *Repository) SyncLimit(ctx context.Context, userID uuid.UUID, rt ResourceType, limit int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE quota_records
		 SET "limit" = $3,
		     used = CASE WHEN $4 THEN 0 ELSE used END,
		     updated_at = NOW()
		 WHERE user_id = $1 AND resource_type = $2 AND "limit" <> $3`,
		userID, rt, limit, !rt.Windowed())
	if err != nil {
		return fmt.Errorf("syncing quota limit: %w", err)
	}
	return nil
}

// TryConsume atomically adds amount to the usage counter if and only if the
// ceiling allows it. Returns the post-consumption record and whether the
// consumption happened.
func (r *Repository) TryConsume(ctx context.Context, userID uuid.UUID, rt ResourceType, amount int64) (*Record, bool, error) {
	rec := &Record{}
	err := r.pool.QueryRow(ctx,
		`UPDATE quota_records
		 SET used = used + $3, updated_at = NOW()
		 WHERE user_id = $1 AND resource_type = $2 AND used + $3 <= "limit"
		 RETURNING user_id, resource_type, "limit", used, reset_at, updated_at`,
		userID, rt, amount).Scan(
		&rec.UserID, &rec.ResourceType, &rec.Limit, &rec.Used, &rec.ResetAt, &rec.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			// Ceiling would be exceeded; report current state unchanged.
			cur, gerr := r.get(ctx, userID, rt)
			if gerr != nil {
				return nil, false, gerr
			}
			return cur, false, nil
		}
		return nil, false, fmt.Errorf("consuming quota: %w", err)
	}
	return rec, true, nil
}

func (r *Repository) get(ctx context.Context, userID uuid.UUID, rt ResourceType) (*Record, error) {
	rec := &Record{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, resource_type, "limit", used, reset_at, updated_at
		 FROM quota_records WHERE user_id = $1 AND resource_type = $2`,
		userID, rt).Scan(
		&rec.UserID, &rec.ResourceType, &rec.Limit, &rec.Used, &rec.ResetAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("fetching quota record: %w", err)
	}
	return rec, nil
}
