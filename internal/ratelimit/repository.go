package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/usagegate/usagegate/internal/plan"
)

// Repository handles rate_limit_records PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectForUpdate = `
	SELECT user_id, usage_minute, usage_day, usage_month,
	       minute_window_start, day_window_start, month_window_start,
	       limit_minute, limit_day, limit_month, updated_at
	FROM rate_limit_records WHERE user_id = $1 FOR UPDATE`

// CheckAndConsume runs the read-reset-check-increment sequence inside one
// transaction with the user's row locked, serializing concurrent requests
// for the same user without blocking unrelated users. On denial the
// transaction rolls back, so no counter or boundary mutation persists.
// Returns the post-decision record and, when denied, the violated window.
func (r *Repository) CheckAndConsume(ctx context.Context, userID uuid.UUID, limits plan.Limits, cost int64, now time.Time) (*Record, Window, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("beginning rate limit tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rec, err := lockOrCreate(ctx, tx, userID, limits, now)
	if err != nil {
		return nil, "", err
	}

	rec.SyncLimits(limits)
	rec.Advance(now)

	if w, exceeded := rec.Exceeded(cost); exceeded {
		// Rollback via defer: denial persists nothing.
		return rec, w, nil
	}

	rec.Consume(cost)

	_, err = tx.Exec(ctx, `
		UPDATE rate_limit_records
		SET usage_minute = $2, usage_day = $3, usage_month = $4,
		    minute_window_start = $5, day_window_start = $6, month_window_start = $7,
		    limit_minute = $8, limit_day = $9, limit_month = $10,
		    updated_at = NOW()
		WHERE user_id = $1`,
		rec.UserID, rec.UsageMinute, rec.UsageDay, rec.UsageMonth,
		rec.MinuteWindowStart, rec.DayWindowStart, rec.MonthWindowStart,
		rec.LimitMinute, rec.LimitDay, rec.LimitMonth)
	if err != nil {
		return nil, "", fmt.Errorf("updating rate limit record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("committing rate limit tx: %w", err)
	}
	return rec, "", nil
}

// Get returns the user's record without persisting anything, materializing a
// tier-default record in memory when none exists.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID, limits plan.Limits, now time.Time) (*Record, error) {
	rec := &Record{}
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, usage_minute, usage_day, usage_month,
		       minute_window_start, day_window_start, month_window_start,
		       limit_minute, limit_day, limit_month, updated_at
		FROM rate_limit_records WHERE user_id = $1`, userID).Scan(
		&rec.UserID, &rec.UsageMinute, &rec.UsageDay, &rec.UsageMonth,
		&rec.MinuteWindowStart, &rec.DayWindowStart, &rec.MonthWindowStart,
		&rec.LimitMinute, &rec.LimitDay, &rec.LimitMonth, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return NewRecord(userID, limits, now), nil
		}
		return nil, fmt.Errorf("querying rate limit record: %w", err)
	}
	return rec, nil
}

func lockOrCreate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, limits plan.Limits, now time.Time) (*Record, error) {
	// Idempotent lazy creation; ON CONFLICT DO NOTHING tolerates a
	// concurrent first access.
	_, err := tx.Exec(ctx, `
		INSERT INTO rate_limit_records
			(user_id, usage_minute, usage_day, usage_month,
			 minute_window_start, day_window_start, month_window_start,
			 limit_minute, limit_day, limit_month, updated_at)
		VALUES ($1, 0, 0, 0, $2, $2, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO NOTHING`,
		userID, now, limits.RateMinute, limits.RateDay, limits.RateMonth)
	if err != nil {
		return nil, fmt.Errorf("ensuring rate limit record: %w", err)
	}

	rec := &Record{}
	err = tx.QueryRow(ctx, selectForUpdate, userID).Scan(
		&rec.UserID, &rec.UsageMinute, &rec.UsageDay, &rec.UsageMonth,
		&rec.MinuteWindowStart, &rec.DayWindowStart, &rec.MonthWindowStart,
		&rec.LimitMinute, &rec.LimitDay, &rec.LimitMonth, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("locking rate limit record: %w", err)
	}
	return rec, nil
}
