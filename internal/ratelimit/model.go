package ratelimit

import (
	"time"

	"github.com/google/uuid"

	"github.com/usagegate/usagegate/internal/plan"
)

// Window identifies one of the three independent fixed windows.
type Window string

const (
	WindowMinute Window = "minute"
	WindowDay    Window = "day"
	WindowMonth  Window = "month"
)

// Duration returns the fixed window length. The month window is a fixed
// 30-day span, not a calendar month, so boundaries can advance by whole
// multiples of the length.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowMinute:
		return time.Minute
	case WindowDay:
		return 24 * time.Hour
	case WindowMonth:
		return 30 * 24 * time.Hour
	}
	return time.Minute
}

// DeniedReason returns the wire-format denial reason for the window.
func (w Window) DeniedReason() string {
	return string(w) + "_limit_exceeded"
}

// Record matches the rate_limit_records table schema: three independent
// fixed-window counters for one user.
type Record struct {
	UserID uuid.UUID

	UsageMinute int64
	UsageDay    int64
	UsageMonth  int64

	MinuteWindowStart time.Time
	DayWindowStart    time.Time
	MonthWindowStart  time.Time

	LimitMinute int64
	LimitDay    int64
	LimitMonth  int64

	UpdatedAt time.Time
}

// NewRecord returns a fresh record with tier-default limits and all three
// windows opening at now.
func NewRecord(userID uuid.UUID, limits plan.Limits, now time.Time) *Record {
	return &Record{
		UserID:            userID,
		MinuteWindowStart: now,
		DayWindowStart:    now,
		MonthWindowStart:  now,
		LimitMinute:       limits.RateMinute,
		LimitDay:          limits.RateDay,
		LimitMonth:        limits.RateMonth,
	}
}

// SyncLimits overwrites the ceilings with the user's current tier limits.
// Usage counters are untouched; a plan change mid-window keeps accumulated
// usage against the new ceilings.
func (r *Record) SyncLimits(limits plan.Limits) {
	r.LimitMinute = limits.RateMinute
	r.LimitDay = limits.RateDay
	r.LimitMonth = limits.RateMonth
}

// Advance applies pending resets to each window independently. A boundary
// advances by whole multiples of the window length, never to now, so an
// idle period cannot drift the window grid. A counter resets exactly when
// now reaches its boundary (boundary inclusive).
func (r *Record) Advance(now time.Time) {
	if next, crossed := advance(r.MinuteWindowStart, now, WindowMinute.Duration()); crossed {
		r.MinuteWindowStart = next
		r.UsageMinute = 0
	}
	if next, crossed := advance(r.DayWindowStart, now, WindowDay.Duration()); crossed {
		r.DayWindowStart = next
		r.UsageDay = 0
	}
	if next, crossed := advance(r.MonthWindowStart, now, WindowMonth.Duration()); crossed {
		r.MonthWindowStart = next
		r.UsageMonth = 0
	}
}

func advance(start, now time.Time, length time.Duration) (time.Time, bool) {
	elapsed := now.Sub(start)
	if elapsed < length {
		return start, false
	}
	periods := elapsed / length
	return start.Add(periods * length), true
}

// Exceeded returns the first window whose ceiling the given cost would
// break, checking minute, then day, then month. Call Advance first.
func (r *Record) Exceeded(cost int64) (Window, bool) {
	if r.UsageMinute+cost > r.LimitMinute {
		return WindowMinute, true
	}
	if r.UsageDay+cost > r.LimitDay {
		return WindowDay, true
	}
	if r.UsageMonth+cost > r.LimitMonth {
		return WindowMonth, true
	}
	return "", false
}

// Consume increments all three counters. Callers must have checked
// Exceeded first.
func (r *Record) Consume(cost int64) {
	r.UsageMinute += cost
	r.UsageDay += cost
	r.UsageMonth += cost
}

// RetryAfterSeconds reports how long until the violated window resets,
// rounded up to a whole second.
func (r *Record) RetryAfterSeconds(w Window, now time.Time) int64 {
	var start time.Time
	switch w {
	case WindowMinute:
		start = r.MinuteWindowStart
	case WindowDay:
		start = r.DayWindowStart
	case WindowMonth:
		start = r.MonthWindowStart
	}
	until := start.Add(w.Duration()).Sub(now)
	if until <= 0 {
		return 0
	}
	secs := int64(until / time.Second)
	if until%time.Second != 0 {
		secs++
	}
	return secs
}

// Remaining reports the headroom per window. Call Advance first.
func (r *Record) Remaining() Remaining {
	return Remaining{
		Minute: max64(r.LimitMinute-r.UsageMinute, 0),
		Day:    max64(r.LimitDay-r.UsageDay, 0),
		Month:  max64(r.LimitMonth-r.UsageMonth, 0),
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Remaining is the per-window headroom reported to callers.
type Remaining struct {
	Minute int64 `json:"minute"`
	Day    int64 `json:"day"`
	Month  int64 `json:"month"`
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed           bool       `json:"allowed"`
	Remaining         *Remaining `json:"remaining,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	RetryAfterSeconds int64      `json:"retry_after_seconds,omitempty"`
}
