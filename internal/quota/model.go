package quota

import (
	"time"

	"github.com/google/uuid"

	"github.com/usagegate/usagegate/internal/plan"
)

// ResourceType names a plan-metered resource.
type ResourceType string

const (
	ResourceDocuments ResourceType = "documents"
	ResourceAPICalls  ResourceType = "api_calls"
	ResourceStorage   ResourceType = "storage"
)

// Valid reports whether rt names a known resource.
func (rt ResourceType) Valid() bool {
	switch rt {
	case ResourceDocuments, ResourceAPICalls, ResourceStorage:
		return true
	}
	return false
}

// Windowed reports whether usage resets on a time window. Documents and
// storage reset only on plan change.
func (rt ResourceType) Windowed() bool {
	return rt == ResourceAPICalls
}

// Window returns the reset window for windowed resources.
func (rt ResourceType) Window() time.Duration {
	return 24 * time.Hour
}

// LimitFor maps a tier's limits to the ceiling for one resource.
func LimitFor(limits plan.Limits, rt ResourceType) int64 {
	switch rt {
	case ResourceDocuments:
		return limits.Documents
	case ResourceAPICalls:
		return limits.APICallsDaily
	case ResourceStorage:
		return limits.StorageMB
	}
	return 0
}

// Record matches the quota_records table schema: one row per
// (user, resource_type).
type Record struct {
	UserID       uuid.UUID
	ResourceType ResourceType
	Limit        int64
	Used         int64
	ResetAt      *time.Time // nil for resources that reset only on plan change
	UpdatedAt    time.Time
}

// Remaining is the headroom left, clamped at zero.
func (r *Record) Remaining() int64 {
	if rem := r.Limit - r.Used; rem > 0 {
		return rem
	}
	return 0
}

// Status is the outcome of a quota check or consumption.
type Status struct {
	Allowed   bool   `json:"allowed"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}

// ReasonQuotaExceeded is the wire-format denial reason.
const ReasonQuotaExceeded = "quota_exceeded"
