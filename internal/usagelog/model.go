package usagelog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry matches the usage_log table schema: one immutable row per
// consumption attempt, allowed or denied.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Component string          `json:"component"` // ratelimit | quota | credits | account
	Action    string          `json:"action"`
	Amount    int64           `json:"amount"`
	Outcome   string          `json:"outcome"` // allowed | denied
	Reference string          `json:"reference,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Outcome values.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// Component values.
const (
	ComponentRateLimit = "ratelimit"
	ComponentQuota     = "quota"
	ComponentCredits   = "credits"
	ComponentAccount   = "account"
)

// ListParams holds pagination and filtering parameters for usage log queries.
type ListParams struct {
	UserID    *uuid.UUID
	Component string
	Outcome   string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}
