package account

import (
	"time"

	"github.com/google/uuid"
)

// Account is a subscription-linked prepaid balance. Amounts are integer
// cents; floating point never enters the ledger.
type Account struct {
	UserID             uuid.UUID `json:"user_id"`
	SubscriptionID     uuid.UUID `json:"subscription_id"`
	BalanceCents       int64     `json:"balance_cents"`
	LifetimeAddedCents int64     `json:"lifetime_added_cents"`
	LifetimeUsedCents  int64     `json:"lifetime_used_cents"`
	UpdatedAt          time.Time `json:"updated_at"`
}

const (
	ActionAddCredits = "add_credits"
	ActionUseCredits = "use_credits"
)

// ReasonInsufficientBalance is the wire-format denial reason for a debit
// that the balance cannot cover.
const ReasonInsufficientBalance = "insufficient_balance"
