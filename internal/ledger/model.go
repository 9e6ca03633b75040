package ledger

import (
	"time"

	"github.com/google/uuid"
)

// BucketType records where a grant came from.
type BucketType string

const (
	BucketPurchase     BucketType = "purchase"
	BucketPromo        BucketType = "promo"
	BucketSubscription BucketType = "subscription"
)

func (bt BucketType) Valid() bool {
	switch bt {
	case BucketPurchase, BucketPromo, BucketSubscription:
		return true
	}
	return false
}

const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// CreditBucket is one grant of credits. Buckets are never deleted; a fully
// drained bucket stays active with zero availability until its own expiry.
type CreditBucket struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	BucketType       BucketType `json:"bucket_type"`
	Priority         int        `json:"priority"`
	RemainingCredits int64      `json:"remaining_credits"`
	UsedCredits      int64      `json:"used_credits"`
	Status           string     `json:"status"`
	ExpiresAt        time.Time  `json:"expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Expired reports whether the bucket's expiry has been reached. The boundary
// instant itself counts as expired.
func (b *CreditBucket) Expired(now time.Time) bool {
	return !b.ExpiresAt.After(now)
}

// Available is the bucket's contribution to the user's spendable total.
// Expired buckets contribute nothing regardless of remaining balance.
func (b *CreditBucket) Available() int64 {
	if b.Status != StatusActive {
		return 0
	}
	return b.RemainingCredits
}

// BucketUse is one line of a consumption receipt.
type BucketUse struct {
	BucketID    uuid.UUID  `json:"bucket_id"`
	CreditsUsed int64      `json:"credits_used"`
	BucketType  BucketType `json:"bucket_type"`
}

// Receipt describes a successful consumption: which buckets were drawn on
// and by how much, in deduction order.
type Receipt struct {
	CreditsConsumed int64       `json:"credits_consumed"`
	BucketsUsed     []BucketUse `json:"buckets_used"`
}

// Sweep transitions every bucket past expiry to expired and returns the ones
// it changed. The sweep is a side effect of reading the ledger; callers
// persist the transitions whether or not the consumption that triggered the
// read succeeds.
func Sweep(buckets []*CreditBucket, now time.Time) []*CreditBucket {
	var swept []*CreditBucket
	for _, b := range buckets {
		if b.Status == StatusActive && b.Expired(now) {
			b.Status = StatusExpired
			swept = append(swept, b)
		}
	}
	return swept
}

// TotalAvailable sums availability across the buckets.
func TotalAvailable(buckets []*CreditBucket) int64 {
	var total int64
	for _, b := range buckets {
		total += b.Available()
	}
	return total
}

// Allocate deducts need credits from the ordered buckets. Strict two-phase:
// sufficiency is decided over the whole set first, and when the total falls
// short no bucket is touched. On success it walks the buckets in the given
// order, draining each before moving to the next, and returns the receipt
// plus the buckets it mutated.
func Allocate(buckets []*CreditBucket, need int64) (*Receipt, []*CreditBucket, bool) {
	if TotalAvailable(buckets) < need {
		return nil, nil, false
	}

	receipt := &Receipt{CreditsConsumed: need}
	var mutated []*CreditBucket
	remaining := need
	for _, b := range buckets {
		if remaining == 0 {
			break
		}
		take := b.Available()
		if take == 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}
		b.RemainingCredits -= take
		b.UsedCredits += take
		remaining -= take
		mutated = append(mutated, b)
		receipt.BucketsUsed = append(receipt.BucketsUsed, BucketUse{
			BucketID:    b.ID,
			CreditsUsed: take,
			BucketType:  b.BucketType,
		})
	}
	return receipt, mutated, true
}

// Restore puts refunded credits back into the buckets a receipt named.
// A refund never pushes used_credits below zero: the restored amount per
// bucket is capped at what that bucket has actually spent. Returns the total
// actually restored.
func Restore(byID map[uuid.UUID]*CreditBucket, uses []BucketUse) int64 {
	var restored int64
	for _, u := range uses {
		b, ok := byID[u.BucketID]
		if !ok {
			continue
		}
		amount := u.CreditsUsed
		if amount > b.UsedCredits {
			amount = b.UsedCredits
		}
		if amount <= 0 {
			continue
		}
		b.UsedCredits -= amount
		b.RemainingCredits += amount
		restored += amount
	}
	return restored
}
