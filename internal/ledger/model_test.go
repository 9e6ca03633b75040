package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeBucket(priority int, remaining int64, expiresAt time.Time) *CreditBucket {
	return &CreditBucket{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		BucketType:       BucketPurchase,
		Priority:         priority,
		RemainingCredits: remaining,
		Status:           StatusActive,
		ExpiresAt:        expiresAt,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestAllocateDrainsInOrder(t *testing.T) {
	now := time.Now().UTC()
	a := activeBucket(1, 3, now.Add(24*time.Hour))
	b := activeBucket(2, 5, now.Add(24*time.Hour))

	receipt, mutated, ok := Allocate([]*CreditBucket{a, b}, 4)
	require.True(t, ok)
	require.Len(t, receipt.BucketsUsed, 2)

	// Higher-priority bucket is exhausted before the next is touched.
	assert.Equal(t, a.ID, receipt.BucketsUsed[0].BucketID)
	assert.Equal(t, int64(3), receipt.BucketsUsed[0].CreditsUsed)
	assert.Equal(t, b.ID, receipt.BucketsUsed[1].BucketID)
	assert.Equal(t, int64(1), receipt.BucketsUsed[1].CreditsUsed)
	assert.Equal(t, int64(4), receipt.CreditsConsumed)

	assert.Equal(t, int64(0), a.RemainingCredits)
	assert.Equal(t, int64(3), a.UsedCredits)
	assert.Equal(t, int64(4), b.RemainingCredits)
	assert.Equal(t, int64(1), b.UsedCredits)
	assert.Len(t, mutated, 2)
}

func TestAllocateInsufficientMutatesNothing(t *testing.T) {
	now := time.Now().UTC()
	a := activeBucket(1, 2, now.Add(24*time.Hour))
	b := activeBucket(2, 2, now.Add(24*time.Hour))

	receipt, mutated, ok := Allocate([]*CreditBucket{a, b}, 5)
	assert.False(t, ok)
	assert.Nil(t, receipt)
	assert.Nil(t, mutated)

	// Snapshot comparison: a failed allocation leaves every balance intact.
	assert.Equal(t, int64(2), a.RemainingCredits)
	assert.Equal(t, int64(0), a.UsedCredits)
	assert.Equal(t, int64(2), b.RemainingCredits)
	assert.Equal(t, int64(0), b.UsedCredits)
}

func TestAllocateConservation(t *testing.T) {
	now := time.Now().UTC()
	buckets := []*CreditBucket{
		activeBucket(1, 7, now.Add(24*time.Hour)),
		activeBucket(2, 4, now.Add(24*time.Hour)),
	}

	totals := map[uuid.UUID]int64{}
	for _, b := range buckets {
		totals[b.ID] = b.RemainingCredits + b.UsedCredits
	}

	for _, need := range []int64{1, 3, 2, 5} {
		_, _, ok := Allocate(buckets, need)
		require.True(t, ok)
		for _, b := range buckets {
			assert.Equal(t, totals[b.ID], b.RemainingCredits+b.UsedCredits, "conservation holds for bucket %s", b.ID)
		}
	}

	// All 11 credits spent; the sum of used and remaining never changed.
	for _, b := range buckets {
		assert.Equal(t, int64(0), b.RemainingCredits)
	}
	assert.Equal(t, int64(7), buckets[0].UsedCredits)
	assert.Equal(t, int64(4), buckets[1].UsedCredits)
}

func TestSweepTransitionsExpiredBuckets(t *testing.T) {
	now := time.Now().UTC()
	expired := activeBucket(1, 10, now.Add(-time.Hour))
	boundary := activeBucket(2, 5, now)
	live := activeBucket(3, 5, now.Add(time.Hour))

	swept := Sweep([]*CreditBucket{expired, boundary, live}, now)
	require.Len(t, swept, 2)

	assert.Equal(t, StatusExpired, expired.Status)
	// The expiry instant itself counts as expired.
	assert.Equal(t, StatusExpired, boundary.Status)
	assert.Equal(t, StatusActive, live.Status)

	// Expired buckets keep their balances but contribute no availability.
	assert.Equal(t, int64(10), expired.RemainingCredits)
	assert.Equal(t, int64(0), expired.Available())
	assert.Equal(t, int64(5), TotalAvailable([]*CreditBucket{expired, boundary, live}))
}

func TestSweepIdempotent(t *testing.T) {
	now := time.Now().UTC()
	b := activeBucket(1, 3, now.Add(-time.Minute))

	require.Len(t, Sweep([]*CreditBucket{b}, now), 1)
	assert.Empty(t, Sweep([]*CreditBucket{b}, now))
}

func TestAllocateSkipsExpiredBuckets(t *testing.T) {
	now := time.Now().UTC()
	expired := activeBucket(1, 100, now.Add(-time.Hour))
	live := activeBucket(2, 5, now.Add(time.Hour))
	buckets := []*CreditBucket{expired, live}

	Sweep(buckets, now)

	receipt, _, ok := Allocate(buckets, 5)
	require.True(t, ok)
	require.Len(t, receipt.BucketsUsed, 1)
	assert.Equal(t, live.ID, receipt.BucketsUsed[0].BucketID)
	assert.Equal(t, int64(100), expired.RemainingCredits)

	// The expired bucket's balance can no longer cover anything.
	_, _, ok = Allocate(buckets, 1)
	assert.False(t, ok)
}

func TestConsumeScenario(t *testing.T) {
	now := time.Now().UTC()
	b := activeBucket(1, 5, now.Add(30*24*time.Hour))
	buckets := []*CreditBucket{b}

	receipt, _, ok := Allocate(buckets, 3)
	require.True(t, ok)
	require.Len(t, receipt.BucketsUsed, 1)
	assert.Equal(t, int64(3), receipt.BucketsUsed[0].CreditsUsed)
	assert.Equal(t, int64(2), b.RemainingCredits)
	assert.Equal(t, int64(3), b.UsedCredits)

	_, _, ok = Allocate(buckets, 5)
	assert.False(t, ok)
	assert.Equal(t, int64(2), b.RemainingCredits)
	assert.Equal(t, int64(3), b.UsedCredits)
}

func TestFullyDrainedBucketStaysActive(t *testing.T) {
	now := time.Now().UTC()
	b := activeBucket(1, 2, now.Add(time.Hour))

	_, _, ok := Allocate([]*CreditBucket{b}, 2)
	require.True(t, ok)

	assert.Equal(t, StatusActive, b.Status)
	assert.Equal(t, int64(0), b.Available())
}

func TestRestore(t *testing.T) {
	now := time.Now().UTC()
	b := activeBucket(1, 2, now.Add(time.Hour))
	b.UsedCredits = 3

	byID := map[uuid.UUID]*CreditBucket{b.ID: b}
	restored := Restore(byID, []BucketUse{{BucketID: b.ID, CreditsUsed: 2}})

	assert.Equal(t, int64(2), restored)
	assert.Equal(t, int64(4), b.RemainingCredits)
	assert.Equal(t, int64(1), b.UsedCredits)
}

func TestRestoreCapsAtUsedCredits(t *testing.T) {
	now := time.Now().UTC()
	b := activeBucket(1, 4, now.Add(time.Hour))
	b.UsedCredits = 1

	byID := map[uuid.UUID]*CreditBucket{b.ID: b}
	restored := Restore(byID, []BucketUse{{BucketID: b.ID, CreditsUsed: 10}})

	// used_credits never goes negative no matter what the caller claims.
	assert.Equal(t, int64(1), restored)
	assert.Equal(t, int64(5), b.RemainingCredits)
	assert.Equal(t, int64(0), b.UsedCredits)
}

func TestRestoreIgnoresUnknownBuckets(t *testing.T) {
	restored := Restore(map[uuid.UUID]*CreditBucket{}, []BucketUse{
		{BucketID: uuid.New(), CreditsUsed: 5},
	})
	assert.Equal(t, int64(0), restored)
}

func TestBucketTypeValid(t *testing.T) {
	assert.True(t, BucketPurchase.Valid())
	assert.True(t, BucketPromo.Valid())
	assert.True(t, BucketSubscription.Valid())
	assert.False(t, BucketType("gift").Valid())
}
