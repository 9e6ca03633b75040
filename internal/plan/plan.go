// Package plan defines the authoritative limits for each subscription tier
// and the engine-side record of which tier a user is on.
package plan

// Tier is a subscription plan tier.
type Tier string

const (
	TierFree     Tier = "free"
	TierStarter  Tier = "starter"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

// Limits holds the per-tier ceilings enforced by the engine. Quota ceilings
// of 0 mean the resource is not available on that tier, not unlimited.
type Limits struct {
	Documents     int64 `json:"documents"`       // total documents, resets only on plan change
	APICallsDaily int64 `json:"api_calls_daily"` // resets daily
	StorageMB     int64 `json:"storage_mb"`      // resets only on plan change

	// Short-horizon request ceilings.
	RateMinute int64 `json:"rate_minute"`
	RateDay    int64 `json:"rate_day"`
	RateMonth  int64 `json:"rate_month"`
}

// Registry resolves a tier to its limits.
// For unknown tiers it returns the Free limits to fail safely.
type Registry interface {
	Limits(tier Tier) Limits
}

type staticRegistry struct {
	limits map[Tier]Limits
}

var tierDefaults = map[Tier]Limits{
	TierFree: {
		Documents:     5,
		APICallsDaily: 20,
		StorageMB:     100,
		RateMinute:    10,
		RateDay:       100,
		RateMonth:     1000,
	},
	TierStarter: {
		Documents:     50,
		APICallsDaily: 500,
		StorageMB:     1024,
		RateMinute:    30,
		RateDay:       1000,
		RateMonth:     10000,
	},
	TierPro: {
		Documents:     500,
		APICallsDaily: 5000,
		StorageMB:     10240,
		RateMinute:    60,
		RateDay:       5000,
		RateMonth:     50000,
	},
	TierBusiness: {
		Documents:     5000,
		APICallsDaily: 50000,
		StorageMB:     102400,
		RateMinute:    120,
		RateDay:       20000,
		RateMonth:     200000,
	},
}

var freeLimits = tierDefaults[TierFree]

// NewStaticRegistry returns a Registry backed by the hardcoded tier table.
func NewStaticRegistry() Registry {
	// Copy the defaults so callers cannot mutate the package-level table.
	m := make(map[Tier]Limits, len(tierDefaults))
	for k, v := range tierDefaults {
		m[k] = v
	}
	return &staticRegistry{limits: m}
}

func (r *staticRegistry) Limits(tier Tier) Limits {
	if l, ok := r.limits[tier]; ok {
		return l
	}
	return freeLimits
}

// Valid reports whether t names a known tier.
func Valid(t Tier) bool {
	_, ok := tierDefaults[t]
	return ok
}
