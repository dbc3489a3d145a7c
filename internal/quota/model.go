package quota

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CounterKind names one of the independent per-user daily counters.
type CounterKind string

const (
	KindChat  CounterKind = "chat_messages"
	KindPhoto CounterKind = "photo_analyses"
)

// Kinds lists every counter in display order.
var Kinds = []CounterKind{KindChat, KindPhoto}

func (k CounterKind) Valid() bool {
	return k == KindChat || k == KindPhoto
}

// Tier is the billing plan of a user. It is owned by the profiles table and
// read-only here.
type Tier string

const (
	TierFree      Tier = "free"
	TierPlus      Tier = "plus"
	TierPremium   Tier = "premium"
	TierUnlimited Tier = "unlimited"
)

// ParseTier reports whether s names a known tier.
func ParseTier(s string) (Tier, bool) {
	switch t := Tier(s); t {
	case TierFree, TierPlus, TierPremium, TierUnlimited:
		return t, true
	}
	return "", false
}

// Unlimited is the DailyLimit sentinel for plans without a cap.
const Unlimited = -1

// Photo accounting policies.
const (
	PolicyDaily   = "daily"
	PolicyCredits = "credits"
)

var (
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrRateLimited   = errors.New("rate limit exceeded")
)

// Record is the persisted counter for one user and kind.
type Record struct {
	UserID      uuid.UUID   `json:"user_id"`
	Kind        CounterKind `json:"kind"`
	Count       int         `json:"count"`
	WindowStart time.Time   `json:"window_start"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Entitlement is the plan-derived allowance for one counter kind.
type Entitlement struct {
	Tier       Tier
	DailyLimit int // Unlimited or >= 0
	Admin      bool
}

// IsUnlimited is true for uncapped plans and for administrators.
func (e Entitlement) IsUnlimited() bool {
	return e.Admin || e.DailyLimit == Unlimited
}

// Account is the externally owned plan state of a user.
type Account struct {
	Tier             Tier
	Admin            bool
	CreditsRemaining int
}

// KindStatus is the per-counter part of the quota API response.
// Under the credits photo policy the photo entry is CreditsDriven: Limit is
// Unlimited and Remaining is the credit balance.
type KindStatus struct {
	Kind          CounterKind `json:"kind"`
	Limit         int         `json:"limit"`
	Used          int         `json:"used"`
	Remaining     int         `json:"remaining"`
	Unlimited     bool        `json:"unlimited"`
	CreditsDriven bool        `json:"credits_driven,omitempty"`
	WindowStart   time.Time   `json:"window_start"`
}

// Status is the quota API response.
type Status struct {
	Tier             Tier         `json:"tier"`
	PhotoPolicy      string       `json:"photo_policy"`
	CreditsRemaining int          `json:"credits_remaining"`
	Counters         []KindStatus `json:"counters"`
	MinuteUsed       int          `json:"minute_used"`
	MinuteLimit      int          `json:"minute_limit"`
}
