package quota

// Plans maps a tier to its daily limit per counter kind. Tiers missing from
// the table fall back to the free plan.
type Plans struct {
	limits map[Tier]map[CounterKind]int
}

// NewPlans builds the plan table. Only the free tier is capped; every paid
// tier is unlimited for both counters.
func NewPlans(freeChat, freePhoto int) Plans {
	unlimited := map[CounterKind]int{KindChat: Unlimited, KindPhoto: Unlimited}
	return Plans{limits: map[Tier]map[CounterKind]int{
		TierFree:      {KindChat: freeChat, KindPhoto: freePhoto},
		TierPlus:      unlimited,
		TierPremium:   unlimited,
		TierUnlimited: unlimited,
	}}
}

// Entitlement resolves the allowance of an account for one counter.
func (p Plans) Entitlement(acct Account, kind CounterKind) Entitlement {
	limits, ok := p.limits[acct.Tier]
	if !ok {
		limits = p.limits[TierFree]
	}
	return Entitlement{Tier: acct.Tier, DailyLimit: limits[kind], Admin: acct.Admin}
}

// CreditsUnlimited reports whether the credit balance is bypassed. It uses
// the same tier mapping as the photo daily limit so both policies agree.
func (p Plans) CreditsUnlimited(acct Account) bool {
	return p.Entitlement(acct, KindPhoto).IsUnlimited()
}

// IsAllowed gates a metered action: unlimited entitlements always pass,
// otherwise the count must still be below the limit.
func IsAllowed(rec Record, ent Entitlement) bool {
	if ent.IsUnlimited() {
		return true
	}
	return rec.Count < ent.DailyLimit
}

// Remaining returns max(0, limit-count), or Unlimited.
func Remaining(rec Record, ent Entitlement) int {
	if ent.IsUnlimited() {
		return Unlimited
	}
	return max(0, ent.DailyLimit-rec.Count)
}
