package promotion

// CanUse reports whether the user still has per-user usage allowance for the
// promotion. A zero MaxUsagePerUser means unlimited. Anonymous callers
// (empty userID) bypass the per-user check entirely; guest sessions carry no
// usage history to count against.
//
// The global MaxUsage cap is a separate check (see Exhausted) because it
// does not depend on who is asking.
func CanUse(p *Promotion, userID string, records []UsageRecord) bool {
	if p.MaxUsagePerUser <= 0 {
		return true
	}
	if userID == "" {
		return true
	}

	used := 0
	for _, rec := range records {
		if rec.PromotionID == p.ID && rec.UserID == userID {
			used++
		}
	}
	return used < p.MaxUsagePerUser
}

// Exhausted reports whether the promotion's global usage allowance is spent.
// CurrentUsage is maintained by the order placement path; the engine only
// reads it.
func Exhausted(p *Promotion) bool {
	return p.MaxUsage > 0 && p.CurrentUsage >= p.MaxUsage
}
