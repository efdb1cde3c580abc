package promotion

import "sort"

// Type fallback priorities used when a promotion carries no explicit
// priority. Cart-total promotions outrank buy-x-get-y, which outrank
// quantity discounts.
const (
	fallbackCartTotal        = 3
	fallbackBuyXGetY         = 2
	fallbackQuantityDiscount = 1
)

// EffectivePriority returns the promotion's explicit priority when set, or
// the per-type fallback otherwise. Higher wins.
func EffectivePriority(p *Promotion) int {
	if p.Priority != 0 {
		return p.Priority
	}
	switch p.Type {
	case TypeCartTotal:
		return fallbackCartTotal
	case TypeBuyXGetY:
		return fallbackBuyXGetY
	case TypeQuantityDiscount:
		return fallbackQuantityDiscount
	default:
		return 0
	}
}

// Candidate pairs a promotion with the savings it would yield against a
// given cart.
type Candidate struct {
	Promotion *Promotion
	Savings   Savings
}

// Rank orders promotions for recommendation and for deciding which
// promotion yields the single manual slot. Effective priority is the
// primary key (higher first); computed monetary savings break ties (higher
// first); exact ties preserve catalog order.
func Rank(promos []*Promotion, items []Item) []Candidate {
	candidates := make([]Candidate, len(promos))
	for i, p := range promos {
		candidates[i] = Candidate{Promotion: p, Savings: ComputeSavings(p, items)}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := EffectivePriority(candidates[i].Promotion), EffectivePriority(candidates[j].Promotion)
		if pi != pj {
			return pi > pj
		}
		return candidates[i].Savings.Monetary.GreaterThan(candidates[j].Savings.Monetary)
	})

	return candidates
}
