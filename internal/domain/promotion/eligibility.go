package promotion

import (
	"slices"
	"time"
)

// Eligible reports whether the cart satisfies every structural and
// quantitative precondition of the promotion at the given instant:
//
//  1. The promotion is active and now falls within [StartDate, EndDate].
//  2. The chargeable cart subtotal meets MinOrderAmount.
//  3. At least one line's product is applicable under the
//     inclusion/exclusion sets.
//  4. The type-specific threshold holds over applicable lines only.
//
// Malformed rule payloads are ineligible, never an error. Usage limits are a
// separate concern (see CanUse and Exhausted).
func Eligible(p *Promotion, items []Item, now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return false
	}
	if p.MinOrderAmount.IsPositive() && ChargeableSubtotal(items).LessThan(p.MinOrderAmount) {
		return false
	}

	applicable := ApplicableItems(p, items)
	if len(applicable) == 0 {
		return false
	}

	return meetsRuleThreshold(p, applicable)
}

// Applicable reports whether a single item passes the promotion's
// inclusion/exclusion test. Exclusion always overrides inclusion: a product
// both excluded and included is not applicable. Empty include sets mean
// every non-excluded product is in scope.
func Applicable(p *Promotion, it Item) bool {
	if slices.Contains(p.ExcludedProducts, it.ProductID) {
		return false
	}
	if slices.Contains(p.ExcludedCategories, it.CategoryID) {
		return false
	}
	if len(p.ApplicableProducts) == 0 && len(p.ApplicableCategories) == 0 {
		return true
	}
	return slices.Contains(p.ApplicableProducts, it.ProductID) ||
		slices.Contains(p.ApplicableCategories, it.CategoryID)
}

// ApplicableItems filters items down to those applicable for the promotion.
func ApplicableItems(p *Promotion, items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if Applicable(p, it) {
			out = append(out, it)
		}
	}
	return out
}

// meetsRuleThreshold evaluates the per-type quantitative precondition over
// lines already filtered for applicability.
func meetsRuleThreshold(p *Promotion, applicable []Item) bool {
	switch p.Type {
	case TypeBuyXGetY:
		rule := p.BuyXGetY
		if rule == nil || rule.BuyQuantity <= 0 || rule.GetQuantity <= 0 {
			return false
		}
		for _, it := range applicable {
			if it.Quantity >= rule.BuyQuantity {
				return true
			}
		}
		return false

	case TypeQuantityDiscount:
		rule := p.QuantityDiscount
		if rule == nil || rule.MinQuantity <= 0 {
			return false
		}
		if !rule.DiscountAmount.IsPositive() && !rule.DiscountPercent.IsPositive() {
			return false
		}
		total := 0
		for _, it := range applicable {
			total += it.Quantity
		}
		return total >= rule.MinQuantity

	case TypeCartTotal:
		rule := p.CartTotal
		if rule == nil || rule.MinAmount.IsNegative() {
			return false
		}
		return ChargeableSubtotal(applicable).GreaterThanOrEqual(rule.MinAmount)

	default:
		return false
	}
}
