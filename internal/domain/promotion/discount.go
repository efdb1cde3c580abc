package promotion

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// FreeUnit attributes a number of free units to a product line.
type FreeUnit struct {
	ProductID string
	Quantity  int
}

// Savings is the computed effect of one promotion against a cart: a monetary
// discount, zero or more free-unit grants, and the free-shipping flag for
// cart-total rules.
type Savings struct {
	Monetary     decimal.Decimal
	FreeUnits    []FreeUnit
	FreeShipping bool
}

// IsZero reports whether the savings carry no effect at all.
func (s Savings) IsZero() bool {
	return s.Monetary.IsZero() && len(s.FreeUnits) == 0 && !s.FreeShipping
}

// ComputeSavings calculates the effect the promotion would have on the given
// cart lines. It is a pure function and does not re-validate eligibility;
// callers are expected to have passed the items through Eligible first. For
// promotions whose rule payload is missing or malformed it returns zero
// savings.
//
// Percentages apply to the raw applicable subtotal (price times quantity,
// before any other promotion's effect); absolute amounts win over
// percentages when both are set. The monetary result is clamped to
// [0, applicable subtotal] and rounded to two decimal places.
func ComputeSavings(p *Promotion, items []Item) Savings {
	applicable := ApplicableItems(p, items)
	if len(applicable) == 0 {
		return Savings{Monetary: decimal.Zero}
	}

	switch p.Type {
	case TypeBuyXGetY:
		return buyXGetYSavings(p, items, applicable)
	case TypeQuantityDiscount:
		if p.QuantityDiscount == nil {
			return Savings{Monetary: decimal.Zero}
		}
		base := rawSubtotal(applicable)
		amount := flatOrPercent(p.QuantityDiscount.DiscountAmount, p.QuantityDiscount.DiscountPercent, base)
		return Savings{Monetary: clampMonetary(amount, base)}
	case TypeCartTotal:
		if p.CartTotal == nil {
			return Savings{Monetary: decimal.Zero}
		}
		base := rawSubtotal(applicable)
		amount := flatOrPercent(p.CartTotal.DiscountAmount, p.CartTotal.DiscountPercent, base)
		return Savings{
			Monetary:     clampMonetary(amount, base),
			FreeShipping: p.CartTotal.FreeShipping,
		}
	default:
		return Savings{Monetary: decimal.Zero}
	}
}

// buyXGetYSavings evaluates each applicable line independently: every full
// set of BuyQuantity units earns GetQuantity free units. When SameItem is
// set the free units land on the purchased line, capped so a line never
// gains more free units than it has units left to give. Otherwise the grant
// is routed to the designated free item: priced at that item's existing cart
// line when present, or attached as a new zero-priced line by the
// reconciler when not.
func buyXGetYSavings(p *Promotion, all, applicable []Item) Savings {
	rule := p.BuyXGetY
	if rule == nil || rule.BuyQuantity <= 0 || rule.GetQuantity <= 0 {
		return Savings{Monetary: decimal.Zero}
	}

	monetary := decimal.Zero
	var freeUnits []FreeUnit

	if rule.SameItem {
		for _, it := range applicable {
			sets := it.Quantity / rule.BuyQuantity
			if sets == 0 {
				continue
			}
			free := sets * rule.GetQuantity
			if room := it.Quantity - it.FreeQuantity; free > room {
				free = room
			}
			if free <= 0 {
				continue
			}
			freeUnits = append(freeUnits, FreeUnit{ProductID: it.ProductID, Quantity: free})
			monetary = monetary.Add(it.Price.Mul(decimal.NewFromInt(int64(free))))
		}
		return Savings{Monetary: monetary.Round(2), FreeUnits: freeUnits}
	}

	if rule.FreeItemID == "" {
		return Savings{Monetary: decimal.Zero}
	}

	free := 0
	for _, it := range applicable {
		free += (it.Quantity / rule.BuyQuantity) * rule.GetQuantity
	}
	if free <= 0 {
		return Savings{Monetary: decimal.Zero}
	}

	// The grant only carries monetary value when the free item is already a
	// paid cart line; a line the reconciler creates for it is zero-priced.
	if target, ok := findItem(all, rule.FreeItemID); ok && !target.FreeItem {
		capped := free
		if room := target.Quantity - target.FreeQuantity; capped > room {
			capped = room
		}
		if capped > 0 {
			monetary = target.Price.Mul(decimal.NewFromInt(int64(capped)))
		}
	}

	return Savings{
		Monetary:  monetary.Round(2),
		FreeUnits: []FreeUnit{{ProductID: rule.FreeItemID, Quantity: free}},
	}
}

func findItem(items []Item, productID string) (Item, bool) {
	for _, it := range items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// rawSubtotal sums price times full quantity, ignoring free-unit
// annotations from other promotions. Percentage discounts stack against
// this raw base so evaluation order between promotions cannot change the
// outcome.
func rawSubtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.FreeItem {
			continue
		}
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// flatOrPercent returns the flat amount when set and positive, otherwise the
// percentage of base.
func flatOrPercent(amount, percent, base decimal.Decimal) decimal.Decimal {
	if amount.IsPositive() {
		return amount
	}
	if percent.IsPositive() {
		return base.Mul(percent).Div(hundred)
	}
	return decimal.Zero
}

// clampMonetary bounds a discount to [0, base] and rounds to cents. A
// discount can never exceed the value of what it discounts.
func clampMonetary(amount, base decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, base).Round(2)
}
