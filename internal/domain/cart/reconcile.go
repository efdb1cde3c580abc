package cart

import (
	"github.com/shopspring/decimal"

	"github.com/marketbay/storefront/internal/domain/promotion"
)

// Reconcile merges the applied promotions' effects into cart-level totals
// and per-line free-quantity annotations. It always starts from the raw
// lines with prior promotion annotations stripped, so calling it repeatedly
// with the same inputs yields the same result and free units are never
// applied twice.
//
// Promotions merge in a deterministic order: auto-applied promotions in
// their attach order first, the manual promotion last, so a manually entered
// code's effect is never silently overwritten by an auto grant. Free-unit
// grants are additive per line and capped at the line quantity; grants for
// products not in the cart create a zero-priced free line. The totals obey
// Discount <= Original and Final >= 0 by clamping, never by rejection.
func Reconcile(lines []Line, applied []Applied) ([]Line, Totals) {
	out := stripAnnotations(lines)

	original := decimal.Zero
	for _, l := range out {
		original = original.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	original = original.Round(2)

	discount := decimal.Zero
	for _, a := range mergeOrder(applied) {
		discount = discount.Add(a.Savings.Monetary)
		for _, fu := range a.Savings.FreeUnits {
			out = mergeFreeUnits(out, fu)
		}
	}

	discount = decimal.Min(discount, original).Round(2)
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return out, Totals{
		Original: original,
		Discount: discount,
		Final:    original.Sub(discount).Round(2),
	}
}

// stripAnnotations returns a copy of lines with promotion effects removed:
// free quantities reset and promotion-created free lines dropped.
func stripAnnotations(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.FreeItem {
			continue
		}
		l.FreeQuantity = 0
		out = append(out, l)
	}
	return out
}

// mergeOrder returns applied promotions in reconciliation order: autos in
// attach order, the manual promotion last.
func mergeOrder(applied []Applied) []Applied {
	ordered := make([]Applied, 0, len(applied))
	var manual []Applied
	for _, a := range applied {
		if a.AutoApplied {
			ordered = append(ordered, a)
		} else {
			manual = append(manual, a)
		}
	}
	return append(ordered, manual...)
}

// mergeFreeUnits adds a free-unit grant onto the matching line, capped at
// the line quantity. A grant for a product not in the cart becomes a new
// zero-priced line that is free in its entirety.
func mergeFreeUnits(lines []Line, fu promotion.FreeUnit) []Line {
	if fu.Quantity <= 0 {
		return lines
	}
	for i := range lines {
		if lines[i].ProductID != fu.ProductID || lines[i].FreeItem {
			continue
		}
		lines[i].FreeQuantity += fu.Quantity
		if lines[i].FreeQuantity > lines[i].Quantity {
			lines[i].FreeQuantity = lines[i].Quantity
		}
		return lines
	}
	return append(lines, Line{
		ProductID:    fu.ProductID,
		UnitPrice:    decimal.Zero,
		Quantity:     fu.Quantity,
		FreeQuantity: fu.Quantity,
		FreeItem:     true,
	})
}
