// Package cart owns the cart aggregate: its lines, the set of applied
// promotions, and the derived totals. All promotion effects enter the cart
// through the Session transitions; presentation layers only ever see
// read-only projections.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/marketbay/storefront/internal/domain/promotion"
)

// Line is one product line in a cart. Quantity counts both paid and free
// units; FreeQuantity is the subset granted by a promotion. FreeItem marks a
// line created entirely by a promotion grant.
type Line struct {
	ProductID  string
	CategoryID string
	Name       string
	UnitPrice  decimal.Decimal
	Quantity   int
	// FreeQuantity never exceeds Quantity.
	FreeQuantity int
	FreeItem     bool
}

// ChargeableQuantity returns the number of units the customer pays for.
func (l Line) ChargeableQuantity() int {
	if l.FreeItem {
		return 0
	}
	if l.FreeQuantity > l.Quantity {
		return 0
	}
	return l.Quantity - l.FreeQuantity
}

// Applied is a promotion attached to a cart, together with its computed
// effect. At most one Applied per cart has AutoApplied=false.
type Applied struct {
	Promotion   *promotion.Promotion
	AutoApplied bool
	// Code is the code the customer entered; empty for auto-applied
	// promotions.
	Code    string
	Savings promotion.Savings
}

// DiscountAmount returns the monetary savings attributed to this promotion.
func (a Applied) DiscountAmount() decimal.Decimal {
	return a.Savings.Monetary
}

// Totals are the cart-level derived amounts. Original ignores promotion
// discounts; Final is Original minus Discount, floored at zero.
type Totals struct {
	Original decimal.Decimal
	Discount decimal.Decimal
	Final    decimal.Decimal
}

// items projects cart lines into the engine's neutral item shape.
func items(lines []Line) []promotion.Item {
	out := make([]promotion.Item, len(lines))
	for i, l := range lines {
		out[i] = promotion.Item{
			ProductID:    l.ProductID,
			CategoryID:   l.CategoryID,
			Price:        l.UnitPrice,
			Quantity:     l.Quantity,
			FreeQuantity: l.FreeQuantity,
			FreeItem:     l.FreeItem,
		}
	}
	return out
}
