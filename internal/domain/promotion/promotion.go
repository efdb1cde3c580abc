// Package promotion defines the promotion rule model and the pure decision
// functions of the discount engine: eligibility filtering, usage limiting,
// discount calculation, and priority ranking. Nothing in this package
// performs I/O; callers supply the catalog, cart lines, and usage records.
package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported promotion rule shapes.
type Type string

const (
	// TypeBuyXGetY grants free units for every N purchased units.
	TypeBuyXGetY Type = "buy_x_get_y"
	// TypeQuantityDiscount discounts the aggregate of applicable lines once
	// a minimum quantity is reached.
	TypeQuantityDiscount Type = "quantity_discount"
	// TypeCartTotal discounts the cart once its applicable subtotal reaches
	// a minimum amount; may also grant free shipping.
	TypeCartTotal Type = "cart_total"
)

// Failure reasons surfaced when applying a promotion code. These are the only
// user-facing error paths of the engine; everything else degrades to
// "ineligible" silently.
var (
	// ErrNotFound is returned when no promotion carries the given code.
	ErrNotFound = errors.New("promotion not found")
	// ErrIneligible is returned when the cart does not satisfy the
	// promotion's preconditions.
	ErrIneligible = errors.New("cart not eligible for promotion")
	// ErrUsageExceeded is returned when a usage allowance is exhausted,
	// either globally or for the requesting user.
	ErrUsageExceeded = errors.New("promotion usage limit exceeded")
	// ErrExpired is returned when the promotion is disabled or outside its
	// validity window.
	ErrExpired = errors.New("promotion expired")
)

// BuyXGetYRule grants GetQuantity free units per BuyQuantity purchased units
// of an applicable product. When SameItem is false the free units are routed
// to the product identified by FreeItemID instead of the purchased line.
type BuyXGetYRule struct {
	BuyQuantity int
	GetQuantity int
	SameItem    bool
	FreeItemID  string
}

// QuantityDiscountRule discounts the aggregate of applicable lines once
// their combined quantity reaches MinQuantity. DiscountAmount takes
// precedence over DiscountPercent when both are set.
type QuantityDiscountRule struct {
	MinQuantity     int
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
}

// CartTotalRule discounts the cart once the applicable subtotal reaches
// MinAmount. DiscountAmount takes precedence over DiscountPercent when both
// are set. FreeShipping is a side-channel: shipping cost is computed outside
// the engine.
type CartTotalRule struct {
	MinAmount       decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	FreeShipping    bool
}

// Promotion is a named, time-bounded discount rule. Exactly one payload
// field matching Type is non-nil; a missing or malformed payload renders the
// promotion permanently ineligible rather than producing an error.
//
// The engine treats promotions as read-only: CurrentUsage is incremented by
// the order placement path, never by the decision functions here.
type Promotion struct {
	ID          string
	Code        string
	Name        string
	Description string
	Type        Type

	BuyXGetY         *BuyXGetYRule
	QuantityDiscount *QuantityDiscountRule
	CartTotal        *CartTotalRule

	StartDate time.Time
	EndDate   time.Time
	IsActive  bool

	// Empty include sets mean every product is in scope; exclusions always
	// override inclusions.
	ApplicableProducts   []string
	ApplicableCategories []string
	ExcludedProducts     []string
	ExcludedCategories   []string

	MinOrderAmount decimal.Decimal

	// MaxUsage caps total consumptions across all users; MaxUsagePerUser
	// caps consumptions per user. Zero means unlimited for both.
	MaxUsage        int
	MaxUsagePerUser int
	CurrentUsage    int

	// Priority orders competing promotions; zero means unset, in which case
	// a per-type fallback applies (see EffectivePriority).
	Priority int

	AutoApply    bool
	RequiresCode bool
}

// Item is the engine's view of a single cart line. Cart packages project
// their lines into this shape before invoking the decision functions.
type Item struct {
	ProductID  string
	CategoryID string
	Price      decimal.Decimal
	Quantity   int
	// FreeQuantity is the subset of Quantity already granted free by an
	// applied promotion.
	FreeQuantity int
	// FreeItem marks a line created by a promotion; the whole line is free.
	FreeItem bool
}

// ChargeableQuantity returns the number of units the customer pays for.
func (it Item) ChargeableQuantity() int {
	if it.FreeItem {
		return 0
	}
	if it.FreeQuantity > it.Quantity {
		return 0
	}
	return it.Quantity - it.FreeQuantity
}

// ChargeableSubtotal returns the sum of price times chargeable quantity
// across all items.
func ChargeableSubtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.ChargeableQuantity()))))
	}
	return sum
}

// UsageRecord is one prior consumption of a promotion by a user. Records are
// produced by the order placement path and are read-only to the engine.
type UsageRecord struct {
	PromotionID string
	UserID      string
	OrderID     string
	UsedAt      time.Time
}

// Repository provides read access to the promotion catalog and the usage
// counter mutation reserved for order placement.
type Repository interface {
	ListActive(ctx context.Context) ([]Promotion, error)
	FindByCode(ctx context.Context, code string) (*Promotion, error)
	IncrementUsage(ctx context.Context, id string) error
}

// UsageRepository provides read access to per-user usage records plus the
// append operation reserved for order placement.
type UsageRepository interface {
	ListByUser(ctx context.Context, userID string) ([]UsageRecord, error)
	Record(ctx context.Context, rec UsageRecord) error
}
