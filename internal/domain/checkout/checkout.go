// Package checkout drives the promotion engine from the outside: it fetches
// the catalog and usage snapshots the engine evaluates against, serializes
// mutations per cart, persists sessions, and owns the order placement path,
// which is the only place usage counters are ever written.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/marketbay/storefront/internal/domain/cart"
)

var (
	// ErrEmptyCart is returned when placing an order for a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrSessionNotFound is returned by SessionStore implementations when no
	// session exists for the given ID.
	ErrSessionNotFound = errors.New("cart session not found")
)

// SessionState is the persisted form of a cart session. Only the customer's
// raw lines and the manual code survive persistence; auto-applied promotions
// and all derived values are recomputed against the current catalog on load.
type SessionState struct {
	ID         string
	UserID     string
	Lines      []cart.Line
	ManualCode string
	UpdatedAt  time.Time
}

// SessionStore persists cart sessions between requests.
type SessionStore interface {
	Get(ctx context.Context, id string) (*SessionState, error)
	Save(ctx context.Context, state SessionState) error
	Delete(ctx context.Context, id string) error
}

// Order is a completed checkout: the reconciled lines and totals at
// placement time plus the codes of the promotions that were applied.
type Order struct {
	ID           string
	CartID       string
	UserID       string
	Lines        []cart.Line
	Totals       cart.Totals
	Promotions   []AppliedSummary
	FreeShipping bool
	CreatedAt    time.Time
}

// AppliedSummary captures an applied promotion on a placed order.
type AppliedSummary struct {
	PromotionID string `json:"promotion_id"`
	Code        string `json:"code,omitempty"`
	AutoApplied bool   `json:"auto_applied,omitempty"`
	Discount    string `json:"discount"`
}

// OrderRepository defines persistence for placed orders.
type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
}
