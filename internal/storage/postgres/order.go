package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketbay/storefront/internal/domain/checkout"
)

const createOrderSQL = `INSERT INTO orders
	(id, cart_id, user_id, lines, original, discount, final, promotions, free_shipping, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

var _ checkout.OrderRepository = (*OrderRepository)(nil)

// OrderRepository implements checkout.OrderRepository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// orderLineJSON is the JSONB shape of an order line, annotated with the free
// quantities the promotions granted at placement time.
type orderLineJSON struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name,omitempty"`
	UnitPrice    string `json:"unit_price"`
	Quantity     int    `json:"quantity"`
	FreeQuantity int    `json:"free_quantity,omitempty"`
	FreeItem     bool   `json:"free_item,omitempty"`
}

// Create persists a placed order. Lines and applied promotions are
// serialized to JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *checkout.Order) error {
	lines := make([]orderLineJSON, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineJSON{
			ProductID:    l.ProductID,
			Name:         l.Name,
			UnitPrice:    l.UnitPrice.StringFixed(2),
			Quantity:     l.Quantity,
			FreeQuantity: l.FreeQuantity,
			FreeItem:     l.FreeItem,
		}
	}
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}

	promosJSON, err := json.Marshal(o.Promotions)
	if err != nil {
		return fmt.Errorf("marshaling order promotions: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.CartID, o.UserID, linesJSON,
		o.Totals.Original, o.Totals.Discount, o.Totals.Final,
		promosJSON, o.FreeShipping, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}
