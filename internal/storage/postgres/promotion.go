package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/marketbay/storefront/internal/domain/promotion"
)

const (
	promotionColumns = `id, code, name, description, type,
		buy_quantity, get_quantity, same_item, free_item_id,
		min_quantity, discount_percent, discount_amount, min_amount, free_shipping,
		start_date, end_date, active,
		applicable_products, applicable_categories, excluded_products, excluded_categories,
		min_order_amount, max_usage, max_usage_per_user, current_usage,
		priority, auto_apply, requires_code`

	listActivePromotionsSQL = `SELECT ` + promotionColumns + `
		FROM promotions WHERE active = TRUE ORDER BY id`

	findPromotionByCodeSQL = `SELECT ` + promotionColumns + `
		FROM promotions WHERE UPPER(code) = UPPER($1) AND code <> ''`

	incrementPromotionUsageSQL = `UPDATE promotions
		SET current_usage = current_usage + 1 WHERE id = $1`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// ListActive returns every active promotion in catalog order.
func (r *PromotionRepository) ListActive(ctx context.Context) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listActivePromotionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}

	promos, err := pgx.CollectRows(rows, scanPromotion)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return promos, nil
}

// FindByCode looks up a promotion by its code (case-insensitive).
// Returns promotion.ErrNotFound when no promotion carries the code.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, findPromotionByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promotion by code %q: %w", code, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("finding promotion by code %q: %w", code, err)
	}
	return &p, nil
}

// IncrementUsage atomically increments the global usage counter.
func (r *PromotionRepository) IncrementUsage(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, incrementPromotionUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage for promotion %q: %w", id, err)
	}
	return nil
}

// scanPromotion maps a flat promotion row onto the tagged rule model: the
// payload matching the row's type is populated, the others stay nil.
func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p promotion.Promotion

		buyQuantity, getQuantity int32
		sameItem                 bool
		freeItemID               string
		minQuantity              int32
		discountPercent          decimal.Decimal
		discountAmount           decimal.Decimal
		minAmount                decimal.Decimal
		freeShipping             bool

		typ                                string
		startDate, endDate                 time.Time
		maxUsage, maxUsagePerUser, current int32
		priority                           int32
	)

	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Description, &typ,
		&buyQuantity, &getQuantity, &sameItem, &freeItemID,
		&minQuantity, &discountPercent, &discountAmount, &minAmount, &freeShipping,
		&startDate, &endDate, &p.IsActive,
		&p.ApplicableProducts, &p.ApplicableCategories, &p.ExcludedProducts, &p.ExcludedCategories,
		&p.MinOrderAmount, &maxUsage, &maxUsagePerUser, &current,
		&priority, &p.AutoApply, &p.RequiresCode,
	)
	if err != nil {
		return promotion.Promotion{}, err
	}

	p.Type = promotion.Type(typ)
	p.StartDate = startDate
	p.EndDate = endDate
	p.MaxUsage = int(maxUsage)
	p.MaxUsagePerUser = int(maxUsagePerUser)
	p.CurrentUsage = int(current)
	p.Priority = int(priority)

	switch p.Type {
	case promotion.TypeBuyXGetY:
		p.BuyXGetY = &promotion.BuyXGetYRule{
			BuyQuantity: int(buyQuantity),
			GetQuantity: int(getQuantity),
			SameItem:    sameItem,
			FreeItemID:  freeItemID,
		}
	case promotion.TypeQuantityDiscount:
		p.QuantityDiscount = &promotion.QuantityDiscountRule{
			MinQuantity:     int(minQuantity),
			DiscountPercent: discountPercent,
			DiscountAmount:  discountAmount,
		}
	case promotion.TypeCartTotal:
		p.CartTotal = &promotion.CartTotalRule{
			MinAmount:       minAmount,
			DiscountPercent: discountPercent,
			DiscountAmount:  discountAmount,
			FreeShipping:    freeShipping,
		}
	}

	return p, nil
}
