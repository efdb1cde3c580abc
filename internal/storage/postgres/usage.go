package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketbay/storefront/internal/domain/promotion"
)

const (
	listUsageByUserSQL = `SELECT promotion_id, user_id, order_id, used_at
		FROM promotion_usage WHERE user_id = $1`

	recordUsageSQL = `INSERT INTO promotion_usage (id, promotion_id, user_id, order_id, used_at)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ promotion.UsageRepository = (*UsageRepository)(nil)

// UsageRepository implements promotion.UsageRepository backed by PostgreSQL.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// ListByUser returns every usage record for the given user.
func (r *UsageRepository) ListByUser(ctx context.Context, userID string) ([]promotion.UsageRecord, error) {
	rows, err := r.pool.Query(ctx, listUsageByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing usage for user %q: %w", userID, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (promotion.UsageRecord, error) {
		var rec promotion.UsageRecord
		err := row.Scan(&rec.PromotionID, &rec.UserID, &rec.OrderID, &rec.UsedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing usage for user %q: %w", userID, err)
	}
	return records, nil
}

// Record appends a usage record; called by order placement only.
func (r *UsageRepository) Record(ctx context.Context, rec promotion.UsageRecord) error {
	_, err := r.pool.Exec(ctx, recordUsageSQL,
		uuid.New().String(), rec.PromotionID, rec.UserID, rec.OrderID, rec.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("recording usage for promotion %q: %w", rec.PromotionID, err)
	}
	return nil
}
