// Command seed-db loads the product catalog and promotion catalog from JSON
// files into PostgreSQL. Existing rows with matching IDs are overwritten, so
// the seeder is safe to re-run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/marketbay/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  string          `json:"categoryId"`
}

type promotionJSON struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`

	BuyQuantity int    `json:"buyQuantity"`
	GetQuantity int    `json:"getQuantity"`
	SameItem    bool   `json:"sameItem"`
	FreeItemID  string `json:"freeItemId"`

	MinQuantity     int             `json:"minQuantity"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	MinAmount       decimal.Decimal `json:"minAmount"`
	FreeShipping    bool            `json:"freeShipping"`

	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Active    bool      `json:"active"`

	ApplicableProducts   []string `json:"applicableProducts"`
	ApplicableCategories []string `json:"applicableCategories"`
	ExcludedProducts     []string `json:"excludedProducts"`
	ExcludedCategories   []string `json:"excludedCategories"`

	MinOrderAmount  decimal.Decimal `json:"minOrderAmount"`
	MaxUsage        int             `json:"maxUsage"`
	MaxUsagePerUser int             `json:"maxUsagePerUser"`
	Priority        int             `json:"priority"`
	AutoApply       bool            `json:"autoApply"`
	RequiresCode    bool            `json:"requiresCode"`
}

const upsertProductSQL = `INSERT INTO products (id, name, description, price, category_id)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		category_id = EXCLUDED.category_id`

const upsertPromotionSQL = `INSERT INTO promotions (
		id, code, name, description, type,
		buy_quantity, get_quantity, same_item, free_item_id,
		min_quantity, discount_percent, discount_amount, min_amount, free_shipping,
		start_date, end_date, active,
		applicable_products, applicable_categories, excluded_products, excluded_categories,
		min_order_amount, max_usage, max_usage_per_user, priority, auto_apply, requires_code)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	ON CONFLICT (id) DO UPDATE SET
		code = EXCLUDED.code,
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		type = EXCLUDED.type,
		buy_quantity = EXCLUDED.buy_quantity,
		get_quantity = EXCLUDED.get_quantity,
		same_item = EXCLUDED.same_item,
		free_item_id = EXCLUDED.free_item_id,
		min_quantity = EXCLUDED.min_quantity,
		discount_percent = EXCLUDED.discount_percent,
		discount_amount = EXCLUDED.discount_amount,
		min_amount = EXCLUDED.min_amount,
		free_shipping = EXCLUDED.free_shipping,
		start_date = EXCLUDED.start_date,
		end_date = EXCLUDED.end_date,
		active = EXCLUDED.active,
		applicable_products = EXCLUDED.applicable_products,
		applicable_categories = EXCLUDED.applicable_categories,
		excluded_products = EXCLUDED.excluded_products,
		excluded_categories = EXCLUDED.excluded_categories,
		min_order_amount = EXCLUDED.min_order_amount,
		max_usage = EXCLUDED.max_usage,
		max_usage_per_user = EXCLUDED.max_usage_per_user,
		priority = EXCLUDED.priority,
		auto_apply = EXCLUDED.auto_apply,
		requires_code = EXCLUDED.requires_code`

func main() {
	var (
		databaseURL    string
		productsFile   string
		promotionsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&promotionsFile, "promotions-file", "db/seed/promotions.json", "path to promotions JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, promotionsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, promotionsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedPromotions(ctx, pool, promotionsFile); err != nil {
		return errors.Wrap(err, "seed promotions")
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products file")
	}

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Description, p.Price, p.CategoryID)
		if err != nil {
			return errors.Wrapf(err, "upsert product %q", p.ID)
		}
	}

	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}

func seedPromotions(ctx context.Context, pool *pgxpool.Pool, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "read promotions file")
	}

	var promotions []promotionJSON
	if err := json.Unmarshal(data, &promotions); err != nil {
		return errors.Wrap(err, "parse promotions file")
	}

	for _, p := range promotions {
		_, err := pool.Exec(ctx, upsertPromotionSQL,
			p.ID, p.Code, p.Name, p.Description, p.Type,
			p.BuyQuantity, p.GetQuantity, p.SameItem, p.FreeItemID,
			p.MinQuantity, p.DiscountPercent, p.DiscountAmount, p.MinAmount, p.FreeShipping,
			p.StartDate, p.EndDate, p.Active,
			emptyIfNil(p.ApplicableProducts), emptyIfNil(p.ApplicableCategories),
			emptyIfNil(p.ExcludedProducts), emptyIfNil(p.ExcludedCategories),
			p.MinOrderAmount, p.MaxUsage, p.MaxUsagePerUser, p.Priority, p.AutoApply, p.RequiresCode,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert promotion %q", p.ID)
		}
	}

	slog.Info("promotions seeded", slog.Int("count", len(promotions)))
	return nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
