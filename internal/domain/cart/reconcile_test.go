package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbay/storefront/internal/domain/promotion"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func assertDecimalEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

func TestReconcile_Totals(t *testing.T) {
	lines := []Line{
		{ProductID: "p1", UnitPrice: dec("10.00"), Quantity: 4},
		{ProductID: "p2", UnitPrice: dec("20.00"), Quantity: 1},
	}
	applied := []Applied{
		{
			Promotion:   &promotion.Promotion{ID: "bogo"},
			AutoApplied: true,
			Savings: promotion.Savings{
				Monetary:  dec("20.00"),
				FreeUnits: []promotion.FreeUnit{{ProductID: "p1", Quantity: 2}},
			},
		},
	}

	out, totals := Reconcile(lines, applied)

	assertDecimalEqual(t, "60.00", totals.Original)
	assertDecimalEqual(t, "20.00", totals.Discount)
	assertDecimalEqual(t, "40.00", totals.Final)

	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].FreeQuantity)
	assert.Equal(t, 2, out[0].ChargeableQuantity())
	assert.Equal(t, 0, out[1].FreeQuantity)
}

func TestReconcile_Idempotent(t *testing.T) {
	lines := []Line{{ProductID: "p1", UnitPrice: dec("10.00"), Quantity: 4}}
	applied := []Applied{
		{
			Promotion:   &promotion.Promotion{ID: "bogo"},
			AutoApplied: true,
			Savings: promotion.Savings{
				Monetary:  dec("20.00"),
				FreeUnits: []promotion.FreeUnit{{ProductID: "p1", Quantity: 2}},
			},
		},
	}

	first, firstTotals := Reconcile(lines, applied)
	second, secondTotals := Reconcile(first, applied)

	assert.Equal(t, firstTotals, secondTotals)
	assert.Equal(t, first, second)
}

func TestReconcile_DiscountClampedToOriginal(t *testing.T) {
	lines := []Line{{ProductID: "p1", UnitPrice: dec("10.00"), Quantity: 2}}
	applied := []Applied{
		{Promotion: &promotion.Promotion{ID: "a"}, AutoApplied: true, Savings: promotion.Savings{Monetary: dec("15.00")}},
		{Promotion: &promotion.Promotion{ID: "b"}, AutoApplied: true, Savings: promotion.Savings{Monetary: dec("15.00")}},
	}

	_, totals := Reconcile(lines, applied)

	assertDecimalEqual(t, "20.00", totals.Original)
	assertDecimalEqual(t, "20.00", totals.Discount)
	assertDecimalEqual(t, "0", totals.Final)
	assert.False(t, totals.Final.IsNegative())
}

func TestReconcile_FreeUnitsCappedAtLineQuantity(t *testing.T) {
	lines := []Line{{ProductID: "p1", UnitPrice: dec("10.00"), Quantity: 3}}
	applied := []Applied{
		{
			Promotion:   &promotion.Promotion{ID: "a"},
			AutoApplied: true,
			Savings:     promotion.Savings{FreeUnits: []promotion.FreeUnit{{ProductID: "p1", Quantity: 2}}},
		},
		{
			Promotion:   &promotion.Promotion{ID: "b"},
			AutoApplied: true,
			Savings:     promotion.Savings{FreeUnits: []promotion.FreeUnit{{ProductID: "p1", Quantity: 2}}},
		},
	}

	out, _ := Reconcile(lines, applied)

	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].FreeQuantity)
	assert.LessOrEqual(t, out[0].FreeQuantity, out[0].Quantity)
}

func TestReconcile_GrantForAbsentProductCreatesFreeLine(t *testing.T) {
	lines := []Line{{ProductID: "p1", UnitPrice: dec("10.00"), Quantity: 2}}
	applied := []Applied{
		{
			Promotion:   &promotion.Promotion{ID: "gift-promo"},
			AutoApplied: true,
			Savings:     promotion.Savings{FreeUnits: []promotion.FreeUnit{{ProductID: "gift", Quantity: 1}}},
		},
	}

	out, totals := Reconcile(lines, applied)

	require.Len(t, out, 2)
	free := out[1]
	assert.Equal(t, "gift", free.ProductID)
	assert.True(t, free.FreeItem)
	assert.True(t, free.UnitPrice.IsZero())
	assert.Equal(t, 0, free.ChargeableQuantity())
	// The free line never inflates the original total.
	assertDecimalEqual(t, "20.00", totals.Original)
}

func TestReconcile_StripsStaleAnnotations(t *testing.T) {
	// Lines arriving with stale promotion annotations are reset before
	// merging, so removed promotions leave no residue.
	lines := []Line{
		{ProductID: "p1", UnitPrice: dec("10.00"), Quantity: 4, FreeQuantity: 2},
		{ProductID: "gift", UnitPrice: decimal.Zero, Quantity: 1, FreeQuantity: 1, FreeItem: true},
	}

	out, totals := Reconcile(lines, nil)

	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].FreeQuantity)
	assertDecimalEqual(t, "40.00", totals.Original)
	assertDecimalEqual(t, "0", totals.Discount)
	assertDecimalEqual(t, "40.00", totals.Final)
}

func TestReconcile_ManualMergesLast(t *testing.T) {
	lines := []Line{{ProductID: "p1", UnitPrice: dec("10.00"), Quantity: 2}}

	manualFirst := []Applied{
		{
			Promotion: &promotion.Promotion{ID: "manual"},
			Code:      "SAVE",
			Savings:   promotion.Savings{FreeUnits: []promotion.FreeUnit{{ProductID: "p1", Quantity: 1}}},
		},
		{
			Promotion:   &promotion.Promotion{ID: "auto"},
			AutoApplied: true,
			Savings:     promotion.Savings{FreeUnits: []promotion.FreeUnit{{ProductID: "p1", Quantity: 2}}},
		},
	}

	out, _ := Reconcile(lines, manualFirst)

	// The auto grant merges first and the manual grant still lands within
	// the cap, regardless of slice order.
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].FreeQuantity)
}
