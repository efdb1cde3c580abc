package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbay/storefront/internal/domain/product"
	"github.com/marketbay/storefront/internal/domain/promotion"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type mockPromotionRepo struct {
	promos     []promotion.Promotion
	increments []string
	listErr    error
}

// ListActive mirrors the storage layer: disabled promotions never appear in
// the catalog snapshot.
func (m *mockPromotionRepo) ListActive(context.Context) ([]promotion.Promotion, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]promotion.Promotion, 0, len(m.promos))
	for _, p := range m.promos {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPromotionRepo) FindByCode(_ context.Context, code string) (*promotion.Promotion, error) {
	for i := range m.promos {
		if m.promos[i].Code == code {
			return &m.promos[i], nil
		}
	}
	return nil, promotion.ErrNotFound
}

func (m *mockPromotionRepo) IncrementUsage(_ context.Context, id string) error {
	m.increments = append(m.increments, id)
	return nil
}

type mockUsageRepo struct {
	records  []promotion.UsageRecord
	recorded []promotion.UsageRecord
}

func (m *mockUsageRepo) ListByUser(_ context.Context, userID string) ([]promotion.UsageRecord, error) {
	var out []promotion.UsageRecord
	for _, rec := range m.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockUsageRepo) Record(_ context.Context, rec promotion.UsageRecord) error {
	m.recorded = append(m.recorded, rec)
	return nil
}

type mockProductRepo struct {
	products map[string]product.Product
}

func (m *mockProductRepo) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockSessionStore struct {
	states  map[string]SessionState
	deleted []string
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{states: make(map[string]SessionState)}
}

func (m *mockSessionStore) Get(_ context.Context, id string) (*SessionState, error) {
	state, ok := m.states[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &state, nil
}

func (m *mockSessionStore) Save(_ context.Context, state SessionState) error {
	m.states[state.ID] = state
	return nil
}

func (m *mockSessionStore) Delete(_ context.Context, id string) error {
	delete(m.states, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockOrderRepo struct {
	orders []*Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.orders = append(m.orders, o)
	return nil
}

type fixture struct {
	svc      *Service
	promos   *mockPromotionRepo
	usage    *mockUsageRepo
	sessions *mockSessionStore
	orders   *mockOrderRepo
}

func newFixture(promos ...promotion.Promotion) *fixture {
	f := &fixture{
		promos: &mockPromotionRepo{promos: promos},
		usage:  &mockUsageRepo{},
		sessions: newMockSessionStore(),
		orders: &mockOrderRepo{},
	}
	products := &mockProductRepo{products: map[string]product.Product{
		"p1": {ID: "p1", Name: "Espresso Beans", Price: dec("10.00"), CategoryID: "coffee"},
		"p2": {ID: "p2", Name: "Filter Papers", Price: dec("4.50"), CategoryID: "gear"},
	}}
	f.svc = NewService(f.promos, f.usage, products, f.sessions, f.orders)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func codePromo(id, code, amount string) promotion.Promotion {
	return promotion.Promotion{
		ID:           id,
		Code:         code,
		Type:         promotion.TypeCartTotal,
		IsActive:     true,
		RequiresCode: true,
		StartDate:    testNow.Add(-time.Hour),
		EndDate:      testNow.Add(time.Hour),
		CartTotal:    &promotion.CartTotalRule{DiscountAmount: dec(amount)},
	}
}

func TestService_AddItemPersistsSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.AddItem(ctx, "cart-1", "u1", "p1", 2)
	require.NoError(t, err)

	lines := res.Session.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "Espresso Beans", lines[0].Name)
	assert.Equal(t, 2, lines[0].Quantity)

	state, ok := f.sessions.states["cart-1"]
	require.True(t, ok)
	assert.Len(t, state.Lines, 1)

	// A later read restores the same cart.
	res, err = f.svc.GetCart(ctx, "cart-1", "u1")
	require.NoError(t, err)
	assert.Len(t, res.Session.Lines(), 1)
}

func TestService_AddItemUnknownProduct(t *testing.T) {
	f := newFixture()

	_, err := f.svc.AddItem(context.Background(), "cart-1", "u1", "nope", 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestService_ApplyCodeRoundTrip(t *testing.T) {
	f := newFixture(codePromo("promo-1", "SAVE5", "5.00"))
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cart-1", "u1", "p1", 2)
	require.NoError(t, err)

	res, err := f.svc.ApplyCode(ctx, "cart-1", "u1", "SAVE5")
	require.NoError(t, err)
	assert.Equal(t, "SAVE5", res.Session.ManualCode())

	// The manual code survives the session round-trip.
	res, err = f.svc.GetCart(ctx, "cart-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "SAVE5", res.Session.ManualCode())
	assert.True(t, dec("5.00").Equal(res.Session.Totals().Discount))

	res, err = f.svc.RemoveCode(ctx, "cart-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "", res.Session.ManualCode())
}

func TestService_ApplyCodeFailureLeavesSessionUntouched(t *testing.T) {
	f := newFixture(codePromo("promo-1", "SAVE5", "5.00"))
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cart-1", "u1", "p1", 2)
	require.NoError(t, err)

	_, err = f.svc.ApplyCode(ctx, "cart-1", "u1", "NOPE")
	require.ErrorIs(t, err, promotion.ErrNotFound)

	assert.Equal(t, "", f.sessions.states["cart-1"].ManualCode)
}

func TestService_PlaceOrder(t *testing.T) {
	f := newFixture(codePromo("promo-1", "SAVE5", "5.00"))
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cart-1", "u1", "p1", 2)
	require.NoError(t, err)
	_, err = f.svc.ApplyCode(ctx, "cart-1", "u1", "SAVE5")
	require.NoError(t, err)

	o, err := f.svc.PlaceOrder(ctx, "cart-1", "u1")
	require.NoError(t, err)

	assert.True(t, dec("20.00").Equal(o.Totals.Original))
	assert.True(t, dec("15.00").Equal(o.Totals.Final))
	require.Len(t, o.Promotions, 1)
	assert.Equal(t, "SAVE5", o.Promotions[0].Code)

	require.Len(t, f.orders.orders, 1)

	// Order placement is the only writer of usage state.
	assert.Equal(t, []string{"promo-1"}, f.promos.increments)
	require.Len(t, f.usage.recorded, 1)
	assert.Equal(t, "u1", f.usage.recorded[0].UserID)
	assert.Equal(t, o.ID, f.usage.recorded[0].OrderID)

	// The cart session is gone afterwards.
	assert.Equal(t, []string{"cart-1"}, f.sessions.deleted)
}

func TestService_PlaceOrderEmptyCart(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PlaceOrder(context.Background(), "cart-1", "u1")
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestService_SnapshotErrorsPropagate(t *testing.T) {
	f := newFixture()
	f.promos.listErr = errors.New("connection refused")

	_, err := f.svc.GetCart(context.Background(), "cart-1", "u1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "list promotions")
}

func TestService_AnonymousCartBindsToUser(t *testing.T) {
	promo := codePromo("promo-1", "SAVE5", "5.00")
	promo.MaxUsagePerUser = 1
	f := newFixture(promo)
	f.usage.records = []promotion.UsageRecord{
		{PromotionID: "promo-1", UserID: "u1", OrderID: "order-0", UsedAt: testNow.Add(-time.Hour)},
	}
	ctx := context.Background()

	// The cart starts out anonymous.
	_, err := f.svc.AddItem(ctx, "cart-1", "", "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, "", f.sessions.states["cart-1"].UserID)

	// Once a request carries an identity, that user's allowance applies to
	// the same cart.
	_, err = f.svc.ApplyCode(ctx, "cart-1", "u1", "SAVE5")
	require.ErrorIs(t, err, promotion.ErrUsageExceeded)

	// And the binding is persisted.
	_, err = f.svc.GetCart(ctx, "cart-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", f.sessions.states["cart-1"].UserID)
}

func TestService_DisabledCodeReportsExpired(t *testing.T) {
	disabled := codePromo("promo-1", "RETIRED", "5.00")
	disabled.IsActive = false
	f := newFixture(disabled)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cart-1", "u1", "p1", 2)
	require.NoError(t, err)

	// The code resolves to a disabled promotion: expired, not unknown.
	_, err = f.svc.ApplyCode(ctx, "cart-1", "u1", "RETIRED")
	require.ErrorIs(t, err, promotion.ErrExpired)

	// A code that resolves nowhere stays not-found.
	_, err = f.svc.ApplyCode(ctx, "cart-1", "u1", "NOPE")
	require.ErrorIs(t, err, promotion.ErrNotFound)
}

func TestService_PlaceOrderAnonymousSkipsUsageRecords(t *testing.T) {
	f := newFixture(codePromo("promo-1", "SAVE5", "5.00"))
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cart-1", "", "p1", 2)
	require.NoError(t, err)
	_, err = f.svc.ApplyCode(ctx, "cart-1", "", "SAVE5")
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, "cart-1", "")
	require.NoError(t, err)

	// The global counter still moves; per-user records are skipped.
	assert.Equal(t, []string{"promo-1"}, f.promos.increments)
	assert.Empty(t, f.usage.recorded)
}
