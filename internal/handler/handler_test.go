package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbay/storefront/internal/domain/checkout"
	"github.com/marketbay/storefront/internal/domain/product"
	"github.com/marketbay/storefront/internal/domain/promotion"
)

type stubPromotionRepo struct {
	promos []promotion.Promotion
}

func (s *stubPromotionRepo) ListActive(context.Context) ([]promotion.Promotion, error) {
	return s.promos, nil
}

func (s *stubPromotionRepo) FindByCode(_ context.Context, code string) (*promotion.Promotion, error) {
	for i := range s.promos {
		if s.promos[i].Code == code {
			return &s.promos[i], nil
		}
	}
	return nil, promotion.ErrNotFound
}

func (s *stubPromotionRepo) IncrementUsage(context.Context, string) error { return nil }

type stubUsageRepo struct{}

func (stubUsageRepo) ListByUser(context.Context, string) ([]promotion.UsageRecord, error) {
	return nil, nil
}

func (stubUsageRepo) Record(context.Context, promotion.UsageRecord) error { return nil }

type stubProductRepo struct {
	products map[string]product.Product
}

func (s *stubProductRepo) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (s *stubProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubSessionStore struct {
	states map[string]checkout.SessionState
}

func (s *stubSessionStore) Get(_ context.Context, id string) (*checkout.SessionState, error) {
	state, ok := s.states[id]
	if !ok {
		return nil, checkout.ErrSessionNotFound
	}
	return &state, nil
}

func (s *stubSessionStore) Save(_ context.Context, state checkout.SessionState) error {
	s.states[state.ID] = state
	return nil
}

func (s *stubSessionStore) Delete(_ context.Context, id string) error {
	delete(s.states, id)
	return nil
}

type stubOrderRepo struct {
	orders []*checkout.Order
}

func (s *stubOrderRepo) Create(_ context.Context, o *checkout.Order) error {
	s.orders = append(s.orders, o)
	return nil
}

func newTestServer(t *testing.T, promos ...promotion.Promotion) *httptest.Server {
	t.Helper()

	products := &stubProductRepo{products: map[string]product.Product{
		"p1": {ID: "p1", Name: "Espresso Beans", Price: decimal.RequireFromString("10.00"), CategoryID: "coffee"},
	}}
	svc := checkout.NewService(
		&stubPromotionRepo{promos: promos},
		stubUsageRepo{},
		products,
		&stubSessionStore{states: make(map[string]checkout.SessionState)},
		&stubOrderRepo{},
	)

	srv := httptest.NewServer(NewHandler(svc, products).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, cartID, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if cartID != "" {
		req.Header.Set("X-Cart-ID", cartID)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHandler_AddItemAndGetCart(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodPost, "/cart/items", "cart-1",
		`{"productId":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cart-1", resp.Header.Get("X-Cart-ID"))

	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, "p1", line["productId"])
	assert.Equal(t, float64(2), line["quantity"])
	assert.Equal(t, "20.00", line["lineTotal"])

	totals := body["totals"].(map[string]any)
	assert.Equal(t, "20.00", totals["original"])
	assert.Equal(t, "20.00", totals["final"])

	resp, body = doRequest(t, srv, http.MethodGet, "/cart", "cart-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"].([]any), 1)
}

func TestHandler_MintsCartID(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doRequest(t, srv, http.MethodGet, "/cart", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Cart-ID"))
}

func TestHandler_AddItemValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing product", `{"quantity":1}`},
		{"zero quantity", `{"productId":"p1","quantity":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, srv, http.MethodPost, "/cart/items", "cart-1", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "BAD_REQUEST", body["reason"])
		})
	}
}

func TestHandler_AddItemUnknownProduct(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doRequest(t, srv, http.MethodPost, "/cart/items", "cart-1",
		`{"productId":"missing","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["reason"])
}

func TestHandler_ApplyPromotion(t *testing.T) {
	active := promotion.Promotion{
		ID:           "promo-1",
		Code:         "SAVE5",
		Name:         "Five off",
		Type:         promotion.TypeCartTotal,
		IsActive:     true,
		RequiresCode: true,
		StartDate:    time.Now().Add(-time.Hour),
		EndDate:      time.Now().Add(time.Hour),
		CartTotal:    &promotion.CartTotalRule{DiscountAmount: decimal.RequireFromString("5.00")},
	}
	expired := active
	expired.ID = "promo-2"
	expired.Code = "OLD"
	expired.EndDate = time.Now().Add(-time.Minute)

	srv := newTestServer(t, active, expired)

	_, _ = doRequest(t, srv, http.MethodPost, "/cart/items", "cart-1",
		`{"productId":"p1","quantity":2}`)

	resp, body := doRequest(t, srv, http.MethodPost, "/cart/promotion", "cart-1",
		`{"code":"SAVE5"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	promos := body["promotions"].([]any)
	require.Len(t, promos, 1)
	assert.Equal(t, "SAVE5", promos[0].(map[string]any)["code"])
	assert.Equal(t, "15.00", body["totals"].(map[string]any)["final"])

	t.Run("unknown code", func(t *testing.T) {
		resp, body := doRequest(t, srv, http.MethodPost, "/cart/promotion", "cart-1",
			`{"code":"NOPE"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", body["reason"])
	})

	t.Run("expired code", func(t *testing.T) {
		resp, body := doRequest(t, srv, http.MethodPost, "/cart/promotion", "cart-1",
			`{"code":"OLD"}`)
		assert.Equal(t, http.StatusGone, resp.StatusCode)
		assert.Equal(t, "EXPIRED", body["reason"])
	})

	t.Run("remove", func(t *testing.T) {
		resp, body := doRequest(t, srv, http.MethodDelete, "/cart/promotion", "cart-1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, body["promotions"].([]any))
		assert.Equal(t, "20.00", body["totals"].(map[string]any)["final"])
	})
}

func TestHandler_PlaceOrder(t *testing.T) {
	srv := newTestServer(t)

	t.Run("empty cart rejected", func(t *testing.T) {
		resp, body := doRequest(t, srv, http.MethodPost, "/orders", "cart-1", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "EMPTY_CART", body["reason"])
	})

	_, _ = doRequest(t, srv, http.MethodPost, "/cart/items", "cart-1",
		`{"productId":"p1","quantity":3}`)

	resp, body := doRequest(t, srv, http.MethodPost, "/orders", "cart-1", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "30.00", body["total"])

	// The cart is consumed by order placement.
	resp, cartBody := doRequest(t, srv, http.MethodGet, "/cart", "cart-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, cartBody["items"].([]any))
}

func TestHandler_ListProducts(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	require.Len(t, products, 1)
	assert.Equal(t, "10.00", products[0]["price"])
}
