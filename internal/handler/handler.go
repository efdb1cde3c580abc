// Package handler exposes the storefront API over HTTP. It translates
// requests into checkout service calls and renders cart projections, typed
// promotion failures, and placed orders as JSON.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marketbay/storefront/internal/domain/checkout"
	"github.com/marketbay/storefront/internal/domain/product"
)

const (
	cartIDHeader = "X-Cart-ID"
	userIDHeader = "X-User-ID"
)

// Handler serves the storefront API, delegating all cart and order logic to
// the checkout service.
type Handler struct {
	checkout *checkout.Service
	products product.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(svc *checkout.Service, products product.Repository) *Handler {
	return &Handler{checkout: svc, products: products}
}

// Routes builds the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/products", h.ListProducts)
	r.Get("/products/{productID}", h.GetProduct)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productID}", h.SetQuantity)
		r.Delete("/items/{productID}", h.RemoveItem)
		r.Post("/promotion", h.ApplyPromotion)
		r.Delete("/promotion", h.RemovePromotion)
	})

	r.Post("/orders", h.PlaceOrder)

	return r
}

// cartID resolves the cart identifier from the request, minting a fresh one
// for first-time callers. The identifier is always echoed on the response so
// clients can persist it.
func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(cartIDHeader)
	if id == "" || len(id) > 64 {
		id = uuid.New().String()
	}
	w.Header().Set(cartIDHeader, id)
	return id
}

func userID(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}
