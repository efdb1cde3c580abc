package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type applyPromotionRequest struct {
	Code string `json:"code"`
}

// GetCart returns the current cart, re-evaluated against the live catalog.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	res, err := h.checkout.GetCart(r.Context(), h.cartID(w, r), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, res)
}

// AddItem adds a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeBadRequest(w, "productId is required")
		return
	}
	if req.Quantity <= 0 {
		writeBadRequest(w, "quantity must be positive")
		return
	}

	res, err := h.checkout.AddItem(r.Context(), h.cartID(w, r), userID(r), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, res)
}

// SetQuantity replaces a line's quantity; zero removes the line.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Quantity < 0 {
		writeBadRequest(w, "quantity must not be negative")
		return
	}

	productID := chi.URLParam(r, "productID")
	res, err := h.checkout.SetQuantity(r.Context(), h.cartID(w, r), userID(r), productID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, res)
}

// RemoveItem deletes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	res, err := h.checkout.RemoveItem(r.Context(), h.cartID(w, r), userID(r), productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, res)
}

// ApplyPromotion attaches a manual promotion code to the cart. Failures are
// rejected with a machine-readable reason and leave the cart untouched.
func (h *Handler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	var req applyPromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		writeBadRequest(w, "code is required")
		return
	}

	res, err := h.checkout.ApplyCode(r.Context(), h.cartID(w, r), userID(r), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, res)
}

// RemovePromotion detaches the manual promotion, if any.
func (h *Handler) RemovePromotion(w http.ResponseWriter, r *http.Request) {
	res, err := h.checkout.RemoveCode(r.Context(), h.cartID(w, r), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, res)
}
