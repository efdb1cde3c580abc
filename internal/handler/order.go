package handler

import (
	"net/http"
	"time"

	"github.com/marketbay/storefront/internal/domain/checkout"
)

type orderLineResponse struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	UnitPrice    string `json:"unitPrice"`
	Quantity     int    `json:"quantity"`
	FreeQuantity int    `json:"freeQuantity,omitempty"`
}

type orderPromotionResponse struct {
	ID          string `json:"id"`
	Code        string `json:"code,omitempty"`
	AutoApplied bool   `json:"autoApplied"`
	Discount    string `json:"discount"`
}

type orderResponse struct {
	ID           string                   `json:"id"`
	Items        []orderLineResponse      `json:"items"`
	Promotions   []orderPromotionResponse `json:"promotions,omitempty"`
	Original     string                   `json:"original"`
	Discount     string                   `json:"discount"`
	Total        string                   `json:"total"`
	FreeShipping bool                     `json:"freeShipping"`
	CreatedAt    time.Time                `json:"createdAt"`
}

// PlaceOrder converts the cart into an order. The cart session is consumed on
// success.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.checkout.PlaceOrder(r.Context(), h.cartID(w, r), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func toOrderResponse(o *checkout.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		Items:        make([]orderLineResponse, len(o.Lines)),
		Original:     o.Totals.Original.StringFixed(2),
		Discount:     o.Totals.Discount.StringFixed(2),
		Total:        o.Totals.Final.StringFixed(2),
		FreeShipping: o.FreeShipping,
		CreatedAt:    o.CreatedAt,
	}
	for i, line := range o.Lines {
		resp.Items[i] = orderLineResponse{
			ProductID:    line.ProductID,
			Name:         line.Name,
			UnitPrice:    line.UnitPrice.StringFixed(2),
			Quantity:     line.Quantity,
			FreeQuantity: line.FreeQuantity,
		}
	}
	for _, p := range o.Promotions {
		resp.Promotions = append(resp.Promotions, orderPromotionResponse{
			ID:          p.PromotionID,
			Code:        p.Code,
			AutoApplied: p.AutoApplied,
			Discount:    p.Discount,
		})
	}
	return resp
}
