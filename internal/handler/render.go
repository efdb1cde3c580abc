package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketbay/storefront/internal/domain/cart"
	"github.com/marketbay/storefront/internal/domain/checkout"
	"github.com/marketbay/storefront/internal/domain/product"
	"github.com/marketbay/storefront/internal/domain/promotion"
)

// Machine-readable reason codes for promotion application failures.
const (
	reasonNotFound      = "NOT_FOUND"
	reasonExpired       = "EXPIRED"
	reasonIneligible    = "INELIGIBLE"
	reasonUsageExceeded = "USAGE_EXCEEDED"
)

// writeCart renders the full cart projection. Every cart mutation returns
// this same shape, so it is encoded with jx instead of reflection-based
// marshaling.
func writeCart(w http.ResponseWriter, status int, res *checkout.Result) {
	sess := res.Session

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(sess.ID()) })

		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, line := range sess.Lines() {
					encodeLine(e, line)
				}
			})
		})

		e.Field("promotions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, a := range sess.AppliedPromotions() {
					encodeApplied(e, a)
				}
			})
		})

		totals := sess.Totals()
		e.Field("totals", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("original", func(e *jx.Encoder) { e.Str(totals.Original.StringFixed(2)) })
				e.Field("discount", func(e *jx.Encoder) { e.Str(totals.Discount.StringFixed(2)) })
				e.Field("final", func(e *jx.Encoder) { e.Str(totals.Final.StringFixed(2)) })
			})
		})

		e.Field("freeShipping", func(e *jx.Encoder) { e.Bool(sess.FreeShipping()) })

		if code := sess.SuggestedCode(); code != "" {
			e.Field("suggestedCode", func(e *jx.Encoder) { e.Str(code) })
		}

		if !res.Changes.Empty() {
			e.Field("changes", func(e *jx.Encoder) { encodeChanges(e, res.Changes) })
		}
	})

	writeRaw(w, status, e.Bytes())
}

func encodeLine(e *jx.Encoder, line cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(line.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(line.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { e.Str(line.UnitPrice.StringFixed(2)) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(line.Quantity) })
		if line.FreeQuantity > 0 {
			e.Field("freeQuantity", func(e *jx.Encoder) { e.Int(line.FreeQuantity) })
		}
		if line.FreeItem {
			e.Field("freeItem", func(e *jx.Encoder) { e.Bool(true) })
		}
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.ChargeableQuantity())))
		e.Field("lineTotal", func(e *jx.Encoder) { e.Str(lineTotal.StringFixed(2)) })
	})
}

func encodeApplied(e *jx.Encoder, a cart.Applied) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(a.Promotion.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(a.Promotion.Name) })
		if a.Code != "" {
			e.Field("code", func(e *jx.Encoder) { e.Str(a.Code) })
		}
		e.Field("autoApplied", func(e *jx.Encoder) { e.Bool(a.AutoApplied) })
		e.Field("discount", func(e *jx.Encoder) { e.Str(a.DiscountAmount().StringFixed(2)) })
	})
}

func encodeChanges(e *jx.Encoder, ch cart.Changes) {
	e.Obj(func(e *jx.Encoder) {
		if ch.ManualRemoved != "" {
			e.Field("removedCode", func(e *jx.Encoder) { e.Str(ch.ManualRemoved) })
		}
		if len(ch.AutoAttached) > 0 {
			e.Field("autoApplied", func(e *jx.Encoder) { encodeStrings(e, ch.AutoAttached) })
		}
		if len(ch.AutoDetached) > 0 {
			e.Field("autoRemoved", func(e *jx.Encoder) { encodeStrings(e, ch.AutoDetached) })
		}
	})
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range values {
			e.Str(v)
		}
	})
}

// writeError maps domain errors to a status code and a machine-readable
// reason. Unknown errors surface as 500 after being logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		reason string
	)
	switch {
	case errors.Is(err, promotion.ErrNotFound):
		status, reason = http.StatusNotFound, reasonNotFound
	case errors.Is(err, promotion.ErrExpired):
		status, reason = http.StatusGone, reasonExpired
	case errors.Is(err, promotion.ErrIneligible):
		status, reason = http.StatusUnprocessableEntity, reasonIneligible
	case errors.Is(err, promotion.ErrUsageExceeded):
		status, reason = http.StatusConflict, reasonUsageExceeded
	case errors.Is(err, product.ErrNotFound):
		status, reason = http.StatusNotFound, reasonNotFound
	case errors.Is(err, checkout.ErrEmptyCart):
		status, reason = http.StatusBadRequest, "EMPTY_CART"
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		status, reason = http.StatusInternalServerError, "INTERNAL"
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("reason", func(e *jx.Encoder) { e.Str(reason) })
		e.Field("message", func(e *jx.Encoder) { e.Str(err.Error()) })
	})
	writeRaw(w, status, e.Bytes())
}

func writeBadRequest(w http.ResponseWriter, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("reason", func(e *jx.Encoder) { e.Str("BAD_REQUEST") })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	writeRaw(w, http.StatusBadRequest, e.Bytes())
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
