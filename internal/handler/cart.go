package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-pos/internal/domain/auth"
	"github.com/xenking/kart-pos/internal/domain/cart"
	"github.com/xenking/kart-pos/internal/domain/checkout"
	"github.com/xenking/kart-pos/internal/domain/fault"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) error {
	who, err := caller(r)
	if err != nil {
		return err
	}
	c, err := h.carts.Get(r.Context(), who.UserID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
	return nil
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) error {
	who, err := caller(r)
	if err != nil {
		return err
	}

	var (
		userID string
		reqs   []cart.AddRequest
	)
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "userId", "user_id":
			var err error
			userID, err = d.Str()
			return err
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				var req cart.AddRequest
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "productId", "product_id":
						req.ProductID, err = d.Str()
					case "quantity":
						req.Quantity, err = d.Int()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				reqs = append(reqs, req)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		return fault.Invalid("products must not be empty")
	}

	switch {
	case userID == "":
		userID = who.UserID
	case userID != who.UserID && !who.IsAdmin():
		return auth.ErrForbidden
	}

	items, err := h.carts.Add(r.Context(), userID, reqs)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range items {
				encodeCartItem(e, &items[i])
			}
		})
	})
	return nil
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) error {
	who, err := caller(r)
	if err != nil {
		return err
	}
	if err := h.carts.Remove(r.Context(), who.UserID, r.PathValue("cartItemId")); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str("item removed from cart") })
		})
	})
	return nil
}

func (h *Handler) checkoutCart(w http.ResponseWriter, r *http.Request) error {
	who, err := caller(r)
	if err != nil {
		return err
	}

	var (
		req     checkout.Request
		hasPaid bool
	)
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "order_type":
			req.OrderType, err = decodeRaw(d)
		case "customer_name":
			req.CustomerName, err = decodeRaw(d)
		case "discount_type":
			req.DiscountType, err = decodeRaw(d)
		case "discount_value":
			req.DiscountValue, err = decodeRaw(d)
		case "payment_method":
			req.PaymentMethod, err = decodeRaw(d)
		case "amount_paid":
			req.AmountPaid, err = decodeDecimal(d, "amount_paid")
			hasPaid = true
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	if !hasPaid {
		return fault.Invalid("amount_paid is required")
	}

	o, err := h.checkout.Checkout(r.Context(), who.UserID, req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

func encodeCartItem(e *jx.Encoder, it *cart.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(it.UserID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("unit_price", func(e *jx.Encoder) { encodeDecimal(e, it.UnitPrice) })
		e.Field("line_total", func(e *jx.Encoder) { encodeDecimal(e, it.LineTotal) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, it.CreatedAt) })
	})
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("user_id", func(e *jx.Encoder) { e.Str(c.UserID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range c.Lines {
					encodeCartLine(e, &c.Lines[i])
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, c.Total) })
	})
}

func encodeCartLine(e *jx.Encoder, l *cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(l.Item.ID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Item.Quantity) })
		e.Field("product", func(e *jx.Encoder) { encodeProduct(e, &l.Product) })
		e.Field("discount", func(e *jx.Encoder) {
			if l.Discount == nil {
				e.Null()
				return
			}
			encodeDiscount(e, l.Discount)
		})
		e.Field("unit_price", func(e *jx.Encoder) { encodeDecimal(e, l.UnitPrice) })
		e.Field("line_total", func(e *jx.Encoder) { encodeDecimal(e, l.LineTotal) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, l.Item.CreatedAt) })
	})
}
