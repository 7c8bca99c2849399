package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-pos/internal/domain/fault"
	"github.com/xenking/kart-pos/internal/domain/order"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) error {
	f, err := parseFilter(r)
	if err != nil {
		return err
	}
	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		return err
	}
	writeOrders(w, orders)
	return nil
}

func (h *Handler) listOrderView(w http.ResponseWriter, r *http.Request) error {
	f, err := parseFilter(r)
	if err != nil {
		return err
	}
	orders, err := h.orders.ListView(r.Context(), order.View(r.PathValue("view")), f)
	if err != nil {
		return err
	}
	writeOrders(w, orders)
	return nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) error {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) error {
	var status string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		status, err = d.Str()
		return err
	})
	if err != nil {
		return err
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), order.Status(strings.TrimSpace(status)))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

func (h *Handler) updateKitchenStatus(w http.ResponseWriter, r *http.Request) error {
	var status string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "kitchenStatus", "kitchen_status":
			var err error
			status, err = d.Str()
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}

	o, err := h.orders.UpdateKitchenStatus(r.Context(), r.PathValue("id"), order.KitchenStatus(strings.TrimSpace(status)))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

// parseFilter reads order filters from the query string. Values are
// validated by order.Filter.Normalize.
func parseFilter(r *http.Request) (order.Filter, error) {
	q := r.URL.Query()
	f := order.Filter{
		Search:        q.Get("search"),
		OrderType:     q.Get("order_type"),
		PaymentMethod: q.Get("payment_method"),
		Status:        order.Status(q.Get("status")),
		KitchenStatus: order.KitchenStatus(q.Get("kitchenStatus")),
	}
	if f.KitchenStatus == "" {
		f.KitchenStatus = order.KitchenStatus(q.Get("kitchen_status"))
	}
	for _, v := range q["status_not"] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.StatusNot = append(f.StatusNot, order.Status(s))
			}
		}
	}
	if raw := q.Get("date"); raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return order.Filter{}, fault.Invalid("date must be YYYY-MM-DD")
		}
		f.Date = &day
	}

	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return order.Filter{}, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return order.Filter{}, err
	}
	return f, nil
}

func writeOrders(w http.ResponseWriter, orders []order.Order) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("order_type", func(e *jx.Encoder) { e.Str(o.OrderType) })
		e.Field("customer_name", func(e *jx.Encoder) { e.Str(o.CustomerName) })
		e.Field("staff_name", func(e *jx.Encoder) { e.Str(o.StaffName) })
		e.Field("total_price", func(e *jx.Encoder) { encodeDecimal(e, o.TotalPrice) })
		e.Field("discount_type", func(e *jx.Encoder) { e.Str(o.DiscountType) })
		e.Field("discount_value", func(e *jx.Encoder) { encodeDecimal(e, o.DiscountValue) })
		e.Field("discount_amount", func(e *jx.Encoder) { encodeDecimal(e, o.DiscountAmount) })
		e.Field("final_price", func(e *jx.Encoder) { encodeDecimal(e, o.FinalPrice) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("amount_paid", func(e *jx.Encoder) { encodeDecimal(e, o.AmountPaid) })
		e.Field("change", func(e *jx.Encoder) { encodeDecimal(e, o.Change) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("kitchen_status", func(e *jx.Encoder) { e.Str(string(o.KitchenStatus)) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range o.Items {
					encodeOrderItem(e, &o.Items[i])
				}
			})
		})
	})
}

func encodeOrderItem(e *jx.Encoder, it *order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
		e.Field("product_id", func(e *jx.Encoder) { encodeOptString(e, it.ProductID) })
		e.Field("product_name", func(e *jx.Encoder) { e.Str(it.ProductName) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("unit_price", func(e *jx.Encoder) { encodeDecimal(e, it.UnitPrice) })
		e.Field("line_total", func(e *jx.Encoder) { encodeDecimal(e, it.LineTotal) })
	})
}
