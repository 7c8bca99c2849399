package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-pos/internal/domain/discount"
)

func (h *Handler) listDiscounts(w http.ResponseWriter, r *http.Request) error {
	ds, err := h.discounts.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range ds {
				encodeDiscount(e, &ds[i])
			}
		})
	})
	return nil
}

func (h *Handler) getDiscount(w http.ResponseWriter, r *http.Request) error {
	d, err := h.discounts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDiscount(e, d) })
	return nil
}

func (h *Handler) createDiscount(w http.ResponseWriter, r *http.Request) error {
	in, err := decodeDiscountInput(w, r)
	if err != nil {
		return err
	}
	d, err := h.discounts.Create(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeDiscount(e, d) })
	return nil
}

func (h *Handler) updateDiscount(w http.ResponseWriter, r *http.Request) error {
	in, err := decodeDiscountInput(w, r)
	if err != nil {
		return err
	}
	d, err := h.discounts.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeDiscount(e, d) })
	return nil
}

func (h *Handler) deleteDiscount(w http.ResponseWriter, r *http.Request) error {
	if err := h.discounts.Delete(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func decodeDiscountInput(w http.ResponseWriter, r *http.Request) (discount.Input, error) {
	in := discount.Input{Active: true}
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			in.Name, err = d.Str()
		case "type", "kind":
			var k string
			k, err = d.Str()
			in.Kind = discount.Kind(k)
		case "value":
			in.Value, err = decodeDecimal(d, "value")
		case "starts_at":
			in.StartsAt, err = decodeOptTime(d, "starts_at")
		case "ends_at":
			in.EndsAt, err = decodeOptTime(d, "ends_at")
		case "product_id":
			in.ProductID, err = decodeOptString(d)
		case "active":
			in.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

func encodeDiscount(e *jx.Encoder, d *discount.Discount) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(d.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(d.Name) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(d.Kind)) })
		e.Field("value", func(e *jx.Encoder) { encodeDecimal(e, d.Value) })
		e.Field("starts_at", func(e *jx.Encoder) { encodeOptTime(e, d.StartsAt) })
		e.Field("ends_at", func(e *jx.Encoder) { encodeOptTime(e, d.EndsAt) })
		e.Field("product_id", func(e *jx.Encoder) { encodeOptString(e, d.ProductID) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(d.Active) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, d.CreatedAt) })
	})
}
