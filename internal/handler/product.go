package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-pos/internal/domain/fault"
	"github.com/xenking/kart-pos/internal/domain/inventory"
	"github.com/xenking/kart-pos/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) error {
	products, err := h.products.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range products {
				encodeProduct(e, &products[i])
			}
		})
	})
	return nil
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) error {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
	return nil
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) error {
	req := product.CreateRequest{Active: true}
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			req.Name, err = d.Str()
		case "price":
			req.Price, err = decodeDecimal(d, "price")
		case "stock":
			req.Stock, err = d.Int()
		case "active":
			req.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}

	p, err := h.products.Create(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, p) })
	return nil
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	var (
		stock  int
		hasVal bool
		note   string
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "stock":
			stock, err = d.Int()
			hasVal = true
		case "note":
			note, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	if !hasVal {
		return fault.Invalid("stock is required")
	}

	who, err := caller(r)
	if err != nil {
		return err
	}
	ref := "admin:" + who.UserID
	if note != "" {
		ref += " " + note
	}
	if err := h.stock.Set(r.Context(), id, stock, ref); err != nil {
		return err
	}

	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
	return nil
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	ms, err := h.stock.Movements(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range ms {
				encodeMovement(e, &ms[i])
			}
		})
	})
	return nil
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(p.Active) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, p.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, p.UpdatedAt) })
	})
}

func encodeMovement(e *jx.Encoder, m *inventory.Movement) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(m.ID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(m.ProductID) })
		e.Field("delta", func(e *jx.Encoder) { e.Int(m.Delta) })
		e.Field("reason", func(e *jx.Encoder) { e.Str(string(m.Reason)) })
		e.Field("ref", func(e *jx.Encoder) { e.Str(m.Ref) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, m.CreatedAt) })
	})
}
