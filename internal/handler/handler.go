// Package handler exposes the POS services over JSON HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/kart-pos/internal/domain/auth"
	"github.com/xenking/kart-pos/internal/domain/cart"
	"github.com/xenking/kart-pos/internal/domain/checkout"
	"github.com/xenking/kart-pos/internal/domain/discount"
	"github.com/xenking/kart-pos/internal/domain/inventory"
	"github.com/xenking/kart-pos/internal/domain/order"
	"github.com/xenking/kart-pos/internal/domain/product"
	"github.com/xenking/kart-pos/pkg/httpmiddleware"
)

// Products is the catalog service.
type Products interface {
	List(ctx context.Context) ([]product.Product, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Create(ctx context.Context, req product.CreateRequest) (*product.Product, error)
	Delete(ctx context.Context, id string) error
}

// Stock is the inventory ledger.
type Stock interface {
	Set(ctx context.Context, productID string, stock int, ref string) error
	Movements(ctx context.Context, productID string, limit int) ([]inventory.Movement, error)
}

// Discounts is the discount administration service.
type Discounts interface {
	List(ctx context.Context) ([]discount.Discount, error)
	Get(ctx context.Context, id string) (*discount.Discount, error)
	Create(ctx context.Context, in discount.Input) (*discount.Discount, error)
	Update(ctx context.Context, id string, in discount.Input) (*discount.Discount, error)
	Delete(ctx context.Context, id string) error
}

// Carts is the cart store.
type Carts interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	Add(ctx context.Context, userID string, reqs []cart.AddRequest) ([]cart.Item, error)
	Remove(ctx context.Context, userID, itemID string) error
}

// Checkout converts carts into orders.
type Checkout interface {
	Checkout(ctx context.Context, userID string, req checkout.Request) (*order.Order, error)
}

// Orders is the order query and workflow service.
type Orders interface {
	List(ctx context.Context, f order.Filter) ([]order.Order, error)
	ListView(ctx context.Context, v order.View, f order.Filter) ([]order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
	UpdateKitchenStatus(ctx context.Context, id string, kitchen order.KitchenStatus) (*order.Order, error)
}

// Verifier authenticates bearer tokens.
type Verifier interface {
	Verify(raw string) (auth.Identity, error)
}

// Deps are the services a Handler delegates to.
type Deps struct {
	Products  Products
	Stock     Stock
	Discounts Discounts
	Carts     Carts
	Checkout  Checkout
	Orders    Orders
	Tokens    Verifier
}

// Handler serves the /api routes.
type Handler struct {
	products  Products
	stock     Stock
	discounts Discounts
	carts     Carts
	checkout  Checkout
	orders    Orders
	tokens    Verifier
}

// New creates a Handler.
func New(deps Deps) *Handler {
	return &Handler{
		products:  deps.Products,
		stock:     deps.Stock,
		discounts: deps.Discounts,
		carts:     deps.Carts,
		checkout:  deps.Checkout,
		orders:    deps.Orders,
		tokens:    deps.Tokens,
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	user := func(fn handlerFunc) http.Handler { return h.authenticate(h.handle(fn)) }
	admin := func(fn handlerFunc) http.Handler { return h.authenticate(h.requireAdmin(h.handle(fn))) }
	noCache := httpmiddleware.NoCache()

	mux.Handle("GET /api/products", user(h.listProducts))
	mux.Handle("POST /api/products", admin(h.createProduct))
	mux.Handle("GET /api/products/{id}", user(h.getProduct))
	mux.Handle("DELETE /api/products/{id}", admin(h.deleteProduct))
	mux.Handle("PATCH /api/products/{id}/stock", admin(h.setStock))
	mux.Handle("GET /api/products/{id}/stock-movements", user(h.listMovements))

	mux.Handle("GET /api/discounts", user(h.listDiscounts))
	mux.Handle("POST /api/discounts", admin(h.createDiscount))
	mux.Handle("GET /api/discounts/{id}", user(h.getDiscount))
	mux.Handle("PUT /api/discounts/{id}", admin(h.updateDiscount))
	mux.Handle("DELETE /api/discounts/{id}", admin(h.deleteDiscount))

	mux.Handle("GET /api/cart", user(h.getCart))
	mux.Handle("POST /api/cart/add", user(h.addToCart))
	mux.Handle("DELETE /api/cart/remove/{cartItemId}", user(h.removeFromCart))
	mux.Handle("POST /api/cart/checkout", user(h.checkoutCart))

	mux.Handle("GET /api/orders", noCache(user(h.listOrders)))
	mux.Handle("GET /api/orders/views/{view}", noCache(user(h.listOrderView)))
	mux.Handle("GET /api/orders/{id}", user(h.getOrder))
	mux.Handle("PATCH /api/orders/{id}/status", user(h.updateOrderStatus))
	mux.Handle("PATCH /api/orders/{id}/kitchen-status", user(h.updateKitchenStatus))
}

// handlerFunc is an HTTP handler whose error is written by handle.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (h *Handler) handle(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(r.Context(), w, err)
		}
	})
}
