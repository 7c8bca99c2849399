// Package checkout turns a user's cart into a paid order.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-pos/internal/domain/cart"
	"github.com/xenking/kart-pos/internal/domain/fault"
	"github.com/xenking/kart-pos/internal/domain/money"
	"github.com/xenking/kart-pos/internal/domain/order"
	"github.com/xenking/kart-pos/internal/domain/user"
)

// Order-level discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// InsufficientPaymentError is returned when the amount paid does not cover
// the final price.
type InsufficientPaymentError struct {
	FinalPrice decimal.Decimal
	AmountPaid decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: final price %s, amount paid %s",
		e.FinalPrice.StringFixed(2), e.AmountPaid.StringFixed(2))
}

// FaultKind implements fault.Kinded.
func (e *InsufficientPaymentError) FaultKind() fault.Kind { return fault.KindInvalid }

// Request holds the checkout input. DiscountValue is kept raw: a value that
// does not parse as a number counts as no discount.
type Request struct {
	OrderType     string
	CustomerName  string
	DiscountType  string
	DiscountValue string
	PaymentMethod string
	AmountPaid    decimal.Decimal
}

// Validate checks the request fields and fills defaults.
func (r *Request) Validate() error {
	r.OrderType = strings.TrimSpace(r.OrderType)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.DiscountType = strings.ToLower(strings.TrimSpace(r.DiscountType))
	r.PaymentMethod = strings.TrimSpace(r.PaymentMethod)

	if r.OrderType == "" {
		r.OrderType = order.DefaultOrderType
	}
	switch {
	case r.PaymentMethod == "":
		return fault.Invalid("payment_method is required")
	case r.AmountPaid.IsNegative():
		return fault.Invalid("amount_paid must not be negative")
	}
	if err := money.Check("amount_paid", r.AmountPaid); err != nil {
		return err
	}
	if v, ok := r.discountValue(); ok {
		return money.Check("discount_value", v)
	}
	return nil
}

// discountValue parses DiscountValue, reporting false when it is not a
// number.
func (r *Request) discountValue() (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(strings.TrimSpace(r.DiscountValue))
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// OrderDiscount computes the order-level discount on total. Unknown types
// and non-numeric values yield zero; the result is clamped to [0, total].
func OrderDiscount(total decimal.Decimal, kind, value string) decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch kind {
	case DiscountPercentage:
		amount = v.Div(decimal.NewFromInt(100)).Mul(total)
	case DiscountFixed:
		amount = v
	default:
		return decimal.Zero
	}

	switch {
	case amount.IsNegative():
		amount = decimal.Zero
	case amount.GreaterThan(total):
		amount = total
	}
	return amount.Round(2)
}

// CartStore is the part of the cart persistence checkout consumes.
type CartStore interface {
	ListByUserForUpdate(ctx context.Context, userID string) ([]cart.Item, error)
	// DeleteItems removes the given items of userID and returns how many
	// were removed.
	DeleteItems(ctx context.Context, userID string, ids []string) (int64, error)
}

// OrderWriter stores new orders.
type OrderWriter interface {
	Create(ctx context.Context, o *order.Order) error
	AddItems(ctx context.Context, items []order.Item) error
}

// UserReader looks up users.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// Transactor runs fn inside a single database transaction carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Engine runs checkouts.
type Engine struct {
	carts  CartStore
	orders OrderWriter
	users  UserReader
	pricer *cart.Pricer
	tx     Transactor
	now    func() time.Time

	tracer     trace.Tracer
	orderCount metric.Int64Counter
	finalPrice metric.Float64Histogram
}

// NewEngine creates a checkout Engine.
func NewEngine(
	carts CartStore,
	orders OrderWriter,
	users UserReader,
	pricer *cart.Pricer,
	tx Transactor,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Engine, error) {
	meter := mp.Meter("pos/checkout")
	orderCount, err := meter.Int64Counter("pos.checkout.orders",
		metric.WithDescription("Checkouts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create order counter")
	}
	finalPrice, err := meter.Float64Histogram("pos.checkout.final_price",
		metric.WithDescription("Final price of completed checkouts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create final price histogram")
	}

	return &Engine{
		carts:      carts,
		orders:     orders,
		users:      users,
		pricer:     pricer,
		tx:         tx,
		now:        time.Now,
		tracer:     tp.Tracer("pos/checkout"),
		orderCount: orderCount,
		finalPrice: finalPrice,
	}, nil
}

// Checkout converts the user's cart into an order. Lines are repriced live,
// the order-level discount is applied and payment is checked. The order, its
// items and the emptied cart are committed together or not at all.
func (e *Engine) Checkout(ctx context.Context, userID string, req Request) (_ *order.Order, rerr error) {
	ctx, span := e.tracer.Start(ctx, "checkout",
		trace.WithAttributes(attribute.String("pos.user_id", userID)),
	)
	defer func() {
		outcome := "ok"
		if rerr != nil {
			outcome = fault.KindOf(rerr).String()
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		e.orderCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	var o *order.Order
	err := e.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := e.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		items, err := e.carts.ListByUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return cart.ErrEmpty
		}

		now := e.now()
		lines, total, err := e.pricer.Price(ctx, items, now)
		if err != nil {
			return err
		}
		if err := money.Check("order total", total); err != nil {
			return err
		}

		discountAmount := OrderDiscount(total, req.DiscountType, req.DiscountValue)
		finalPrice := total.Sub(discountAmount)
		change := req.AmountPaid.Sub(finalPrice)
		if change.IsNegative() {
			return &InsufficientPaymentError{FinalPrice: finalPrice, AmountPaid: req.AmountPaid}
		}

		discountValue, _ := req.discountValue()

		o = &order.Order{
			ID:             uuid.New().String(),
			UserID:         u.ID,
			OrderType:      req.OrderType,
			CustomerName:   req.CustomerName,
			StaffName:      u.FullName(),
			TotalPrice:     total,
			DiscountType:   req.DiscountType,
			DiscountValue:  discountValue.Round(2),
			DiscountAmount: discountAmount,
			FinalPrice:     finalPrice,
			PaymentMethod:  req.PaymentMethod,
			AmountPaid:     req.AmountPaid.Round(2),
			Change:         change.Round(2),
			Status:         order.StatusPending,
			KitchenStatus:  order.KitchenPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := e.orders.Create(ctx, o); err != nil {
			return err
		}

		o.Items = make([]order.Item, len(lines))
		for i, l := range lines {
			pid := l.Product.ID
			o.Items[i] = order.Item{
				ID:          uuid.New().String(),
				OrderID:     o.ID,
				ProductID:   &pid,
				ProductName: l.Product.Name,
				Quantity:    l.Item.Quantity,
				UnitPrice:   l.UnitPrice,
				LineTotal:   l.LineTotal,
			}
		}
		if err := e.orders.AddItems(ctx, o.Items); err != nil {
			return err
		}

		// Lines added after the lock are not part of this order and stay.
		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}
		n, err := e.carts.DeleteItems(ctx, userID, ids)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return errors.Errorf("cleared %d of %d cart items", n, len(ids))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "checkout")
	}

	span.SetAttributes(
		attribute.String("pos.order_id", o.ID),
		attribute.Int("pos.order_items", len(o.Items)),
	)
	e.finalPrice.Record(ctx, o.FinalPrice.InexactFloat64(),
		metric.WithAttributes(attribute.String("payment_method", o.PaymentMethod)),
	)
	return o, nil
}
