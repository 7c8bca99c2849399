package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pos/internal/domain/order"
)

const (
	orderColumns = `id, user_id, order_type, customer_name, staff_name, total_price,
		discount_type, discount_value, discount_amount, final_price, payment_method,
		amount_paid, change, status, kitchen_status, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrderItemsSQL = `SELECT id, order_id, product_id, product_name, quantity, unit_price, line_total
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`

	updateOrderStatusSQL = `UPDATE orders
		SET status = $2, kitchen_status = COALESCE(NULLIF($3::text, ''), kitchen_status), updated_at = $4
		WHERE id = $1`

	updateKitchenStatusSQL = `UPDATE orders SET kitchen_status = $2, updated_at = $3 WHERE id = $1`
)

var orderItemColumns = []string{
	"id", "order_id", "line_no", "product_id", "product_name", "quantity", "unit_price", "line_total",
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	conn
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{conn{pool: pool}}
}

// Create persists the order row.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.q(ctx).Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.OrderType, o.CustomerName, o.StaffName, o.TotalPrice,
		o.DiscountType, o.DiscountValue, o.DiscountAmount, o.FinalPrice, o.PaymentMethod,
		o.AmountPaid, o.Change, string(o.Status), string(o.KitchenStatus), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// AddItems bulk-loads order lines with COPY, keeping their order.
func (r *OrderRepository) AddItems(ctx context.Context, items []order.Item) error {
	if len(items) == 0 {
		return nil
	}

	n, err := r.q(ctx).CopyFrom(ctx, pgx.Identifier{"order_items"}, orderItemColumns,
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			return []any{
				it.ID, it.OrderID, i, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.LineTotal,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("adding order items: %w", err)
	}
	if int(n) != len(items) {
		return fmt.Errorf("adding order items: copied %d of %d", n, len(items))
	}
	return nil
}

// Get returns an order with its items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.q(ctx).Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns the orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	sql, args := buildOrderQuery(f)

	rows, err := r.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus sets status, and kitchen status when kitchen is not empty.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, kitchen order.KitchenStatus, at time.Time) error {
	tag, err := r.q(ctx).Exec(ctx, updateOrderStatusSQL, id, string(status), string(kitchen), at)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdateKitchenStatus sets the kitchen status.
func (r *OrderRepository) UpdateKitchenStatus(ctx context.Context, id string, kitchen order.KitchenStatus, at time.Time) error {
	tag, err := r.q(ctx).Exec(ctx, updateKitchenStatusSQL, id, string(kitchen), at)
	if err != nil {
		return fmt.Errorf("updating kitchen status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	idx := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		idx[o.ID] = i
	}

	rows, err := r.q(ctx).Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}

	for _, it := range items {
		i := idx[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return nil
}

// buildOrderQuery renders f as a parameterized SELECT.
func buildOrderQuery(f order.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		where = append(where, "(id ILIKE "+p+" OR customer_name ILIKE "+p+" OR staff_name ILIKE "+p+")")
	}
	if f.OrderType != "" {
		where = append(where, "order_type = "+arg(f.OrderType))
	}
	if f.PaymentMethod != "" {
		where = append(where, "payment_method = "+arg(f.PaymentMethod))
	}
	if f.Date != nil {
		from := *f.Date
		where = append(where, "created_at >= "+arg(from), "created_at < "+arg(from.Add(24*time.Hour)))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if len(f.StatusNot) > 0 {
		not := make([]string, len(f.StatusNot))
		for i, s := range f.StatusNot {
			not[i] = string(s)
		}
		where = append(where, "status <> ALL("+arg(not)+")")
	}
	if f.KitchenStatus != "" {
		where = append(where, "kitchen_status = "+arg(string(f.KitchenStatus)))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(orderColumns)
	b.WriteString(" FROM orders")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		b.WriteString(" OFFSET " + arg(f.Offset))
	}
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		userID        *string
		status        string
		kitchenStatus string
	)
	err := row.Scan(
		&o.ID, &userID, &o.OrderType, &o.CustomerName, &o.StaffName, &o.TotalPrice,
		&o.DiscountType, &o.DiscountValue, &o.DiscountAmount, &o.FinalPrice, &o.PaymentMethod,
		&o.AmountPaid, &o.Change, &status, &kitchenStatus, &o.CreatedAt, &o.UpdatedAt,
	)
	if userID != nil {
		o.UserID = *userID
	}
	o.Status = order.Status(status)
	o.KitchenStatus = order.KitchenStatus(kitchenStatus)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
		&it.Quantity, &it.UnitPrice, &it.LineTotal,
	)
	return it, err
}
