package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

const orderColumns = `id, order_number, customer_id, table_id, subtotal, discount_amount, final_amount,
	payment_method, payment_status, order_status, is_combined, combined_into_order_id,
	notes, cashier_name, created_at, updated_at`

// openOrderFilter selects orders that still owe money through the table flow:
// unsettled, not folded into a combined bill and not parked in unpaid_orders.
const openOrderFilter = `order_status IN ('active', 'completed')
	AND payment_status <> 'completed'
	AND combined_into_order_id IS NULL
	AND NOT EXISTS (SELECT 1 FROM unpaid_orders u WHERE u.order_id = orders.id)`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.CustomerID,
		&i.TableID,
		&i.Subtotal,
		&i.DiscountAmount,
		&i.FinalAmount,
		&i.PaymentMethod,
		&i.PaymentStatus,
		&i.OrderStatus,
		&i.IsCombined,
		&i.CombinedIntoOrderID,
		&i.Notes,
		&i.CashierName,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrders(rows pgx.Rows, op string) ([]Order, error) {
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		items = append(items, i)
	}
	return items, errors.Wrap(rows.Err(), op)
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT (COUNT(*) + 1)::int FROM orders
WHERE NOT is_combined AND created_at >= $1 AND created_at < $1 + interval '1 day'`

// GetNextOrderNumber returns the next daily sequence number. Concurrent
// callers may receive the same value; the unique constraint on order_number
// rejects the loser, which retries.
func (q *Queries) GetNextOrderNumber(ctx context.Context, day time.Time) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextOrderNumber, day).Scan(&n)
	return n, errors.Wrap(err, "get next order number")
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
	order_number, customer_id, table_id, subtotal, discount_amount, final_amount,
	payment_method, payment_status, order_status, is_combined, notes, cashier_name
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber    string         `json:"order_number"`
	CustomerID     pgtype.UUID    `json:"customer_id"`
	TableID        pgtype.UUID    `json:"table_id"`
	Subtotal       pgtype.Numeric `json:"subtotal"`
	DiscountAmount pgtype.Numeric `json:"discount_amount"`
	FinalAmount    pgtype.Numeric `json:"final_amount"`
	PaymentMethod  pgtype.Text    `json:"payment_method"`
	PaymentStatus  string         `json:"payment_status"`
	OrderStatus    string         `json:"order_status"`
	IsCombined     bool           `json:"is_combined"`
	Notes          pgtype.Text    `json:"notes"`
	CashierName    pgtype.Text    `json:"cashier_name"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	i, err := scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.CustomerID,
		arg.TableID,
		arg.Subtotal,
		arg.DiscountAmount,
		arg.FinalAmount,
		arg.PaymentMethod,
		arg.PaymentStatus,
		arg.OrderStatus,
		arg.IsCombined,
		arg.Notes,
		arg.CashierName,
	))
	return i, errors.Wrap(err, "create order")
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	i, err := scanOrder(q.db.QueryRow(ctx, getOrder, id))
	return i, errors.Wrap(err, "get order")
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	i, err := scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
	return i, errors.Wrap(err, "lock order")
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR order_status = $1)
  AND ($2::text IS NULL OR payment_status = $2)
  AND ($3::uuid IS NULL OR table_id = $3)
ORDER BY created_at DESC, id
LIMIT $4 OFFSET $5`

type ListOrdersParams struct {
	OrderStatus   pgtype.Text `json:"order_status"`
	PaymentStatus pgtype.Text `json:"payment_status"`
	TableID       pgtype.UUID `json:"table_id"`
	Limit         int32       `json:"limit"`
	Offset        int32       `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.OrderStatus,
		arg.PaymentStatus,
		arg.TableID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return collectOrders(rows, "list orders")
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET order_status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID          uuid.UUID `json:"id"`
	OrderStatus string    `json:"order_status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	i, err := scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.OrderStatus))
	return i, errors.Wrap(err, "update order status")
}

const settleOrder = `-- name: SettleOrder :one
UPDATE orders
SET order_status = 'completed',
    payment_status = 'completed',
    payment_method = COALESCE(payment_method, $2),
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type SettleOrderParams struct {
	ID            uuid.UUID `json:"id"`
	PaymentMethod string    `json:"payment_method"`
}

// SettleOrder closes an order through table settlement: both axes move to completed.
func (q *Queries) SettleOrder(ctx context.Context, arg SettleOrderParams) (Order, error) {
	i, err := scanOrder(q.db.QueryRow(ctx, settleOrder, arg.ID, arg.PaymentMethod))
	return i, errors.Wrap(err, "settle order")
}

const markOrderPaid = `-- name: MarkOrderPaid :one
UPDATE orders
SET payment_status = 'completed',
    payment_method = COALESCE(payment_method, $2),
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID            uuid.UUID `json:"id"`
	PaymentMethod string    `json:"payment_method"`
}

// MarkOrderPaid only moves the payment axis; order_status is left alone.
func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	i, err := scanOrder(q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.PaymentMethod))
	return i, errors.Wrap(err, "mark order paid")
}

const listOpenOrdersByTableForUpdate = `-- name: ListOpenOrdersByTableForUpdate :many
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND NOT is_combined AND ` + openOrderFilter + `
ORDER BY created_at, id
FOR UPDATE`

// ListOpenOrdersByTableForUpdate locks the table's open, non-combined orders
// in creation order.
func (q *Queries) ListOpenOrdersByTableForUpdate(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOpenOrdersByTableForUpdate, tableID)
	if err != nil {
		return nil, errors.Wrap(err, "list open orders")
	}
	return collectOrders(rows, "list open orders")
}

const getPendingCombinedOrderByTable = `-- name: GetPendingCombinedOrderByTable :one
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND is_combined AND ` + openOrderFilter + `
FOR UPDATE`

func (q *Queries) GetPendingCombinedOrderByTable(ctx context.Context, tableID uuid.UUID) (Order, error) {
	i, err := scanOrder(q.db.QueryRow(ctx, getPendingCombinedOrderByTable, tableID))
	return i, errors.Wrap(err, "get pending combined order")
}

const markOrderCombined = `-- name: MarkOrderCombined :execrows
UPDATE orders SET combined_into_order_id = $2, updated_at = now()
WHERE id = $1 AND combined_into_order_id IS NULL AND NOT is_combined`

type MarkOrderCombinedParams struct {
	ID                  uuid.UUID `json:"id"`
	CombinedIntoOrderID uuid.UUID `json:"combined_into_order_id"`
}

// MarkOrderCombined sets the back-reference only if none exists yet and
// reports how many rows it changed (0 or 1).
func (q *Queries) MarkOrderCombined(ctx context.Context, arg MarkOrderCombinedParams) (int64, error) {
	tag, err := q.db.Exec(ctx, markOrderCombined, arg.ID, arg.CombinedIntoOrderID)
	if err != nil {
		return 0, errors.Wrap(err, "mark order combined")
	}
	return tag.RowsAffected(), nil
}

const unfoldCombinedOrder = `-- name: UnfoldCombinedOrder :execrows
UPDATE orders SET combined_into_order_id = NULL, updated_at = now()
WHERE combined_into_order_id = $1`

// UnfoldCombinedOrder detaches every order folded into combinedOrderID.
func (q *Queries) UnfoldCombinedOrder(ctx context.Context, combinedOrderID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, unfoldCombinedOrder, combinedOrderID)
	if err != nil {
		return 0, errors.Wrap(err, "unfold combined order")
	}
	return tag.RowsAffected(), nil
}

const listOrdersCombinedInto = `-- name: ListOrdersCombinedInto :many
SELECT ` + orderColumns + ` FROM orders
WHERE combined_into_order_id = $1
ORDER BY created_at, id
FOR UPDATE`

func (q *Queries) ListOrdersCombinedInto(ctx context.Context, combinedOrderID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersCombinedInto, combinedOrderID)
	if err != nil {
		return nil, errors.Wrap(err, "list folded orders")
	}
	return collectOrders(rows, "list folded orders")
}

const countOpenOrdersByTable = `-- name: CountOpenOrdersByTable :one
SELECT COUNT(*) FROM orders
WHERE table_id = $1 AND ` + openOrderFilter

// CountOpenOrdersByTable counts every order still keeping the table busy,
// combined bills included.
func (q *Queries) CountOpenOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countOpenOrdersByTable, tableID).Scan(&n)
	return n, errors.Wrap(err, "count open orders")
}
