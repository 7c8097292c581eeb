package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

const unpaidOrderColumns = `id, order_id, customer_name, customer_phone, table_number, total_amount, items_summary, notes, created_at`

func scanUnpaidOrder(row pgx.Row) (UnpaidOrder, error) {
	var i UnpaidOrder
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.CustomerName,
		&i.CustomerPhone,
		&i.TableNumber,
		&i.TotalAmount,
		&i.ItemsSummary,
		&i.Notes,
		&i.CreatedAt,
	)
	return i, err
}

const createUnpaidOrder = `-- name: CreateUnpaidOrder :one
INSERT INTO unpaid_orders (order_id, customer_name, customer_phone, table_number, total_amount, items_summary, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + unpaidOrderColumns

type CreateUnpaidOrderParams struct {
	OrderID       uuid.UUID      `json:"order_id"`
	CustomerName  string         `json:"customer_name"`
	CustomerPhone pgtype.Text    `json:"customer_phone"`
	TableNumber   pgtype.Text    `json:"table_number"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
	ItemsSummary  []byte         `json:"items_summary"`
	Notes         pgtype.Text    `json:"notes"`
}

func (q *Queries) CreateUnpaidOrder(ctx context.Context, arg CreateUnpaidOrderParams) (UnpaidOrder, error) {
	i, err := scanUnpaidOrder(q.db.QueryRow(ctx, createUnpaidOrder,
		arg.OrderID,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.TableNumber,
		arg.TotalAmount,
		arg.ItemsSummary,
		arg.Notes,
	))
	return i, errors.Wrap(err, "create unpaid order")
}

const getUnpaidOrder = `-- name: GetUnpaidOrder :one
SELECT ` + unpaidOrderColumns + ` FROM unpaid_orders WHERE id = $1`

func (q *Queries) GetUnpaidOrder(ctx context.Context, id uuid.UUID) (UnpaidOrder, error) {
	i, err := scanUnpaidOrder(q.db.QueryRow(ctx, getUnpaidOrder, id))
	return i, errors.Wrap(err, "get unpaid order")
}

const getUnpaidOrderForUpdate = `-- name: GetUnpaidOrderForUpdate :one
SELECT ` + unpaidOrderColumns + ` FROM unpaid_orders WHERE id = $1 FOR UPDATE`

func (q *Queries) GetUnpaidOrderForUpdate(ctx context.Context, id uuid.UUID) (UnpaidOrder, error) {
	i, err := scanUnpaidOrder(q.db.QueryRow(ctx, getUnpaidOrderForUpdate, id))
	return i, errors.Wrap(err, "lock unpaid order")
}

const getUnpaidOrderByOrder = `-- name: GetUnpaidOrderByOrder :one
SELECT ` + unpaidOrderColumns + ` FROM unpaid_orders WHERE order_id = $1`

func (q *Queries) GetUnpaidOrderByOrder(ctx context.Context, orderID uuid.UUID) (UnpaidOrder, error) {
	i, err := scanUnpaidOrder(q.db.QueryRow(ctx, getUnpaidOrderByOrder, orderID))
	return i, errors.Wrap(err, "get unpaid order by order")
}

const listUnpaidOrders = `-- name: ListUnpaidOrders :many
SELECT ` + unpaidOrderColumns + ` FROM unpaid_orders ORDER BY created_at DESC, id`

func (q *Queries) ListUnpaidOrders(ctx context.Context) ([]UnpaidOrder, error) {
	rows, err := q.db.Query(ctx, listUnpaidOrders)
	if err != nil {
		return nil, errors.Wrap(err, "list unpaid orders")
	}
	defer rows.Close()
	items := []UnpaidOrder{}
	for rows.Next() {
		i, err := scanUnpaidOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan unpaid order")
		}
		items = append(items, i)
	}
	return items, errors.Wrap(rows.Err(), "list unpaid orders")
}

const deleteUnpaidOrder = `-- name: DeleteUnpaidOrder :execrows
DELETE FROM unpaid_orders WHERE id = $1`

func (q *Queries) DeleteUnpaidOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteUnpaidOrder, id)
	if err != nil {
		return 0, errors.Wrap(err, "delete unpaid order")
	}
	return tag.RowsAffected(), nil
}
