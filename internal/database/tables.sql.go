package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const tableColumns = `id, table_number, status, current_order_id, created_at, updated_at`

func scanTable(row pgx.Row) (CafeTable, error) {
	var i CafeTable
	err := row.Scan(
		&i.ID,
		&i.TableNumber,
		&i.Status,
		&i.CurrentOrderID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createTable = `-- name: CreateTable :one
INSERT INTO cafe_tables (table_number) VALUES ($1)
ON CONFLICT (table_number) DO UPDATE SET table_number = EXCLUDED.table_number
RETURNING ` + tableColumns

// CreateTable is idempotent on table_number.
func (q *Queries) CreateTable(ctx context.Context, tableNumber string) (CafeTable, error) {
	i, err := scanTable(q.db.QueryRow(ctx, createTable, tableNumber))
	return i, errors.Wrap(err, "create table")
}

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + ` FROM cafe_tables WHERE id = $1`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (CafeTable, error) {
	i, err := scanTable(q.db.QueryRow(ctx, getTable, id))
	return i, errors.Wrap(err, "get table")
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + tableColumns + ` FROM cafe_tables WHERE id = $1 FOR UPDATE`

// GetTableForUpdate is the first lock taken by every table-scoped write,
// so combine and settle calls for one table run one at a time.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (CafeTable, error) {
	i, err := scanTable(q.db.QueryRow(ctx, getTableForUpdate, id))
	return i, errors.Wrap(err, "lock table")
}

const listTables = `-- name: ListTables :many
SELECT ` + tableColumns + ` FROM cafe_tables ORDER BY table_number`

func (q *Queries) ListTables(ctx context.Context) ([]CafeTable, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	defer rows.Close()
	items := []CafeTable{}
	for rows.Next() {
		i, err := scanTable(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan table")
		}
		items = append(items, i)
	}
	return items, errors.Wrap(rows.Err(), "list tables")
}

const occupyTable = `-- name: OccupyTable :one
UPDATE cafe_tables SET status = 'occupied', current_order_id = $2, updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

type OccupyTableParams struct {
	ID      uuid.UUID `json:"id"`
	OrderID uuid.UUID `json:"order_id"`
}

func (q *Queries) OccupyTable(ctx context.Context, arg OccupyTableParams) (CafeTable, error) {
	i, err := scanTable(q.db.QueryRow(ctx, occupyTable, arg.ID, arg.OrderID))
	return i, errors.Wrap(err, "occupy table")
}

const releaseTable = `-- name: ReleaseTable :one
UPDATE cafe_tables SET status = 'available', current_order_id = NULL, updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

func (q *Queries) ReleaseTable(ctx context.Context, id uuid.UUID) (CafeTable, error) {
	i, err := scanTable(q.db.QueryRow(ctx, releaseTable, id))
	return i, errors.Wrap(err, "release table")
}
