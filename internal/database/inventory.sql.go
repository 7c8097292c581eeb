package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

const inventoryTransactionColumns = `id, product_id, quantity_delta, kind, reference_id, notes, created_at`

func scanInventoryTransaction(row pgx.Row) (InventoryTransaction, error) {
	var i InventoryTransaction
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.QuantityDelta,
		&i.Kind,
		&i.ReferenceID,
		&i.Notes,
		&i.CreatedAt,
	)
	return i, err
}

const createInventoryTransaction = `-- name: CreateInventoryTransaction :one
INSERT INTO inventory_transactions (product_id, quantity_delta, kind, reference_id, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + inventoryTransactionColumns

type CreateInventoryTransactionParams struct {
	ProductID     uuid.UUID   `json:"product_id"`
	QuantityDelta int32       `json:"quantity_delta"`
	Kind          string      `json:"kind"`
	ReferenceID   pgtype.UUID `json:"reference_id"`
	Notes         pgtype.Text `json:"notes"`
}

func (q *Queries) CreateInventoryTransaction(ctx context.Context, arg CreateInventoryTransactionParams) (InventoryTransaction, error) {
	i, err := scanInventoryTransaction(q.db.QueryRow(ctx, createInventoryTransaction,
		arg.ProductID,
		arg.QuantityDelta,
		arg.Kind,
		arg.ReferenceID,
		arg.Notes,
	))
	return i, errors.Wrap(err, "create inventory transaction")
}

const listInventoryTransactionsByProduct = `-- name: ListInventoryTransactionsByProduct :many
SELECT ` + inventoryTransactionColumns + ` FROM inventory_transactions
WHERE product_id = $1
ORDER BY created_at, id`

func (q *Queries) ListInventoryTransactionsByProduct(ctx context.Context, productID uuid.UUID) ([]InventoryTransaction, error) {
	rows, err := q.db.Query(ctx, listInventoryTransactionsByProduct, productID)
	if err != nil {
		return nil, errors.Wrap(err, "list inventory transactions")
	}
	defer rows.Close()
	items := []InventoryTransaction{}
	for rows.Next() {
		i, err := scanInventoryTransaction(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan inventory transaction")
		}
		items = append(items, i)
	}
	return items, errors.Wrap(rows.Err(), "list inventory transactions")
}

const listStockDiscrepancies = `-- name: ListStockDiscrepancies :many
SELECT p.id, p.name, p.stock_quantity, COALESCE(SUM(t.quantity_delta), 0)::bigint AS ledger_quantity
FROM products p
LEFT JOIN inventory_transactions t ON t.product_id = p.id
GROUP BY p.id, p.name, p.stock_quantity
HAVING p.stock_quantity <> COALESCE(SUM(t.quantity_delta), 0)
ORDER BY p.name`

// ListStockDiscrepancies returns the products whose stock counter differs
// from the sum of their ledger deltas. A healthy ledger returns an empty slice.
func (q *Queries) ListStockDiscrepancies(ctx context.Context) ([]StockDiscrepancy, error) {
	rows, err := q.db.Query(ctx, listStockDiscrepancies)
	if err != nil {
		return nil, errors.Wrap(err, "list stock discrepancies")
	}
	defer rows.Close()
	items := []StockDiscrepancy{}
	for rows.Next() {
		var i StockDiscrepancy
		if err := rows.Scan(&i.ProductID, &i.Name, &i.StockQuantity, &i.LedgerQuantity); err != nil {
			return nil, errors.Wrap(err, "scan stock discrepancy")
		}
		items = append(items, i)
	}
	return items, errors.Wrap(rows.Err(), "list stock discrepancies")
}
