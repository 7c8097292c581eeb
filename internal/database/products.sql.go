package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

const productColumns = `id, name, price, stock_quantity, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.StockQuantity,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (name, price, is_active)
VALUES ($1, $2, $3)
RETURNING ` + productColumns

type CreateProductParams struct {
	Name     string         `json:"name"`
	Price    pgtype.Numeric `json:"price"`
	IsActive bool           `json:"is_active"`
}

// CreateProduct inserts a product with zero stock. Opening stock is booked
// through the stock ledger so the counter and the log start in agreement.
func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	i, err := scanProduct(q.db.QueryRow(ctx, createProduct, arg.Name, arg.Price, arg.IsActive))
	return i, errors.Wrap(err, "create product")
}

const getProduct = `-- name: GetProduct :one
SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	i, err := scanProduct(q.db.QueryRow(ctx, getProduct, id))
	return i, errors.Wrap(err, "get product")
}

const getProductForUpdate = `-- name: GetProductForUpdate :one
SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

// GetProductForUpdate row-locks the product until the transaction ends.
// The stock check and the decrement must both run under this lock.
func (q *Queries) GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error) {
	i, err := scanProduct(q.db.QueryRow(ctx, getProductForUpdate, id))
	return i, errors.Wrap(err, "lock product")
}

const listProducts = `-- name: ListProducts :many
SELECT ` + productColumns + ` FROM products
WHERE ($1::boolean IS FALSE OR is_active)
ORDER BY name`

func (q *Queries) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, activeOnly)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		i, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		items = append(items, i)
	}
	return items, errors.Wrap(rows.Err(), "list products")
}

const applyStockDelta = `-- name: ApplyStockDelta :one
UPDATE products
SET stock_quantity = stock_quantity + $2, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

type ApplyStockDeltaParams struct {
	ID    uuid.UUID `json:"id"`
	Delta int32     `json:"delta"`
}

// ApplyStockDelta is only called by the stock ledger, always paired with
// CreateInventoryTransaction in the same transaction.
func (q *Queries) ApplyStockDelta(ctx context.Context, arg ApplyStockDeltaParams) (Product, error) {
	i, err := scanProduct(q.db.QueryRow(ctx, applyStockDelta, arg.ID, arg.Delta))
	return i, errors.Wrap(err, "apply stock delta")
}
