package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	log "github.com/sirupsen/logrus"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
)

// StockLedger owns every change to product stock. Each change moves the
// product counter and appends an inventory transaction in the same
// transaction, so the counter always equals the sum of its ledger.
type StockLedger struct {
	r *runner
}

// ReceiveStockRequest books incoming goods.
type ReceiveStockRequest struct {
	ProductID   string
	Quantity    int32
	ReferenceID string
	Notes       string
}

// AdjustStockRequest books a manual correction (count, waste, breakage).
type AdjustStockRequest struct {
	ProductID string
	Delta     int32
	Notes     string
}

// reserveAndDecrement takes quantity units of a product for an order. The
// row lock is taken here, so concurrent orders for the same product are
// serialized and the second one sees the first one's decrement.
func reserveAndDecrement(ctx context.Context, store Store, productID uuid.UUID, quantity int32, orderID uuid.UUID) (database.Product, error) {
	product, err := store.GetProductForUpdate(ctx, productID)
	if err != nil {
		return database.Product{}, notFoundOr(err, ErrProductNotFound, "lock product")
	}
	if product.StockQuantity < quantity {
		return database.Product{}, &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.StockQuantity,
			Requested:   quantity,
		}
	}
	return applyStockChange(ctx, store, product.ID, -quantity, enum.InventoryKindSale, database.UUID(orderID), pgtype.Text{})
}

// restoreStock returns quantity units taken by an order. reason is recorded
// on the ledger row.
func restoreStock(ctx context.Context, store Store, productID uuid.UUID, quantity int32, reason string, orderID uuid.UUID) (database.Product, error) {
	if _, err := store.GetProductForUpdate(ctx, productID); err != nil {
		return database.Product{}, notFoundOr(err, ErrProductNotFound, "lock product")
	}
	return applyStockChange(ctx, store, productID, quantity, enum.InventoryKindAdjustment, database.UUID(orderID), database.Text(reason))
}

// applyStockChange is the only place that writes stock_quantity.
func applyStockChange(ctx context.Context, store Store, productID uuid.UUID, delta int32, kind string, ref pgtype.UUID, notes pgtype.Text) (database.Product, error) {
	product, err := store.ApplyStockDelta(ctx, database.ApplyStockDeltaParams{ID: productID, Delta: delta})
	if err != nil {
		return database.Product{}, storageError("apply stock delta", err)
	}
	if _, err := store.CreateInventoryTransaction(ctx, database.CreateInventoryTransactionParams{
		ProductID:     productID,
		QuantityDelta: delta,
		Kind:          kind,
		ReferenceID:   ref,
		Notes:         notes,
	}); err != nil {
		return database.Product{}, storageError("record inventory transaction", err)
	}
	return product, nil
}

// ReceiveStock books a purchase and raises the counter.
func (s *StockLedger) ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*database.Product, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, ErrInvalidProductID
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalidStockQuantity
	}
	var ref pgtype.UUID
	if req.ReferenceID != "" {
		id, err := uuid.Parse(req.ReferenceID)
		if err != nil {
			return nil, invalid("invalid reference_id")
		}
		ref = database.UUID(id)
	}

	var product database.Product
	err = s.r.inTx(ctx, "receive stock", func(ctx context.Context, store Store) error {
		if _, err := store.GetProductForUpdate(ctx, productID); err != nil {
			return notFoundOr(err, ErrProductNotFound, "lock product")
		}
		product, err = applyStockChange(ctx, store, productID, req.Quantity, enum.InventoryKindPurchase, ref, database.Text(req.Notes))
		return err
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"product_id": productID, "quantity": req.Quantity, "stock": product.StockQuantity}).Info("stock received")
	return &product, nil
}

// AdjustStock applies a signed correction. A correction that would take the
// counter below zero fails with an InsufficientStockError.
func (s *StockLedger) AdjustStock(ctx context.Context, req AdjustStockRequest) (*database.Product, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, ErrInvalidProductID
	}
	if req.Delta == 0 {
		return nil, ErrInvalidStockDelta
	}

	var product database.Product
	err = s.r.inTx(ctx, "adjust stock", func(ctx context.Context, store Store) error {
		current, err := store.GetProductForUpdate(ctx, productID)
		if err != nil {
			return notFoundOr(err, ErrProductNotFound, "lock product")
		}
		if current.StockQuantity+req.Delta < 0 {
			return &InsufficientStockError{
				ProductID:   current.ID,
				ProductName: current.Name,
				Available:   current.StockQuantity,
				Requested:   -req.Delta,
			}
		}
		product, err = applyStockChange(ctx, store, productID, req.Delta, enum.InventoryKindAdjustment, pgtype.UUID{}, database.Text(req.Notes))
		return err
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"product_id": productID, "delta": req.Delta, "stock": product.StockQuantity}).Info("stock adjusted")
	return &product, nil
}

func (s *StockLedger) ListProducts(ctx context.Context, activeOnly bool) ([]database.Product, error) {
	products, err := s.r.reader().ListProducts(ctx, activeOnly)
	if err != nil {
		return nil, storageError("list products", err)
	}
	return products, nil
}

func (s *StockLedger) GetProduct(ctx context.Context, id string) (*database.Product, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidProductID
	}
	product, err := s.r.reader().GetProduct(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err, ErrProductNotFound, "get product")
	}
	return &product, nil
}

// ListTransactions returns a product's ledger, oldest first.
func (s *StockLedger) ListTransactions(ctx context.Context, id string) ([]database.InventoryTransaction, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidProductID
	}
	store := s.r.reader()
	if _, err := store.GetProduct(ctx, productID); err != nil {
		return nil, notFoundOr(err, ErrProductNotFound, "get product")
	}
	txs, err := store.ListInventoryTransactionsByProduct(ctx, productID)
	if err != nil {
		return nil, storageError("list inventory transactions", err)
	}
	return txs, nil
}

// Reconcile lists products whose counter disagrees with their ledger. An
// empty result means the ledger is consistent.
func (s *StockLedger) Reconcile(ctx context.Context) ([]database.StockDiscrepancy, error) {
	rows, err := s.r.reader().ListStockDiscrepancies(ctx)
	if err != nil {
		return nil, storageError("reconcile stock", err)
	}
	for _, d := range rows {
		log.WithFields(log.Fields{
			"product_id": d.ProductID,
			"stock":      d.StockQuantity,
			"ledger":     d.LedgerQuantity,
		}).Error("stock ledger mismatch")
	}
	return rows, nil
}

func notFoundOr(err, notFound error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return storageError(op, err)
}

func itemError(i int, err error) error {
	return fmt.Errorf("item[%d]: %w", i, err)
}
