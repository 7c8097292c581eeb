package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"github.com/cafe-pos/api/internal/database"
)

const (
	maxTxAttempts    = 3
	defaultTxTimeout = 5 * time.Second
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DB is what the engine needs from a connection pool: plain queries for
// reads and transactions for every write.
type DB interface {
	database.DBTX
	TxBeginner
}

// StockStore is the product and inventory half of Store.
type StockStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]database.Product, error)
	ApplyStockDelta(ctx context.Context, arg database.ApplyStockDeltaParams) (database.Product, error)
	CreateInventoryTransaction(ctx context.Context, arg database.CreateInventoryTransactionParams) (database.InventoryTransaction, error)
	ListInventoryTransactionsByProduct(ctx context.Context, productID uuid.UUID) ([]database.InventoryTransaction, error)
	ListStockDiscrepancies(ctx context.Context) ([]database.StockDiscrepancy, error)
}

// OrderStore covers orders, their items and their payments.
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context, day time.Time) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SettleOrder(ctx context.Context, arg database.SettleOrderParams) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// TableStore covers tables and the table-scoped order queries.
type TableStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.CafeTable, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.CafeTable, error)
	ListTables(ctx context.Context) ([]database.CafeTable, error)
	OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.CafeTable, error)
	ReleaseTable(ctx context.Context, id uuid.UUID) (database.CafeTable, error)
	ListOpenOrdersByTableForUpdate(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	GetPendingCombinedOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	MarkOrderCombined(ctx context.Context, arg database.MarkOrderCombinedParams) (int64, error)
	ListOrdersCombinedInto(ctx context.Context, combinedOrderID uuid.UUID) ([]database.Order, error)
	UnfoldCombinedOrder(ctx context.Context, combinedOrderID uuid.UUID) (int64, error)
	CountOpenOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error)
}

// UnpaidStore covers the unpaid side ledger.
type UnpaidStore interface {
	CreateUnpaidOrder(ctx context.Context, arg database.CreateUnpaidOrderParams) (database.UnpaidOrder, error)
	GetUnpaidOrder(ctx context.Context, id uuid.UUID) (database.UnpaidOrder, error)
	GetUnpaidOrderForUpdate(ctx context.Context, id uuid.UUID) (database.UnpaidOrder, error)
	GetUnpaidOrderByOrder(ctx context.Context, orderID uuid.UUID) (database.UnpaidOrder, error)
	ListUnpaidOrders(ctx context.Context) ([]database.UnpaidOrder, error)
	DeleteUnpaidOrder(ctx context.Context, id uuid.UUID) (int64, error)
}

// Store is satisfied by *database.Queries.
type Store interface {
	StockStore
	OrderStore
	TableStore
	UnpaidStore
}

// NewStore creates a Store from a DBTX (pool or tx).
type NewStore func(db database.DBTX) Store

// Options tunes the engine. Zero values pick the defaults.
type Options struct {
	TxTimeout time.Duration
	Now       func() time.Time
}

// runner owns the transaction scope shared by every component.
type runner struct {
	db       DB
	newStore NewStore
	timeout  time.Duration
	now      func() time.Time
}

func newRunner(db DB, newStore NewStore, opts Options) *runner {
	r := &runner{db: db, newStore: newStore, timeout: opts.TxTimeout, now: opts.Now}
	if r.timeout <= 0 {
		r.timeout = defaultTxTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// reader returns a Store outside any transaction, for single-statement reads.
func (r *runner) reader() Store {
	return r.newStore(r.db)
}

// inTx runs fn in one transaction. The transaction commits only if fn
// returns nil; every other exit rolls back. Serialization failures,
// deadlocks and unique races the engine knows how to resolve rerun fn
// from scratch, up to maxTxAttempts times.
func (r *runner) inTx(ctx context.Context, op string, fn func(ctx context.Context, store Store) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = r.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			return err
		}
		log.WithFields(log.Fields{"op": op, "attempt": attempt}).WithError(err).Warn("retrying transaction")
	}
	return err
}

func (r *runner) runOnce(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storageError("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, r.newStore(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storageError("commit tx", err)
	}
	return nil
}

// isRetryable reports whether a fresh attempt can succeed where this one failed.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	case "23505":
		return pgErr.ConstraintName == "orders_order_number_key" ||
			pgErr.ConstraintName == "orders_one_pending_combined_per_table"
	}
	return false
}

// Engine bundles the four components over one pool.
type Engine struct {
	Stock  *StockLedger
	Orders *OrderService
	Tables *TableService
	Unpaid *UnpaidService
}

// New creates the engine components sharing one transaction runner.
func New(db DB, newStore NewStore, opts Options) *Engine {
	r := newRunner(db, newStore, opts)
	return &Engine{
		Stock:  &StockLedger{r: r},
		Orders: &OrderService{r: r},
		Tables: &TableService{r: r},
		Unpaid: &UnpaidService{r: r},
	}
}
