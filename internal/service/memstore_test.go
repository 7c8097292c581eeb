package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
)

// --- In-memory store ---
//
// memDB stands in for the pool. A transaction holds the single mutex from
// Begin to Commit/Rollback, which gives the same serialization the row
// locks give in Postgres. Rollback restores the snapshot taken at Begin.

type memState struct {
	products  map[uuid.UUID]database.Product
	tables    map[uuid.UUID]database.CafeTable
	orders    map[uuid.UUID]database.Order
	items     []database.OrderItem
	inventory []database.InventoryTransaction
	payments  []database.Payment
	unpaid    map[uuid.UUID]database.UnpaidOrder
}

func newMemState() *memState {
	return &memState{
		products: map[uuid.UUID]database.Product{},
		tables:   map[uuid.UUID]database.CafeTable{},
		orders:   map[uuid.UUID]database.Order{},
		unpaid:   map[uuid.UUID]database.UnpaidOrder{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.unpaid {
		c.unpaid[k] = v
	}
	c.items = append([]database.OrderItem(nil), s.items...)
	c.inventory = append([]database.InventoryTransaction(nil), s.inventory...)
	c.payments = append([]database.Payment(nil), s.payments...)
	return c
}

type memDB struct {
	mu    sync.Mutex
	state *memState
	// failOn makes the named store method fail with a storage error.
	failOn string
	begins int
}

func newMemDB() *memDB {
	return &memDB{state: newMemState()}
}

func (m *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	m.mu.Lock()
	m.begins++
	return &memTx{db: m, snapshot: m.state.clone()}, nil
}

func (m *memDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *memDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *memDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}

// memTx implements pgx.Tx. The unused methods panic so we catch accidental calls.
type memTx struct {
	db       *memDB
	snapshot *memState
	done     bool
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.mu.Unlock()
	return nil
}
func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.state = t.snapshot
	t.db.mu.Unlock()
	return nil
}
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (t *memTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (t *memTx) Conn() *pgx.Conn { panic("not implemented") }

// memStore implements Store over memDB. Inside a transaction the mutex is
// already held; outside one each call takes it.
type memStore struct {
	db   *memDB
	inTx bool
}

func (m *memDB) newStore(db database.DBTX) Store {
	switch v := db.(type) {
	case *memTx:
		return &memStore{db: v.db, inTx: true}
	case *memDB:
		return &memStore{db: v}
	}
	panic("unexpected DBTX")
}

func (s *memStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

func (s *memStore) st() *memState { return s.db.state }

func (s *memStore) fail(method string) error {
	if s.db.failOn == method {
		return &pgconn.PgError{Code: "08006", Message: "connection failure"}
	}
	return nil
}

func checkViolation(constraint string) error {
	return &pgconn.PgError{Code: "23514", ConstraintName: constraint, Message: "check violation"}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key"}
}

func num(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- seeding helpers ---

func (m *memDB) addProduct(name, price string, stock int32) database.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := database.Product{
		ID:            uuid.New(),
		Name:          name,
		Price:         database.DecimalToNumeric(num(price)),
		StockQuantity: stock,
		IsActive:      true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	m.state.products[p.ID] = p
	if stock != 0 {
		m.state.inventory = append(m.state.inventory, database.InventoryTransaction{
			ID: uuid.New(), ProductID: p.ID, QuantityDelta: stock, Kind: enum.InventoryKindPurchase, CreatedAt: time.Now(),
		})
	}
	return p
}

func (m *memDB) addTable(number string) database.CafeTable {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := database.CafeTable{ID: uuid.New(), TableNumber: number, Status: enum.TableStatusAvailable, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.state.tables[t.ID] = t
	return t
}

func (m *memDB) product(id uuid.UUID) database.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.products[id]
}

func (m *memDB) table(id uuid.UUID) database.CafeTable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.tables[id]
}

func (m *memDB) order(id uuid.UUID) database.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.orders[id]
}

func (m *memDB) paymentsFor(id uuid.UUID) []database.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Payment
	for _, p := range m.state.payments {
		if p.OrderID == id {
			out = append(out, p)
		}
	}
	return out
}

func (m *memDB) ledgerSum(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.state.inventory {
		if t.ProductID == id {
			sum += int64(t.QuantityDelta)
		}
	}
	return sum
}

func (m *memDB) counts() (orders, items, payments, unpaid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders), len(m.state.items), len(m.state.payments), len(m.state.unpaid)
}

// --- StockStore ---

func (s *memStore) GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error) {
	defer s.lock()()
	if err := s.fail("GetProduct"); err != nil {
		return database.Product{}, err
	}
	p, ok := s.st().products[id]
	if !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *memStore) GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error) {
	return s.GetProduct(ctx, id)
}

func (s *memStore) ListProducts(ctx context.Context, activeOnly bool) ([]database.Product, error) {
	defer s.lock()()
	out := []database.Product{}
	for _, p := range s.st().products {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (s *memStore) ApplyStockDelta(ctx context.Context, arg database.ApplyStockDeltaParams) (database.Product, error) {
	defer s.lock()()
	if err := s.fail("ApplyStockDelta"); err != nil {
		return database.Product{}, err
	}
	p, ok := s.st().products[arg.ID]
	if !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	if p.StockQuantity+arg.Delta < 0 {
		return database.Product{}, checkViolation("products_stock_quantity_check")
	}
	p.StockQuantity += arg.Delta
	p.UpdatedAt = time.Now()
	s.st().products[arg.ID] = p
	return p, nil
}

func (s *memStore) CreateInventoryTransaction(ctx context.Context, arg database.CreateInventoryTransactionParams) (database.InventoryTransaction, error) {
	defer s.lock()()
	if err := s.fail("CreateInventoryTransaction"); err != nil {
		return database.InventoryTransaction{}, err
	}
	t := database.InventoryTransaction{
		ID:            uuid.New(),
		ProductID:     arg.ProductID,
		QuantityDelta: arg.QuantityDelta,
		Kind:          arg.Kind,
		ReferenceID:   arg.ReferenceID,
		Notes:         arg.Notes,
		CreatedAt:     time.Now(),
	}
	s.st().inventory = append(s.st().inventory, t)
	return t, nil
}

func (s *memStore) ListInventoryTransactionsByProduct(ctx context.Context, productID uuid.UUID) ([]database.InventoryTransaction, error) {
	defer s.lock()()
	out := []database.InventoryTransaction{}
	for _, t := range s.st().inventory {
		if t.ProductID == productID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) ListStockDiscrepancies(ctx context.Context) ([]database.StockDiscrepancy, error) {
	defer s.lock()()
	sums := map[uuid.UUID]int64{}
	for _, t := range s.st().inventory {
		sums[t.ProductID] += int64(t.QuantityDelta)
	}
	out := []database.StockDiscrepancy{}
	for _, p := range s.st().products {
		if int64(p.StockQuantity) != sums[p.ID] {
			out = append(out, database.StockDiscrepancy{ProductID: p.ID, Name: p.Name, StockQuantity: p.StockQuantity, LedgerQuantity: sums[p.ID]})
		}
	}
	return out, nil
}

// --- OrderStore ---

func (s *memStore) GetNextOrderNumber(ctx context.Context, day time.Time) (int32, error) {
	defer s.lock()()
	var n int32
	for _, o := range s.st().orders {
		if !o.IsCombined && !o.CreatedAt.Before(day) && o.CreatedAt.Before(day.Add(24*time.Hour)) {
			n++
		}
	}
	return n + 1, nil
}

func (s *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	defer s.lock()()
	if err := s.fail("CreateOrder"); err != nil {
		return database.Order{}, err
	}
	subtotal := database.NumericToDecimal(arg.Subtotal)
	if !database.NumericToDecimal(arg.FinalAmount).Equal(subtotal.Sub(database.NumericToDecimal(arg.DiscountAmount))) {
		return database.Order{}, checkViolation("orders_final_amount_check")
	}
	for _, o := range s.st().orders {
		if o.OrderNumber == arg.OrderNumber {
			return database.Order{}, uniqueViolation("orders_order_number_key")
		}
		if arg.IsCombined && o.IsCombined && o.TableID == arg.TableID && isOpen(o) {
			return database.Order{}, uniqueViolation("orders_one_pending_combined_per_table")
		}
	}
	now := time.Now()
	o := database.Order{
		ID:             uuid.New(),
		OrderNumber:    arg.OrderNumber,
		CustomerID:     arg.CustomerID,
		TableID:        arg.TableID,
		Subtotal:       arg.Subtotal,
		DiscountAmount: arg.DiscountAmount,
		FinalAmount:    arg.FinalAmount,
		PaymentMethod:  arg.PaymentMethod,
		PaymentStatus:  arg.PaymentStatus,
		OrderStatus:    arg.OrderStatus,
		IsCombined:     arg.IsCombined,
		Notes:          arg.Notes,
		CashierName:    arg.CashierName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.st().orders[o.ID] = o
	return o, nil
}

func (s *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	defer s.lock()()
	o, ok := s.st().orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (s *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *memStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	defer s.lock()()
	out := []database.Order{}
	for _, o := range s.st().orders {
		if arg.OrderStatus.Valid && o.OrderStatus != arg.OrderStatus.String {
			continue
		}
		if arg.PaymentStatus.Valid && o.PaymentStatus != arg.PaymentStatus.String {
			continue
		}
		if arg.TableID.Valid && o.TableID != arg.TableID {
			continue
		}
		out = append(out, o)
	}
	sortOrders(out)
	if int(arg.Offset) >= len(out) {
		return []database.Order{}, nil
	}
	out = out[arg.Offset:]
	if int(arg.Limit) < len(out) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (s *memStore) updateOrder(id uuid.UUID, fn func(o *database.Order)) (database.Order, error) {
	o, ok := s.st().orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	fn(&o)
	o.UpdatedAt = time.Now()
	s.st().orders[id] = o
	return o, nil
}

func (s *memStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	defer s.lock()()
	return s.updateOrder(arg.ID, func(o *database.Order) { o.OrderStatus = arg.OrderStatus })
}

func (s *memStore) SettleOrder(ctx context.Context, arg database.SettleOrderParams) (database.Order, error) {
	defer s.lock()()
	if err := s.fail("SettleOrder"); err != nil {
		return database.Order{}, err
	}
	return s.updateOrder(arg.ID, func(o *database.Order) {
		o.OrderStatus = enum.OrderStatusCompleted
		o.PaymentStatus = enum.PaymentStatusCompleted
		o.PaymentMethod = database.Text(arg.PaymentMethod)
	})
}

func (s *memStore) MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
	defer s.lock()()
	return s.updateOrder(arg.ID, func(o *database.Order) {
		o.PaymentStatus = enum.PaymentStatusCompleted
		o.PaymentMethod = database.Text(arg.PaymentMethod)
	})
}

func (s *memStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	defer s.lock()()
	p, ok := s.st().products[arg.ProductID]
	if !ok {
		return database.OrderItem{}, pgx.ErrNoRows
	}
	item := database.OrderItem{
		ID:          uuid.New(),
		OrderID:     arg.OrderID,
		ProductID:   arg.ProductID,
		ProductName: p.Name,
		Quantity:    arg.Quantity,
		UnitPrice:   arg.UnitPrice,
		TotalPrice:  arg.TotalPrice,
		CreatedAt:   time.Now(),
	}
	s.st().items = append(s.st().items, item)
	return item, nil
}

func (s *memStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	defer s.lock()()
	out := []database.OrderItem{}
	for _, item := range s.st().items {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *memStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	defer s.lock()()
	if err := s.fail("CreatePayment"); err != nil {
		return database.Payment{}, err
	}
	if database.NumericToDecimal(arg.Amount).IsNegative() {
		return database.Payment{}, checkViolation("payments_amount_check")
	}
	p := database.Payment{
		ID:              uuid.New(),
		OrderID:         arg.OrderID,
		Amount:          arg.Amount,
		PaymentMethod:   arg.PaymentMethod,
		Status:          arg.Status,
		ReferenceNumber: arg.ReferenceNumber,
		CashierName:     arg.CashierName,
		Notes:           arg.Notes,
		CreatedAt:       time.Now(),
	}
	s.st().payments = append(s.st().payments, p)
	return p, nil
}

func (s *memStore) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	defer s.lock()()
	out := []database.Payment{}
	for _, p := range s.st().payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- TableStore ---

func (s *memStore) GetTable(ctx context.Context, id uuid.UUID) (database.CafeTable, error) {
	defer s.lock()()
	t, ok := s.st().tables[id]
	if !ok {
		return database.CafeTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (s *memStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.CafeTable, error) {
	return s.GetTable(ctx, id)
}

func (s *memStore) ListTables(ctx context.Context) ([]database.CafeTable, error) {
	defer s.lock()()
	out := []database.CafeTable{}
	for _, t := range s.st().tables {
		out = append(out, t)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].TableNumber < out[b].TableNumber })
	return out, nil
}

func (s *memStore) OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.CafeTable, error) {
	defer s.lock()()
	t, ok := s.st().tables[arg.ID]
	if !ok {
		return database.CafeTable{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusOccupied
	t.CurrentOrderID = database.UUID(arg.OrderID)
	s.st().tables[arg.ID] = t
	return t, nil
}

func (s *memStore) ReleaseTable(ctx context.Context, id uuid.UUID) (database.CafeTable, error) {
	defer s.lock()()
	t, ok := s.st().tables[id]
	if !ok {
		return database.CafeTable{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusAvailable
	t.CurrentOrderID = database.UUID(uuid.Nil)
	s.st().tables[id] = t
	return t, nil
}

// isOpen mirrors the SQL open-order filter minus the unpaid check.
func isOpen(o database.Order) bool {
	return (o.OrderStatus == enum.OrderStatusActive || o.OrderStatus == enum.OrderStatusCompleted) &&
		o.PaymentStatus != enum.PaymentStatusCompleted &&
		!o.CombinedIntoOrderID.Valid
}

func (s *memStore) isParked(id uuid.UUID) bool {
	for _, u := range s.st().unpaid {
		if u.OrderID == id {
			return true
		}
	}
	return false
}

func sortOrders(out []database.Order) {
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].OrderNumber < out[b].OrderNumber
	})
}

func (s *memStore) tableOrders(tableID uuid.UUID, combined bool) []database.Order {
	out := []database.Order{}
	for _, o := range s.st().orders {
		if o.TableID.Valid && o.TableID.Bytes == tableID && o.IsCombined == combined && isOpen(o) && !s.isParked(o.ID) {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out
}

func (s *memStore) ListOpenOrdersByTableForUpdate(ctx context.Context, tableID uuid.UUID) ([]database.Order, error) {
	defer s.lock()()
	if err := s.fail("ListOpenOrdersByTableForUpdate"); err != nil {
		return nil, err
	}
	return s.tableOrders(tableID, false), nil
}

func (s *memStore) GetPendingCombinedOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error) {
	defer s.lock()()
	out := s.tableOrders(tableID, true)
	if len(out) == 0 {
		return database.Order{}, pgx.ErrNoRows
	}
	return out[0], nil
}

func (s *memStore) MarkOrderCombined(ctx context.Context, arg database.MarkOrderCombinedParams) (int64, error) {
	defer s.lock()()
	o, ok := s.st().orders[arg.ID]
	if !ok || o.CombinedIntoOrderID.Valid || o.IsCombined {
		return 0, nil
	}
	o.CombinedIntoOrderID = database.UUID(arg.CombinedIntoOrderID)
	s.st().orders[arg.ID] = o
	return 1, nil
}

func (s *memStore) UnfoldCombinedOrder(ctx context.Context, combinedOrderID uuid.UUID) (int64, error) {
	defer s.lock()()
	if err := s.fail("UnfoldCombinedOrder"); err != nil {
		return 0, err
	}
	var n int64
	for id, o := range s.st().orders {
		if o.CombinedIntoOrderID.Valid && o.CombinedIntoOrderID.Bytes == combinedOrderID {
			o.CombinedIntoOrderID = database.UUID(uuid.Nil)
			s.st().orders[id] = o
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListOrdersCombinedInto(ctx context.Context, combinedOrderID uuid.UUID) ([]database.Order, error) {
	defer s.lock()()
	out := []database.Order{}
	for _, o := range s.st().orders {
		if o.CombinedIntoOrderID.Valid && o.CombinedIntoOrderID.Bytes == combinedOrderID {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

func (s *memStore) CountOpenOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	defer s.lock()()
	return int64(len(s.tableOrders(tableID, false)) + len(s.tableOrders(tableID, true))), nil
}

// --- UnpaidStore ---

func (s *memStore) CreateUnpaidOrder(ctx context.Context, arg database.CreateUnpaidOrderParams) (database.UnpaidOrder, error) {
	defer s.lock()()
	if s.isParked(arg.OrderID) {
		return database.UnpaidOrder{}, uniqueViolation("unpaid_orders_order_id_key")
	}
	u := database.UnpaidOrder{
		ID:            uuid.New(),
		OrderID:       arg.OrderID,
		CustomerName:  arg.CustomerName,
		CustomerPhone: arg.CustomerPhone,
		TableNumber:   arg.TableNumber,
		TotalAmount:   arg.TotalAmount,
		ItemsSummary:  arg.ItemsSummary,
		Notes:         arg.Notes,
		CreatedAt:     time.Now(),
	}
	s.st().unpaid[u.ID] = u
	return u, nil
}

func (s *memStore) GetUnpaidOrder(ctx context.Context, id uuid.UUID) (database.UnpaidOrder, error) {
	defer s.lock()()
	u, ok := s.st().unpaid[id]
	if !ok {
		return database.UnpaidOrder{}, pgx.ErrNoRows
	}
	return u, nil
}

func (s *memStore) GetUnpaidOrderForUpdate(ctx context.Context, id uuid.UUID) (database.UnpaidOrder, error) {
	return s.GetUnpaidOrder(ctx, id)
}

func (s *memStore) GetUnpaidOrderByOrder(ctx context.Context, orderID uuid.UUID) (database.UnpaidOrder, error) {
	defer s.lock()()
	for _, u := range s.st().unpaid {
		if u.OrderID == orderID {
			return u, nil
		}
	}
	return database.UnpaidOrder{}, pgx.ErrNoRows
}

func (s *memStore) ListUnpaidOrders(ctx context.Context) ([]database.UnpaidOrder, error) {
	defer s.lock()()
	out := []database.UnpaidOrder{}
	for _, u := range s.st().unpaid {
		out = append(out, u)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (s *memStore) DeleteUnpaidOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	defer s.lock()()
	if _, ok := s.st().unpaid[id]; !ok {
		return 0, nil
	}
	delete(s.st().unpaid, id)
	return 1, nil
}
