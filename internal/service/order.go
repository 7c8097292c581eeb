package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateOrderRequest is the input for creating an order.
type CreateOrderRequest struct {
	CustomerID     string
	TableID        string
	PaymentMethod  string
	DiscountAmount string
	Notes          string
	CashierName    string
	// DeferPayment leaves a walk-in order unpaid, as if it were on a table.
	DeferPayment bool
	Items        []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line of the order.
type CreateOrderItemRequest struct {
	ProductID string
	Quantity  int32
}

// OrderResult is an order with its lines and payments.
type OrderResult struct {
	Order    database.Order
	Items    []database.OrderItem
	Payments []database.Payment
}

// ListOrdersRequest filters ListOrders. Empty fields do not filter.
type ListOrdersRequest struct {
	OrderStatus   string
	PaymentStatus string
	TableID       string
	Limit         int32
	Offset        int32
}

// OrderService runs the order lifecycle.
type OrderService struct {
	r *runner
}

type orderLine struct {
	productID uuid.UUID
	quantity  int32
	unitPrice decimal.Decimal
	total     decimal.Decimal
}

// CreateOrder validates the request, takes stock for every line and writes
// the order in one transaction. Orders with no table are paid on the spot
// unless DeferPayment is set; table orders wait for settlement.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, ErrPaymentMethodRequired
	}

	discount := decimal.Zero
	if req.DiscountAmount != "" {
		d, ok := parseAmount(req.DiscountAmount)
		if !ok {
			return nil, ErrInvalidDiscountAmount
		}
		discount = d
	}

	var customerID, tableID pgtype.UUID
	if req.CustomerID != "" {
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, ErrInvalidCustomerID
		}
		customerID = database.UUID(id)
	}
	if req.TableID != "" {
		id, err := uuid.Parse(req.TableID)
		if err != nil {
			return nil, ErrInvalidTableID
		}
		tableID = database.UUID(id)
	}

	productIDs := make([]uuid.UUID, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, itemError(i, ErrInvalidQuantity)
		}
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, itemError(i, ErrInvalidProductID)
		}
		productIDs[i] = id
	}

	var result *OrderResult
	err := s.r.inTx(ctx, "create order", func(ctx context.Context, store Store) error {
		var err error
		result, err = s.createOrderTx(ctx, store, req, method, discount, customerID, tableID, productIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"order_id":     result.Order.ID,
		"order_number": result.Order.OrderNumber,
		"final_amount": database.NumericToDecimal(result.Order.FinalAmount).StringFixed(2),
		"paid":         result.Order.PaymentStatus == enum.PaymentStatusCompleted,
	}).Info("order created")
	return result, nil
}

func (s *OrderService) createOrderTx(
	ctx context.Context,
	store Store,
	req CreateOrderRequest,
	method string,
	discount decimal.Decimal,
	customerID, tableID pgtype.UUID,
	productIDs []uuid.UUID,
) (*OrderResult, error) {
	// Lock order: table, then products in id order.
	if tableID.Valid {
		if _, err := store.GetTableForUpdate(ctx, tableID.Bytes); err != nil {
			return nil, notFoundOr(err, ErrTableNotFound, "lock table")
		}
	}

	needed := make(map[uuid.UUID]int32, len(productIDs))
	for i, id := range productIDs {
		needed[id] += req.Items[i].Quantity
	}
	sorted := make([]uuid.UUID, 0, len(needed))
	for id := range needed {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].String() < sorted[b].String() })

	products := make(map[uuid.UUID]database.Product, len(sorted))
	for _, id := range sorted {
		p, err := store.GetProductForUpdate(ctx, id)
		if err != nil {
			return nil, notFoundOr(err, ErrProductNotFound, "lock product")
		}
		if !p.IsActive {
			return nil, ErrProductNotFound
		}
		if p.StockQuantity < needed[id] {
			return nil, &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.StockQuantity,
				Requested:   needed[id],
			}
		}
		products[id] = p
	}

	subtotal := decimal.Zero
	lines := make([]orderLine, len(req.Items))
	for i, item := range req.Items {
		price := database.NumericToDecimal(products[productIDs[i]].Price)
		total := price.Mul(decimal.NewFromInt32(item.Quantity))
		lines[i] = orderLine{productID: productIDs[i], quantity: item.Quantity, unitPrice: price, total: total}
		subtotal = subtotal.Add(total)
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	final := subtotal.Sub(discount)

	orderNumber, err := nextOrderNumber(ctx, store, s.r.now())
	if err != nil {
		return nil, err
	}

	deferred := tableID.Valid || req.DeferPayment
	paymentStatus := enum.PaymentStatusCompleted
	if deferred {
		paymentStatus = enum.PaymentStatusPending
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:    orderNumber,
		CustomerID:     customerID,
		TableID:        tableID,
		Subtotal:       database.DecimalToNumeric(subtotal),
		DiscountAmount: database.DecimalToNumeric(discount),
		FinalAmount:    database.DecimalToNumeric(final),
		PaymentMethod:  database.Text(method),
		PaymentStatus:  paymentStatus,
		OrderStatus:    enum.OrderStatusActive,
		Notes:          database.Text(req.Notes),
		CashierName:    database.Text(req.CashierName),
	})
	if err != nil {
		return nil, storageError("create order", err)
	}

	result := &OrderResult{Order: order, Items: make([]database.OrderItem, 0, len(lines))}
	for i, line := range lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    order.ID,
			ProductID:  line.productID,
			Quantity:   line.quantity,
			UnitPrice:  database.DecimalToNumeric(line.unitPrice),
			TotalPrice: database.DecimalToNumeric(line.total),
		})
		if err != nil {
			return nil, itemError(i, storageError("create order item", err))
		}
		result.Items = append(result.Items, item)

		if _, err := reserveAndDecrement(ctx, store, line.productID, line.quantity, order.ID); err != nil {
			return nil, itemError(i, err)
		}
	}

	if !deferred {
		payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID:       order.ID,
			Amount:        database.DecimalToNumeric(final),
			PaymentMethod: method,
			Status:        enum.PaymentStatusCompleted,
			CashierName:   database.Text(req.CashierName),
		})
		if err != nil {
			return nil, storageError("create payment", err)
		}
		result.Payments = []database.Payment{payment}
	}

	if tableID.Valid {
		if _, err := store.OccupyTable(ctx, database.OccupyTableParams{ID: tableID.Bytes, OrderID: order.ID}); err != nil {
			return nil, storageError("occupy table", err)
		}
	}
	return result, nil
}

// nextOrderNumber formats ORD-YYYYMMDD-NNNN for the UTC day of now.
func nextOrderNumber(ctx context.Context, store Store, now time.Time) (string, error) {
	day := now.UTC().Truncate(24 * time.Hour)
	n, err := store.GetNextOrderNumber(ctx, day)
	if err != nil {
		return "", storageError("get next order number", err)
	}
	return fmt.Sprintf("%s-%s-%04d", enum.OrderNumberPrefix, day.Format("20060102"), n), nil
}

var allowedTransitions = map[string][]string{
	enum.OrderStatusActive:    {enum.OrderStatusCompleted, enum.OrderStatusCancelled, enum.OrderStatusRefunded},
	enum.OrderStatusCompleted: {enum.OrderStatusRefunded},
}

func canTransition(from, to string) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusActive, enum.OrderStatusCompleted, enum.OrderStatusCancelled, enum.OrderStatusRefunded:
		return true
	}
	return false
}

// UpdateOrderStatus moves an order along its lifecycle. Cancelling or
// refunding puts every line back into stock exactly once and drops the order
// from the unpaid ledger; writing the status an order already has changes
// nothing. Cancelling an unpaid combined order undoes the combine: its
// source orders return to the table and keep the stock they took.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, status string) (*OrderResult, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidOrderID
	}
	if !isValidOrderStatus(status) {
		return nil, ErrInvalidStatus
	}

	var (
		result  *OrderResult
		changed bool
	)
	err = s.r.inTx(ctx, "update order status", func(ctx context.Context, store Store) error {
		order, err := lockOrder(ctx, store, orderID)
		if err != nil {
			return err
		}
		if order.CombinedIntoOrderID.Valid {
			return ErrAlreadyCombined
		}

		items, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return storageError("list order items", err)
		}
		result = &OrderResult{Order: order, Items: items}
		changed = false

		if order.OrderStatus == status {
			return nil
		}
		if !canTransition(order.OrderStatus, status) {
			return fmt.Errorf("%w: cannot move order from %s to %s", ErrConflict, order.OrderStatus, status)
		}
		pendingCombined := order.IsCombined && order.PaymentStatus == enum.PaymentStatusPending
		if pendingCombined && status == enum.OrderStatusRefunded {
			return fmt.Errorf("%w: combined bill %s has not been paid", ErrConflict, order.OrderNumber)
		}

		updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{ID: order.ID, OrderStatus: status})
		if err != nil {
			return storageError("update order status", err)
		}
		result.Order = updated
		changed = true

		if status != enum.OrderStatusCancelled && status != enum.OrderStatusRefunded {
			return nil
		}
		if pendingCombined {
			return unfoldCombinedOrder(ctx, store, order)
		}

		reason := enum.RestockReasonCancel
		if status == enum.OrderStatusRefunded {
			reason = enum.RestockReasonRefund
		}
		for _, item := range sortedByProduct(items) {
			if _, err := restoreStock(ctx, store, item.ProductID, item.Quantity, reason, order.ID); err != nil {
				return err
			}
		}
		if err := dropUnpaidEntry(ctx, store, order.ID); err != nil {
			return err
		}
		if order.TableID.Valid {
			return releaseTableIfIdle(ctx, store, order.TableID.Bytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		log.WithFields(log.Fields{"order_id": orderID, "status": status}).Info("order status changed")
	}
	return result, nil
}

// unfoldCombinedOrder returns the orders folded into a cancelled combined
// order to their table. The combined lines never took stock, so nothing is
// restocked.
func unfoldCombinedOrder(ctx context.Context, store Store, combined database.Order) error {
	if _, err := store.ListOrdersCombinedInto(ctx, combined.ID); err != nil {
		return storageError("lock folded orders", err)
	}
	n, err := store.UnfoldCombinedOrder(ctx, combined.ID)
	if err != nil {
		return storageError("unfold combined order", err)
	}
	log.WithFields(log.Fields{"order_id": combined.ID, "unfolded": n}).Info("combined order cancelled")

	if !combined.TableID.Valid {
		return nil
	}
	tableID := combined.TableID.Bytes
	open, err := store.ListOpenOrdersByTableForUpdate(ctx, tableID)
	if err != nil {
		return storageError("list open orders", err)
	}
	if len(open) == 0 {
		return releaseTableIfIdle(ctx, store, tableID)
	}
	if _, err := store.OccupyTable(ctx, database.OccupyTableParams{ID: tableID, OrderID: open[len(open)-1].ID}); err != nil {
		return storageError("occupy table", err)
	}
	return nil
}

// dropUnpaidEntry removes the unpaid ledger entry of a closed order, if any.
func dropUnpaidEntry(ctx context.Context, store Store, orderID uuid.UUID) error {
	entry, err := store.GetUnpaidOrderByOrder(ctx, orderID)
	if err != nil {
		if isNoRows(err) {
			return nil
		}
		return storageError("get unpaid entry", err)
	}
	if _, err := store.DeleteUnpaidOrder(ctx, entry.ID); err != nil {
		return storageError("delete unpaid entry", err)
	}
	log.WithFields(log.Fields{"order_id": orderID, "entry_id": entry.ID}).Info("unpaid entry dropped with closed order")
	return nil
}

// lockOrder locks an order and, before it, the table it sits on.
func lockOrder(ctx context.Context, store Store, orderID uuid.UUID) (database.Order, error) {
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		return database.Order{}, notFoundOr(err, ErrOrderNotFound, "get order")
	}
	if order.TableID.Valid {
		if _, err := store.GetTableForUpdate(ctx, order.TableID.Bytes); err != nil {
			return database.Order{}, notFoundOr(err, ErrTableNotFound, "lock table")
		}
	}
	order, err = store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return database.Order{}, notFoundOr(err, ErrOrderNotFound, "lock order")
	}
	return order, nil
}

// sortedByProduct returns items in product-id order, the order product rows
// are locked in everywhere else.
func sortedByProduct(items []database.OrderItem) []database.OrderItem {
	out := make([]database.OrderItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(a, b int) bool { return out[a].ProductID.String() < out[b].ProductID.String() })
	return out
}

// GetOrder returns an order with its items and payments.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*OrderResult, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidOrderID
	}
	store := s.r.reader()
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, ErrOrderNotFound, "get order")
	}
	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, storageError("list order items", err)
	}
	payments, err := store.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return nil, storageError("list payments", err)
	}
	return &OrderResult{Order: order, Items: items, Payments: payments}, nil
}

// ListPayments returns the payments recorded against an order.
func (s *OrderService) ListPayments(ctx context.Context, id string) ([]database.Payment, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidOrderID
	}
	store := s.r.reader()
	if _, err := store.GetOrder(ctx, orderID); err != nil {
		return nil, notFoundOr(err, ErrOrderNotFound, "get order")
	}
	payments, err := store.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return nil, storageError("list payments", err)
	}
	return payments, nil
}

func (s *OrderService) ListOrders(ctx context.Context, req ListOrdersRequest) ([]database.Order, error) {
	params := database.ListOrdersParams{
		OrderStatus:   database.Text(req.OrderStatus),
		PaymentStatus: database.Text(req.PaymentStatus),
		Limit:         req.Limit,
		Offset:        req.Offset,
	}
	if req.OrderStatus != "" && !isValidOrderStatus(req.OrderStatus) {
		return nil, ErrInvalidStatus
	}
	if req.TableID != "" {
		id, err := uuid.Parse(req.TableID)
		if err != nil {
			return nil, ErrInvalidTableID
		}
		params.TableID = database.UUID(id)
	}
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	orders, err := s.r.reader().ListOrders(ctx, params)
	if err != nil {
		return nil, storageError("list orders", err)
	}
	return orders, nil
}

// parseAmount parses a non-negative money amount. Amounts finer than a cent
// are rejected: every money column holds two decimal places.
func parseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() || !d.Equal(d.Truncate(2)) {
		return decimal.Zero, false
	}
	return d, true
}

// isNoRows is shorthand for optional lookups.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
