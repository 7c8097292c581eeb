package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
)

// TableService aggregates and settles everything owed at a table.
type TableService struct {
	r *runner
}

// BillItem is one merged line of a table bill: every order line with the
// same product and unit price, summed.
type BillItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int32           `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// TableBill is the live view of what a table owes.
type TableBill struct {
	Table          database.CafeTable
	Orders         []database.Order
	CombinedOrder  *database.Order
	Items          []BillItem
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	GrandTotal     decimal.Decimal
}

// CombineRequest asks for one combined bill for a table. DiscountType is
// empty, PERCENTAGE or FIXED_AMOUNT.
type CombineRequest struct {
	TableID       string
	DiscountType  string
	DiscountValue string
	Notes         string
	CashierName   string
}

// CombineResult is the combined order, its copied lines and the orders
// folded into it. Existing is true when a pending combined bill was returned
// instead of a new one.
type CombineResult struct {
	Order    database.Order
	Items    []database.OrderItem
	Folded   []database.Order
	Existing bool
}

func (s *TableService) ListTables(ctx context.Context) ([]database.CafeTable, error) {
	tables, err := s.r.reader().ListTables(ctx)
	if err != nil {
		return nil, storageError("list tables", err)
	}
	return tables, nil
}

func (s *TableService) GetTable(ctx context.Context, id string) (*database.CafeTable, error) {
	tableID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidTableID
	}
	table, err := s.r.reader().GetTable(ctx, tableID)
	if err != nil {
		return nil, notFoundOr(err, ErrTableNotFound, "get table")
	}
	return &table, nil
}

// GetTableBill returns the open orders and any pending combined bill of a
// table with merged lines and totals.
func (s *TableService) GetTableBill(ctx context.Context, id string) (*TableBill, error) {
	tableID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidTableID
	}

	var bill *TableBill
	err = s.r.inTx(ctx, "get table bill", func(ctx context.Context, store Store) error {
		table, err := store.GetTableForUpdate(ctx, tableID)
		if err != nil {
			return notFoundOr(err, ErrTableNotFound, "lock table")
		}
		open, combined, err := tableTargets(ctx, store, tableID)
		if err != nil {
			return err
		}

		bill = &TableBill{Table: table, Orders: open, CombinedOrder: combined}
		var lines []database.OrderItem
		all := open
		if combined != nil {
			all = append(append([]database.Order{}, open...), *combined)
		}
		for _, o := range all {
			bill.Subtotal = bill.Subtotal.Add(database.NumericToDecimal(o.Subtotal))
			bill.DiscountAmount = bill.DiscountAmount.Add(database.NumericToDecimal(o.DiscountAmount))
			bill.GrandTotal = bill.GrandTotal.Add(database.NumericToDecimal(o.FinalAmount))
			items, err := store.ListOrderItemsByOrder(ctx, o.ID)
			if err != nil {
				return storageError("list order items", err)
			}
			lines = append(lines, items...)
		}
		bill.Items = mergeBillItems(lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// tableTargets returns the table's open non-combined orders and its pending
// combined order, if any. Both are locked.
func tableTargets(ctx context.Context, store Store, tableID uuid.UUID) ([]database.Order, *database.Order, error) {
	open, err := store.ListOpenOrdersByTableForUpdate(ctx, tableID)
	if err != nil {
		return nil, nil, storageError("list open orders", err)
	}
	combined, err := store.GetPendingCombinedOrderByTable(ctx, tableID)
	if err != nil {
		if isNoRows(err) {
			return open, nil, nil
		}
		return nil, nil, storageError("get pending combined order", err)
	}
	return open, &combined, nil
}

// mergeBillItems merges lines by product and unit price, keeping the order
// in which each pair first appears.
func mergeBillItems(items []database.OrderItem) []BillItem {
	type key struct {
		product uuid.UUID
		price   string
	}
	index := make(map[key]int)
	merged := []BillItem{}
	for _, item := range items {
		price := database.NumericToDecimal(item.UnitPrice)
		k := key{product: item.ProductID, price: price.StringFixed(2)}
		total := database.NumericToDecimal(item.TotalPrice)
		if i, ok := index[k]; ok {
			merged[i].Quantity += item.Quantity
			merged[i].TotalPrice = merged[i].TotalPrice.Add(total)
			continue
		}
		index[k] = len(merged)
		merged = append(merged, BillItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   price,
			Quantity:    item.Quantity,
			TotalPrice:  total,
		})
	}
	return merged
}

// combineDiscount computes the extra discount on top of the running total.
func combineDiscount(discountType, value string, running decimal.Decimal) (decimal.Decimal, error) {
	if discountType == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(value)
	if err != nil || v.IsNegative() {
		return decimal.Zero, ErrInvalidDiscountValue
	}
	var extra decimal.Decimal
	switch discountType {
	case enum.DiscountTypePercentage:
		if v.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, ErrInvalidDiscountValue
		}
		extra = running.Mul(v).Div(decimal.NewFromInt(100)).Round(2)
	case enum.DiscountTypeFixed:
		if !v.Equal(v.Truncate(2)) {
			return decimal.Zero, ErrInvalidDiscountValue
		}
		extra = v
	default:
		return decimal.Zero, ErrInvalidDiscount
	}
	if extra.GreaterThan(running) {
		extra = running
	}
	return extra, nil
}

// CreateCombinedOrder folds every open order of a table into one new
// combined order. Lines are copied without touching stock. If the table
// already has a pending combined order, that one is returned unchanged.
func (s *TableService) CreateCombinedOrder(ctx context.Context, req CombineRequest) (*CombineResult, error) {
	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		return nil, ErrInvalidTableID
	}
	switch req.DiscountType {
	case "", enum.DiscountTypePercentage, enum.DiscountTypeFixed:
	default:
		return nil, ErrInvalidDiscount
	}

	var result *CombineResult
	err = s.r.inTx(ctx, "combine table", func(ctx context.Context, store Store) error {
		var err error
		result, err = s.combineTx(ctx, store, tableID, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !result.Existing {
		log.WithFields(log.Fields{
			"table_id":     tableID,
			"order_id":     result.Order.ID,
			"order_number": result.Order.OrderNumber,
			"folded":       len(result.Folded),
			"final_amount": database.NumericToDecimal(result.Order.FinalAmount).StringFixed(2),
		}).Info("table combined")
	}
	return result, nil
}

func (s *TableService) combineTx(ctx context.Context, store Store, tableID uuid.UUID, req CombineRequest) (*CombineResult, error) {
	table, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		return nil, notFoundOr(err, ErrTableNotFound, "lock table")
	}

	existing, err := store.GetPendingCombinedOrderByTable(ctx, tableID)
	switch {
	case err == nil:
		items, err := store.ListOrderItemsByOrder(ctx, existing.ID)
		if err != nil {
			return nil, storageError("list order items", err)
		}
		folded, err := store.ListOrdersCombinedInto(ctx, existing.ID)
		if err != nil {
			return nil, storageError("list folded orders", err)
		}
		return &CombineResult{Order: existing, Items: items, Folded: folded, Existing: true}, nil
	case !isNoRows(err):
		return nil, storageError("get pending combined order", err)
	}

	open, err := store.ListOpenOrdersByTableForUpdate(ctx, tableID)
	if err != nil {
		return nil, storageError("list open orders", err)
	}
	if len(open) == 0 {
		return nil, ErrNothingToCombine
	}

	subtotal, discount, running := decimal.Zero, decimal.Zero, decimal.Zero
	numbers := make([]string, len(open))
	for i, o := range open {
		subtotal = subtotal.Add(database.NumericToDecimal(o.Subtotal))
		discount = discount.Add(database.NumericToDecimal(o.DiscountAmount))
		running = running.Add(database.NumericToDecimal(o.FinalAmount))
		numbers[i] = o.OrderNumber
	}
	extra, err := combineDiscount(req.DiscountType, req.DiscountValue, running)
	if err != nil {
		return nil, err
	}
	discount = discount.Add(extra)
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	notes := "Combined from " + strings.Join(numbers, ", ")
	if req.Notes != "" {
		notes += ". " + req.Notes
	}

	combined, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:    fmt.Sprintf("%s-T%s-%d", enum.CombinedOrderPrefix, table.TableNumber, s.r.now().UnixNano()),
		TableID:        database.UUID(tableID),
		Subtotal:       database.DecimalToNumeric(subtotal),
		DiscountAmount: database.DecimalToNumeric(discount),
		FinalAmount:    database.DecimalToNumeric(subtotal.Sub(discount)),
		PaymentStatus:  enum.PaymentStatusPending,
		OrderStatus:    enum.OrderStatusActive,
		IsCombined:     true,
		Notes:          database.Text(notes),
		CashierName:    database.Text(req.CashierName),
	})
	if err != nil {
		return nil, storageError("create combined order", err)
	}

	result := &CombineResult{Order: combined, Folded: make([]database.Order, 0, len(open))}
	for _, o := range open {
		items, err := store.ListOrderItemsByOrder(ctx, o.ID)
		if err != nil {
			return nil, storageError("list order items", err)
		}
		for _, item := range items {
			copied, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
				OrderID:    combined.ID,
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				TotalPrice: item.TotalPrice,
			})
			if err != nil {
				return nil, storageError("copy order item", err)
			}
			result.Items = append(result.Items, copied)
		}

		n, err := store.MarkOrderCombined(ctx, database.MarkOrderCombinedParams{ID: o.ID, CombinedIntoOrderID: combined.ID})
		if err != nil {
			return nil, storageError("mark order combined", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("order %s: %w", o.OrderNumber, ErrAlreadyCombined)
		}
		o.CombinedIntoOrderID = database.UUID(combined.ID)
		result.Folded = append(result.Folded, o)
	}

	if _, err := store.OccupyTable(ctx, database.OccupyTableParams{ID: tableID, OrderID: combined.ID}); err != nil {
		return nil, storageError("occupy table", err)
	}
	return result, nil
}

// releaseTableIfIdle frees a table once nothing open remains on it.
func releaseTableIfIdle(ctx context.Context, store Store, tableID uuid.UUID) error {
	n, err := store.CountOpenOrdersByTable(ctx, tableID)
	if err != nil {
		return storageError("count open orders", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := store.ReleaseTable(ctx, tableID); err != nil {
		return storageError("release table", err)
	}
	return nil
}
