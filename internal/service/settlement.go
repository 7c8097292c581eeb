package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
)

// TablePaymentRequest settles everything open at a table in one payment.
type TablePaymentRequest struct {
	TableID         string
	PaymentMethod   string
	AmountPaid      string
	DiscountAmount  string
	ReferenceNumber string
	CashierName     string
}

// TablePaymentResult reports what was settled and the change due.
type TablePaymentResult struct {
	Table          database.CafeTable
	Orders         []database.Order
	Payments       []database.Payment
	TotalBill      decimal.Decimal
	DiscountAmount decimal.Decimal
	RequiredAmount decimal.Decimal
	AmountPaid     decimal.Decimal
	Change         decimal.Decimal
}

// ProcessTablePayment settles every open order of a table, the pending
// combined bill included. Orders folded into that bill are closed without
// payments of their own. The settled amount is split over the orders in
// proportion to their final amounts and the table is released.
func (s *TableService) ProcessTablePayment(ctx context.Context, req TablePaymentRequest) (*TablePaymentResult, error) {
	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		return nil, ErrInvalidTableID
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, ErrPaymentMethodRequired
	}
	paid, ok := parseAmount(req.AmountPaid)
	if !ok {
		return nil, ErrInvalidAmount
	}
	discount := decimal.Zero
	if req.DiscountAmount != "" {
		if discount, ok = parseAmount(req.DiscountAmount); !ok {
			return nil, ErrInvalidDiscountAmount
		}
	}

	var result *TablePaymentResult
	err = s.r.inTx(ctx, "settle table", func(ctx context.Context, store Store) error {
		var err error
		result, err = settleTableTx(ctx, store, tableID, method, paid, discount, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"table_id":    tableID,
		"orders":      len(result.Orders),
		"total":       result.TotalBill.StringFixed(2),
		"amount_paid": result.AmountPaid.StringFixed(2),
		"change":      result.Change.StringFixed(2),
	}).Info("table settled")
	return result, nil
}

func settleTableTx(
	ctx context.Context,
	store Store,
	tableID uuid.UUID,
	method string,
	paid, discount decimal.Decimal,
	req TablePaymentRequest,
) (*TablePaymentResult, error) {
	if _, err := store.GetTableForUpdate(ctx, tableID); err != nil {
		return nil, notFoundOr(err, ErrTableNotFound, "lock table")
	}
	open, combined, err := tableTargets(ctx, store, tableID)
	if err != nil {
		return nil, err
	}
	targets := open
	if combined != nil {
		targets = append(append([]database.Order{}, open...), *combined)
	}
	if len(targets) == 0 {
		return nil, ErrNoOpenOrders
	}

	finals := make([]decimal.Decimal, len(targets))
	total := decimal.Zero
	for i, o := range targets {
		finals[i] = database.NumericToDecimal(o.FinalAmount)
		total = total.Add(finals[i])
	}
	if discount.GreaterThan(total) {
		return nil, ErrDiscountExceedsTotal
	}
	required := total.Sub(discount)
	if paid.LessThan(required) {
		return nil, &InsufficientPaymentError{Required: required, Paid: paid}
	}

	settled := paid.Sub(discount)
	if settled.IsNegative() {
		settled = decimal.Zero
	}
	shares := allocateProportional(settled, finals)

	result := &TablePaymentResult{
		TotalBill:      total,
		DiscountAmount: discount,
		RequiredAmount: required,
		AmountPaid:     paid,
		Change:         decimal.Max(decimal.Zero, paid.Sub(required)),
	}
	for i, o := range targets {
		updated, err := store.SettleOrder(ctx, database.SettleOrderParams{ID: o.ID, PaymentMethod: method})
		if err != nil {
			return nil, storageError("settle order", err)
		}
		payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID:         o.ID,
			Amount:          database.DecimalToNumeric(shares[i]),
			PaymentMethod:   method,
			Status:          enum.PaymentStatusCompleted,
			ReferenceNumber: database.Text(req.ReferenceNumber),
			CashierName:     database.Text(req.CashierName),
		})
		if err != nil {
			return nil, storageError("create payment", err)
		}
		result.Orders = append(result.Orders, updated)
		result.Payments = append(result.Payments, payment)
	}

	if combined != nil {
		folded, err := store.ListOrdersCombinedInto(ctx, combined.ID)
		if err != nil {
			return nil, storageError("list folded orders", err)
		}
		for _, o := range folded {
			if o.PaymentStatus == enum.PaymentStatusCompleted {
				continue
			}
			if _, err := store.SettleOrder(ctx, database.SettleOrderParams{ID: o.ID, PaymentMethod: method}); err != nil {
				return nil, storageError("settle folded order", err)
			}
		}
	}

	table, err := store.ReleaseTable(ctx, tableID)
	if err != nil {
		return nil, storageError("release table", err)
	}
	result.Table = table
	return result, nil
}

// allocateProportional splits amount over weights. Every share but the
// last is truncated to cents; the last takes the remainder so the shares
// add up to amount exactly. With all-zero weights the last share takes
// everything.
func allocateProportional(amount decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	if len(weights) == 0 {
		return shares
	}
	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	allocated := decimal.Zero
	last := len(weights) - 1
	for i := 0; i < last; i++ {
		if sum.IsZero() {
			shares[i] = decimal.Zero
			continue
		}
		shares[i] = amount.Mul(weights[i]).Div(sum).Truncate(2)
		allocated = allocated.Add(shares[i])
	}
	shares[last] = amount.Sub(allocated)
	return shares
}
