package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
)

// UnpaidService keeps orders customers will pay for later (tabs, staff meals).
// An order parked here leaves the table flow until it is paid or removed.
type UnpaidService struct {
	r *runner
}

// AddUnpaidRequest parks an order.
type AddUnpaidRequest struct {
	OrderID       string
	CustomerName  string
	CustomerPhone string
	Notes         string
}

// MarkPaidRequest collects payment for a parked order.
type MarkPaidRequest struct {
	EntryID         string
	PaymentMethod   string
	ReferenceNumber string
	Notes           string
	CashierName     string
}

// MarkPaidResult is the paid order and the payment recorded for it.
type MarkPaidResult struct {
	Order   database.Order
	Payment database.Payment
}

// UnpaidItem is one line of the item snapshot stored with an entry.
type UnpaidItem struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	TotalPrice  string    `json:"total_price"`
}

// AddToUnpaid snapshots an order into the side ledger. Only unpaid, live,
// uncombined orders can be parked, and each at most once.
func (s *UnpaidService) AddToUnpaid(ctx context.Context, req AddUnpaidRequest) (*database.UnpaidOrder, error) {
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return nil, ErrInvalidOrderID
	}
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return nil, ErrCustomerNameRequired
	}

	var entry database.UnpaidOrder
	err = s.r.inTx(ctx, "add unpaid", func(ctx context.Context, store Store) error {
		order, err := lockOrder(ctx, store, orderID)
		if err != nil {
			return err
		}
		switch {
		case order.IsCombined:
			return ErrCombinedNotParkable
		case order.CombinedIntoOrderID.Valid:
			return ErrAlreadyCombined
		case order.PaymentStatus == enum.PaymentStatusCompleted:
			return ErrOrderAlreadyPaid
		case order.OrderStatus == enum.OrderStatusCancelled || order.OrderStatus == enum.OrderStatusRefunded:
			return ErrOrderClosed
		}

		if _, err := store.GetUnpaidOrderByOrder(ctx, orderID); err == nil {
			return ErrAlreadyUnpaid
		} else if !isNoRows(err) {
			return storageError("get unpaid entry", err)
		}

		items, err := store.ListOrderItemsByOrder(ctx, orderID)
		if err != nil {
			return storageError("list order items", err)
		}
		summary, err := itemsSummary(items)
		if err != nil {
			return err
		}

		var tableNumber string
		if order.TableID.Valid {
			table, err := store.GetTable(ctx, order.TableID.Bytes)
			if err != nil {
				return notFoundOr(err, ErrTableNotFound, "get table")
			}
			tableNumber = table.TableNumber
		}

		entry, err = store.CreateUnpaidOrder(ctx, database.CreateUnpaidOrderParams{
			OrderID:       orderID,
			CustomerName:  name,
			CustomerPhone: database.Text(req.CustomerPhone),
			TableNumber:   database.Text(tableNumber),
			TotalAmount:   order.FinalAmount,
			ItemsSummary:  summary,
			Notes:         database.Text(req.Notes),
		})
		if err != nil {
			if isUnpaidConflict(err) {
				return ErrAlreadyUnpaid
			}
			return storageError("create unpaid entry", err)
		}

		if order.TableID.Valid {
			return releaseTableIfIdle(ctx, store, order.TableID.Bytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"order_id": orderID, "entry_id": entry.ID, "customer": name}).Info("order parked as unpaid")
	return &entry, nil
}

func itemsSummary(items []database.OrderItem) ([]byte, error) {
	lines := make([]UnpaidItem, len(items))
	for i, item := range items {
		lines[i] = UnpaidItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   database.NumericToDecimal(item.UnitPrice).StringFixed(2),
			TotalPrice:  database.NumericToDecimal(item.TotalPrice).StringFixed(2),
		}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return nil, storageError("encode items summary", err)
	}
	return b, nil
}

func isUnpaidConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "unpaid_orders_order_id_key"
}

func (s *UnpaidService) ListUnpaid(ctx context.Context) ([]database.UnpaidOrder, error) {
	entries, err := s.r.reader().ListUnpaidOrders(ctx)
	if err != nil {
		return nil, storageError("list unpaid entries", err)
	}
	return entries, nil
}

func (s *UnpaidService) GetUnpaid(ctx context.Context, id string) (*database.UnpaidOrder, error) {
	entryID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidEntryID
	}
	entry, err := s.r.reader().GetUnpaidOrder(ctx, entryID)
	if err != nil {
		return nil, notFoundOr(err, ErrUnpaidEntryNotFound, "get unpaid entry")
	}
	return &entry, nil
}

// lockEntry locks, in global order, the table, the order and the entry.
func lockEntry(ctx context.Context, store Store, entryID uuid.UUID) (database.UnpaidOrder, database.Order, error) {
	entry, err := store.GetUnpaidOrder(ctx, entryID)
	if err != nil {
		return database.UnpaidOrder{}, database.Order{}, notFoundOr(err, ErrUnpaidEntryNotFound, "get unpaid entry")
	}
	order, err := lockOrder(ctx, store, entry.OrderID)
	if err != nil {
		return database.UnpaidOrder{}, database.Order{}, err
	}
	entry, err = store.GetUnpaidOrderForUpdate(ctx, entryID)
	if err != nil {
		return database.UnpaidOrder{}, database.Order{}, notFoundOr(err, ErrUnpaidEntryNotFound, "lock unpaid entry")
	}
	return entry, order, nil
}

// MarkAsPaid records one payment for the snapshot total, marks the order
// paid and removes the entry. The order's own status is left alone.
func (s *UnpaidService) MarkAsPaid(ctx context.Context, req MarkPaidRequest) (*MarkPaidResult, error) {
	entryID, err := uuid.Parse(req.EntryID)
	if err != nil {
		return nil, ErrInvalidEntryID
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, ErrPaymentMethodRequired
	}

	var result *MarkPaidResult
	err = s.r.inTx(ctx, "mark unpaid as paid", func(ctx context.Context, store Store) error {
		entry, order, err := lockEntry(ctx, store, entryID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == enum.PaymentStatusCompleted {
			return ErrOrderAlreadyPaid
		}
		if order.OrderStatus == enum.OrderStatusCancelled || order.OrderStatus == enum.OrderStatusRefunded {
			return ErrOrderClosed
		}

		updated, err := store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{ID: order.ID, PaymentMethod: method})
		if err != nil {
			return storageError("mark order paid", err)
		}
		payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID:         order.ID,
			Amount:          entry.TotalAmount,
			PaymentMethod:   method,
			Status:          enum.PaymentStatusCompleted,
			ReferenceNumber: database.Text(req.ReferenceNumber),
			CashierName:     database.Text(req.CashierName),
			Notes:           database.Text(req.Notes),
		})
		if err != nil {
			return storageError("create payment", err)
		}
		if _, err := store.DeleteUnpaidOrder(ctx, entry.ID); err != nil {
			return storageError("delete unpaid entry", err)
		}
		if order.TableID.Valid {
			if err := releaseTableIfIdle(ctx, store, order.TableID.Bytes); err != nil {
				return err
			}
		}
		result = &MarkPaidResult{Order: updated, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"entry_id": entryID,
		"order_id": result.Order.ID,
		"amount":   database.NumericToDecimal(result.Payment.Amount).StringFixed(2),
	}).Info("unpaid order paid")
	return result, nil
}

// RemoveFromUnpaid drops an entry without paying. The order goes back to
// the table flow; if it still sits on a table, the table is occupied again.
func (s *UnpaidService) RemoveFromUnpaid(ctx context.Context, id string) error {
	entryID, err := uuid.Parse(id)
	if err != nil {
		return ErrInvalidEntryID
	}

	err = s.r.inTx(ctx, "remove unpaid", func(ctx context.Context, store Store) error {
		entry, order, err := lockEntry(ctx, store, entryID)
		if err != nil {
			return err
		}
		n, err := store.DeleteUnpaidOrder(ctx, entry.ID)
		if err != nil {
			return storageError("delete unpaid entry", err)
		}
		if n == 0 {
			return ErrUnpaidEntryNotFound
		}
		open := order.PaymentStatus == enum.PaymentStatusPending &&
			(order.OrderStatus == enum.OrderStatusActive || order.OrderStatus == enum.OrderStatusCompleted)
		if order.TableID.Valid && open {
			if _, err := store.OccupyTable(ctx, database.OccupyTableParams{ID: order.TableID.Bytes, OrderID: order.ID}); err != nil {
				return storageError("occupy table", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.WithField("entry_id", entryID).Info("unpaid entry removed")
	return nil
}
