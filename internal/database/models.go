package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Product struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Price         pgtype.Numeric `json:"price"`
	StockQuantity int32          `json:"stock_quantity"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type CafeTable struct {
	ID             uuid.UUID   `json:"id"`
	TableNumber    string      `json:"table_number"`
	Status         string      `json:"status"`
	CurrentOrderID pgtype.UUID `json:"current_order_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type Order struct {
	ID                  uuid.UUID      `json:"id"`
	OrderNumber         string         `json:"order_number"`
	CustomerID          pgtype.UUID    `json:"customer_id"`
	TableID             pgtype.UUID    `json:"table_id"`
	Subtotal            pgtype.Numeric `json:"subtotal"`
	DiscountAmount      pgtype.Numeric `json:"discount_amount"`
	FinalAmount         pgtype.Numeric `json:"final_amount"`
	PaymentMethod       pgtype.Text    `json:"payment_method"`
	PaymentStatus       string         `json:"payment_status"`
	OrderStatus         string         `json:"order_status"`
	IsCombined          bool           `json:"is_combined"`
	CombinedIntoOrderID pgtype.UUID    `json:"combined_into_order_id"`
	Notes               pgtype.Text    `json:"notes"`
	CashierName         pgtype.Text    `json:"cashier_name"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// OrderItem rows are written once at order creation. ProductName is joined
// from products for display and is not stored on the row.
type OrderItem struct {
	ID          uuid.UUID      `json:"id"`
	OrderID     uuid.UUID      `json:"order_id"`
	ProductID   uuid.UUID      `json:"product_id"`
	ProductName string         `json:"product_name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	TotalPrice  pgtype.Numeric `json:"total_price"`
	CreatedAt   time.Time      `json:"created_at"`
}

type InventoryTransaction struct {
	ID            uuid.UUID   `json:"id"`
	ProductID     uuid.UUID   `json:"product_id"`
	QuantityDelta int32       `json:"quantity_delta"`
	Kind          string      `json:"kind"`
	ReferenceID   pgtype.UUID `json:"reference_id"`
	Notes         pgtype.Text `json:"notes"`
	CreatedAt     time.Time   `json:"created_at"`
}

type Payment struct {
	ID              uuid.UUID      `json:"id"`
	OrderID         uuid.UUID      `json:"order_id"`
	Amount          pgtype.Numeric `json:"amount"`
	PaymentMethod   string         `json:"payment_method"`
	Status          string         `json:"status"`
	ReferenceNumber pgtype.Text    `json:"reference_number"`
	CashierName     pgtype.Text    `json:"cashier_name"`
	Notes           pgtype.Text    `json:"notes"`
	CreatedAt       time.Time      `json:"created_at"`
}

type UnpaidOrder struct {
	ID            uuid.UUID      `json:"id"`
	OrderID       uuid.UUID      `json:"order_id"`
	CustomerName  string         `json:"customer_name"`
	CustomerPhone pgtype.Text    `json:"customer_phone"`
	TableNumber   pgtype.Text    `json:"table_number"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
	ItemsSummary  []byte         `json:"items_summary"`
	Notes         pgtype.Text    `json:"notes"`
	CreatedAt     time.Time      `json:"created_at"`
}

// StockDiscrepancy is a product whose counter disagrees with its ledger.
type StockDiscrepancy struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	StockQuantity  int32     `json:"stock_quantity"`
	LedgerQuantity int64     `json:"ledger_quantity"`
}
