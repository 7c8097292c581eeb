package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusActive    = "active"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunded  = "refunded"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusReserved  = "reserved"
)

const (
	InventoryKindSale       = "sale"
	InventoryKindPurchase   = "purchase"
	InventoryKindAdjustment = "adjustment"
)

// ── Group C: Borderline (checked at the router, not in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
)

// ── Group B: Configurable labels (no DB constraint) ──

// Payment method is a free-form label; these are the ones the front-end offers.
const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodQRIS     = "qris"
	PaymentMethodTransfer = "transfer"
)

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED_AMOUNT"
)

// Restock reasons recorded in inventory transaction notes.
const (
	RestockReasonRefund = "refund"
	RestockReasonCancel = "cancel"
)

const (
	// OrderNumberPrefix prefixes regular order numbers: ORD-20260101-0001.
	OrderNumberPrefix = "ORD"
	// CombinedOrderPrefix is reserved for combined table bills: CMB-T<table>-<unix nanos>.
	CombinedOrderPrefix = "CMB"
)
