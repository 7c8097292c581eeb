package ws

// Event types pushed to floor and table screens.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventTableCombined      = "table.combined"
	EventTableSettled       = "table.settled"
	EventUnpaidAdded        = "unpaid.added"
	EventUnpaidPaid         = "unpaid.paid"
	EventUnpaidRemoved      = "unpaid.removed"
	EventStockChanged       = "stock.changed"
)
