package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/middleware"
	"github.com/cafe-pos/api/internal/service"
	"github.com/cafe-pos/api/internal/ws"
)

// Publisher pushes realtime events to connected screens.
// Satisfied by *ws.Hub.
type Publisher interface {
	Publish(room, eventType string, payload interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, interface{}) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// publishFloor sends to the floor room and, when the event belongs to a
// table, to that table's room as well.
func publishFloor(p Publisher, tableID pgtype.UUID, eventType string, payload interface{}) {
	p.Publish(ws.FloorRoom, eventType, payload)
	if tableID.Valid {
		p.Publish(ws.TableRoom(uuid.UUID(tableID.Bytes)), eventType, payload)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("encode JSON response")
	}
}

func statusForKind(kind string) int {
	switch kind {
	case service.KindInvalidRequest:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInsufficientStock, service.KindAlreadyCombined, service.KindAlreadyUnpaid,
		service.KindNothingToCombine, service.KindNoOpenOrders, service.KindConflict:
		return http.StatusConflict
	case service.KindInsufficientPayment:
		return http.StatusUnprocessableEntity
	case service.KindStorageFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders an engine error as {"error", "kind", ...}.
// Failures the caller cannot fix are logged and their detail withheld.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := service.KindOf(err)
	status := statusForKind(kind)
	body := map[string]interface{}{"error": err.Error(), "kind": kind}

	var payErr *service.InsufficientPaymentError
	var stockErr *service.InsufficientStockError
	switch {
	case errors.As(err, &payErr):
		body["required"] = payErr.Required.StringFixed(2)
		body["paid"] = payErr.Paid.StringFixed(2)
		body["shortfall"] = payErr.Shortfall().StringFixed(2)
	case errors.As(err, &stockErr):
		body["product_id"] = stockErr.ProductID
		body["available"] = stockErr.Available
		body["requested"] = stockErr.Requested
	}

	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"op":         op,
			"kind":       kind,
			"request_id": requestID(r),
		}).Error("request failed")
		if status == http.StatusServiceUnavailable {
			body["error"] = "storage unavailable, please retry"
		} else {
			body["error"] = "internal server error"
		}
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg, "kind": service.KindInvalidRequest})
}

func requestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}

// cashierName is the display name of the authenticated actor.
func cashierName(r *http.Request) string {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Name
	}
	return ""
}

// --- Value formatting ---

func money(n pgtype.Numeric) string {
	return database.NumericToDecimal(n).StringFixed(2)
}

func moneyDec(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func uuidPtr(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}

// --- Shared response types ---

type orderResponse struct {
	ID                  uuid.UUID           `json:"id"`
	OrderNumber         string              `json:"order_number"`
	CustomerID          *string             `json:"customer_id"`
	TableID             *string             `json:"table_id"`
	Subtotal            string              `json:"subtotal"`
	DiscountAmount      string              `json:"discount_amount"`
	FinalAmount         string              `json:"final_amount"`
	PaymentMethod       *string             `json:"payment_method"`
	PaymentStatus       string              `json:"payment_status"`
	OrderStatus         string              `json:"order_status"`
	IsCombined          bool                `json:"is_combined"`
	CombinedIntoOrderID *string             `json:"combined_into_order_id"`
	Notes               *string             `json:"notes"`
	CashierName         *string             `json:"cashier_name"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	Items               []orderItemResponse `json:"items,omitempty"`
	Payments            []paymentResponse   `json:"payments,omitempty"`
}

type orderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	TotalPrice  string    `json:"total_price"`
}

type paymentResponse struct {
	ID              uuid.UUID `json:"id"`
	OrderID         uuid.UUID `json:"order_id"`
	Amount          string    `json:"amount"`
	PaymentMethod   string    `json:"payment_method"`
	Status          string    `json:"status"`
	ReferenceNumber *string   `json:"reference_number"`
	CashierName     *string   `json:"cashier_name"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
}

type tableResponse struct {
	ID             uuid.UUID `json:"id"`
	TableNumber    string    `json:"table_number"`
	Status         string    `json:"status"`
	CurrentOrderID *string   `json:"current_order_id"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		CustomerID:          uuidPtr(o.CustomerID),
		TableID:             uuidPtr(o.TableID),
		Subtotal:            money(o.Subtotal),
		DiscountAmount:      money(o.DiscountAmount),
		FinalAmount:         money(o.FinalAmount),
		PaymentMethod:       textPtr(o.PaymentMethod),
		PaymentStatus:       o.PaymentStatus,
		OrderStatus:         o.OrderStatus,
		IsCombined:          o.IsCombined,
		CombinedIntoOrderID: uuidPtr(o.CombinedIntoOrderID),
		Notes:               textPtr(o.Notes),
		CashierName:         textPtr(o.CashierName),
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

func toOrderResponses(orders []database.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

func toOrderItemResponses(items []database.OrderItem) []orderItemResponse {
	resp := make([]orderItemResponse, len(items))
	for i, it := range items {
		resp[i] = orderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   money(it.UnitPrice),
			TotalPrice:  money(it.TotalPrice),
		}
	}
	return resp
}

func toPaymentResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		OrderID:         p.OrderID,
		Amount:          money(p.Amount),
		PaymentMethod:   p.PaymentMethod,
		Status:          p.Status,
		ReferenceNumber: textPtr(p.ReferenceNumber),
		CashierName:     textPtr(p.CashierName),
		Notes:           textPtr(p.Notes),
		CreatedAt:       p.CreatedAt,
	}
}

func toPaymentResponses(payments []database.Payment) []paymentResponse {
	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	return resp
}

func toTableResponse(t database.CafeTable) tableResponse {
	return tableResponse{
		ID:             t.ID,
		TableNumber:    t.TableNumber,
		Status:         t.Status,
		CurrentOrderID: uuidPtr(t.CurrentOrderID),
	}
}
