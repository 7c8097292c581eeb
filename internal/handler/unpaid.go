package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/service"
	"github.com/cafe-pos/api/internal/ws"
)

// UnpaidServicer defines the service methods needed by unpaid-ledger handlers.
// Satisfied by *service.UnpaidService.
type UnpaidServicer interface {
	AddToUnpaid(ctx context.Context, req service.AddUnpaidRequest) (*database.UnpaidOrder, error)
	ListUnpaid(ctx context.Context) ([]database.UnpaidOrder, error)
	GetUnpaid(ctx context.Context, id string) (*database.UnpaidOrder, error)
	MarkAsPaid(ctx context.Context, req service.MarkPaidRequest) (*service.MarkPaidResult, error)
	RemoveFromUnpaid(ctx context.Context, id string) error
}

// UnpaidHandler serves the unpaid-order side ledger.
type UnpaidHandler struct {
	svc    UnpaidServicer
	events Publisher
}

func NewUnpaidHandler(svc UnpaidServicer, events Publisher) *UnpaidHandler {
	return &UnpaidHandler{svc: svc, events: publisherOrNop(events)}
}

// RegisterRoutes registers ledger endpoints. Expected to be mounted at /unpaid-orders.
func (h *UnpaidHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/pay", h.Pay)
	r.Delete("/{id}", h.Remove)
}

type addUnpaidRequest struct {
	OrderID       string `json:"order_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Notes         string `json:"notes"`
}

type payUnpaidRequest struct {
	PaymentMethod   string `json:"payment_method"`
	ReferenceNumber string `json:"reference_number"`
	Notes           string `json:"notes"`
}

type unpaidResponse struct {
	ID            uuid.UUID       `json:"id"`
	OrderID       uuid.UUID       `json:"order_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone *string         `json:"customer_phone"`
	TableNumber   *string         `json:"table_number"`
	TotalAmount   string          `json:"total_amount"`
	Items         json.RawMessage `json:"items"`
	Notes         *string         `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
}

type markPaidResponse struct {
	Order   orderResponse   `json:"order"`
	Payment paymentResponse `json:"payment"`
}

func toUnpaidResponse(e database.UnpaidOrder) unpaidResponse {
	items := json.RawMessage(e.ItemsSummary)
	if len(items) == 0 {
		items = json.RawMessage("[]")
	}
	return unpaidResponse{
		ID:            e.ID,
		OrderID:       e.OrderID,
		CustomerName:  e.CustomerName,
		CustomerPhone: textPtr(e.CustomerPhone),
		TableNumber:   textPtr(e.TableNumber),
		TotalAmount:   money(e.TotalAmount),
		Items:         items,
		Notes:         textPtr(e.Notes),
		CreatedAt:     e.CreatedAt,
	}
}

// Add parks an order in the ledger.
func (h *UnpaidHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addUnpaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	entry, err := h.svc.AddToUnpaid(r.Context(), service.AddUnpaidRequest{
		OrderID:       req.OrderID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, "add unpaid", err)
		return
	}

	resp := toUnpaidResponse(*entry)
	h.events.Publish(ws.FloorRoom, ws.EventUnpaidAdded, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List returns every open ledger entry, oldest first.
func (h *UnpaidHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListUnpaid(r.Context())
	if err != nil {
		writeServiceError(w, r, "list unpaid", err)
		return
	}
	resp := make([]unpaidResponse, len(entries))
	for i, e := range entries {
		resp[i] = toUnpaidResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UnpaidHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.GetUnpaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "get unpaid", err)
		return
	}
	writeJSON(w, http.StatusOK, toUnpaidResponse(*entry))
}

// Pay collects the snapshot total and closes the entry.
func (h *UnpaidHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req payUnpaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	result, err := h.svc.MarkAsPaid(r.Context(), service.MarkPaidRequest{
		EntryID:         chi.URLParam(r, "id"),
		PaymentMethod:   req.PaymentMethod,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		CashierName:     cashierName(r),
	})
	if err != nil {
		writeServiceError(w, r, "mark unpaid as paid", err)
		return
	}

	resp := markPaidResponse{
		Order:   toOrderResponse(result.Order),
		Payment: toPaymentResponse(result.Payment),
	}
	publishFloor(h.events, result.Order.TableID, ws.EventUnpaidPaid, resp)
	writeJSON(w, http.StatusOK, resp)
}

// Remove drops an entry without payment; the order goes back to its table.
func (h *UnpaidHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.RemoveFromUnpaid(r.Context(), id); err != nil {
		writeServiceError(w, r, "remove unpaid", err)
		return
	}
	h.events.Publish(ws.FloorRoom, ws.EventUnpaidRemoved, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
