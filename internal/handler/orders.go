package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/middleware"
	"github.com/cafe-pos/api/internal/service"
	"github.com/cafe-pos/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (*service.OrderResult, error)
	GetOrder(ctx context.Context, id string) (*service.OrderResult, error)
	ListPayments(ctx context.Context, id string) ([]database.Payment, error)
	ListOrders(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	events Publisher
}

// NewOrderHandler creates a new OrderHandler. events may be nil.
func NewOrderHandler(svc OrderServicer, events Publisher) *OrderHandler {
	return &OrderHandler{svc: svc, events: publisherOrNop(events)}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Get("/{id}/payments", h.ListPayments)
}

// --- Request types ---

type createOrderRequest struct {
	CustomerID     string                   `json:"customer_id"`
	TableID        string                   `json:"table_id"`
	PaymentMethod  string                   `json:"payment_method"`
	DiscountAmount string                   `json:"discount_amount"`
	Notes          string                   `json:"notes"`
	DeferPayment   bool                     `json:"defer_payment"`
	Items          []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func toOrderResultResponse(res *service.OrderResult) orderResponse {
	resp := toOrderResponse(res.Order)
	resp.Items = toOrderItemResponses(res.Items)
	resp.Payments = toPaymentResponses(res.Payments)
	return resp
}

// --- Handlers ---

// Create places an order, decrementing stock for every line.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CreateOrderItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		CustomerID:     req.CustomerID,
		TableID:        req.TableID,
		PaymentMethod:  req.PaymentMethod,
		DiscountAmount: req.DiscountAmount,
		Notes:          req.Notes,
		CashierName:    cashierName(r),
		DeferPayment:   req.DeferPayment,
		Items:          items,
	})
	if err != nil {
		writeServiceError(w, r, "create order", err)
		return
	}

	resp := toOrderResultResponse(result)
	publishFloor(h.events, result.Order.TableID, ws.EventOrderCreated, resp)
	for _, item := range result.Items {
		h.events.Publish(ws.FloorRoom, ws.EventStockChanged, map[string]interface{}{
			"product_id": item.ProductID,
			"delta":      -item.Quantity,
			"order_id":   result.Order.ID,
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List returns orders filtered by order_status, payment_status and table_id.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.ListOrdersRequest{
		OrderStatus:   q.Get("order_status"),
		PaymentStatus: q.Get("payment_status"),
		TableID:       q.Get("table_id"),
	}
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeBadRequest(w, "invalid limit")
			return
		}
		req.Limit = int32(v)
	}
	if s := q.Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeBadRequest(w, "invalid offset")
			return
		}
		req.Offset = int32(v)
	}

	orders, err := h.svc.ListOrders(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// Get returns a single order with its items and payments.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResultResponse(result))
}

// UpdateStatus moves an order along its lifecycle. Refunds need a
// MANAGER or ADMIN token.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Status == "" {
		writeBadRequest(w, "status is required")
		return
	}

	if req.Status == enum.OrderStatusRefunded {
		if !middleware.HasRole(r.Context(), enum.UserRoleManager, enum.UserRoleAdmin) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "refunds require a manager"})
			return
		}
	}

	result, err := h.svc.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, "update order status", err)
		return
	}

	resp := toOrderResultResponse(result)
	publishFloor(h.events, result.Order.TableID, ws.EventOrderStatusChanged, resp)
	writeJSON(w, http.StatusOK, resp)
}

// ListPayments returns the payments recorded against an order.
func (h *OrderHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.svc.ListPayments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "list payments", err)
		return
	}

	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(database.NumericToDecimal(p.Amount))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payments": toPaymentResponses(payments),
		"total":    moneyDec(total),
	})
}
