package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/service"
	"github.com/cafe-pos/api/internal/ws"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService.
type TableServicer interface {
	ListTables(ctx context.Context) ([]database.CafeTable, error)
	GetTableBill(ctx context.Context, id string) (*service.TableBill, error)
	CreateCombinedOrder(ctx context.Context, req service.CombineRequest) (*service.CombineResult, error)
	ProcessTablePayment(ctx context.Context, req service.TablePaymentRequest) (*service.TablePaymentResult, error)
}

// TableHandler serves table bills, combining and settlement.
type TableHandler struct {
	svc    TableServicer
	events Publisher
}

func NewTableHandler(svc TableServicer, events Publisher) *TableHandler {
	return &TableHandler{svc: svc, events: publisherOrNop(events)}
}

// RegisterRoutes registers table endpoints. Expected to be mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}/bill", h.Bill)
	r.Post("/{id}/combine", h.Combine)
	r.Post("/{id}/payments", h.Pay)
}

type combineRequest struct {
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
	Notes         string `json:"notes"`
}

type tablePaymentRequest struct {
	PaymentMethod   string `json:"payment_method"`
	AmountPaid      string `json:"amount_paid"`
	DiscountAmount  string `json:"discount_amount"`
	ReferenceNumber string `json:"reference_number"`
}

type billItemResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int32  `json:"quantity"`
	TotalPrice  string `json:"total_price"`
}

type billResponse struct {
	Table          tableResponse      `json:"table"`
	Orders         []orderResponse    `json:"orders"`
	CombinedOrder  *orderResponse     `json:"combined_order"`
	Items          []billItemResponse `json:"items"`
	Subtotal       string             `json:"subtotal"`
	DiscountAmount string             `json:"discount_amount"`
	GrandTotal     string             `json:"grand_total"`
}

type combineResponse struct {
	Order        orderResponse   `json:"order"`
	FoldedOrders []orderResponse `json:"folded_orders"`
	Existing     bool            `json:"existing"`
}

type tablePaymentResponse struct {
	Table          tableResponse     `json:"table"`
	Orders         []orderResponse   `json:"orders"`
	Payments       []paymentResponse `json:"payments"`
	TotalBill      string            `json:"total_bill"`
	DiscountAmount string            `json:"discount_amount"`
	RequiredAmount string            `json:"required_amount"`
	AmountPaid     string            `json:"amount_paid"`
	Change         string            `json:"change"`
}

func toBillResponse(b *service.TableBill) billResponse {
	resp := billResponse{
		Table:          toTableResponse(b.Table),
		Orders:         toOrderResponses(b.Orders),
		Items:          make([]billItemResponse, len(b.Items)),
		Subtotal:       moneyDec(b.Subtotal),
		DiscountAmount: moneyDec(b.DiscountAmount),
		GrandTotal:     moneyDec(b.GrandTotal),
	}
	if b.CombinedOrder != nil {
		c := toOrderResponse(*b.CombinedOrder)
		resp.CombinedOrder = &c
	}
	for i, it := range b.Items {
		resp.Items[i] = billItemResponse{
			ProductID:   it.ProductID.String(),
			ProductName: it.ProductName,
			UnitPrice:   moneyDec(it.UnitPrice),
			Quantity:    it.Quantity,
			TotalPrice:  moneyDec(it.TotalPrice),
		}
	}
	return resp
}

// List returns every table with its status.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.svc.ListTables(r.Context())
	if err != nil {
		writeServiceError(w, r, "list tables", err)
		return
	}
	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Bill returns the live bill of a table.
func (h *TableHandler) Bill(w http.ResponseWriter, r *http.Request) {
	bill, err := h.svc.GetTableBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "get table bill", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillResponse(bill))
}

// Combine folds the table's open orders into one bill. Repeating the call
// returns the pending bill with 200 instead of 201.
func (h *TableHandler) Combine(w http.ResponseWriter, r *http.Request) {
	var req combineRequest
	// The body is optional: an empty one combines without a discount.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid request body")
		return
	}

	result, err := h.svc.CreateCombinedOrder(r.Context(), service.CombineRequest{
		TableID:       chi.URLParam(r, "id"),
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		Notes:         req.Notes,
		CashierName:   cashierName(r),
	})
	if err != nil {
		writeServiceError(w, r, "combine table", err)
		return
	}

	order := toOrderResponse(result.Order)
	order.Items = toOrderItemResponses(result.Items)
	resp := combineResponse{
		Order:        order,
		FoldedOrders: toOrderResponses(result.Folded),
		Existing:     result.Existing,
	}

	status := http.StatusOK
	if !result.Existing {
		status = http.StatusCreated
		publishFloor(h.events, result.Order.TableID, ws.EventTableCombined, resp)
	}
	writeJSON(w, status, resp)
}

// Pay settles everything open at the table with one payment.
func (h *TableHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req tablePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	result, err := h.svc.ProcessTablePayment(r.Context(), service.TablePaymentRequest{
		TableID:         chi.URLParam(r, "id"),
		PaymentMethod:   req.PaymentMethod,
		AmountPaid:      req.AmountPaid,
		DiscountAmount:  req.DiscountAmount,
		ReferenceNumber: req.ReferenceNumber,
		CashierName:     cashierName(r),
	})
	if err != nil {
		writeServiceError(w, r, "settle table", err)
		return
	}

	resp := tablePaymentResponse{
		Table:          toTableResponse(result.Table),
		Orders:         toOrderResponses(result.Orders),
		Payments:       toPaymentResponses(result.Payments),
		TotalBill:      moneyDec(result.TotalBill),
		DiscountAmount: moneyDec(result.DiscountAmount),
		RequiredAmount: moneyDec(result.RequiredAmount),
		AmountPaid:     moneyDec(result.AmountPaid),
		Change:         moneyDec(result.Change),
	}
	h.events.Publish(ws.FloorRoom, ws.EventTableSettled, resp)
	h.events.Publish(ws.TableRoom(result.Table.ID), ws.EventTableSettled, resp)
	writeJSON(w, http.StatusOK, resp)
}
