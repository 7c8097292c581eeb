package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/service"
	"github.com/cafe-pos/api/internal/ws"
)

// StockServicer defines the stock ledger methods needed by inventory handlers.
// Satisfied by *service.StockLedger.
type StockServicer interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]database.Product, error)
	ListTransactions(ctx context.Context, id string) ([]database.InventoryTransaction, error)
	ReceiveStock(ctx context.Context, req service.ReceiveStockRequest) (*database.Product, error)
	AdjustStock(ctx context.Context, req service.AdjustStockRequest) (*database.Product, error)
	Reconcile(ctx context.Context) ([]database.StockDiscrepancy, error)
}

// InventoryHandler serves products and their stock ledger.
type InventoryHandler struct {
	svc    StockServicer
	events Publisher
}

func NewInventoryHandler(svc StockServicer, events Publisher) *InventoryHandler {
	return &InventoryHandler{svc: svc, events: publisherOrNop(events)}
}

// RegisterRoutes registers the read-only product endpoints. Expected to be
// mounted at /products. Stock writes are registered by the router behind a
// role gate.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListProducts)
	r.Get("/{id}/inventory", h.ListTransactions)
}

// --- Request / Response types ---

// stockRequest books either a purchase (quantity > 0) or a signed adjustment.
type stockRequest struct {
	Kind        string `json:"kind"`
	Quantity    int32  `json:"quantity"`
	ReferenceID string `json:"reference_id"`
	Notes       string `json:"notes"`
}

type productResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Price         string    `json:"price"`
	StockQuantity int32     `json:"stock_quantity"`
	IsActive      bool      `json:"is_active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type inventoryTransactionResponse struct {
	ID            uuid.UUID `json:"id"`
	QuantityDelta int32     `json:"quantity_delta"`
	Kind          string    `json:"kind"`
	ReferenceID   *string   `json:"reference_id"`
	Notes         *string   `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

func toProductResponse(p database.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Price:         money(p.Price),
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
		UpdatedAt:     p.UpdatedAt,
	}
}

// --- Handlers ---

// ListProducts returns active products; ?all=true includes inactive ones.
func (h *InventoryHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	products, err := h.svc.ListProducts(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, r, "list products", err)
		return
	}
	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListTransactions returns a product's inventory ledger.
func (h *InventoryHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.ListTransactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "list inventory", err)
		return
	}
	resp := make([]inventoryTransactionResponse, len(txs))
	for i, t := range txs {
		resp[i] = inventoryTransactionResponse{
			ID:            t.ID,
			QuantityDelta: t.QuantityDelta,
			Kind:          t.Kind,
			ReferenceID:   uuidPtr(t.ReferenceID),
			Notes:         textPtr(t.Notes),
			CreatedAt:     t.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// BookStock receives goods or applies a manual correction.
func (h *InventoryHandler) BookStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	productID := chi.URLParam(r, "id")
	var (
		product *database.Product
		err     error
	)
	switch req.Kind {
	case enum.InventoryKindPurchase, "":
		product, err = h.svc.ReceiveStock(r.Context(), service.ReceiveStockRequest{
			ProductID:   productID,
			Quantity:    req.Quantity,
			ReferenceID: req.ReferenceID,
			Notes:       req.Notes,
		})
	case enum.InventoryKindAdjustment:
		product, err = h.svc.AdjustStock(r.Context(), service.AdjustStockRequest{
			ProductID: productID,
			Delta:     req.Quantity,
			Notes:     req.Notes,
		})
	default:
		writeBadRequest(w, "kind must be purchase or adjustment")
		return
	}
	if err != nil {
		writeServiceError(w, r, "book stock", err)
		return
	}

	resp := toProductResponse(*product)
	h.events.Publish(ws.FloorRoom, ws.EventStockChanged, resp)
	writeJSON(w, http.StatusOK, resp)
}

// Reconcile lists products whose stock counter disagrees with their ledger.
func (h *InventoryHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Reconcile(r.Context())
	if err != nil {
		writeServiceError(w, r, "reconcile stock", err)
		return
	}
	if rows == nil {
		rows = []database.StockDiscrepancy{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"consistent":    len(rows) == 0,
		"discrepancies": rows,
	})
}
