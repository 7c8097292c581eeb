package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/handler"
	"github.com/cafe-pos/api/internal/middleware"
	"github.com/cafe-pos/api/internal/service"
	"github.com/cafe-pos/api/internal/ws"
)

// --- Mock StockServicer ---

type mockStockService struct {
	listProductsFn func(ctx context.Context, activeOnly bool) ([]database.Product, error)
	listTxFn       func(ctx context.Context, id string) ([]database.InventoryTransaction, error)
	receiveFn      func(ctx context.Context, req service.ReceiveStockRequest) (*database.Product, error)
	adjustFn       func(ctx context.Context, req service.AdjustStockRequest) (*database.Product, error)
	reconcileFn    func(ctx context.Context) ([]database.StockDiscrepancy, error)
}

func (m *mockStockService) ListProducts(ctx context.Context, activeOnly bool) ([]database.Product, error) {
	return m.listProductsFn(ctx, activeOnly)
}

func (m *mockStockService) ListTransactions(ctx context.Context, id string) ([]database.InventoryTransaction, error) {
	return m.listTxFn(ctx, id)
}

func (m *mockStockService) ReceiveStock(ctx context.Context, req service.ReceiveStockRequest) (*database.Product, error) {
	return m.receiveFn(ctx, req)
}

func (m *mockStockService) AdjustStock(ctx context.Context, req service.AdjustStockRequest) (*database.Product, error) {
	return m.adjustFn(ctx, req)
}

func (m *mockStockService) Reconcile(ctx context.Context) ([]database.StockDiscrepancy, error) {
	return m.reconcileFn(ctx)
}

func testProduct(name string, stock int32) database.Product {
	return database.Product{
		ID:            uuid.New(),
		Name:          name,
		Price:         database.DecimalToNumeric(num("20000")),
		StockQuantity: stock,
		IsActive:      true,
		UpdatedAt:     time.Now(),
	}
}

// inventoryRouter mirrors the production role gates.
func inventoryRouter(svc handler.StockServicer, pub handler.Publisher) *chi.Mux {
	h := handler.NewInventoryHandler(svc, pub)
	return newRouter(func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			h.RegisterRoutes(r)
			r.With(middleware.RequireRole(enum.UserRoleManager, enum.UserRoleAdmin)).Post("/{id}/stock", h.BookStock)
		})
		r.With(middleware.RequireRole(enum.UserRoleManager, enum.UserRoleAdmin)).Get("/inventory/reconcile", h.Reconcile)
	})
}

func TestListProducts(t *testing.T) {
	var gotActiveOnly []bool
	svc := &mockStockService{
		listProductsFn: func(ctx context.Context, activeOnly bool) ([]database.Product, error) {
			gotActiveOnly = append(gotActiveOnly, activeOnly)
			return []database.Product{testProduct("Coffee", 5)}, nil
		},
	}
	router := inventoryRouter(svc, nil)

	rr := doRequest(t, router, http.MethodGet, "/products", nil, cashierToken(t))
	require.Equal(t, http.StatusOK, rr.Code)
	products := decodeList(t, rr)
	require.Len(t, products, 1)
	assert.Equal(t, "20000.00", products[0]["price"])
	assert.EqualValues(t, 5, products[0]["stock_quantity"])

	doRequest(t, router, http.MethodGet, "/products?all=true", nil, cashierToken(t))
	assert.Equal(t, []bool{true, false}, gotActiveOnly)
}

func TestListInventoryTransactions(t *testing.T) {
	orderID := uuid.New()
	svc := &mockStockService{
		listTxFn: func(ctx context.Context, id string) ([]database.InventoryTransaction, error) {
			return []database.InventoryTransaction{
				{ID: uuid.New(), QuantityDelta: 10, Kind: enum.InventoryKindPurchase, Notes: database.Text("delivery")},
				{ID: uuid.New(), QuantityDelta: -2, Kind: enum.InventoryKindSale, ReferenceID: database.UUID(orderID)},
			}, nil
		},
	}
	rr := doRequest(t, inventoryRouter(svc, nil), http.MethodGet, "/products/"+uuid.NewString()+"/inventory", nil, cashierToken(t))
	require.Equal(t, http.StatusOK, rr.Code)
	txs := decodeList(t, rr)
	require.Len(t, txs, 2)
	assert.Equal(t, "delivery", txs[0]["notes"])
	assert.Nil(t, txs[0]["reference_id"])
	assert.Equal(t, orderID.String(), txs[1]["reference_id"])
}

func TestBookStock(t *testing.T) {
	product := testProduct("Coffee", 15)
	var received service.ReceiveStockRequest
	var adjusted service.AdjustStockRequest
	svc := &mockStockService{
		receiveFn: func(ctx context.Context, req service.ReceiveStockRequest) (*database.Product, error) {
			received = req
			return &product, nil
		},
		adjustFn: func(ctx context.Context, req service.AdjustStockRequest) (*database.Product, error) {
			adjusted = req
			if req.Delta < -15 {
				return nil, &service.InsufficientStockError{ProductID: product.ID, ProductName: product.Name, Available: 15, Requested: -req.Delta}
			}
			return &product, nil
		},
	}
	pub := &recordingPublisher{}
	router := inventoryRouter(svc, pub)
	path := "/products/" + product.ID.String() + "/stock"
	manager := token(t, enum.UserRoleManager)

	rr := doRequest(t, router, http.MethodPost, path, map[string]interface{}{"quantity": 10, "notes": "delivery"}, manager)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, int32(10), received.Quantity)
	assert.Equal(t, product.ID.String(), received.ProductID)

	rr = doRequest(t, router, http.MethodPost, path, map[string]interface{}{"kind": "adjustment", "quantity": -3}, manager)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(-3), adjusted.Delta)
	assert.Len(t, pub.rooms(ws.EventStockChanged), 2)

	rr = doRequest(t, router, http.MethodPost, path, map[string]interface{}{"kind": "adjustment", "quantity": -30}, manager)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, service.KindInsufficientStock, decodeBody(t, rr)["kind"])

	rr = doRequest(t, router, http.MethodPost, path, map[string]interface{}{"kind": "sale", "quantity": 1}, manager)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, router, http.MethodPost, path, map[string]interface{}{"quantity": 1}, cashierToken(t))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestReconcile(t *testing.T) {
	rows := []database.StockDiscrepancy{}
	svc := &mockStockService{
		reconcileFn: func(ctx context.Context) ([]database.StockDiscrepancy, error) {
			return rows, nil
		},
	}
	router := inventoryRouter(svc, nil)

	rr := doRequest(t, router, http.MethodGet, "/inventory/reconcile", nil, cashierToken(t))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/inventory/reconcile", nil, token(t, enum.UserRoleAdmin))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["consistent"])
	assert.Empty(t, body["discrepancies"])

	rows = []database.StockDiscrepancy{{ProductID: uuid.New(), Name: "Tea", StockQuantity: 9, LedgerQuantity: 3}}
	rr = doRequest(t, router, http.MethodGet, "/inventory/reconcile", nil, token(t, enum.UserRoleAdmin))
	body = decodeBody(t, rr)
	assert.Equal(t, false, body["consistent"])
	assert.Len(t, body["discrepancies"], 1)
}
