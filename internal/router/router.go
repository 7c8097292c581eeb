package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/cafe-pos/api/internal/config"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/handler"
	mw "github.com/cafe-pos/api/internal/middleware"
	"github.com/cafe-pos/api/internal/service"
	"github.com/cafe-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Every engine route requires a bearer token; stock writes and
// reconciliation additionally require a manager.
func New(cfg *config.Config, engine *service.Engine, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(log.StandardLogger()))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket routes (auth via ?token= query param)
	r.Get("/ws/floor", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, ws.FloorRoomFunc, w, r)
	})
	r.Get("/ws/tables/{id}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, ws.TableRoomFunc, w, r)
	})

	orderHandler := handler.NewOrderHandler(engine.Orders, hub)
	tableHandler := handler.NewTableHandler(engine.Tables, hub)
	unpaidHandler := handler.NewUnpaidHandler(engine.Unpaid, hub)
	inventoryHandler := handler.NewInventoryHandler(engine.Stock, hub)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/orders", orderHandler.RegisterRoutes)
		r.Route("/tables", tableHandler.RegisterRoutes)
		r.Route("/unpaid-orders", unpaidHandler.RegisterRoutes)
		r.Route("/products", func(r chi.Router) {
			inventoryHandler.RegisterRoutes(r)
			r.With(mw.RequireRole(enum.UserRoleManager, enum.UserRoleAdmin)).
				Post("/{id}/stock", inventoryHandler.BookStock)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleManager, enum.UserRoleAdmin))
			r.Get("/inventory/reconcile", inventoryHandler.Reconcile)
		})
	})

	return r
}
