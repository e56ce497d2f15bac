package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/comanda-pos/api/internal/config"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/handler"
	mw "github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Auth routes and the health check are public; everything else sits
// behind JWT authentication, with role checks on the mutating routes.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public, login rate limited per IP)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	loginLimiter := mw.NewLoginRateLimiter()
	r.Group(func(r chi.Router) {
		r.Use(loginLimiter.Limit)
		authHandler.RegisterRoutes(r)
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{topic}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services share one ephemeral session store so a settlement opened
	// through one handler is visible to all of them.
	sessions := service.NewSessionStore()
	settlementService := service.NewSettlement(
		queries,
		pool,
		func(db database.DBTX) service.Store { return database.New(db) },
		sessions,
	)
	tableCoordinator := service.NewTableCoordinator(
		queries,
		pool,
		func(db database.DBTX) service.TableStore { return database.New(db) },
	)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		orderHandler := handler.NewOrderHandler(settlementService, queries, hub)
		r.Route("/orders", orderHandler.RegisterRoutes)

		// Settling money is the cashier's job.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleCashier))
			settlementHandler := handler.NewSettlementHandler(settlementService, hub)
			r.Route("/settlements", settlementHandler.RegisterRoutes)
		})

		tableHandler := handler.NewTableHandler(tableCoordinator, queries, hub)
		r.Route("/tables", tableHandler.RegisterRoutes)

		productHandler := handler.NewProductHandler(queries)
		r.Route("/products", productHandler.RegisterRoutes)
	})

	log.Info().Msg("router initialized with all handlers")
	return r
}
