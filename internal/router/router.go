package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scanserve/api/internal/config"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/enum"
	"github.com/scanserve/api/internal/handler"
	mw "github.com/scanserve/api/internal/middleware"
	"github.com/scanserve/api/internal/service"
	"github.com/scanserve/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Customer routes carry no JWT; staff routes apply authentication,
// restaurant scoping, and role middleware.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	// Services shared across surfaces
	orderService := service.NewOrderService(queries, hub)
	billingService := service.NewBillingService(pool, queries,
		func(db database.DBTX) service.BillingStore { return database.New(db) }, hub)
	revenueService := service.NewRevenueService(queries)
	requestService := service.NewServiceRequestService(queries, hub)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Customer routes (QR surface, no JWT)
	publicHandler := handler.NewPublicHandler(queries, orderService, requestService)
	publicHandler.RegisterRoutes(r)

	// WebSocket routes (staff socket authenticates via query param)
	r.Get("/ws/restaurants/{rid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeStaffWS(hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/sessions/{sid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeSessionWS(hub, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Platform provisioning (SUPER_ADMIN only)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleSuperAdmin))
			restaurantHandler := handler.NewRestaurantHandler(queries, int32(cfg.DefaultTzOffsetMinutes))
			r.Route("/admin", restaurantHandler.RegisterRoutes)
		})

		// Restaurant-scoped staff routes
		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(mw.RequireRestaurant)

			orderHandler := handler.NewOrderHandler(queries, orderService)
			orderHandler.RegisterRoutes(r)

			billingHandler := handler.NewBillingHandler(billingService)
			billingHandler.RegisterRoutes(r)

			requestHandler := handler.NewServiceRequestHandler(requestService)
			requestHandler.RegisterRoutes(r)

			// Admin-only management and reports
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleSuperAdmin, enum.RoleRestaurantAdmin))

				menuHandler := handler.NewMenuHandler(queries)
				menuHandler.RegisterRoutes(r)

				tableHandler := handler.NewTableHandler(queries)
				tableHandler.RegisterRoutes(r)

				revenueHandler := handler.NewRevenueHandler(revenueService)
				revenueHandler.RegisterRoutes(r)
			})
		})
	})

	return r
}
