package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saborportugues/api/internal/config"
	"github.com/saborportugues/api/internal/database"
	"github.com/saborportugues/api/internal/enum"
	"github.com/saborportugues/api/internal/events"
	"github.com/saborportugues/api/internal/handler"
	mw "github.com/saborportugues/api/internal/middleware"
	"github.com/saborportugues/api/internal/payment"
	"github.com/saborportugues/api/internal/routing"
	"github.com/saborportugues/api/internal/service"
	"github.com/saborportugues/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, session loading, restaurant scoping, and
// role-based middleware as needed.
func New(
	cfg *config.Config,
	queries *database.Queries,
	pool *pgxpool.Pool,
	hub *ws.Hub,
	slugs routing.SlugLookup,
	publisher events.Publisher,
	checkout payment.Checkout,
) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Location"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, slugs)
	authHandler.RegisterRoutes(r)

	activationService := service.NewActivationService(pool, queries, func(db database.DBTX) service.ActivationStore {
		return database.New(db)
	}, cfg.JWTSecret)
	handler.NewActivationHandler(activationService).RegisterRoutes(r)

	subscriptionService := service.NewSubscriptionService(queries, checkout, cfg.PublicURL)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, slugs)
	subscriptionHandler.RegisterPublicRoutes(r)

	trackingHandler := handler.NewTrackingHandler(queries, slugs)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeOrderWS(hub, cfg.JWTSecret, trackingHandler.GuardClaims, trackingHandler.LoadView, w, r)
	})

	// Protected routes (require authentication and a stored profile)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.LoadSession(queries))

		handler.NewMeHandler(slugs).RegisterRoutes(r)
		handler.NewDashboardHandler(service.NewDashboardService(queries), slugs).RegisterRoutes(r)
		handler.NewDriverHandler(service.NewDriverService(queries, publisher), slugs).RegisterRoutes(r)
		trackingHandler.RegisterRoutes(r)
		subscriptionHandler.RegisterRoutes(r)

		// Platform administration
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RolePlatformOwner, enum.RoleSuperAdmin))
			userHandler := handler.NewUserHandler(
				pool,
				queries,
				func(db database.DBTX) handler.UserStore {
					return database.New(db)
				},
				cfg.JWTSecret,
				cfg.PublicURL,
				service.DefaultQRGenerator{Size: 256},
			)
			r.Route("/admin", userHandler.RegisterRoutes)
		})

		// Restaurant-scoped routes
		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleRestaurantAdmin, enum.RoleKitchen, enum.RoleSuperAdmin, enum.RolePlatformOwner))
			r.Use(mw.RequireRestaurant)

			orderHandler := handler.NewRestaurantOrderHandler(service.NewRestaurantOrderService(queries, publisher))
			r.Route("/orders", orderHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
