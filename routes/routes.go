package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/openclaims/coverd/app"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/health/ready", deps.HealthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		// Policy lifecycle
		r.Route("/policies", func(r chi.Router) {
			r.Post("/", deps.PolicyHandler.HandleCreate)
			r.Get("/", deps.PolicyHandler.HandleList)
			r.Get("/{id}", deps.PolicyHandler.HandleGet)
			r.Post("/{id}/verify", deps.PolicyHandler.HandleVerify)
			r.Post("/{id}/claims", deps.PolicyHandler.HandleRegisterClaim)
			r.Get("/{id}/events", deps.PolicyHandler.HandleListEvents)
		})

		// Administration. Authority is enforced by the engine against
		// its configured admin address, so no extra route middleware.
		r.Route("/admin", func(r chi.Router) {
			r.Post("/pause", deps.AdminHandler.HandlePause)
			r.Post("/unpause", deps.AdminHandler.HandleUnpause)
			r.Get("/status", deps.AdminHandler.HandleStatus)
			r.Post("/transfer", deps.AdminHandler.HandleTransferAdmin)
			r.Post("/policies/{id}/recover", deps.AdminHandler.HandleRecover)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
