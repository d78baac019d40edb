package web

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/atlasops/backoffice/internal/auth"
	"github.com/atlasops/backoffice/internal/ratelimit"
	"github.com/atlasops/backoffice/internal/web/handlers"
	"github.com/atlasops/backoffice/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	AuthHandler         *handlers.AuthHandler
	ContactHandler      *handlers.ContactHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	DashboardHandler    *handlers.DashboardHandler
	AuthService         *auth.Service
	Limiter             *ratelimit.Limiter
	AllowedOrigins      []string
	DB                  *sql.DB
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Public endpoints (rate limited)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Limiter))

		r.Post("/api/contact", deps.ContactHandler.HandleSubmit)
		r.Post("/api/email/subscribe", deps.SubscriptionHandler.HandleSubscribe)
		r.Post("/api/email/unsubscribe", deps.SubscriptionHandler.HandleUnsubscribe)
		r.Post("/api/auth/login", deps.AuthHandler.HandleLogin)
	})

	// Admin endpoints (bearer token, admin role)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(deps.AuthService))

		r.Get("/api/contact", deps.ContactHandler.HandleList)
		r.Get("/api/contact/stats", deps.ContactHandler.HandleStats)
		r.Get("/api/contact/{id}", deps.ContactHandler.HandleGet)
		r.Put("/api/contact/{id}", deps.ContactHandler.HandleUpdate)
		r.Delete("/api/contact/{id}", deps.ContactHandler.HandleDelete)

		r.Get("/api/email/subscriptions", deps.SubscriptionHandler.HandleList)
		r.Get("/api/email/stats", deps.SubscriptionHandler.HandleStats)
		r.Put("/api/email/subscription/{id}", deps.SubscriptionHandler.HandleUpdate)
		r.Delete("/api/email/subscription/{id}", deps.SubscriptionHandler.HandleDelete)

		r.Get("/api/dashboard/overview", deps.DashboardHandler.HandleOverview)
		r.Get("/api/dashboard/analytics", deps.DashboardHandler.HandleAnalytics)

		r.Post("/api/auth/logout", deps.AuthHandler.HandleLogout)
		r.Get("/api/auth/me", deps.AuthHandler.HandleMe)
	})

	return r
}
