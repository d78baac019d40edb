package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasops/backoffice/internal/auth"
	"github.com/atlasops/backoffice/internal/config"
	"github.com/atlasops/backoffice/internal/contact"
	"github.com/atlasops/backoffice/internal/dashboard"
	"github.com/atlasops/backoffice/internal/database"
	"github.com/atlasops/backoffice/internal/ratelimit"
	"github.com/atlasops/backoffice/internal/store/postgres"
	"github.com/atlasops/backoffice/internal/subscription"
	"github.com/atlasops/backoffice/internal/web"
	"github.com/atlasops/backoffice/internal/web/handlers"
	"github.com/atlasops/backoffice/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Database
	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Migrations
	if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Stores
	userStore := postgres.NewUserStore(db)
	sessionStore := postgres.NewSessionStore(db)
	contactStore := postgres.NewContactStore(db)
	subscriptionStore := postgres.NewSubscriptionStore(db)

	// Services
	authService := auth.NewService(userStore, sessionStore, cfg.SessionMaxAge)
	contactService := contact.NewService(contactStore, userStore)
	subscriptionService := subscription.NewService(subscriptionStore)
	dashboardService := dashboard.NewService(contactStore, subscriptionStore, userStore)

	// Bootstrap admin account
	if err := authService.SeedAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
		slog.Error("failed to seed admin user", "error", err)
		os.Exit(1)
	}

	// Rate limiter
	limiter := ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	// Handlers
	expose := !cfg.IsProduction()
	authHandler := handlers.NewAuthHandler(authService, cfg.MaxBodyBytes, expose)
	contactHandler := handlers.NewContactHandler(contactService, cfg.MaxBodyBytes, expose)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService, cfg.MaxBodyBytes, expose)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, expose)

	// Router
	router := web.NewRouter(web.RouterDeps{
		AuthHandler:         authHandler,
		ContactHandler:      contactHandler,
		SubscriptionHandler: subscriptionHandler,
		DashboardHandler:    dashboardHandler,
		AuthService:         authService,
		Limiter:             limiter,
		AllowedOrigins:      cfg.AllowedOrigins,
		DB:                  db,
	})

	// Session cleanup goroutine
	sweeperDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweeperDone:
				return
			case <-ticker.C:
				if err := sessionStore.DeleteExpiredSessions(context.Background()); err != nil {
					slog.Error("failed to clean up expired sessions", "error", err)
				}
			}
		}
	}()

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("backoffice starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down...")
	close(sweeperDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
