// pairchat - private two-person chat server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/pairchat/pairchat/internal/api"
	"github.com/pairchat/pairchat/internal/auth"
	"github.com/pairchat/pairchat/internal/avatars"
	"github.com/pairchat/pairchat/internal/config"
	"github.com/pairchat/pairchat/internal/middleware"
	"github.com/pairchat/pairchat/internal/realtime"
	"github.com/pairchat/pairchat/internal/stickers"
	"github.com/pairchat/pairchat/internal/store"
	"github.com/pairchat/pairchat/internal/sweeper"
	"github.com/pairchat/pairchat/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	avatarStore, err := avatars.NewStore(cfg.AvatarDir)
	if err != nil {
		slog.Error("Failed to initialize avatar storage", "error", err)
		os.Exit(1)
	}

	stickerService := stickers.NewService(cfg.Sticker)

	// Initialize services.
	hub := realtime.NewHub()

	// Initialize handlers.
	handler := api.NewHandler(repo, hub, cfg, stickerService, avatarStore)
	wsHandler := realtime.NewWebSocketHandler(hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{cfg.FrontendURL}))
	r.Use(auth.Middleware(repo, cfg.SessionTTL))

	handler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Uploaded avatars.
	r.Handle(avatars.URLPrefix+"*", avatarStore.Handler())

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WebSocket connections stay open indefinitely, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start background sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx, repo, cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
