// ALICE - Chat Assistant Server
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

	"github.com/alicelabs/alice-chat/internal/api"
	"github.com/alicelabs/alice-chat/internal/chat"
	"github.com/alicelabs/alice-chat/internal/config"
	"github.com/alicelabs/alice-chat/internal/identity"
	"github.com/alicelabs/alice-chat/internal/inference"
	"github.com/alicelabs/alice-chat/internal/middleware"
	"github.com/alicelabs/alice-chat/internal/store"
	"github.com/alicelabs/alice-chat/web"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "persona", cfg.Persona.Name)

	// Initialize dependencies.
	members, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := members.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := members.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	guests := store.NewMemory()

	provider := identity.NewClient(cfg.IdentityURL, cfg.IdentityServiceKey)
	llm := inference.NewClient(cfg.InferenceURL, cfg.InferenceToken,
		inference.WithModel(cfg.Persona.Model),
		inference.WithMaxTokens(cfg.Persona.MaxTokens),
		inference.WithTemperature(cfg.Persona.Temperature),
	)

	exchange := chat.NewExchange(members, guests, llm, cfg.Persona)

	// Initialize handlers.
	baseHandler := api.NewHandler(exchange, cfg)
	authHandler := api.NewAuthHandler(baseHandler, provider)
	chatHandler := api.NewChatHandler(baseHandler)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(api.ClientMiddleware(provider, cfg.IsDevelopment()))

	authHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)

	// Serve embedded chat client (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server. Inference calls can take a while, so the write timeout
	// is generous.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
