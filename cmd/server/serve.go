package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ashureev/aidiary/internal/agent"
	"github.com/ashureev/aidiary/internal/api"
	"github.com/ashureev/aidiary/internal/guard"
	"github.com/ashureev/aidiary/internal/identity"
	"github.com/ashureev/aidiary/internal/middleware"
	"github.com/ashureev/aidiary/internal/socket"
)

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		Long: `Start the chat server.

Routes: /health, /metrics, /api/chat (JSON and SSE), /api/chat/sessions,
/api/reports, /api/me and /ws/chat. Graceful shutdown on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "auth", cfg.AuthEnabled())

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	guard.StartSweeper(ctx, a.guard, cfg.Chat.DedupSweepPeriod)
	slog.Info("Duplicate guard sweeper started", "window", a.guard.Window(), "period", cfg.Chat.DedupSweepPeriod)

	tokens := identity.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	limiter := agent.NewRateLimiter(ctx, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	registry := socket.NewRegistry()

	chatHandler := agent.NewHandler(a.chat, a.sessions, limiter, cfg.Chat.MaxRequestBytes)
	accountHandler := api.NewAccountHandler(a.repo, a.reports, a.generator.Name(), cfg.AuthEnabled())
	healthHandler := api.NewHealthHandler(a.repo, a.generator)
	wsHandler := socket.NewHandler(a.chat, registry, a.repo, cfg.FrontendURL, cfg.IsDevelopment())

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(a.repo, tokens, cfg.IsDevelopment()))
		chatHandler.RegisterRoutes(r)
		accountHandler.RegisterRoutes(r)
		r.Get("/ws/chat", wsHandler.ServeHTTP)
	})

	// SSE and WebSocket turns may outlast any fixed write deadline.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	stop()

	slog.Info("Shutting down gracefully...")
	registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server stopped successfully")
	return nil
}
