// Ops console server: hosts the operator views over websockets and brokers
// every call to the REST backend.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/ashureev/ops-console/internal/agent"
	"github.com/ashureev/ops-console/internal/api"
	"github.com/ashureev/ops-console/internal/config"
	"github.com/ashureev/ops-console/internal/console"
	"github.com/ashureev/ops-console/internal/gateway"
	"github.com/ashureev/ops-console/internal/logger"
	"github.com/ashureev/ops-console/internal/middleware"
	"github.com/ashureev/ops-console/internal/session"
	"github.com/ashureev/ops-console/internal/store"
	"github.com/ashureev/ops-console/internal/tracing"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to a YAML config file (overrides CONSOLE_CONFIG_FILE)")
	port := flag.StringP("port", "p", "", "listen port (overrides PORT)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "backend", cfg.Backend.BaseURL)

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	convLog, err := agent.NewConversationLogger(cfg.ConversationLog, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := convLog.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	if cfg.AccessKey == "" {
		slog.Warn("CONSOLE_ACCESS_KEY is not set, any operator can log in")
	}
	sessions := session.NewManager(repo, cfg.AccessKey, cfg.SessionTTL, session.WithLogger(log))
	hub := console.NewHub()
	gw := gateway.New(cfg.Backend, log)

	registry := console.NewRegistry(
		func(sess *session.Session) console.Backend { return gw.For(sess) },
		cfg,
		console.WithLogger(log),
		console.WithConversationLog(convLog),
	)

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(repo, gw)
	sessionHandler := api.NewSessionHandler(sessions, hub, cfg.IsDevelopment())
	wsHandler := console.NewWebSocketHandler(registry, hub, cfg.FrontendURL, cfg.IsDevelopment(), cfg.RateLimit, log)

	origins := []string{"*"}
	if cfg.FrontendURL != "" {
		origins = []string{cfg.FrontendURL}
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(origins))
	r.Use(session.Middleware(sessions))
	r.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	healthHandler.RegisterHealth(r)
	sessionHandler.RegisterRoutes(r)
	r.With(session.Require).Get("/ws/views/{view}", wsHandler.ServeHTTP)

	// Websocket connections are long lived, so there is no WriteTimeout.
	// Requests inherit ctx so open views are torn down on shutdown.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	sweeperDone := session.StartSweeper(ctx, sessions, session.DefaultSweepInterval, hub.CloseSession)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-sweeperDone

	slog.Info("Server stopped successfully")
	return nil
}
