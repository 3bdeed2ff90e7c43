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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pulseboard/tenancy/internal/adapter/devauth"
	tnhttp "github.com/pulseboard/tenancy/internal/adapter/http"
	tnnats "github.com/pulseboard/tenancy/internal/adapter/nats"
	"github.com/pulseboard/tenancy/internal/adapter/natskv"
	otelx "github.com/pulseboard/tenancy/internal/adapter/otel"
	"github.com/pulseboard/tenancy/internal/adapter/postgres"
	"github.com/pulseboard/tenancy/internal/adapter/ristretto"
	"github.com/pulseboard/tenancy/internal/adapter/tiered"
	"github.com/pulseboard/tenancy/internal/adapter/ws"
	"github.com/pulseboard/tenancy/internal/config"
	"github.com/pulseboard/tenancy/internal/logger"
	"github.com/pulseboard/tenancy/internal/middleware"
	"github.com/pulseboard/tenancy/internal/port/broadcast"
	"github.com/pulseboard/tenancy/internal/port/cache"
	"github.com/pulseboard/tenancy/internal/resilience"
	"github.com/pulseboard/tenancy/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"collections", cfg.Session.Collections,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := tnnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// --- Snapshot cache: in-process L1 in front of a NATS KV L2 ---

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()

	kv, err := queue.SnapshotBucket(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		return fmt.Errorf("l2 bucket: %w", err)
	}

	var snapshots cache.Cache = tiered.New(l1, natskv.New(kv), cfg.Cache.L2TTL)

	metrics, err := otelx.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	auth := devauth.New()

	resolver := service.NewResolver(store, resilience.Policy{
		MaxRetries: cfg.Resolver.MaxRetries,
		BaseDelay:  cfg.Resolver.RetryBaseDelay,
	}, metrics)

	sess := service.NewSession(
		resolver,
		service.NewInitializer(store, cfg.Session.Collections),
		store, auth,
		service.SessionOpts{
			Broadcasters: []broadcast.Broadcaster{queue, hub},
			Snapshots:    snapshots,
			SnapshotTTL:  cfg.Cache.L2TTL,
			Metrics:      metrics,
		},
	)

	runCtx, stopSession := context.WithCancel(ctx)
	defer stopSession()
	go sess.Run(runCtx)

	// --- HTTP ---

	handlers := &tnhttp.Handlers{
		Session: sess,
		Store:   store,
		Auth:    auth,
		Hub:     hub,
	}

	r := chi.NewRouter()

	r.Use(tnhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(tnhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(otelx.HTTPMiddleware("tenancyd"))

	tnhttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("tenancyd listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			done <- syscall.SIGTERM
		}
	}()

	<-done
	slog.Info("shutting down")

	stopSession()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
