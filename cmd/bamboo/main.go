package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bamboobank/bamboo-bank-go/internal/config"
	"github.com/bamboobank/bamboo-bank-go/internal/domain"
	"github.com/bamboobank/bamboo-bank-go/internal/handler"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/cache"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/observability"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/resilience"
	"github.com/bamboobank/bamboo-bank-go/internal/infra/supabase"
	"github.com/bamboobank/bamboo-bank-go/internal/ledger"
	"github.com/bamboobank/bamboo-bank-go/internal/ledger/memstore"
	"github.com/bamboobank/bamboo-bank-go/internal/port"
	"github.com/bamboobank/bamboo-bank-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("txn_max_attempts", cfg.TxnMaxAttempts),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(context.Background(), "bamboo-bank", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	contactCache := cache.New[[]domain.Contact](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	guard := resilience.NewGuard()

	// --- Document store ---
	var store port.DocStore
	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		logger.Info("using Supabase as ledger store",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		cb := resilience.NewCircuitBreaker("supabase")
		client := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilienceCfg,
			logger,
		)
		realtime := supabase.NewRealtime(cfg.SupabaseURL, cfg.SupabaseAnonKey, logger)
		store = supabase.NewLedgerStore(client, realtime, metrics, logger)
	} else {
		logger.Warn("Supabase not configured, using volatile in-memory store")
		store = memstore.New()
	}

	// --- Ledger ---
	runner := ledger.NewRunner(store, cfg.TxnMaxAttempts, metrics)
	reader := ledger.NewReader(store)

	// --- Services ---
	authSvc := service.NewAuthService(runner, reader, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	transferEngine := service.NewTransferEngine(runner, guard, metrics, logger)
	escrowEngine := service.NewEscrowEngine(runner, guard, metrics, logger, cfg.CommissionAccountID)
	projectionSvc := service.NewProjectionService(reader, contactCache, metrics, logger)
	adminSvc := service.NewAdminService(reader, logger)

	if cfg.CommissionAccountID == "" {
		logger.Warn("COMMISSION_ACCOUNT_ID not set, released commissions are burned")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Auth:        authSvc,
		Transfers:   transferEngine,
		Escrow:      escrowEngine,
		Projections: projectionSvc,
		Admin:       adminSvc,
	}, store, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
