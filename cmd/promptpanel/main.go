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

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	llmadapter "github.com/ericfisherdev/promptpanel/internal/adapter/driven/llm"
	sqliteadapter "github.com/ericfisherdev/promptpanel/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/promptpanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/promptpanel/internal/application"
	"github.com/ericfisherdev/promptpanel/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (.env is optional, env vars win).
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"provider_timeout", cfg.ProviderTimeout,
		"vault_enabled", cfg.HasMasterKey(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	promptStore := sqliteadapter.NewPromptRepo(db)
	responseStore := sqliteadapter.NewResponseRepo(db)
	summaryStore := sqliteadapter.NewSummaryRepo(db)
	vault := sqliteadapter.NewVaultRepo(db, cfg.MasterKey)
	registry := llmadapter.NewRegistry(cfg.OpenAIModel, cfg.AnthropicModel, cfg.GoogleModel)

	if !cfg.HasMasterKey() {
		slog.Warn("no master key configured, credential vault disabled until PROMPTPANEL_MASTER_KEY is set")
	}

	// 6. Create the fan-out coordinator.
	analyzer := application.NewAnalyzer(cfg.OutlierMargin)
	fanout := application.NewFanoutService(
		vault,
		registry,
		promptStore,
		responseStore,
		summaryStore,
		analyzer,
		cfg.ProviderTimeout,
		slog.Default(),
	)

	// 7. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(fanout, promptStore, responseStore, summaryStore, vault, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout: provider streams stay open for the full run.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Log startup complete.
	slog.Info("promptpanel started",
		"listen_addr", cfg.ListenAddr,
		"providers", registry.Names(),
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout to drain open streams.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
