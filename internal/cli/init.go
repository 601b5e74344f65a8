// Package cli provides common initialization helpers shared by
// cmd/finbits, cmd/finbits-worker and cmd/finbitsctl.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finbits/internal/backend"
	"finbits/internal/cache"
	"finbits/internal/config"
	"finbits/internal/core"
	"finbits/internal/generator"
	applog "finbits/internal/log"
	"finbits/internal/services"
	gsheet "finbits/internal/sheets/google"
	"finbits/internal/worker"
)

// SetupLogger initializes structured JSON logging at the given LOG_LEVEL.
// Unknown levels fall back to info. The logger becomes the slog default.
func SetupLogger(level string) *applog.Logger {
	lvl, err := config.ParseLogLevel(level)
	logger := applog.NewJSON(os.Stdout, lvl, applog.ComponentApp)
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", applog.FieldError, err.Error())
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads configuration and validates it.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured document store.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("init %s backend: %w", bcfg.Type, err)
	}
	return res, nil
}

// InitGenerator returns the OpenAI lesson generator, or the offline
// placeholder when no API key is configured.
func InitGenerator(logger *applog.Logger, cfg *config.Config) (generator.Generator, error) {
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, using placeholder lesson generator")
		return generator.Placeholder{}, nil
	}
	gen, err := generator.NewOpenAI(generator.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.GeneratorTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init generator: %w", err)
	}
	logger.Info("OpenAI lesson generator initialized", "model", cfg.OpenAIModel)
	return gen, nil
}

// InitLedgerHandler returns the SpendingRecorded handler that appends to
// the Google Sheets ledger. Without GOOGLE_SPREADSHEET_ID it returns nil and
// spending events have no ledger subscriber.
func InitLedgerHandler(ctx context.Context, logger *applog.Logger, cfg *config.Config) (worker.LedgerHandler, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets ledger disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := gsheet.NewFromEnv(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleLedgerSheet, logger)
	if err != nil {
		return nil, fmt.Errorf("init sheets ledger: %w", err)
	}
	if err := client.EnsureHeader(ctx); err != nil {
		// Appends still work without a header row.
		logger.Warn("Failed to write ledger header", applog.FieldError, err.Error())
	}
	logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleLedgerSheet)
	return services.NewLedgerService(client, logger), nil
}

// ReadCaches are the API's optional read caches. They only see writes made
// by this process, so they stay off unless CACHE_TTL is set; with them off
// both caches are nil and every read goes to the store.
type ReadCaches struct {
	Summaries *cache.LRUCache[[]core.SummaryItem]
	Catalog   *cache.LRUCache[[]core.Bit]
	manager   *cache.Manager
}

func InitReadCaches(logger *applog.Logger, cfg *config.Config) *ReadCaches {
	if cfg.CacheTTL <= 0 {
		logger.Info("Read caches disabled - no CACHE_TTL provided")
		return &ReadCaches{}
	}
	rc := &ReadCaches{
		Summaries: cache.NewLRUCache[[]core.SummaryItem](1000, cfg.CacheTTL),
		Catalog:   cache.NewLRUCache[[]core.Bit](16, cfg.CacheTTL),
		manager:   cache.NewManager(logger),
	}
	rc.manager.Register("budget_summary", rc.Summaries)
	rc.manager.Register("bit_catalog", rc.Catalog)
	rc.manager.StartCleanup(cfg.CacheTTL)
	logger.Info("Read caches enabled", "ttl", cfg.CacheTTL.String())
	return rc
}

// Stop ends the cache sweep. Safe when caches are disabled.
func (rc *ReadCaches) Stop() {
	if rc.manager != nil {
		rc.manager.Stop()
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has run or timed out.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

// Fatal logs the error and exits with status 1.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, slog.String(applog.FieldError, err.Error()))
	os.Exit(1)
}
