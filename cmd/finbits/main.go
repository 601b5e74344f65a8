package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finbits/internal/amqp"
	"finbits/internal/auth"
	"finbits/internal/cli"
	"finbits/internal/events"
	apphttp "finbits/internal/http"
	applog "finbits/internal/log"
	"finbits/internal/services"
	"finbits/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}

	caches := cli.InitReadCaches(logger, cfg)

	gen, err := cli.InitGenerator(logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize lesson generator", err)
	}

	progression := services.NewProgressionService(store.Backend, store.Backend, logger)

	// With a broker configured, events go to RabbitMQ and finbits-worker
	// consumes them. Otherwise they are handled in-process.
	var (
		publisher  events.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		publisher = amqpClient
		logger.Info("Publishing domain events to AMQP", "exchange", cfg.AMQPExchange)
	} else {
		ledger, err := cli.InitLedgerHandler(ctx, logger, cfg)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize spending ledger", err)
		}
		publisher = worker.New(progression, ledger, logger)
		logger.Info("Handling domain events in-process")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Budgets:            services.NewBudgetService(store.Backend, publisher, caches.Summaries, logger),
		Learning:           services.NewLearningService(store.Backend, store.Backend, gen, publisher, caches.Catalog, logger),
		Progression:        progression,
		Auth:               auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL),
		Ready:              store.Backend.Ping,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv.ReadTimeout = 10 * time.Second
	// Lesson generation can take most of the generator timeout.
	srv.WriteTimeout = cfg.GeneratorTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err.Error())
			}
		}
		if store.Cleanup != nil {
			if err := store.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", applog.FieldError, err.Error())
			}
		}
	})

	logger.Info("Starting finbits server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
