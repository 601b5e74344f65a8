package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finbits/internal/amqp"
	"finbits/internal/cli"
	applog "finbits/internal/log"
	"finbits/internal/services"
	"finbits/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting finbits-worker")
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Worker requires a broker", errors.New("AMQP_URL is not set"))
	}

	ctx := context.Background()
	store, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		if store.Cleanup != nil {
			_ = store.Cleanup()
		}
	}()

	ledger, err := cli.InitLedgerHandler(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize spending ledger", err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	w := worker.New(
		services.NewProgressionService(store.Backend, store.Backend, logger),
		ledger,
		logger,
	)

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", applog.FieldError, err.Error())
		}
	})

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return w.Run(gctx, amqpClient)
	})
	g.Go(func() error {
		// Surface a dead broker connection in the logs while consuming.
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if !amqpClient.Healthy() {
					logger.Warn("AMQP connection unhealthy")
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Event consumption failed", applog.FieldError, err.Error())
		_ = amqpClient.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker stopped gracefully")
}
