package main

import (
	"context"
	"errors"
	"os"
	"time"

	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/config"
	"saldo/internal/log"
	"saldo/internal/worker"
)

// backfillWindow is how far back closures are re-exported at start-up.
const backfillWindow = 30 * 24 * time.Hour

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting saldo-worker")

	cfg := cli.LoadAndValidateConfig(logger, func(c *config.Config) error {
		if err := c.Validate(); err != nil {
			return err
		}
		if c.AMQPURL == "" {
			return errors.New("AMQP_URL is required by the export worker")
		}
		return nil
	})

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)
	b, err := factory.Create(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer b.Close()
	if b.AMQP == nil {
		logger.Error("AMQP client unavailable, nothing to consume")
		os.Exit(1)
	}

	exporter, err := factory.CreateExporter(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)
	w := worker.NewExportWorker(exporter, b.Store.Ledger(), logger, 100)

	logger.Info("Performing startup backfill...", "exporter", bcfg.Exporter.String())
	if _, err := w.Backfill(ctx, time.Now().Add(-backfillWindow)); err != nil {
		logger.Error("Startup backfill failed", log.FieldError, err.Error())
	}

	if err := w.Run(ctx, b.AMQP); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
	}
	<-done
}
