package main

import (
	"context"
	"os"
	"time"

	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/log"
	"saldo/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentScheduler)
	logger.Info("Starting closure-scheduler")

	cfg := cli.LoadAndValidateConfig(logger, nil)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	b, err := backend.NewFactory(logger).Create(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer b.Close()

	closures := services.NewClosureService(b.Store, b.Publisher(), logger)
	scheduler := services.NewClosureScheduler(b.Store, closures, logger)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)
	interval := cfg.SchedulerInterval
	logger.Info("Closure scheduler configured",
		"interval", interval.String(),
		"events_enabled", b.AMQP != nil)

	run := func(now time.Time) {
		count, err := scheduler.ProcessDueClosures(ctx, now)
		if err != nil {
			logger.Error("Scheduled closure pass failed", log.FieldError, err.Error())
			return
		}
		logger.Info("Scheduled closure pass complete",
			"closed", count,
			"next_check", now.Add(interval).Format("15:04:05"))
	}

	run(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case now := <-ticker.C:
			run(now)
		}
	}
}
