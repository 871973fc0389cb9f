package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"saldo/internal/auth"
	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/config"
	apphttp "saldo/internal/http"
	"saldo/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	logger.Info("Starting saldo API")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateAPI)

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

	svc := b.Services(logger)
	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Authenticator:      auth.NewJWTAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Ready:              b.Ready,
		Caches:             b.Caches,
	}, apphttp.Services{
		Balance:  svc.Balance,
		Closures: svc.Closures,
		Ledger:   svc.Ledger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err.Error())
		_ = b.Close()
		os.Exit(1)
	}

	_, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("HTTP server shutdown failed", log.FieldError, err.Error())
		}
	})

	logger.Info("HTTP server listening",
		"addr", srv.Addr,
		"db_driver", cfg.DBDriver,
		"events_enabled", b.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server failed", log.FieldError, err.Error())
		_ = b.Close()
		os.Exit(1)
	}

	<-done
	if err := b.Close(); err != nil {
		logger.Error("Failed to release resources", log.FieldError, err.Error())
	}
}
