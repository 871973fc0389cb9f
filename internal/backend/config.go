package backend

import (
	"fmt"
	"strings"
	"time"

	"saldo/internal/config"
	"saldo/internal/storage"
)

// Config holds everything needed to build the shared infrastructure.
type Config struct {
	// Database
	Dialect           storage.Dialect
	SQLiteDBPath      string
	SQLiteBusyTimeout time.Duration
	DatabaseURL       string

	// Exchange rates; RatesURL "off" selects the fallback-only provider.
	RatesURL     string
	RatesTTL     time.Duration
	RatesTimeout time.Duration

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Closure export
	Exporter            ExporterType
	GoogleSpreadsheetID string
	GoogleClosuresSheet string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	exporter := MemoryExporter
	if strings.TrimSpace(appConfig.GoogleSpreadsheetID) != "" {
		exporter = SheetsExporter
	}

	cfg := Config{
		Dialect:           storage.Dialect(appConfig.DBDriver),
		SQLiteDBPath:      appConfig.SQLiteDBPath,
		SQLiteBusyTimeout: appConfig.SQLiteBusyTimeout,
		DatabaseURL:       appConfig.DatabaseURL,

		RatesURL:     appConfig.RatesURL,
		RatesTTL:     appConfig.RatesTTL,
		RatesTimeout: appConfig.RatesTimeout,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Exporter:            exporter,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleClosuresSheet: appConfig.GoogleClosuresSheet,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	switch c.Dialect {
	case storage.DialectSQLite:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case storage.DialectPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", c.Dialect)
	}

	if !c.Exporter.IsValid() {
		return fmt.Errorf("invalid exporter type: %s", c.Exporter)
	}
	if c.Exporter == SheetsExporter && c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("spreadsheet id is required for the sheets exporter")
	}
	return nil
}

// RatesDisabled reports whether balances always use the fallback rate.
func (c Config) RatesDisabled() bool {
	return strings.EqualFold(c.RatesURL, "off")
}
