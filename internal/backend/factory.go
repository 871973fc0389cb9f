package backend

import (
	"context"
	"fmt"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/cache"
	"saldo/internal/log"
	"saldo/internal/rates"
	"saldo/internal/sheets"
	gsheet "saldo/internal/sheets/google"
	"saldo/internal/sheets/memory"
	"saldo/internal/storage"
)

// CacheSweepInterval is how often expired cache entries are dropped.
const CacheSweepInterval = time.Minute

// Factory builds backends from configuration.
type Factory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create opens the database and builds the rate provider and the optional
// broker client. Close the returned backend when done.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, storage.Options{
		Dialect:     cfg.Dialect,
		SQLitePath:  cfg.SQLiteDBPath,
		DatabaseURL: cfg.DatabaseURL,
		BusyTimeout: cfg.SQLiteBusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Dialect, err)
	}
	b := &Backend{Store: store, Caches: cache.NewManager()}
	b.addCleanup(store.Close)
	f.logger.InfoContext(ctx, "Initialized store", "driver", string(cfg.Dialect))

	b.Rates = f.createRates(ctx, cfg, b.Caches)
	b.Caches.StartCleanup(CacheSweepInterval)
	b.addCleanup(func() error {
		b.Caches.Stop()
		return nil
	})

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
				log.FieldError, err.Error())
		} else {
			b.AMQP = client
			b.addCleanup(client.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	return b, nil
}

func (f *Factory) createRates(ctx context.Context, cfg Config, caches *cache.Manager) rates.Provider {
	if cfg.RatesDisabled() {
		f.logger.InfoContext(ctx, "Exchange rates disabled, balances use the fallback rate")
		return rates.StaticProvider{}
	}
	provider := rates.NewCachedProvider(rates.NewDolarAPIClient(cfg.RatesURL, cfg.RatesTimeout), cfg.RatesTTL)
	caches.Register("rates", provider.Cache())
	f.logger.InfoContext(ctx, "Initialized exchange rate provider",
		"url", cfg.RatesURL,
		"ttl", cfg.RatesTTL.String())
	return provider
}

// CreateExporter builds the closure exporter selected by cfg.Exporter.
func (f *Factory) CreateExporter(ctx context.Context, cfg Config) (sheets.ClosureExporter, error) {
	switch cfg.Exporter {
	case SheetsExporter:
		cli, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleClosuresSheet, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Google Sheets exporter", "sheet", cfg.GoogleClosuresSheet)
		return cli, nil
	case MemoryExporter:
		f.logger.InfoContext(ctx, "Initialized memory exporter")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
}
