package backend

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"saldo/internal/config"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/rates"
	"saldo/internal/sheets/memory"
	"saldo/internal/storage"
)

func quietLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	return log.New(cfg)
}

func sqliteConfig(t *testing.T) Config {
	return Config{
		Dialect:      storage.DialectSQLite,
		SQLiteDBPath: filepath.Join(t.TempDir(), "saldo.db"),
		RatesURL:     "off",
		RatesTTL:     time.Minute,
		RatesTimeout: time.Second,
		Exporter:     MemoryExporter,
	}
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DBDriver:            "sqlite",
		SQLiteDBPath:        "data/test.db",
		RatesURL:            "https://dolarapi.com",
		GoogleClosuresSheet: "Cierres",
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Exporter != MemoryExporter || cfg.Dialect != storage.DialectSQLite {
		t.Fatalf("cfg = %+v", cfg)
	}

	app.GoogleSpreadsheetID = "sheet-1"
	if cfg, _ = FromAppConfig(app); cfg.Exporter != SheetsExporter {
		t.Fatalf("exporter = %s, want sheets", cfg.Exporter)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Dialect = "mysql" }},
		{"missing sqlite path", func(c *Config) { c.SQLiteDBPath = "" }},
		{"postgres without url", func(c *Config) { c.Dialect = storage.DialectPostgres }},
		{"unknown exporter", func(c *Config) { c.Exporter = "csv" }},
		{"sheets without id", func(c *Config) { c.Exporter = SheetsExporter }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := sqliteConfig(t)
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestFactory_CreateSQLite(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(quietLogger())

	b, err := f.Create(ctx, sqliteConfig(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer b.Close()

	if b.Publisher() != nil {
		t.Error("publisher should be nil without a broker")
	}
	if _, ok := b.Rates.(rates.StaticProvider); !ok {
		t.Errorf("rates = %T, want StaticProvider", b.Rates)
	}
	if err := b.Ready(ctx); err != nil {
		t.Fatalf("Ready: %v", err)
	}

	svc := b.Services(quietLogger())
	if _, err := svc.Balance.SetMonthlyIncome(ctx, "u1", core.Money{Cents: 10000}); err != nil {
		t.Fatal(err)
	}
	summary, err := svc.Closures.ClosePeriod(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.NetBalance.Cents != 10000 {
		t.Errorf("net = %d", summary.NetBalance.Cents)
	}
}

func TestFactory_RatesEnabledRegistersCache(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.RatesURL = "http://127.0.0.1:1"

	b, err := NewFactory(quietLogger()).Create(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer b.Close()

	if _, ok := b.Rates.(*rates.CachedProvider); !ok {
		t.Fatalf("rates = %T", b.Rates)
	}
	if _, ok := b.Caches.Stats()["rates"]; !ok {
		t.Error("rates cache not registered")
	}
}

func TestFactory_CreateExporter(t *testing.T) {
	exp, err := NewFactory(quietLogger()).CreateExporter(context.Background(), Config{Exporter: MemoryExporter})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := exp.(*memory.Store); !ok {
		t.Fatalf("exporter = %T", exp)
	}
	if _, err := NewFactory(nil).CreateExporter(context.Background(), Config{Exporter: "csv"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestBackend_CloseCollectsErrors(t *testing.T) {
	var order []int
	b := &Backend{}
	b.addCleanup(func() error { order = append(order, 1); return errors.New("first") })
	b.addCleanup(func() error { order = append(order, 2); return nil })
	b.addCleanup(func() error { order = append(order, 3); return errors.New("third") })

	err := b.Close()
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Errorf("cleanup order = %v", order)
	}
	if b.Close() != nil {
		t.Error("second Close should be a no-op")
	}
}
