package backend

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"saldo/internal/amqp"
	"saldo/internal/cache"
	"saldo/internal/log"
	"saldo/internal/rates"
	"saldo/internal/services"
	"saldo/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ExporterType selects where closures are mirrored.
type ExporterType string

const (
	SheetsExporter ExporterType = "sheets"
	MemoryExporter ExporterType = "memory"
)

// String implements fmt.Stringer
func (t ExporterType) String() string {
	return string(t)
}

// IsValid returns true if the exporter type is known
func (t ExporterType) IsValid() bool {
	switch t {
	case SheetsExporter, MemoryExporter:
		return true
	default:
		return false
	}
}

// Backend is the infrastructure shared by every binary.
type Backend struct {
	Store  *storage.Store
	Rates  rates.Provider
	Caches *cache.Manager
	// AMQP is nil when no broker is configured.
	AMQP *amqp.Client

	cleanups []CleanupFunc
}

// Publisher returns the closure publisher, or nil without a broker.
func (b *Backend) Publisher() services.ClosurePublisher {
	if b.AMQP == nil {
		return nil
	}
	return b.AMQP
}

// Ready reports whether the database answers.
func (b *Backend) Ready(ctx context.Context) error {
	return b.Store.Ping(ctx)
}

// Services bundles the application services built on this backend.
type Services struct {
	Balance  *services.BalanceService
	Closures *services.ClosureService
	Ledger   *services.LedgerService
}

func (b *Backend) Services(logger *log.Logger) Services {
	return Services{
		Balance:  services.NewBalanceService(b.Store, b.Rates, logger),
		Closures: services.NewClosureService(b.Store, b.Publisher(), logger),
		Ledger:   services.NewLedgerService(b.Store, logger),
	}
}

func (b *Backend) addCleanup(fn CleanupFunc) {
	b.cleanups = append(b.cleanups, fn)
}

// Close releases resources in reverse order of creation and reports every
// failure.
func (b *Backend) Close() error {
	var result *multierror.Error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	b.cleanups = nil
	return result.ErrorOrNil()
}
