package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/sheets"
)

// DefaultExportTimeout bounds a single export call.
const DefaultExportTimeout = 30 * time.Second

// ClosureConsumer delivers closure events until ctx is cancelled.
type ClosureConsumer interface {
	ConsumeClosures(ctx context.Context, handler amqp.ClosureHandler) error
}

// ClosureSource lists stored closures in (closure_date, closure_id) order,
// starting after the given key. It is used to recover events that were
// published while the worker was down.
type ClosureSource interface {
	ClosuresSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]core.MonthClosure, error)
}

// ExportWorker mirrors committed closures into an external ledger.
type ExportWorker struct {
	exporter  sheets.ClosureExporter
	source    ClosureSource
	logger    *log.Logger
	timeout   time.Duration
	batchSize int

	exported atomic.Int64
	failed   atomic.Int64
}

// NewExportWorker builds a worker. source may be nil, which disables
// Backfill.
func NewExportWorker(exporter sheets.ClosureExporter, source ClosureSource, logger *log.Logger, batchSize int) *ExportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ExportWorker{
		exporter:  exporter,
		source:    source,
		logger:    logger.WithComponent(log.ComponentWorker),
		timeout:   DefaultExportTimeout,
		batchSize: batchSize,
	}
}

// Run consumes closure events until ctx is cancelled.
func (w *ExportWorker) Run(ctx context.Context, consumer ClosureConsumer) error {
	w.logger.InfoContext(ctx, "Export worker started", "batch_size", w.batchSize)
	err := consumer.ConsumeClosures(ctx, w.HandleClosureEvent)
	w.logger.InfoContext(ctx, "Export worker stopped",
		"exported", w.exported.Load(),
		"failed", w.failed.Load())
	return err
}

// HandleClosureEvent exports the closure carried by one event. An error
// asks the broker to redeliver it.
func (w *ExportWorker) HandleClosureEvent(ctx context.Context, event *amqp.ClosureEvent) error {
	w.logger.InfoContext(ctx, "Processing closure event",
		log.FieldClosureID, event.ClosureID,
		log.FieldUserID, event.UserID)

	if err := w.export(ctx, event.Closure()); err != nil {
		return fmt.Errorf("export closure %d: %w", event.ClosureID, err)
	}
	return nil
}

// Backfill exports every closure created at or after since, one batch at a
// time. The exporter skips closures it already holds, so replaying is safe.
func (w *ExportWorker) Backfill(ctx context.Context, since time.Time) (int, error) {
	if w.source == nil {
		return 0, nil
	}

	total, ok, failed := 0, 0, 0
	cursor, afterID := since, int64(0)
	for {
		closures, err := w.source.ClosuresSince(ctx, cursor, afterID, w.batchSize)
		if err != nil {
			return ok, fmt.Errorf("list closures for backfill: %w", err)
		}
		for _, c := range closures {
			if err := w.export(ctx, c); err != nil {
				failed++
				continue
			}
			ok++
		}
		total += len(closures)
		if len(closures) < w.batchSize {
			break
		}
		last := closures[len(closures)-1]
		cursor, afterID = last.ClosureDate, last.ID
		if err := ctx.Err(); err != nil {
			return ok, err
		}
	}

	if total == 0 {
		w.logger.InfoContext(ctx, "No closures to backfill")
		return 0, nil
	}
	w.logger.InfoContext(ctx, "Backfill completed",
		"total", total,
		"exported", ok,
		"errors", failed)
	return ok, nil
}

func (w *ExportWorker) export(ctx context.Context, c core.MonthClosure) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ref, err := w.exporter.ExportClosure(ctx, c)
	if err != nil {
		w.failed.Add(1)
		w.logger.ErrorContext(ctx, "Failed to export closure",
			log.FieldClosureID, c.ID,
			log.FieldUserID, c.UserID,
			log.FieldError, err.Error())
		return err
	}
	w.exported.Add(1)
	w.logger.DebugContext(ctx, "Closure exported",
		log.FieldClosureID, c.ID,
		"row_ref", ref)
	return nil
}

// Stats reports how many exports succeeded and failed since start.
func (w *ExportWorker) Stats() (exported, failed int64) {
	return w.exported.Load(), w.failed.Load()
}
