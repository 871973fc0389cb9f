package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store owns the connection pool and hands out Ledgers bound either to the
// pool or to a per-user transaction.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Options selects and configures the backing database.
type Options struct {
	Dialect     Dialect
	SQLitePath  string
	DatabaseURL string
	BusyTimeout time.Duration
}

// Open connects to the configured database and runs migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	switch opts.Dialect {
	case DialectSQLite:
		return NewSQLiteStore(ctx, opts.SQLitePath, opts.BusyTimeout)
	case DialectPostgres:
		return NewPostgresStore(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}
}

// NewSQLiteStore opens (creating if needed) a SQLite database file. Write
// transactions begin IMMEDIATE so two closers for the same file can never
// interleave their read-then-insert.
func NewSQLiteStore(ctx context.Context, dbPath string, busyTimeout time.Duration) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		dbPath, busyTimeout.Milliseconds())

	if err := RunMigrations(DialectSQLite, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return open(ctx, DialectSQLite, dsn)
}

// NewPostgresStore connects through the pgx stdlib driver.
func NewPostgresStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is empty")
	}
	if err := RunMigrations(DialectPostgres, databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s, err := open(ctx, DialectPostgres, databaseURL)
	if err != nil {
		return nil, err
	}
	s.db.SetMaxOpenConns(20)
	s.db.SetConnMaxIdleTime(5 * time.Minute)
	return s, nil
}

func open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	driverName, err := dialect.driverName()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "Ledger store ready", "dialect", string(dialect))
	return &Store{db: db, dialect: dialect}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ledger returns a Ledger that runs each query on the pool.
func (s *Store) Ledger() *Ledger {
	return &Ledger{q: s.db, dialect: s.dialect}
}

// InUserTx runs fn inside one transaction holding the user's write lock.
// The transaction commits only if fn returns nil.
func (s *Store) InUserTx(ctx context.Context, userID string, fn func(*Ledger) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed", "user_id", userID, "error", rbErr)
			}
		}
	}()

	if err = s.dialect.lockUser(ctx, tx, userID); err != nil {
		return err
	}
	if err = fn(&Ledger{q: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
