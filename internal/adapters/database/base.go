package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

// BaseAdapter implements the driver independent part of Adapter over database/sql.
// Dialect adapters embed it and add driver specific behaviour.
type BaseAdapter struct {
	desc         Descriptor
	driver       string
	snapshotOpts *sql.TxOptions
	maxOpenConns int
	db           *sql.DB
}

// NewBaseAdapter creates a base adapter for a driver. snapshotOpts are the options used by
// BeginSnapshot; nil uses the driver default.
func NewBaseAdapter(desc Descriptor, driver string, snapshotOpts *sql.TxOptions) *BaseAdapter {
	return &BaseAdapter{desc: desc, driver: driver, snapshotOpts: snapshotOpts}
}

// SetMaxOpenConns limits the pool opened by Connect. Zero leaves the driver default.
func (a *BaseAdapter) SetMaxOpenConns(n int) {
	a.maxOpenConns = n
}

// Attach uses an already opened pool instead of connecting.
func (a *BaseAdapter) Attach(db *sql.DB) {
	a.db = db
}

// Connect establishes a connection using the descriptor DSN.
func (a *BaseAdapter) Connect(ctx context.Context) error {
	return a.Open(ctx, a.desc.DSN)
}

// Open opens and pings dsn, replacing any current pool only on success.
func (a *BaseAdapter) Open(ctx context.Context, dsn string) error {
	db, err := sql.Open(a.driver, dsn)
	if err != nil {
		return a.connectionError(err)
	}
	if a.maxOpenConns > 0 {
		db.SetMaxOpenConns(a.maxOpenConns)
		db.SetMaxIdleConns(a.maxOpenConns)
	}
	if err := ping(ctx, db, a.desc); err != nil {
		db.Close()
		return a.connectionError(err)
	}
	a.db = db
	return nil
}

func ping(ctx context.Context, db *sql.DB, desc Descriptor) error {
	if desc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, desc.Timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}

func (a *BaseAdapter) connectionError(err error) error {
	return &domain.ConnectionError{Dialect: a.desc.Dialect, Target: a.desc.String(), Err: err}
}

// Disconnect closes the database connection.
func (a *BaseAdapter) Disconnect(ctx context.Context) error {
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// DB returns the underlying pool, nil before Connect.
func (a *BaseAdapter) DB() *sql.DB {
	return a.db
}

// Execute executes a query without returning rows.
func (a *BaseAdapter) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return a.db.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (a *BaseAdapter) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return a.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns a single row.
func (a *BaseAdapter) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if a.db == nil {
		return nil
	}
	return a.db.QueryRowContext(ctx, query, args...)
}

// Begin starts a new transaction.
func (a *BaseAdapter) Begin(ctx context.Context) (Transaction, error) {
	return a.begin(ctx, nil)
}

// BeginSnapshot starts a read-only snapshot transaction.
func (a *BaseAdapter) BeginSnapshot(ctx context.Context) (Transaction, error) {
	return a.begin(ctx, a.snapshotOpts)
}

func (a *BaseAdapter) begin(ctx context.Context, opts *sql.TxOptions) (Transaction, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	tx, err := a.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Ping checks if the database connection is alive.
func (a *BaseAdapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("database not connected")
	}
	return ping(ctx, a.db, a.desc)
}

// GetDialect returns the SQL dialect.
func (a *BaseAdapter) GetDialect() domain.SQLDialect {
	return a.desc.Dialect
}

// Descriptor returns the connection descriptor.
func (a *BaseAdapter) Descriptor() Descriptor {
	return a.desc
}

// Tx implements Transaction over *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Execute executes a query within the transaction.
func (t *Tx) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// Query executes a query within the transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRow executes a single row query within the transaction.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

var _ Transaction = (*Tx)(nil)
