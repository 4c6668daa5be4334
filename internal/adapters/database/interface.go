// Package database defines database adapter interfaces and the connection descriptor.
package database

import (
	"context"
	"database/sql"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

// Adapter defines the database adapter interface.
type Adapter interface {
	// Connect establishes a database connection.
	Connect(ctx context.Context) error

	// Disconnect closes the database connection.
	Disconnect(ctx context.Context) error

	// Execute executes a SQL statement.
	Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// Query executes a query that returns rows.
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

	// QueryRow executes a query that returns a single row.
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row

	// Begin starts a read-write transaction.
	Begin(ctx context.Context) (Transaction, error)

	// BeginSnapshot starts the most isolated read-only transaction the driver supports.
	BeginSnapshot(ctx context.Context) (Transaction, error)

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetDialect returns the SQL dialect.
	GetDialect() domain.SQLDialect

	// Descriptor returns the parsed connection descriptor.
	Descriptor() Descriptor

	// IsUniqueViolation reports whether err is a unique constraint violation raised by the driver.
	IsUniqueViolation(err error) bool
}

// Transaction defines the transaction interface.
type Transaction interface {
	// Commit commits the transaction.
	Commit() error

	// Rollback rolls back the transaction.
	Rollback() error

	// Execute executes a statement within the transaction.
	Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// Query executes a query within the transaction.
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

	// QueryRow executes a single row query within the transaction.
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
}
