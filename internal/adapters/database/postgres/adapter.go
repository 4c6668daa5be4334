// Package postgres implements PostgreSQL database adapter.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"net/url"

	"github.com/lib/pq" // PostgreSQL driver

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

const uniqueViolation = "23505"

// PostgresAdapter implements the database.Adapter interface for PostgreSQL.
type PostgresAdapter struct {
	*database.BaseAdapter
}

// NewPostgresAdapter creates a new PostgreSQL adapter.
func NewPostgresAdapter(desc database.Descriptor) *PostgresAdapter {
	return &PostgresAdapter{
		BaseAdapter: database.NewBaseAdapter(desc, "postgres", &sql.TxOptions{
			Isolation: sql.LevelRepeatableRead,
			ReadOnly:  true,
		}),
	}
}

// NewFromDB wraps an already opened pool.
func NewFromDB(db *sql.DB, desc database.Descriptor) *PostgresAdapter {
	a := NewPostgresAdapter(desc)
	a.Attach(db)
	return a
}

// Connect establishes a connection. Without an explicit sslmode, TLS is attempted first and
// plaintext is used when the server refuses it.
func (a *PostgresAdapter) Connect(ctx context.Context) error {
	desc := a.Descriptor()
	if desc.SSLMode != "" {
		return a.Open(ctx, desc.DSN)
	}
	secure, err := withSSLMode(desc.DSN, "require")
	if err != nil {
		return err
	}
	if err = a.Open(ctx, secure); err == nil {
		return nil
	}
	debug.Debug("tls connection failed, retrying without tls", "target", desc.String(), "error", err)
	plain, err := withSSLMode(desc.DSN, "disable")
	if err != nil {
		return err
	}
	return a.Open(ctx, plain)
}

func withSSLMode(dsn, mode string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("sslmode", mode)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// IsUniqueViolation reports SQLSTATE 23505.
func (a *PostgresAdapter) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Ensure PostgresAdapter implements Adapter interface.
var _ database.Adapter = (*PostgresAdapter)(nil)
