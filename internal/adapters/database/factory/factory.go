// Package factory builds database adapters from connection descriptors.
package factory

import (
	"context"
	"fmt"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/adapters/database/mysql"
	"github.com/satishbabariya/dbdelta/internal/adapters/database/postgres"
	"github.com/satishbabariya/dbdelta/internal/adapters/database/sqlite"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

// NewAdapter creates an unconnected adapter for a descriptor.
func NewAdapter(desc database.Descriptor) (database.Adapter, error) {
	switch desc.Dialect {
	case domain.PostgreSQL:
		return postgres.NewPostgresAdapter(desc), nil
	case domain.MySQL:
		return mysql.NewMySQLAdapter(desc), nil
	case domain.SQLite:
		return sqlite.NewSQLiteAdapter(desc), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedDialect, desc.Dialect)
	}
}

// Connect parses raw, creates the adapter and connects it.
func Connect(ctx context.Context, raw string) (database.Adapter, error) {
	desc, err := database.ParseDescriptor(raw)
	if err != nil {
		return nil, err
	}
	adapter, err := NewAdapter(desc)
	if err != nil {
		return nil, err
	}
	debug.Debug("connecting", "target", desc.String(), "dialect", desc.Dialect)
	if err := adapter.Connect(ctx); err != nil {
		return nil, err
	}
	return adapter, nil
}
