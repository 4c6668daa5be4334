// Package sqlite implements SQLite database adapter.
package sqlite

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
)

// SQLiteAdapter implements the database.Adapter interface for SQLite.
type SQLiteAdapter struct {
	*database.BaseAdapter
}

// NewSQLiteAdapter creates a new SQLite adapter. A single connection is used so that writers
// never contend for the database lock.
func NewSQLiteAdapter(desc database.Descriptor) *SQLiteAdapter {
	base := database.NewBaseAdapter(desc, "sqlite3", nil)
	base.SetMaxOpenConns(1)
	return &SQLiteAdapter{BaseAdapter: base}
}

// NewFromDB wraps an already opened pool.
func NewFromDB(db *sql.DB, desc database.Descriptor) *SQLiteAdapter {
	a := NewSQLiteAdapter(desc)
	a.Attach(db)
	return a
}

// IsUniqueViolation reports SQLITE_CONSTRAINT_UNIQUE and SQLITE_CONSTRAINT_PRIMARYKEY.
func (a *SQLiteAdapter) IsUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Ensure SQLiteAdapter implements Adapter interface.
var _ database.Adapter = (*SQLiteAdapter)(nil)
