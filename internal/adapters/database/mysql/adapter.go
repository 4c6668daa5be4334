// Package mysql implements MySQL database adapter.
//
// MySQL commits DDL implicitly, so a failing migration can leave earlier statements applied.
package mysql

import (
	"database/sql"
	"errors"

	gomysql "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
)

const duplicateEntry = 1062

// MySQLAdapter implements the database.Adapter interface for MySQL.
type MySQLAdapter struct {
	*database.BaseAdapter
}

// NewMySQLAdapter creates a new MySQL adapter.
func NewMySQLAdapter(desc database.Descriptor) *MySQLAdapter {
	return &MySQLAdapter{
		BaseAdapter: database.NewBaseAdapter(desc, "mysql", &sql.TxOptions{ReadOnly: true}),
	}
}

// NewFromDB wraps an already opened pool.
func NewFromDB(db *sql.DB, desc database.Descriptor) *MySQLAdapter {
	a := NewMySQLAdapter(desc)
	a.Attach(db)
	return a
}

// IsUniqueViolation reports error 1062 (ER_DUP_ENTRY).
func (a *MySQLAdapter) IsUniqueViolation(err error) bool {
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == duplicateEntry
}

// Ensure MySQLAdapter implements Adapter interface.
var _ database.Adapter = (*MySQLAdapter)(nil)
