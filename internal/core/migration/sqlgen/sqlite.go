package sqlgen

import (
	"strings"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

// SQLiteRenderer renders SQLite DDL. SQLite cannot alter columns or constraints in place, so those
// alterations are reported as conflicts instead of rendered.
type SQLiteRenderer struct{}

// NewSQLiteRenderer creates a SQLite renderer.
func NewSQLiteRenderer() *SQLiteRenderer {
	return &SQLiteRenderer{}
}

func (r *SQLiteRenderer) Dialect() domain.SQLDialect { return domain.SQLite }

func (r *SQLiteRenderer) Capabilities() domain.Capabilities {
	return domain.Capabilities{InlineForeignKeys: true, AutoIncrementKey: true}
}

func (r *SQLiteRenderer) Quote(ident string) string { return quoteWith(ident, `"`) }

func (r *SQLiteRenderer) Qualify(schema, name string) string { return r.Quote(name) }

func (r *SQLiteRenderer) Literal(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (r *SQLiteRenderer) ColumnClause(name string, c *domain.ColumnDef) string {
	var b strings.Builder
	b.WriteString(r.Quote(name))
	if c.Type != "" {
		b.WriteString(" " + c.Type)
	}
	if c.AutoIncrement {
		b.WriteString(" PRIMARY KEY AUTOINCREMENT")
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Generated != "" {
		b.WriteString(" GENERATED ALWAYS AS (" + c.Generated + ") STORED")
	} else if c.Default != "" {
		b.WriteString(" DEFAULT " + c.Default)
	}
	if c.Collation != "" {
		b.WriteString(" COLLATE " + c.Collation)
	}
	return b.String()
}

func (r *SQLiteRenderer) AlterColumn(table, name string, from, to *domain.ColumnDef) ([]string, error) {
	return nil, domain.ErrUnsupportedAlteration
}

func (r *SQLiteRenderer) DropColumn(table, name string) (string, error) {
	return "ALTER TABLE " + table + " DROP COLUMN " + r.Quote(name), nil
}

func (r *SQLiteRenderer) AddConstraint(table, name string, c *domain.ConstraintDef) (string, error) {
	return "", domain.ErrUnsupportedAlteration
}

func (r *SQLiteRenderer) DropConstraint(table, name string, c *domain.ConstraintDef) (string, error) {
	return "", domain.ErrUnsupportedAlteration
}

func (r *SQLiteRenderer) DropIndex(schema, table, name string) string {
	return "DROP INDEX " + r.Quote(name)
}

func (r *SQLiteRenderer) DropTrigger(schema, table, name string) string {
	return "DROP TRIGGER " + r.Quote(name)
}

func (r *SQLiteRenderer) CreateView(qualified string, v *domain.ViewDef, replace bool) string {
	return "CREATE VIEW " + qualified + " AS\n" + trimQuery(v.Query)
}

func (r *SQLiteRenderer) DropView(qualified string, v *domain.ViewDef) string {
	return "DROP VIEW " + qualified
}

// DropRoutine is never reached: SQLite has no stored routines.
func (r *SQLiteRenderer) DropRoutine(schema, name string, f *domain.FunctionDef) string {
	return "-- sqlite has no stored routine " + r.Quote(name)
}

var _ domain.Renderer = (*SQLiteRenderer)(nil)
