package sqlgen

import (
	"strings"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

// MySQLRenderer renders MySQL DDL. Objects are never qualified with the database name so that
// migrations run against any database.
type MySQLRenderer struct{}

// NewMySQLRenderer creates a MySQL renderer.
func NewMySQLRenderer() *MySQLRenderer {
	return &MySQLRenderer{}
}

func (r *MySQLRenderer) Dialect() domain.SQLDialect { return domain.MySQL }

func (r *MySQLRenderer) Capabilities() domain.Capabilities {
	return domain.Capabilities{ReplaceView: true}
}

func (r *MySQLRenderer) Quote(ident string) string { return quoteWith(ident, "`") }

func (r *MySQLRenderer) Qualify(schema, name string) string { return r.Quote(name) }

func (r *MySQLRenderer) Literal(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (r *MySQLRenderer) ColumnClause(name string, c *domain.ColumnDef) string {
	var b strings.Builder
	b.WriteString(r.Quote(name) + " " + c.Type)
	if c.Collation != "" {
		b.WriteString(" COLLATE " + c.Collation)
	}
	if c.Generated != "" {
		b.WriteString(" GENERATED ALWAYS AS (" + c.Generated + ") STORED")
	}
	if c.Nullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" && c.Generated == "" {
		b.WriteString(" DEFAULT " + c.Default)
	}
	if c.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	return b.String()
}

// AlterColumn restates the whole column with MODIFY COLUMN.
func (r *MySQLRenderer) AlterColumn(table, name string, from, to *domain.ColumnDef) ([]string, error) {
	return []string{"ALTER TABLE " + table + " MODIFY COLUMN " + r.ColumnClause(name, to)}, nil
}

func (r *MySQLRenderer) DropColumn(table, name string) (string, error) {
	return "ALTER TABLE " + table + " DROP COLUMN " + r.Quote(name), nil
}

func (r *MySQLRenderer) AddConstraint(table, name string, c *domain.ConstraintDef) (string, error) {
	return "ALTER TABLE " + table + " ADD CONSTRAINT " + r.Quote(name) + " " + c.Definition, nil
}

func (r *MySQLRenderer) DropConstraint(table, name string, c *domain.ConstraintDef) (string, error) {
	prefix := "ALTER TABLE " + table + " "
	switch c.Kind {
	case domain.ConstraintPrimaryKey:
		return prefix + "DROP PRIMARY KEY", nil
	case domain.ConstraintForeignKey:
		return prefix + "DROP FOREIGN KEY " + r.Quote(name), nil
	case domain.ConstraintUnique:
		return prefix + "DROP INDEX " + r.Quote(name), nil
	case domain.ConstraintCheck:
		return prefix + "DROP CHECK " + r.Quote(name), nil
	}
	return "", domain.ErrUnsupportedAlteration
}

func (r *MySQLRenderer) DropIndex(schema, table, name string) string {
	return "DROP INDEX " + r.Quote(name) + " ON " + r.Qualify(schema, table)
}

func (r *MySQLRenderer) DropTrigger(schema, table, name string) string {
	return "DROP TRIGGER " + r.Quote(name)
}

func (r *MySQLRenderer) CreateView(qualified string, v *domain.ViewDef, replace bool) string {
	verb := "CREATE "
	if replace {
		verb = "CREATE OR REPLACE "
	}
	return verb + "VIEW " + qualified + " AS\n" + trimQuery(v.Query)
}

func (r *MySQLRenderer) DropView(qualified string, v *domain.ViewDef) string {
	return "DROP VIEW " + qualified
}

func (r *MySQLRenderer) DropRoutine(schema, name string, f *domain.FunctionDef) string {
	if f.Procedure {
		return "DROP PROCEDURE " + r.Quote(name)
	}
	return "DROP FUNCTION " + r.Quote(name)
}

var _ domain.Renderer = (*MySQLRenderer)(nil)
