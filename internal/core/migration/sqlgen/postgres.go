package sqlgen

import (
	"strings"

	"github.com/lib/pq"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

// PostgresRenderer renders PostgreSQL DDL.
type PostgresRenderer struct{}

// NewPostgresRenderer creates a PostgreSQL renderer.
func NewPostgresRenderer() *PostgresRenderer {
	return &PostgresRenderer{}
}

func (r *PostgresRenderer) Dialect() domain.SQLDialect { return domain.PostgreSQL }

func (r *PostgresRenderer) Capabilities() domain.Capabilities {
	return domain.Capabilities{ReplaceRoutine: true, ReplaceView: true, Schemas: true}
}

func (r *PostgresRenderer) Quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (r *PostgresRenderer) Qualify(schema, name string) string {
	if schema == "" {
		return r.Quote(name)
	}
	return r.Quote(schema) + "." + r.Quote(name)
}

func (r *PostgresRenderer) Literal(value string) string { return pq.QuoteLiteral(value) }

func (r *PostgresRenderer) ColumnClause(name string, c *domain.ColumnDef) string {
	var b strings.Builder
	b.WriteString(r.Quote(name) + " " + c.Type)
	if c.Collation != "" {
		b.WriteString(" COLLATE " + r.Quote(c.Collation))
	}
	switch {
	case c.Generated != "":
		b.WriteString(" GENERATED ALWAYS AS (" + c.Generated + ") STORED")
	case c.Identity != "":
		b.WriteString(" GENERATED " + c.Identity + " AS IDENTITY")
	case c.Default != "":
		b.WriteString(" DEFAULT " + c.Default)
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// AlterColumn emits one ALTER COLUMN per changed attribute. Defaults are dropped before a type
// change and set after it so the old default never has to be cast.
func (r *PostgresRenderer) AlterColumn(table, name string, from, to *domain.ColumnDef) ([]string, error) {
	if from.Generated != to.Generated {
		return nil, domain.ErrUnsupportedAlteration
	}
	prefix := "ALTER TABLE " + table + " ALTER COLUMN " + r.Quote(name)
	typeChanged := !strings.EqualFold(from.Type, to.Type) || from.Collation != to.Collation
	defaultChanged := from.Default != to.Default

	var out []string
	if from.Identity != "" && to.Identity == "" {
		out = append(out, prefix+" DROP IDENTITY IF EXISTS")
	}
	if from.Default != "" && (defaultChanged || typeChanged) {
		out = append(out, prefix+" DROP DEFAULT")
	}
	if typeChanged {
		sql := prefix + " TYPE " + to.Type
		if to.Collation != "" {
			sql += " COLLATE " + r.Quote(to.Collation)
		}
		sql += " USING " + r.Quote(name) + "::" + to.Type
		out = append(out, sql)
	}
	if to.Default != "" && (defaultChanged || typeChanged) {
		out = append(out, prefix+" SET DEFAULT "+to.Default)
	}
	switch {
	case from.Identity == "" && to.Identity != "":
		out = append(out, prefix+" ADD GENERATED "+to.Identity+" AS IDENTITY")
	case from.Identity != "" && to.Identity != "" && from.Identity != to.Identity:
		out = append(out, prefix+" SET GENERATED "+to.Identity)
	}
	if from.Nullable != to.Nullable {
		if to.Nullable {
			out = append(out, prefix+" DROP NOT NULL")
		} else {
			out = append(out, prefix+" SET NOT NULL")
		}
	}
	return out, nil
}

func (r *PostgresRenderer) DropColumn(table, name string) (string, error) {
	return "ALTER TABLE " + table + " DROP COLUMN " + r.Quote(name), nil
}

func (r *PostgresRenderer) AddConstraint(table, name string, c *domain.ConstraintDef) (string, error) {
	return "ALTER TABLE " + table + " ADD CONSTRAINT " + r.Quote(name) + " " + c.Definition, nil
}

func (r *PostgresRenderer) DropConstraint(table, name string, c *domain.ConstraintDef) (string, error) {
	return "ALTER TABLE " + table + " DROP CONSTRAINT " + r.Quote(name), nil
}

func (r *PostgresRenderer) DropIndex(schema, table, name string) string {
	return "DROP INDEX " + r.Qualify(schema, name)
}

func (r *PostgresRenderer) DropTrigger(schema, table, name string) string {
	return "DROP TRIGGER " + r.Quote(name) + " ON " + r.Qualify(schema, table)
}

func (r *PostgresRenderer) CreateView(qualified string, v *domain.ViewDef, replace bool) string {
	kind := "VIEW"
	if v.Materialized {
		kind = "MATERIALIZED VIEW"
	}
	verb := "CREATE "
	if replace && !v.Materialized {
		verb = "CREATE OR REPLACE "
	}
	return verb + kind + " " + qualified + " AS\n" + trimQuery(v.Query)
}

func (r *PostgresRenderer) DropView(qualified string, v *domain.ViewDef) string {
	if v.Materialized {
		return "DROP MATERIALIZED VIEW " + qualified
	}
	return "DROP VIEW " + qualified
}

func (r *PostgresRenderer) DropRoutine(schema, name string, f *domain.FunctionDef) string {
	kind := "FUNCTION"
	if f.Procedure {
		kind = "PROCEDURE"
	}
	return "DROP " + kind + " " + r.Qualify(schema, name) + "(" + f.IdentityArgs + ")"
}

var _ domain.Renderer = (*PostgresRenderer)(nil)
