// Package introspector reads live database catalogs into snapshots.
package introspector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

// New returns the introspector for the adapter's dialect.
func New(db database.Adapter) (domain.Introspector, error) {
	switch db.GetDialect() {
	case domain.PostgreSQL:
		return NewPostgresIntrospector(db), nil
	case domain.MySQL:
		return NewMySQLIntrospector(db), nil
	case domain.SQLite:
		return NewSQLiteIntrospector(db), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedDialect, db.GetDialect())
	}
}

// catalogReader runs catalog queries for one introspection inside one snapshot transaction.
type catalogReader struct {
	dialect domain.SQLDialect
	tx      database.Transaction
	snap    *domain.Snapshot
}

// withSnapshot opens the snapshot transaction, applies the descriptor timeout, and seals the result.
func withSnapshot(ctx context.Context, db database.Adapter, scope domain.Scope, read func(ctx context.Context, r *catalogReader) error) (*domain.Snapshot, error) {
	dialect := db.GetDialect()
	if timeout := db.Descriptor().Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := db.BeginSnapshot(ctx)
	if err != nil {
		return nil, &domain.IntrospectionError{Dialect: dialect, Object: "snapshot", Err: err}
	}
	defer tx.Rollback()

	r := &catalogReader{dialect: dialect, tx: tx, snap: domain.NewSnapshot(dialect, scope)}
	if err := read(ctx, r); err != nil {
		return nil, err
	}
	r.snap.Seal()
	debug.Debug("introspected catalog", "dialect", dialect, "objects", r.snap.Len())
	return r.snap, nil
}

// each runs query and calls scan for every row. Failures are reported against object.
func (r *catalogReader) each(ctx context.Context, object, query string, args []interface{}, scan func(rows *sql.Rows) error) error {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return r.fail(object, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return r.fail(object, err)
		}
	}
	if err := rows.Err(); err != nil {
		return r.fail(object, err)
	}
	return nil
}

// catalogStep is one bounded catalog query and its row handler.
type catalogStep struct {
	object string
	query  string
	scan   func(rows *sql.Rows) error
}

func (r *catalogReader) run(ctx context.Context, args []interface{}, steps []catalogStep) error {
	for _, step := range steps {
		if err := r.each(ctx, step.object, step.query, args, step.scan); err != nil {
			return err
		}
	}
	return nil
}

func (r *catalogReader) fail(object string, err error) error {
	return &domain.IntrospectionError{Dialect: r.dialect, Object: object, Err: err}
}

func (r *catalogReader) add(obj *domain.SchemaObject) error {
	if err := r.snap.Add(obj); err != nil {
		return r.fail(string(obj.ObjectType), err)
	}
	return nil
}

// serverVersion parses the leading version number of a server version string such as
// "15.4 (Debian 15.4-1)" or "8.0.36-0ubuntu0.22.04.1".
func serverVersion(raw string) (*version.Version, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty server version")
	}
	v := fields[0]
	if i := strings.IndexFunc(v, func(r rune) bool { return r != '.' && (r < '0' || r > '9') }); i > 0 {
		v = v[:i]
	}
	return version.NewVersion(strings.TrimSuffix(v, "."))
}

func atLeast(v *version.Version, constraint string) bool {
	return v.GreaterThanOrEqual(version.Must(version.NewVersion(constraint)))
}

func qualify(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

// topLevel builds a schema level object. Objects in a named schema depend on it.
func topLevel(t domain.ObjectType, schema, name string, def domain.Comparable, deps ...domain.ObjectRef) *domain.SchemaObject {
	if schema != "" && t != domain.ObjectSchema {
		deps = append(deps, domain.Ref(domain.ObjectSchema, schema))
	}
	return &domain.SchemaObject{
		QualifiedName: qualify(schema, name),
		ObjectType:    t,
		Schema:        schema,
		Name:          name,
		Definition:    def,
		DependsOn:     deps,
	}
}

// childOf builds an object owned by a table. It depends on the table.
func childOf(t domain.ObjectType, schema, table, name string, def domain.Comparable, deps ...domain.ObjectRef) *domain.SchemaObject {
	parent := domain.Ref(domain.ObjectTable, qualify(schema, table))
	return &domain.SchemaObject{
		QualifiedName: qualify(schema, table) + "." + name,
		ObjectType:    t,
		Schema:        schema,
		Name:          name,
		Table:         table,
		Parent:        &parent,
		Definition:    def,
		DependsOn:     append([]domain.ObjectRef{parent}, deps...),
	}
}

func tableRef(schema, name string) domain.ObjectRef {
	return domain.Ref(domain.ObjectTable, qualify(schema, name))
}

// relationRefs returns both candidate identities for a relation name: a view and a table. Sealing
// drops whichever does not exist.
func relationRefs(schema, name string) []domain.ObjectRef {
	return []domain.ObjectRef{
		domain.Ref(domain.ObjectTable, qualify(schema, name)),
		domain.Ref(domain.ObjectView, qualify(schema, name)),
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
