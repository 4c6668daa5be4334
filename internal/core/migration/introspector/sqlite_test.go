package introspector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/adapters/database/factory"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/core/migration/sqlsplit"
)

const liteFixture = `
CREATE TABLE customers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    name TEXT DEFAULT 'anonymous'
);
CREATE TABLE orders (
    id INTEGER PRIMARY KEY,
    customer_id INTEGER NOT NULL REFERENCES customers (id) ON DELETE CASCADE,
    total REAL
);
CREATE INDEX orders_customer_idx ON orders (customer_id);
CREATE VIEW big_orders AS SELECT o.id, c.email FROM orders o JOIN customers c ON c.id = o.customer_id WHERE o.total > 100;
CREATE TRIGGER orders_touch AFTER INSERT ON orders BEGIN UPDATE customers SET name = name WHERE id = NEW.customer_id; END;
CREATE TABLE audit (id INTEGER PRIMARY KEY);
`

func openSQLite(t *testing.T, fixture string) database.Adapter {
	t.Helper()
	ctx := context.Background()
	db, err := factory.Connect(ctx, "sqlite://"+filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Disconnect(context.Background()) })
	for _, stmt := range splitFixture(t, fixture) {
		_, err := db.Execute(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

func splitFixture(t *testing.T, fixture string) []string {
	t.Helper()
	stmts, err := sqlsplit.Split(domain.SQLite, fixture)
	require.NoError(t, err)
	return stmts
}

func TestSQLiteIntrospector(t *testing.T) {
	db := openSQLite(t, liteFixture)
	snap, err := NewSQLiteIntrospector(db).Introspect(context.Background(), domain.Scope{Ignore: []string{"audit"}})
	require.NoError(t, err)

	assert.Equal(t, domain.SQLite, snap.Dialect)

	_, ok := snap.Get(domain.Ref(domain.ObjectTable, "audit"))
	assert.False(t, ok, "ignored table must not be reported")
	_, ok = snap.Get(domain.Ref(domain.ObjectConstraint, "audit.audit_pkey"))
	assert.False(t, ok, "children of ignored tables are pruned")

	customers, ok := snap.Get(domain.Ref(domain.ObjectTable, "customers"))
	require.True(t, ok)
	assert.Len(t, customers.ChildrenOf(domain.ObjectColumn), 3)

	id, ok := snap.Get(domain.Ref(domain.ObjectColumn, "customers.id"))
	require.True(t, ok)
	idDef := id.Definition.(*domain.ColumnDef)
	assert.True(t, idDef.AutoIncrement)
	assert.Equal(t, 1, idDef.Position)

	name, ok := snap.Get(domain.Ref(domain.ObjectColumn, "customers.name"))
	require.True(t, ok)
	assert.Equal(t, "'anonymous'", name.Definition.(*domain.ColumnDef).Default)
	assert.True(t, name.Definition.(*domain.ColumnDef).Nullable)

	pk, ok := snap.Get(domain.Ref(domain.ObjectConstraint, "customers.customers_pkey"))
	require.True(t, ok)
	assert.Equal(t, `PRIMARY KEY ("id")`, pk.Definition.(*domain.ConstraintDef).Definition)

	unique, ok := snap.Get(domain.Ref(domain.ObjectConstraint, "customers.customers_email_key"))
	require.True(t, ok)
	assert.Equal(t, domain.ConstraintUnique, unique.Definition.(*domain.ConstraintDef).Kind)

	fk, ok := snap.Get(domain.Ref(domain.ObjectConstraint, "orders.orders_customer_id_fkey"))
	require.True(t, ok)
	fkDef := fk.Definition.(*domain.ConstraintDef)
	assert.Equal(t, `FOREIGN KEY ("customer_id") REFERENCES "customers" ("id") ON DELETE CASCADE`, fkDef.Definition)
	assert.Contains(t, fk.DependsOn, domain.Ref(domain.ObjectTable, "customers"))

	idx, ok := snap.Get(domain.Ref(domain.ObjectIndex, "orders.orders_customer_idx"))
	require.True(t, ok)
	assert.Contains(t, idx.Definition.(*domain.IndexDef).Statement, "CREATE INDEX orders_customer_idx")

	_, ok = snap.Get(domain.Ref(domain.ObjectTrigger, "orders.orders_touch"))
	assert.True(t, ok)

	view, ok := snap.Get(domain.Ref(domain.ObjectView, "big_orders"))
	require.True(t, ok)
	assert.ElementsMatch(t, []domain.ObjectRef{
		domain.Ref(domain.ObjectTable, "customers"),
		domain.Ref(domain.ObjectTable, "orders"),
	}, view.DependsOn)

	orders, _ := snap.Get(domain.Ref(domain.ObjectTable, "orders"))
	assert.Equal(t, []domain.ObjectRef{domain.Ref(domain.ObjectTable, "customers")}, snap.RolledUpDeps(orders))
}

func TestSQLiteIntrospectorEmptyDatabase(t *testing.T) {
	db := openSQLite(t, "")
	snap, err := New(db)
	require.NoError(t, err)

	got, err := snap.Introspect(context.Background(), domain.Scope{})
	require.NoError(t, err)
	assert.Zero(t, got.Len())
}

func TestSQLiteIntrospectorTableClauses(t *testing.T) {
	db := openSQLite(t, `
CREATE TABLE items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    qty INTEGER NOT NULL CHECK (qty > 0),
    CONSTRAINT items_check1 CHECK (qty < 1000)
);
CREATE TABLE pairs (a INTEGER, b INTEGER, note TEXT DEFAULT 'AUTOINCREMENT', PRIMARY KEY (a, b));
`)
	snap, err := NewSQLiteIntrospector(db).Introspect(context.Background(), domain.Scope{})
	require.NoError(t, err)

	id, ok := snap.Get(domain.Ref(domain.ObjectColumn, "items.id"))
	require.True(t, ok)
	assert.True(t, id.Definition.(*domain.ColumnDef).AutoIncrement)

	named, ok := snap.Get(domain.Ref(domain.ObjectConstraint, "items.items_check1"))
	require.True(t, ok)
	assert.Equal(t, "CHECK (qty < 1000)", named.Definition.(*domain.ConstraintDef).Definition)

	unnamed, ok := snap.Get(domain.Ref(domain.ObjectConstraint, "items.items_check2"))
	require.True(t, ok)
	assert.Equal(t, domain.ConstraintCheck, unnamed.Definition.(*domain.ConstraintDef).Kind)
	assert.Equal(t, "CHECK (qty > 0)", unnamed.Definition.(*domain.ConstraintDef).Definition)

	a, ok := snap.Get(domain.Ref(domain.ObjectColumn, "pairs.a"))
	require.True(t, ok)
	assert.False(t, a.Definition.(*domain.ColumnDef).AutoIncrement)
}
