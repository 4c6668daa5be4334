package introspector

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/adapters/database/postgres"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

func newPostgresMock(t *testing.T) (database.Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewFromDB(db, database.Descriptor{Dialect: domain.PostgreSQL, Database: "shop"}), mock
}

func TestPostgresIntrospector(t *testing.T) {
	db, mock := newPostgresMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(pgVersionQuery).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("15.4 (Debian 15.4-1.pgdg120+1)"))
	mock.ExpectQuery(pgSchemasQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"nspname"}).AddRow("public"))
	mock.ExpectQuery(pgExtensionsQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"extname", "extversion", "nspname"}).AddRow("citext", "1.6", "public"))
	mock.ExpectQuery(pgEnumsQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "typname", "labels"}).AddRow("public", "order_state", []byte("{pending,shipped}")))
	mock.ExpectQuery(pgSequencesQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "type", "start", "inc", "min", "max", "cache", "cycle",
			"ownnsp", "owntable", "owncol"}).
			AddRow("public", "orders_id_seq", "bigint", int64(1), int64(1), int64(1), int64(9223372036854775807), int64(1), false,
				"public", "orders", "id").
			AddRow("public", "invoice_numbers", "bigint", int64(1000), int64(1), int64(1), int64(9223372036854775807), int64(1), false,
				"", "", ""))
	mock.ExpectQuery(pgTablesQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname"}).
			AddRow("public", "customers").
			AddRow("public", "orders").
			AddRow("public", "schema_cache"))

	columns := []string{"nspname", "relname", "attname", "attnum", "type", "nullable", "expr", "identity", "generated",
		"collation", "typnsp", "typname", "typtype"}
	mock.ExpectQuery(pgColumnsQuery(true)).WithArgs("public").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("public", "customers", "id", 1, "integer", false, "", "a", "", "", "pg_catalog", "int4", "b").
			AddRow("public", "orders", "id", 1, "bigint", false, "nextval('orders_id_seq'::regclass)", "", "", "", "pg_catalog", "int8", "b").
			AddRow("public", "orders", "customer_id", 2, "integer", false, "", "", "", "", "pg_catalog", "int4", "b").
			AddRow("public", "orders", "state", 3, "order_state", false, "'pending'::order_state", "", "", "", "public", "order_state", "e").
			AddRow("public", "schema_cache", "id", 1, "integer", false, "", "", "", "", "pg_catalog", "int4", "b"))

	mock.ExpectQuery(pgConstraintsQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "conname", "contype", "def", "fnsp", "frel", "cols", "fcols"}).
			AddRow("public", "customers", "customers_pkey", "p", "PRIMARY KEY (id)", "", "", "id", "").
			AddRow("public", "orders", "orders_customer_id_fkey", "f", "FOREIGN KEY (customer_id) REFERENCES customers(id)", "public", "customers", "customer_id", "id"))
	mock.ExpectQuery(pgIndexesQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "idx", "unique", "def"}).
			AddRow("public", "orders", "orders_state_idx", false, "CREATE INDEX orders_state_idx ON public.orders USING btree (state)"))
	mock.ExpectQuery(pgFunctionsQuery(true)).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "proname", "args", "proc", "result", "lang", "def"}).
			AddRow("public", "touch", "", false, "trigger", "plpgsql", "CREATE OR REPLACE FUNCTION public.touch() RETURNS trigger LANGUAGE plpgsql AS $$BEGIN RETURN NEW; END$$"))
	mock.ExpectQuery(pgViewsQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "mat", "def"}).
			AddRow("public", "pending_orders", false, " SELECT orders.id FROM orders WHERE orders.state = 'pending'::order_state;"))
	mock.ExpectQuery(pgViewDepsQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"vn", "v", "dn", "d", "kind"}).
			AddRow("public", "pending_orders", "public", "orders", "r"))
	mock.ExpectQuery(pgTriggersQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "tgname", "def", "fnsp", "fn", "args"}).
			AddRow("public", "orders", "orders_touch", "CREATE TRIGGER orders_touch BEFORE UPDATE ON public.orders FOR EACH ROW EXECUTE FUNCTION touch()", "public", "touch", ""))
	mock.ExpectRollback()

	snap, err := NewPostgresIntrospector(db).Introspect(context.Background(), domain.Scope{Schema: "public", Ignore: []string{"schema_cache"}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	_, ok := snap.Get(domain.Ref(domain.ObjectTable, "public.schema_cache"))
	assert.False(t, ok)
	_, ok = snap.Get(domain.Ref(domain.ObjectColumn, "public.schema_cache.id"))
	assert.False(t, ok)

	enum, ok := snap.Get(domain.Ref(domain.ObjectTypeEnum, "public.order_state"))
	require.True(t, ok)
	assert.Equal(t, []string{"pending", "shipped"}, enum.Definition.(*domain.EnumDef).Labels)

	id, ok := snap.Get(domain.Ref(domain.ObjectColumn, "public.customers.id"))
	require.True(t, ok)
	assert.Equal(t, "ALWAYS", id.Definition.(*domain.ColumnDef).Identity)

	orders, ok := snap.Get(domain.Ref(domain.ObjectTable, "public.orders"))
	require.True(t, ok)
	assert.Equal(t, []domain.ObjectRef{
		domain.Ref(domain.ObjectSchema, "public"),
		domain.Ref(domain.ObjectTypeEnum, "public.order_state"),
		domain.Ref(domain.ObjectSequence, "public.orders_id_seq"),
		domain.Ref(domain.ObjectFunction, "public.touch()"),
		domain.Ref(domain.ObjectTable, "public.customers"),
	}, snap.RolledUpDeps(orders))

	seq, ok := snap.Get(domain.Ref(domain.ObjectSequence, "public.orders_id_seq"))
	require.True(t, ok)
	require.NotNil(t, seq.Definition.(*domain.SequenceDef).Owner)
	assert.Equal(t, domain.Ref(domain.ObjectColumn, "public.orders.id"), seq.Definition.(*domain.SequenceDef).Owner.ColumnRef())
	standalone, ok := snap.Get(domain.Ref(domain.ObjectSequence, "public.invoice_numbers"))
	require.True(t, ok)
	assert.Nil(t, standalone.Definition.(*domain.SequenceDef).Owner)

	view, ok := snap.Get(domain.Ref(domain.ObjectView, "public.pending_orders"))
	require.True(t, ok)
	assert.Contains(t, view.DependsOn, domain.Ref(domain.ObjectTable, "public.orders"))

	fk, ok := snap.Get(domain.Ref(domain.ObjectConstraint, "public.orders.orders_customer_id_fkey"))
	require.True(t, ok)
	assert.Equal(t, "public.customers", fk.Definition.(*domain.ConstraintDef).RefTable)
	assert.Equal(t, []string{"id"}, fk.Definition.(*domain.ConstraintDef).RefColumns)
}

func TestPostgresIntrospectorRejectsOldServers(t *testing.T) {
	db, mock := newPostgresMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(pgVersionQuery).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("9.6.24"))
	mock.ExpectRollback()

	_, err := NewPostgresIntrospector(db).Introspect(context.Background(), domain.Scope{})
	require.Error(t, err)

	var introspectionErr *domain.IntrospectionError
	require.True(t, errors.As(err, &introspectionErr))
	assert.Equal(t, "server version", introspectionErr.Object)
	assert.Contains(t, err.Error(), "10 or newer")
}

func TestPostgresIntrospectorReportsFailingQuery(t *testing.T) {
	db, mock := newPostgresMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(pgVersionQuery).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("14.10"))
	mock.ExpectQuery(pgSchemasQuery).WithArgs("").WillReturnError(errors.New("permission denied for pg_namespace"))
	mock.ExpectRollback()

	_, err := NewPostgresIntrospector(db).Introspect(context.Background(), domain.Scope{})
	var introspectionErr *domain.IntrospectionError
	require.True(t, errors.As(err, &introspectionErr))
	assert.Equal(t, "schemas", introspectionErr.Object)
	assert.Equal(t, domain.PostgreSQL, introspectionErr.Dialect)
}

func TestSplitQualified(t *testing.T) {
	tests := []struct {
		in, schema, name string
	}{
		{"orders_id_seq", "public", "orders_id_seq"},
		{"sales.orders_id_seq", "sales", "orders_id_seq"},
		{`"Sales"."Weird.Name"`, "Sales", "Weird.Name"},
		{`"a""b"`, "public", `a"b`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			schema, name := splitQualified(tt.in, "public")
			assert.Equal(t, tt.schema, schema)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestServerVersion(t *testing.T) {
	v, err := serverVersion("8.0.36-0ubuntu0.22.04.1")
	require.NoError(t, err)
	assert.True(t, atLeast(v, "8.0.16"))

	v, err = serverVersion("10.11.6-MariaDB-0+deb12u1")
	require.NoError(t, err)
	assert.True(t, mysqlHasChecks(v, true))
	assert.False(t, mysqlHasViewTableUsage(v, true))

	_, err = serverVersion("")
	assert.Error(t, err)
}
