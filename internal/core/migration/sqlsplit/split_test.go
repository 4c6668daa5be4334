package sqlsplit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		dialect domain.SQLDialect
		input   string
		want    []string
	}{
		{
			name:    "semicolon inside literal",
			dialect: domain.PostgreSQL,
			input:   "CREATE TABLE a (id int);\nINSERT INTO a VALUES (';');",
			want:    []string{"CREATE TABLE a (id int)", "INSERT INTO a VALUES (';')"},
		},
		{
			name:    "dollar quoted function body",
			dialect: domain.PostgreSQL,
			input:   "CREATE FUNCTION f() RETURNS int AS $body$ BEGIN RETURN 1; END; $body$ LANGUAGE plpgsql;\nSELECT 1;",
			want: []string{
				"CREATE FUNCTION f() RETURNS int AS $body$ BEGIN RETURN 1; END; $body$ LANGUAGE plpgsql",
				"SELECT 1",
			},
		},
		{
			name:    "anonymous dollar quote",
			dialect: domain.PostgreSQL,
			input:   "DO $$ BEGIN PERFORM 1; END $$;",
			want:    []string{"DO $$ BEGIN PERFORM 1; END $$"},
		},
		{
			name:    "trigger body",
			dialect: domain.SQLite,
			input:   "CREATE TRIGGER t AFTER INSERT ON a BEGIN UPDATE a SET x = 1; DELETE FROM b; END;\nSELECT 1",
			want: []string{
				"CREATE TRIGGER t AFTER INSERT ON a BEGIN UPDATE a SET x = 1; DELETE FROM b; END",
				"SELECT 1",
			},
		},
		{
			name:    "comments only statements dropped",
			dialect: domain.PostgreSQL,
			input:   "-- header;\n/* block ; */\nSELECT 1; -- trailing\n",
			want:    []string{"SELECT 1"},
		},
		{
			name:    "transaction control",
			dialect: domain.PostgreSQL,
			input:   "BEGIN;\nCREATE TABLE x (id int);\nCOMMIT;",
			want:    []string{"BEGIN", "CREATE TABLE x (id int)", "COMMIT"},
		},
		{
			name:    "case expression",
			dialect: domain.PostgreSQL,
			input:   "SELECT CASE WHEN a THEN 1 ELSE 2 END FROM t; SELECT 2",
			want:    []string{"SELECT CASE WHEN a THEN 1 ELSE 2 END FROM t", "SELECT 2"},
		},
		{
			name:    "mysql backslash escape",
			dialect: domain.MySQL,
			input:   `INSERT INTO t VALUES ('it\'s; fine'); SELECT 2`,
			want:    []string{`INSERT INTO t VALUES ('it\'s; fine')`, "SELECT 2"},
		},
		{
			name:    "postgres escape string",
			dialect: domain.PostgreSQL,
			input:   `INSERT INTO t VALUES (E'it\'s; fine', 'C:\'); SELECT 2`,
			want:    []string{`INSERT INTO t VALUES (E'it\'s; fine', 'C:\')`, "SELECT 2"},
		},
		{
			name:    "mysql procedure with if block",
			dialect: domain.MySQL,
			input:   "CREATE PROCEDURE p() BEGIN IF 1 THEN SELECT 1; END IF; SELECT 2; END; SELECT 3",
			want:    []string{"CREATE PROCEDURE p() BEGIN IF 1 THEN SELECT 1; END IF; SELECT 2; END", "SELECT 3"},
		},
		{
			name:    "empty body",
			dialect: domain.SQLite,
			input:   "  \n-- nothing here\n",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.dialect, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitErrors(t *testing.T) {
	_, err := Split(domain.PostgreSQL, "CREATE FUNCTION f() AS $x$ SELECT 1;")
	assert.Error(t, err)

	_, err = Split(domain.PostgreSQL, "SELECT 'abc")
	assert.Error(t, err)
}

func TestIdentifiers(t *testing.T) {
	sql := `SELECT o.id, "Customer Name" FROM Orders o JOIN public.customers c ON c.id = o.customer_id
WHERE o.note <> 'from items' -- products`

	ids, err := New(domain.PostgreSQL).Identifiers(sql)
	require.NoError(t, err)

	assert.Contains(t, ids, "orders")
	assert.Contains(t, ids, "customers")
	assert.Contains(t, ids, "Customer Name")
	assert.NotContains(t, ids, "items")
	assert.NotContains(t, ids, "products")
}

func TestIdentifiersBacktick(t *testing.T) {
	ids, err := New(domain.MySQL).Identifiers("select `a`.`x` from `a` join b on b.id = `a`.id")
	require.NoError(t, err)
	assert.Equal(t, []string{"select", "a", "x", "from", "join", "b", "on", "id"}, ids)
}

func TestCreateTable(t *testing.T) {
	stmt := `CREATE TABLE items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    qty INTEGER NOT NULL CHECK (qty > 0),
    note TEXT DEFAULT 'CHECK (x)',
    CONSTRAINT "qty_cap" CHECK (qty < (100 * 2)),
    CONSTRAINT bounded CHECK(length(note) < 10)
)`
	clauses, err := New(domain.SQLite).CreateTable(stmt)
	require.NoError(t, err)
	assert.True(t, clauses.AutoIncrement)
	assert.Equal(t, []CheckClause{
		{Expr: "qty > 0"},
		{Name: "qty_cap", Expr: "qty < (100 * 2)"},
		{Name: "bounded", Expr: "length(note) < 10"},
	}, clauses.Checks)

	plain, err := New(domain.SQLite).CreateTable(`CREATE TABLE t (id INTEGER PRIMARY KEY, "autoincrement" TEXT)`)
	require.NoError(t, err)
	assert.False(t, plain.AutoIncrement)
	assert.Empty(t, plain.Checks)
}
