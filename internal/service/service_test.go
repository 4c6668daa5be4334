package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/adapters/database/factory"
	"github.com/satishbabariya/dbdelta/internal/adapters/storage"
	"github.com/satishbabariya/dbdelta/internal/core/migration/differ"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/core/migration/executor"
	"github.com/satishbabariya/dbdelta/internal/core/migration/history"
	"github.com/satishbabariya/dbdelta/internal/core/migration/introspector"
	"github.com/satishbabariya/dbdelta/internal/core/migration/planner"
	"github.com/satishbabariya/dbdelta/internal/core/migration/progress"
)

func newDiffService() *DiffService {
	return NewDiffService(factory.Connect, introspector.New, differ.NewSnapshotDiffer(), planner.NewDependencyPlanner(), nil)
}

// sqliteURL creates a database under a temp dir and runs the given statements on it.
func sqliteURL(t *testing.T, name string, stmts ...string) string {
	t.Helper()
	url := "sqlite://" + filepath.Join(t.TempDir(), name+".db")
	db, err := factory.Connect(context.Background(), url)
	require.NoError(t, err)
	defer db.Disconnect(context.Background())
	for _, stmt := range stmts {
		_, err := db.Execute(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
	return url
}

func connect(t *testing.T, url string) database.Adapter {
	t.Helper()
	db, err := factory.Connect(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Disconnect(context.Background()) })
	return db
}

const usersTable = `CREATE TABLE users (id INTEGER NOT NULL PRIMARY KEY, email TEXT NOT NULL)`

func TestDiffServiceCompareAddedColumn(t *testing.T) {
	source := sqliteURL(t, "source", usersTable)
	target := sqliteURL(t, "target",
		`CREATE TABLE users (id INTEGER NOT NULL PRIMARY KEY, email TEXT NOT NULL, nickname TEXT)`)

	var percents []int
	cs, err := newDiffService().Compare(context.Background(), DiffInput{Source: source, Target: target}, func(_ string, p int) {
		percents = append(percents, p)
	})
	require.NoError(t, err)

	entry, ok := cs.Entry(domain.Ref(domain.ObjectColumn, "users.nickname"))
	require.True(t, ok)
	assert.Equal(t, domain.StatusAdded, entry.Status)
	require.NotEmpty(t, entry.Statements)
	assert.Contains(t, entry.Statements[0].SQL, "ADD COLUMN")

	users, ok := cs.Entry(domain.Ref(domain.ObjectTable, "users"))
	require.True(t, ok)
	assert.Equal(t, domain.StatusIdentical, users.Status)

	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestDiffServiceIgnoresLedgerTable(t *testing.T) {
	source := sqliteURL(t, "source", usersTable)
	target := sqliteURL(t, "target", usersTable,
		`CREATE TABLE `+history.TableName+` (version_number CHAR(14) NOT NULL)`,
		`CREATE TABLE scratch (id INTEGER)`)

	cs, err := newDiffService().Compare(context.Background(), DiffInput{Source: source, Target: target, Ignore: []string{"scratch"}}, nil)
	require.NoError(t, err)
	assert.False(t, cs.HasChanges())
}

func TestDiffServiceDialectMismatch(t *testing.T) {
	urls := map[string]string{"one": sqliteURL(t, "one"), "other": sqliteURL(t, "other")}
	svc := NewDiffService(func(ctx context.Context, raw string) (database.Adapter, error) {
		db, err := factory.Connect(ctx, urls[raw])
		if err != nil {
			return nil, err
		}
		if raw == "other" {
			return fakeDialect{Adapter: db, dialect: domain.PostgreSQL}, nil
		}
		return db, nil
	}, introspector.New, differ.NewSnapshotDiffer(), planner.NewDependencyPlanner(), nil)

	_, err := svc.Compare(context.Background(), DiffInput{Source: "one", Target: "other"}, nil)
	assert.ErrorIs(t, err, domain.ErrDialectMismatch)
}

type fakeDialect struct {
	database.Adapter
	dialect domain.SQLDialect
}

func (f fakeDialect) GetDialect() domain.SQLDialect { return f.dialect }

func TestDiffServicePlan(t *testing.T) {
	source := sqliteURL(t, "source", usersTable, `CREATE TABLE legacy (id INTEGER)`)
	target := sqliteURL(t, "target", usersTable)

	svc := newDiffService()
	cs, err := svc.Compare(context.Background(), DiffInput{Source: source, Target: target}, nil)
	require.NoError(t, err)

	safe, err := svc.Plan(cs, false)
	require.NoError(t, err)
	assert.True(t, safe.Empty())
	assert.NotEmpty(t, safe.Withheld)

	unsafe, err := svc.Plan(cs, true)
	require.NoError(t, err)
	assert.Contains(t, unsafe.SQL(), `DROP TABLE "legacy"`)
}

func TestDiffServiceStartAndWait(t *testing.T) {
	source := sqliteURL(t, "source")
	target := sqliteURL(t, "target", usersTable)

	svc := newDiffService()
	run, err := svc.Start(context.Background(), "session-1", DiffInput{Source: source, Target: target})
	require.NoError(t, err)

	st := run.Wait(context.Background(), 10*time.Millisecond, nil)
	require.True(t, st.Terminal)
	cs, err := st.Result()
	require.NoError(t, err)
	assert.Equal(t, 100, st.PercentComplete)
	assert.Positive(t, cs.Count(domain.StatusAdded))

	found, ok := svc.Lookup("session-1")
	require.True(t, ok)
	assert.Equal(t, progress.StateSucceeded, found.Poll().State)
}

func TestDiffServiceStartReportsFailure(t *testing.T) {
	svc := newDiffService()
	run, err := svc.Start(context.Background(), "", DiffInput{Source: "nosuch://x", Target: "nosuch://y"})
	require.NoError(t, err)

	st := run.Wait(context.Background(), 10*time.Millisecond, nil)
	assert.Equal(t, progress.StateFailed, st.State)
	assert.NotEmpty(t, st.ErrorMessage)
	assert.NotEmpty(t, run.ID())
}

func newMigrationService(t *testing.T, db database.Adapter) (*MigrationService, *history.Directory) {
	t.Helper()
	dir := history.NewDirectory(storage.NewMemoryStorage(), "migrations")
	return NewMigrationService(db, dir, newDiffService(), nil), dir
}

func TestCreateMigrationStub(t *testing.T) {
	svc, dir := newMigrationService(t, nil)

	res, err := svc.CreateMigration(context.Background(), CreateMigrationInput{Description: "Add users"})
	require.NoError(t, err)
	assert.Nil(t, res.Plan)
	assert.Equal(t, "Add_users", res.Record.Slug)
	assert.Equal(t, "-- Add users\n", res.Record.Body)

	got, err := dir.Get(context.Background(), res.Record.Version)
	require.NoError(t, err)
	assert.Equal(t, res.Record.Checksum, got.Checksum)
}

func TestCreateMigrationRequiresBothDatabases(t *testing.T) {
	svc, _ := newMigrationService(t, nil)
	_, err := svc.CreateMigration(context.Background(), CreateMigrationInput{
		Description: "half",
		Diff:        DiffInput{Source: sqliteURL(t, "source")},
	})
	assert.Error(t, err)
}

func TestCreateMigrationFromDiff(t *testing.T) {
	source := sqliteURL(t, "source")
	target := sqliteURL(t, "target", usersTable)
	svc, dir := newMigrationService(t, nil)

	res, err := svc.CreateMigration(context.Background(), CreateMigrationInput{
		Description: "create users",
		Diff:        DiffInput{Source: source, Target: target},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	assert.Contains(t, res.Record.Body, `CREATE TABLE "users"`)

	records, err := dir.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = svc.CreateMigration(context.Background(), CreateMigrationInput{
		Description: "nothing",
		Diff:        DiffInput{Source: target, Target: target},
	})
	assert.ErrorIs(t, err, ErrNoChanges)
}

func TestMigrationServiceRequiresDatabase(t *testing.T) {
	svc, _ := newMigrationService(t, nil)
	_, err := svc.Up(context.Background(), UpOptions{})
	assert.Error(t, err)
	_, err = svc.Status(context.Background())
	assert.Error(t, err)
	_, err = svc.Compact(context.Background(), CompactOptions{})
	assert.Error(t, err)
}

func TestUpAndStatus(t *testing.T) {
	db := connect(t, sqliteURL(t, "live"))
	svc, _ := newMigrationService(t, db)
	ctx := context.Background()

	_, err := svc.CreateMigration(ctx, CreateMigrationInput{Description: "stub"})
	require.NoError(t, err)

	var seen []string
	applied, err := svc.Up(ctx, UpOptions{OnApplied: func(rec domain.MigrationRecord, _ time.Duration) {
		seen = append(seen, rec.Version)
	}})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, []string{applied[0].Version}, seen)

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Clean())
	assert.Equal(t, applied[0].Version, st.Current)
}

func TestCompactWithoutShadow(t *testing.T) {
	db := connect(t, sqliteURL(t, "live"))
	svc, dir := newMigrationService(t, db)
	ctx := context.Background()

	_, err := svc.CreateMigration(ctx, CreateMigrationInput{Description: "stub"})
	require.NoError(t, err)
	_, err = db.Execute(ctx, usersTable)
	require.NoError(t, err)

	res, err := svc.Compact(ctx, CompactOptions{})
	require.NoError(t, err)
	assert.Equal(t, history.BaselineSlug, res.Baseline.Slug)
	assert.Contains(t, res.Baseline.Body, `CREATE TABLE "users"`)
	assert.NotContains(t, res.Baseline.Body, history.TableName)

	records, err := dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, res.Baseline.Checksum, records[0].Checksum)
}

func TestCompactVerifiesOnShadow(t *testing.T) {
	db := connect(t, sqliteURL(t, "live"))
	svc, dir := newMigrationService(t, db)
	ctx := context.Background()

	_, err := svc.CreateMigration(ctx, CreateMigrationInput{Description: "stub"})
	require.NoError(t, err)
	_, err = db.Execute(ctx, usersTable)
	require.NoError(t, err)

	res, err := svc.Compact(ctx, CompactOptions{ShadowURL: sqliteURL(t, "shadow")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Folded)

	records, err := dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, strings.HasSuffix(records[0].Filename(), "."+history.BaselineSlug+".sql"))
}

func TestCompactRejectsDirtyShadow(t *testing.T) {
	db := connect(t, sqliteURL(t, "live"))
	svc, dir := newMigrationService(t, db)
	ctx := context.Background()

	_, err := svc.CreateMigration(ctx, CreateMigrationInput{Description: "stub"})
	require.NoError(t, err)

	_, err = svc.Compact(ctx, CompactOptions{ShadowURL: sqliteURL(t, "shadow", `CREATE TABLE leftover (id INTEGER)`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not empty")

	records, err := dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "stub", records[0].Slug)
}

var shopSchema = []string{
	`CREATE TABLE customers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    name TEXT DEFAULT 'anonymous'
)`,
	`CREATE TABLE items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    qty INTEGER NOT NULL CHECK (qty > 0),
    price REAL,
    CONSTRAINT price_positive CHECK (price IS NULL OR price >= 0)
)`,
	`CREATE TABLE orders (
    id INTEGER PRIMARY KEY,
    customer_id INTEGER NOT NULL REFERENCES customers (id) ON DELETE CASCADE,
    item_id INTEGER REFERENCES items (id)
)`,
	`CREATE INDEX orders_customer_idx ON orders (customer_id)`,
	`CREATE VIEW customer_orders AS SELECT c.email, o.id FROM customers c JOIN orders o ON o.customer_id = c.id`,
	`CREATE TRIGGER orders_touch AFTER INSERT ON orders BEGIN UPDATE customers SET name = name WHERE id = NEW.customer_id; END`,
}

func TestCompactBaselineReproducesLiveSchema(t *testing.T) {
	live := sqliteURL(t, "live", shopSchema...)
	svc, _ := newMigrationService(t, connect(t, live))
	ctx := context.Background()

	_, err := svc.CreateMigration(ctx, CreateMigrationInput{Description: "stub"})
	require.NoError(t, err)
	res, err := svc.Compact(ctx, CompactOptions{})
	require.NoError(t, err)
	assert.Contains(t, res.Baseline.Body, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`)
	assert.Contains(t, res.Baseline.Body, `CONSTRAINT "items_check1" CHECK (qty > 0)`)
	assert.Contains(t, res.Baseline.Body, `CONSTRAINT "price_positive" CHECK (price IS NULL OR price >= 0)`)

	replay := sqliteURL(t, "replay")
	require.NoError(t, executor.NewMigrationExecutor(connect(t, replay)).Execute(ctx, res.Baseline.Body))

	cs, err := newDiffService().Compare(ctx, DiffInput{Source: replay, Target: live}, nil)
	require.NoError(t, err)
	require.NotZero(t, cs.Len())
	for _, entry := range cs.Entries() {
		assert.Equal(t, domain.StatusIdentical, entry.Status, entry.Ref.String())
	}
}

func TestCompactVerifiesTableClausesOnShadow(t *testing.T) {
	db := connect(t, sqliteURL(t, "live", shopSchema...))
	svc, dir := newMigrationService(t, db)
	ctx := context.Background()

	_, err := svc.CreateMigration(ctx, CreateMigrationInput{Description: "stub"})
	require.NoError(t, err)
	res, err := svc.Compact(ctx, CompactOptions{ShadowURL: sqliteURL(t, "shadow")})
	require.NoError(t, err)

	records, err := dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, res.Baseline.Checksum, records[0].Checksum)
}
