package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/satishbabariya/dbdelta/internal/adapters/database/factory"
	"github.com/satishbabariya/dbdelta/internal/adapters/storage"
	"github.com/satishbabariya/dbdelta/internal/config"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/utils/container"
)

// cli runs the command tree against an in-memory migration store.
type cli struct {
	t     *testing.T
	store storage.Storage
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	prev := config.AppFs
	config.AppFs = afero.NewMemMapFs()
	t.Cleanup(func() { config.AppFs = prev })
	t.Setenv("DATABASE_URL", "")
	return &cli{t: t, store: storage.NewFsStorage(afero.NewMemMapFs(), ".")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(container.WithStorage(c.store))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--no-color"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func sqliteDB(t *testing.T, name string, stmts ...string) string {
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

const accounts = `CREATE TABLE accounts (id INTEGER NOT NULL PRIMARY KEY, name TEXT NOT NULL)`

func TestVersionCommand(t *testing.T) {
	out, err := newCLI(t).run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "dbdelta version")
}

func TestMissingArgumentsPrintUsage(t *testing.T) {
	out, err := newCLI(t).run("diff", "only-one")
	require.Error(t, err)
	assert.Contains(t, out, "Usage:")

	_, err = newCLI(t).run("migrate")
	assert.Error(t, err)
}

func TestMigrateUpStatus(t *testing.T) {
	c := newCLI(t)
	target := sqliteDB(t, "target")

	out, err := c.run("migrate", "create", "accounts")
	require.NoError(t, err)
	assert.Contains(t, out, "create_accounts.sql")

	out, err = c.run("up", "--dry-run", "--database-url", target)
	require.NoError(t, err)
	assert.Contains(t, out, "1 pending migration(s)")

	out, err = c.run("up", "--database-url", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 1 migration(s)")

	out, err = c.run("status", "--database-url", target)
	require.NoError(t, err)
	assert.Contains(t, out, "applied")
	assert.Contains(t, out, "Database is up to date")
}

func TestUpRequiresDatabase(t *testing.T) {
	_, err := newCLI(t).run("up")
	assert.Error(t, err)
}

func TestMigrateFromDiff(t *testing.T) {
	c := newCLI(t)
	source := sqliteDB(t, "source")
	target := sqliteDB(t, "target", accounts)

	out, err := c.run("migrate", "add", "accounts", "--source", source, "--target", target)
	require.NoError(t, err)
	assert.Contains(t, out, "add_accounts.sql")

	entries, err := c.store.List(context.Background(), "migrations")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	body, err := c.store.Read(context.Background(), "migrations/"+entries[0].Name)
	require.NoError(t, err)
	assert.Contains(t, string(body), `CREATE TABLE "accounts"`)
}

func TestDiffFormats(t *testing.T) {
	source := sqliteDB(t, "source", `CREATE TABLE legacy (id INTEGER)`)
	target := sqliteDB(t, "target", accounts)

	out, err := newCLI(t).run("diff", source, target, "--poll-interval", "10ms")
	require.NoError(t, err)
	assert.Contains(t, out, `CREATE TABLE "accounts"`)
	assert.Contains(t, out, "-- WITHHELD")

	out, err = newCLI(t).run("diff", source, target, "--unsafe")
	require.NoError(t, err)
	assert.Contains(t, out, `DROP TABLE "legacy"`)
	assert.NotContains(t, out, "-- WITHHELD")

	out, err = newCLI(t).run("diff", source, target, "--format", "yaml")
	require.NoError(t, err)
	var doc struct {
		Summary map[string]int `yaml:"summary"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 1, doc.Summary["removed"])
	assert.Positive(t, doc.Summary["added"])

	out, err = newCLI(t).run("diff", source, target, "--json-diff")
	require.NoError(t, err)
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.NotEmpty(t, entries)
}

func TestDiffRejectsBadFlags(t *testing.T) {
	source := sqliteDB(t, "source")

	_, err := newCLI(t).run("diff", source, source, "--include-objects", "table", "--exclude-objects", "view")
	assert.Error(t, err)

	_, err = newCLI(t).run("diff", source, source, "--format", "xml")
	assert.Error(t, err)

	_, err = newCLI(t).run("diff", source, source, "--include-objects", "widget")
	assert.Error(t, err)

	_, err = newCLI(t).run("diff", source, source, "--include-objects", "column")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include table")

	_, err = newCLI(t).run("diff", source, source, "--json-diff", "--apply")
	assert.Error(t, err)
}

func TestDiffApply(t *testing.T) {
	source := sqliteDB(t, "source", `CREATE TABLE legacy (id INTEGER)`)
	target := sqliteDB(t, "target", accounts)

	out, err := newCLI(t).run("diff", source, target, "--apply")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 1 statement(s)")

	_, err = newCLI(t).run("check", source, target)
	assert.ErrorIs(t, err, ErrSchemasDiffer, "the withheld drop was not applied")

	out, err = newCLI(t).run("diff", source, target, "--apply", "--unsafe")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 1 statement(s)")

	out, err = newCLI(t).run("check", source, target)
	require.NoError(t, err)
	assert.Contains(t, out, "Schemas are identical")

	out, err = newCLI(t).run("diff", source, target, "--apply")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to apply")
}

func TestShowCommand(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("migrate", "create", "accounts")
	require.NoError(t, err)

	entries, err := c.store.List(context.Background(), "migrations")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	version := entries[0].Name[:14]

	out, err := c.run("show", version)
	require.NoError(t, err)
	assert.Contains(t, out, entries[0].Name)
	assert.Contains(t, out, "-- create accounts")

	_, err = c.run("show", "20990101000000")
	assert.ErrorIs(t, err, domain.ErrMigrationNotFound)
}

func TestCheckCommand(t *testing.T) {
	source := sqliteDB(t, "source", accounts)
	same := sqliteDB(t, "same", accounts)
	other := sqliteDB(t, "other")

	out, err := newCLI(t).run("check", source, same)
	require.NoError(t, err)
	assert.Contains(t, out, "Schemas are identical")

	_, err = newCLI(t).run("check", source, other)
	assert.ErrorIs(t, err, ErrSchemasDiffer)
}

func TestCompactCommand(t *testing.T) {
	c := newCLI(t)
	target := sqliteDB(t, "target")

	_, err := c.run("migrate", "first")
	require.NoError(t, err)
	_, err = c.run("migrate", "second")
	require.NoError(t, err)

	_, err = c.run("compact", "--database-url", target)
	require.Error(t, err, "non-interactive compaction needs --yes")

	out, err := c.run("compact", "--yes", "--database-url", target, "--shadow-url", sqliteDB(t, "shadow"))
	require.NoError(t, err)
	assert.Contains(t, out, "Folded 2 migration(s)")

	entries, err := c.store.List(context.Background(), "migrations")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name, "compacted_initial")
}
