package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

func table(name string) domain.ObjectRef { return domain.Ref(domain.ObjectTable, name) }

func view(name string) domain.ObjectRef { return domain.Ref(domain.ObjectView, name) }

func changeSet(t *testing.T, entries ...domain.ChangeEntry) *domain.ChangeSet {
	t.Helper()
	cs, err := domain.NewChangeSet(domain.PostgreSQL, entries)
	require.NoError(t, err)
	return cs
}

func plan(t *testing.T, cs *domain.ChangeSet, unsafe bool) *domain.Plan {
	t.Helper()
	p, err := NewDependencyPlanner().Plan(cs, domain.PlanOptions{Unsafe: unsafe})
	require.NoError(t, err)
	return p
}

func sqls(p *domain.Plan) []string {
	var out []string
	for _, stmt := range p.Statements() {
		out = append(out, stmt.SQL)
	}
	return out
}

func members(p *domain.Plan) [][]domain.ObjectRef {
	var out [][]domain.ObjectRef
	for _, g := range p.Groups {
		out = append(out, g.Members)
	}
	return out
}

func removedShop() []domain.ChangeEntry {
	return []domain.ChangeEntry{
		{
			Ref:    table("public.customers"),
			Status: domain.StatusRemoved,
			Statements: []domain.Statement{
				domain.Destroy("DROP TABLE customers"),
			},
			Destructive: true,
		},
		{
			Ref:    table("public.orders"),
			Status: domain.StatusRemoved,
			Statements: []domain.Statement{
				{SQL: "ALTER TABLE orders DROP CONSTRAINT orders_customer_id_fkey", Phase: domain.PhasePre},
				domain.Destroy("DROP TABLE orders"),
			},
			Destructive: true,
			SourceDeps:  []domain.ObjectRef{table("public.customers")},
		},
	}
}

func TestPlanDropsDependentsFirst(t *testing.T) {
	p := plan(t, changeSet(t, removedShop()...), true)

	assert.Equal(t, []string{
		"ALTER TABLE orders DROP CONSTRAINT orders_customer_id_fkey",
		"DROP TABLE orders",
		"DROP TABLE customers",
	}, sqls(p))
	assert.Empty(t, p.Withheld)
}

func TestPlanWithholdsDestructiveChangesByDefault(t *testing.T) {
	p := plan(t, changeSet(t, removedShop()...), false)

	assert.True(t, p.Empty())
	require.Len(t, p.Withheld, 2)
	assert.Equal(t, table("public.orders"), p.Withheld[0].Entry.Ref)
	assert.Equal(t, "destructive", p.Withheld[0].Reason)
	assert.Equal(t, table("public.customers"), p.Withheld[1].Entry.Ref)
	assert.Contains(t, p.SQL(), "-- WITHHELD (destructive): table public.orders Removed")
	assert.Contains(t, p.SQL(), "-- DROP TABLE orders;")
}

func TestPlanCreatesDependenciesFirst(t *testing.T) {
	cs := changeSet(t,
		domain.ChangeEntry{
			Ref:    table("public.orders"),
			Status: domain.StatusAdded,
			Statements: []domain.Statement{
				domain.Main("CREATE TABLE orders"),
				{SQL: "ALTER TABLE orders ADD CONSTRAINT orders_customer_id_fkey", Phase: domain.PhasePost},
			},
			TargetDeps: []domain.ObjectRef{table("public.customers")},
		},
		domain.ChangeEntry{
			Ref:        view("public.big_orders"),
			Status:     domain.StatusAdded,
			Statements: []domain.Statement{domain.Main("CREATE VIEW big_orders")},
			TargetDeps: []domain.ObjectRef{table("public.orders")},
		},
		domain.ChangeEntry{
			Ref:        table("public.customers"),
			Status:     domain.StatusAdded,
			Statements: []domain.Statement{domain.Main("CREATE TABLE customers")},
		},
	)

	p := plan(t, cs, false)

	assert.Equal(t, []string{
		"CREATE TABLE customers",
		"CREATE TABLE orders",
		"ALTER TABLE orders ADD CONSTRAINT orders_customer_id_fkey",
		"CREATE VIEW big_orders",
	}, sqls(p))
}

func TestPlanModifiedEntries(t *testing.T) {
	cs := changeSet(t,
		domain.ChangeEntry{
			Ref:        table("public.legacy"),
			Status:     domain.StatusRemoved,
			Statements: []domain.Statement{domain.Main("DROP TABLE legacy")},
		},
		domain.ChangeEntry{
			Ref:        table("public.orders"),
			Status:     domain.StatusModified,
			Statements: []domain.Statement{domain.Main("ALTER TABLE orders DROP CONSTRAINT orders_legacy_fkey"), domain.Main("ALTER TABLE orders ADD CONSTRAINT orders_region_fkey")},
			SourceDeps: []domain.ObjectRef{table("public.legacy")},
			TargetDeps: []domain.ObjectRef{table("public.regions")},
		},
		domain.ChangeEntry{
			Ref:        table("public.regions"),
			Status:     domain.StatusAdded,
			Statements: []domain.Statement{domain.Main("CREATE TABLE regions")},
		},
	)

	p := plan(t, cs, false)

	assert.Equal(t, []string{
		"CREATE TABLE regions",
		"ALTER TABLE orders DROP CONSTRAINT orders_legacy_fkey",
		"ALTER TABLE orders ADD CONSTRAINT orders_region_fkey",
		"DROP TABLE legacy",
	}, sqls(p))
}

func TestPlanCollapsesCycles(t *testing.T) {
	cs := changeSet(t,
		domain.ChangeEntry{
			Ref:    table("public.a"),
			Status: domain.StatusAdded,
			Statements: []domain.Statement{
				domain.Main("CREATE TABLE a"),
				{SQL: "ALTER TABLE a ADD CONSTRAINT a_b_fkey", Phase: domain.PhasePost},
			},
			TargetDeps: []domain.ObjectRef{table("public.b")},
		},
		domain.ChangeEntry{
			Ref:    table("public.b"),
			Status: domain.StatusAdded,
			Statements: []domain.Statement{
				domain.Main("CREATE TABLE b"),
				{SQL: "ALTER TABLE b ADD CONSTRAINT b_a_fkey", Phase: domain.PhasePost},
			},
			TargetDeps: []domain.ObjectRef{table("public.a")},
		},
		domain.ChangeEntry{
			Ref:        view("public.ab"),
			Status:     domain.StatusAdded,
			Statements: []domain.Statement{domain.Main("CREATE VIEW ab")},
			TargetDeps: []domain.ObjectRef{table("public.a"), table("public.b")},
		},
	)

	p := plan(t, cs, false)

	require.Len(t, p.Groups, 2)
	assert.True(t, p.Groups[0].Cyclic())
	assert.Equal(t, []domain.ObjectRef{table("public.a"), table("public.b")}, p.Groups[0].Members)
	assert.Equal(t, []string{
		"CREATE TABLE a",
		"CREATE TABLE b",
		"ALTER TABLE a ADD CONSTRAINT a_b_fkey",
		"ALTER TABLE b ADD CONSTRAINT b_a_fkey",
		"CREATE VIEW ab",
	}, sqls(p))
	assert.Contains(t, p.SQL(), "-- cycle: table public.a, table public.b\n")
}

func TestPlanWithholdsDependentsOfWithheldEntries(t *testing.T) {
	cs := changeSet(t,
		domain.ChangeEntry{
			Ref:         table("public.orders"),
			Status:      domain.StatusModified,
			Statements:  []domain.Statement{{SQL: "ALTER TABLE orders ALTER COLUMN total TYPE integer", Phase: domain.PhaseMain, Destructive: true}},
			Destructive: true,
		},
		domain.ChangeEntry{
			Ref:        view("public.totals"),
			Status:     domain.StatusAdded,
			Statements: []domain.Statement{domain.Main("CREATE VIEW totals")},
			TargetDeps: []domain.ObjectRef{table("public.orders")},
		},
		domain.ChangeEntry{
			Ref:        table("public.notes"),
			Status:     domain.StatusAdded,
			Statements: []domain.Statement{domain.Main("CREATE TABLE notes")},
		},
	)

	safe := plan(t, cs, false)
	assert.Equal(t, []string{"CREATE TABLE notes"}, sqls(safe))
	require.Len(t, safe.Withheld, 2)
	assert.Equal(t, "destructive", safe.Withheld[0].Reason)
	assert.Equal(t, view("public.totals"), safe.Withheld[1].Entry.Ref)
	assert.Equal(t, "depends on withheld table public.orders", safe.Withheld[1].Reason)

	unsafe := plan(t, cs, true)
	assert.Equal(t, []string{
		"ALTER TABLE orders ALTER COLUMN total TYPE integer",
		"CREATE TABLE notes",
		"CREATE VIEW totals",
	}, sqls(unsafe))
	assert.Empty(t, unsafe.Withheld)
}

func TestPlanWithholdsWholeCycle(t *testing.T) {
	cs := changeSet(t,
		domain.ChangeEntry{
			Ref:         table("public.a"),
			Status:      domain.StatusModified,
			Statements:  []domain.Statement{domain.Destroy("ALTER TABLE a DROP COLUMN x")},
			Destructive: true,
			TargetDeps:  []domain.ObjectRef{table("public.b")},
		},
		domain.ChangeEntry{
			Ref:        table("public.b"),
			Status:     domain.StatusModified,
			Statements: []domain.Statement{domain.Main("ALTER TABLE b ADD COLUMN y integer")},
			TargetDeps: []domain.ObjectRef{table("public.a")},
		},
	)

	p := plan(t, cs, false)

	assert.True(t, p.Empty())
	require.Len(t, p.Withheld, 2)
	assert.Equal(t, "destructive", p.Withheld[0].Reason)
	assert.Equal(t, "in a dependency cycle with withheld table public.a", p.Withheld[1].Reason)
}

func TestPlanIsDeterministic(t *testing.T) {
	entries := removedShop()
	entries = append(entries,
		domain.ChangeEntry{Ref: table("public.z"), Status: domain.StatusAdded, Statements: []domain.Statement{domain.Main("CREATE TABLE z")}},
		domain.ChangeEntry{Ref: table("public.m"), Status: domain.StatusAdded, Statements: []domain.Statement{domain.Main("CREATE TABLE m")}},
		domain.ChangeEntry{Ref: view("public.v"), Status: domain.StatusRemoved, Statements: []domain.Statement{domain.Main("DROP VIEW v")},
			SourceDeps: []domain.ObjectRef{table("public.orders")}},
	)
	reversed := make([]domain.ChangeEntry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}

	first := plan(t, changeSet(t, entries...), true)
	second := plan(t, changeSet(t, reversed...), true)

	assert.Equal(t, first.SQL(), second.SQL())
	assert.Equal(t, members(first), members(second))
	assert.Equal(t, []string{
		"DROP VIEW v",
		"ALTER TABLE orders DROP CONSTRAINT orders_customer_id_fkey",
		"DROP TABLE orders",
		"DROP TABLE customers",
		"CREATE TABLE m",
		"CREATE TABLE z",
	}, sqls(first))
}

func TestPlanSkipsIdenticalAndKeepsWarnings(t *testing.T) {
	cs := changeSet(t,
		domain.ChangeEntry{Ref: table("public.same"), Status: domain.StatusIdentical},
		domain.ChangeEntry{Ref: table("public.odd"), Status: domain.StatusModified,
			Warnings: []string{"column public.odd.x: column cannot be altered in place"}},
	)

	p := plan(t, cs, false)

	assert.True(t, p.Empty())
	assert.Empty(t, p.Groups)
	assert.Equal(t, []string{"column public.odd.x: column cannot be altered in place"}, p.Warnings)
}
