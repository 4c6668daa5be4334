package introspector

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/core/migration/sqlsplit"
)

// SQLiteIntrospector reads sqlite_master joined with the table valued pragma functions.
// Check constraints and AUTOINCREMENT exist only in the table statement, which is tokenized for them.
type SQLiteIntrospector struct {
	db database.Adapter
}

// NewSQLiteIntrospector creates a new SQLite introspector.
func NewSQLiteIntrospector(db database.Adapter) *SQLiteIntrospector {
	return &SQLiteIntrospector{db: db}
}

const (
	liteUserTables = `m.type = 'table' AND m.name NOT LIKE 'sqlite\_%' ESCAPE '\'`

	liteTablesQuery = `SELECT m.name, COALESCE(m.sql, '') FROM sqlite_master m
WHERE ` + liteUserTables + `
ORDER BY m.name`

	liteColumnsQuery = `SELECT m.name, p.cid, p.name, p.type, p."notnull", p.dflt_value, p.pk
FROM sqlite_master m JOIN pragma_table_info(m.name) p
WHERE ` + liteUserTables + `
ORDER BY m.name, p.cid`

	liteForeignKeysQuery = `SELECT m.name, f.id, f."table", f."from", COALESCE(f."to", ''), f.on_update, f.on_delete
FROM sqlite_master m JOIN pragma_foreign_key_list(m.name) f
WHERE ` + liteUserTables + `
ORDER BY m.name, f.id, f.seq`

	liteIndexesQuery = `SELECT m.name, il.name, il."unique", il.origin, COALESCE(ix.sql, ''),
  COALESCE((SELECT group_concat(ii.name, ',') FROM pragma_index_info(il.name) ii), '')
FROM sqlite_master m
JOIN pragma_index_list(m.name) il
LEFT JOIN sqlite_master ix ON ix.type = 'index' AND ix.name = il.name
WHERE ` + liteUserTables + `
ORDER BY m.name, il.name`

	liteViewsQuery = `SELECT name, sql FROM sqlite_master WHERE type = 'view' ORDER BY name`

	liteTriggersQuery = `SELECT tbl_name, name, sql FROM sqlite_master WHERE type = 'trigger' ORDER BY tbl_name, name`
)

// Introspect reads the main database.
func (i *SQLiteIntrospector) Introspect(ctx context.Context, scope domain.Scope) (*domain.Snapshot, error) {
	return withSnapshot(ctx, i.db, scope, func(ctx context.Context, r *catalogReader) error {
		lite := &liteCatalog{
			catalogReader: r,
			scope:         scope,
			splitter:      sqlsplit.New(domain.SQLite),
			autoinc:       make(map[string]bool),
			primaryKeys:   make(map[string][]pkColumn),
		}
		steps := []catalogStep{
			{"tables", liteTablesQuery, lite.table},
			{"columns", liteColumnsQuery, lite.column},
			{"foreign keys", liteForeignKeysQuery, lite.foreignKey},
			{"indexes", liteIndexesQuery, lite.index},
			{"views", liteViewsQuery, lite.view},
			{"triggers", liteTriggersQuery, lite.trigger},
		}
		for _, step := range steps {
			if err := r.each(ctx, step.object, step.query, nil, step.scan); err != nil {
				return err
			}
			if step.object == "columns" {
				if err := lite.flushPrimaryKeys(); err != nil {
					return err
				}
			}
			if step.object == "foreign keys" {
				if err := lite.flushForeignKey(); err != nil {
					return err
				}
			}
		}
		return r.scanViewDependencies(lite.splitter)
	})
}

type pkColumn struct {
	name string
	seq  int
}

type liteFK struct {
	table, refTable, onUpdate, onDelete string
	id                                  int
	from, to                            []string
}

// liteCatalog carries the rows that are grouped before they become objects.
type liteCatalog struct {
	*catalogReader
	scope       domain.Scope
	splitter    *sqlsplit.Splitter
	autoinc     map[string]bool
	primaryKeys map[string][]pkColumn
	pendingFK   *liteFK
}

func liteQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func liteQuoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = liteQuote(c)
	}
	return strings.Join(quoted, ", ")
}

func (c *liteCatalog) table(rows *sql.Rows) error {
	var name, stmt string
	if err := rows.Scan(&name, &stmt); err != nil {
		return err
	}
	if c.scope.Ignores(name) {
		return nil
	}
	clauses, err := c.splitter.CreateTable(stmt)
	if err != nil {
		return err
	}
	c.autoinc[name] = clauses.AutoIncrement
	if err := c.add(topLevel(domain.ObjectTable, "", name, &domain.TableDef{})); err != nil {
		return err
	}
	return c.checks(name, clauses.Checks)
}

// checks adds the CHECK constraints of a table. Unnamed ones are numbered in declaration order,
// skipping names the table already uses.
func (c *liteCatalog) checks(table string, checks []sqlsplit.CheckClause) error {
	used := make(map[string]bool)
	for _, check := range checks {
		if check.Name != "" {
			used[check.Name] = true
		}
	}
	n := 0
	for _, check := range checks {
		name := check.Name
		for name == "" {
			n++
			if candidate := fmt.Sprintf("%s_check%d", table, n); !used[candidate] {
				name = candidate
			}
		}
		used[name] = true
		def := &domain.ConstraintDef{Kind: domain.ConstraintCheck, Definition: "CHECK (" + check.Expr + ")"}
		if err := c.add(childOf(domain.ObjectConstraint, "", table, name, def)); err != nil {
			return err
		}
	}
	return nil
}

func (c *liteCatalog) column(rows *sql.Rows) error {
	var (
		table, name, typ string
		cid, notNull, pk int
		dflt             sql.NullString
	)
	if err := rows.Scan(&table, &cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
		return err
	}
	def := &domain.ColumnDef{Type: typ, Nullable: notNull == 0, Default: dflt.String, Position: cid + 1}
	if pk > 0 {
		c.primaryKeys[table] = append(c.primaryKeys[table], pkColumn{name: name, seq: pk})
		def.AutoIncrement = c.autoinc[table] && strings.EqualFold(typ, "INTEGER")
	}
	return c.add(childOf(domain.ObjectColumn, "", table, name, def))
}

// flushPrimaryKeys turns the pk positions reported per column into one constraint per table.
func (c *liteCatalog) flushPrimaryKeys() error {
	tables := make([]string, 0, len(c.primaryKeys))
	for table := range c.primaryKeys {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		cols := c.primaryKeys[table]
		sort.Slice(cols, func(i, j int) bool { return cols[i].seq < cols[j].seq })
		names := make([]string, len(cols))
		for i, col := range cols {
			names[i] = col.name
		}
		if len(cols) > 1 {
			// AUTOINCREMENT only applies to a single INTEGER PRIMARY KEY column.
			for _, col := range cols {
				if obj, ok := c.snap.Get(domain.Ref(domain.ObjectColumn, table+"."+col.name)); ok {
					obj.Definition.(*domain.ColumnDef).AutoIncrement = false
				}
			}
		}
		def := &domain.ConstraintDef{
			Kind:       domain.ConstraintPrimaryKey,
			Columns:    names,
			Definition: "PRIMARY KEY (" + liteQuoteList(names) + ")",
		}
		if err := c.add(childOf(domain.ObjectConstraint, "", table, table+"_pkey", def)); err != nil {
			return err
		}
	}
	return nil
}

func (c *liteCatalog) foreignKey(rows *sql.Rows) error {
	var table, refTable, from, to, onUpdate, onDelete string
	var id int
	if err := rows.Scan(&table, &id, &refTable, &from, &to, &onUpdate, &onDelete); err != nil {
		return err
	}
	if fk := c.pendingFK; fk != nil && (fk.table != table || fk.id != id) {
		if err := c.flushForeignKey(); err != nil {
			return err
		}
	}
	if c.pendingFK == nil {
		c.pendingFK = &liteFK{table: table, id: id, refTable: refTable, onUpdate: onUpdate, onDelete: onDelete}
	}
	c.pendingFK.from = append(c.pendingFK.from, from)
	if to != "" {
		c.pendingFK.to = append(c.pendingFK.to, to)
	}
	return nil
}

// flushForeignKey emits the foreign key being accumulated. SQLite foreign keys are unnamed, so
// the name is derived from the owning table and columns.
func (c *liteCatalog) flushForeignKey() error {
	fk := c.pendingFK
	if fk == nil {
		return nil
	}
	c.pendingFK = nil

	clause := "FOREIGN KEY (" + liteQuoteList(fk.from) + ") REFERENCES " + liteQuote(fk.refTable)
	if len(fk.to) > 0 {
		clause += " (" + liteQuoteList(fk.to) + ")"
	}
	if fk.onUpdate != "" && fk.onUpdate != "NO ACTION" {
		clause += " ON UPDATE " + fk.onUpdate
	}
	if fk.onDelete != "" && fk.onDelete != "NO ACTION" {
		clause += " ON DELETE " + fk.onDelete
	}
	def := &domain.ConstraintDef{
		Kind:       domain.ConstraintForeignKey,
		Columns:    fk.from,
		RefTable:   fk.refTable,
		RefColumns: fk.to,
		Definition: clause,
	}
	name := fmt.Sprintf("%s_%s_fkey", fk.table, strings.Join(fk.from, "_"))
	return c.add(childOf(domain.ObjectConstraint, "", fk.table, name, def, tableRef("", fk.refTable)))
}

func (c *liteCatalog) index(rows *sql.Rows) error {
	var table, name, origin, stmt, columns string
	var unique int
	if err := rows.Scan(&table, &name, &unique, &origin, &stmt, &columns); err != nil {
		return err
	}
	cols := splitList(columns)
	switch origin {
	case "c":
		def := &domain.IndexDef{Unique: unique == 1, Columns: cols, Statement: stmt}
		return c.add(childOf(domain.ObjectIndex, "", table, name, def))
	case "u":
		def := &domain.ConstraintDef{
			Kind:       domain.ConstraintUnique,
			Columns:    cols,
			Definition: "UNIQUE (" + liteQuoteList(cols) + ")",
		}
		return c.add(childOf(domain.ObjectConstraint, "", table, table+"_"+strings.Join(cols, "_")+"_key", def))
	}
	return nil
}

func (c *liteCatalog) view(rows *sql.Rows) error {
	var name, stmt string
	if err := rows.Scan(&name, &stmt); err != nil {
		return err
	}
	return c.add(topLevel(domain.ObjectView, "", name, &domain.ViewDef{Statement: stmt}))
}

func (c *liteCatalog) trigger(rows *sql.Rows) error {
	var table, name, stmt string
	if err := rows.Scan(&table, &name, &stmt); err != nil {
		return err
	}
	return c.add(childOf(domain.ObjectTrigger, "", table, name, &domain.TriggerDef{Statement: stmt}))
}

var _ domain.Introspector = (*SQLiteIntrospector)(nil)
