package introspector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/core/migration/sqlsplit"
)

// MySQLIntrospector reads information_schema for the connected database. Objects are not
// qualified with the database name so that two databases with different names compare.
type MySQLIntrospector struct {
	db database.Adapter
}

// NewMySQLIntrospector creates a new MySQL introspector.
func NewMySQLIntrospector(db database.Adapter) *MySQLIntrospector {
	return &MySQLIntrospector{db: db}
}

const (
	myVersionQuery = `SELECT VERSION()`

	myTablesQuery = `SELECT TABLE_NAME, COALESCE(ENGINE, '')
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`

	myColumnsQuery = `SELECT TABLE_NAME, COLUMN_NAME, ORDINAL_POSITION, COLUMN_TYPE, IS_NULLABLE = 'YES',
  COLUMN_DEFAULT, EXTRA, COALESCE(GENERATION_EXPRESSION, ''), COALESCE(COLLATION_NAME, ''), DATA_TYPE
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ?
ORDER BY TABLE_NAME, ORDINAL_POSITION`

	myKeysQuery = `SELECT tc.TABLE_NAME, tc.CONSTRAINT_NAME, tc.CONSTRAINT_TYPE,
  GROUP_CONCAT(k.COLUMN_NAME ORDER BY k.ORDINAL_POSITION SEPARATOR ','),
  COALESCE(MAX(k.REFERENCED_TABLE_NAME), ''),
  COALESCE(GROUP_CONCAT(k.REFERENCED_COLUMN_NAME ORDER BY k.ORDINAL_POSITION SEPARATOR ','), ''),
  COALESCE(MAX(rc.UPDATE_RULE), ''), COALESCE(MAX(rc.DELETE_RULE), '')
FROM information_schema.TABLE_CONSTRAINTS tc
JOIN information_schema.KEY_COLUMN_USAGE k
  ON k.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA AND k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND k.TABLE_NAME = tc.TABLE_NAME
LEFT JOIN information_schema.REFERENTIAL_CONSTRAINTS rc
  ON rc.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA AND rc.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
WHERE tc.TABLE_SCHEMA = ? AND tc.CONSTRAINT_TYPE IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
GROUP BY tc.TABLE_NAME, tc.CONSTRAINT_NAME, tc.CONSTRAINT_TYPE
ORDER BY tc.TABLE_NAME, tc.CONSTRAINT_NAME`

	myChecksQuery = `SELECT tc.TABLE_NAME, cc.CONSTRAINT_NAME, cc.CHECK_CLAUSE
FROM information_schema.CHECK_CONSTRAINTS cc
JOIN information_schema.TABLE_CONSTRAINTS tc
  ON tc.CONSTRAINT_SCHEMA = cc.CONSTRAINT_SCHEMA AND tc.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
WHERE cc.CONSTRAINT_SCHEMA = ? AND tc.CONSTRAINT_TYPE = 'CHECK'
ORDER BY tc.TABLE_NAME, cc.CONSTRAINT_NAME`

	myIndexesQuery = `SELECT s.TABLE_NAME, s.INDEX_NAME, MIN(s.NON_UNIQUE) = 0, MAX(s.INDEX_TYPE),
  GROUP_CONCAT(CONCAT('` + "`" + `', s.COLUMN_NAME, '` + "`" + `', IF(s.SUB_PART IS NULL, '', CONCAT('(', s.SUB_PART, ')')))
    ORDER BY s.SEQ_IN_INDEX SEPARATOR ', ')
FROM information_schema.STATISTICS s
WHERE s.TABLE_SCHEMA = ? AND s.INDEX_NAME <> 'PRIMARY' AND s.COLUMN_NAME IS NOT NULL
  AND NOT EXISTS (SELECT 1 FROM information_schema.TABLE_CONSTRAINTS tc
    WHERE tc.TABLE_SCHEMA = s.TABLE_SCHEMA AND tc.TABLE_NAME = s.TABLE_NAME
      AND tc.CONSTRAINT_NAME = s.INDEX_NAME AND tc.CONSTRAINT_TYPE IN ('UNIQUE', 'PRIMARY KEY', 'FOREIGN KEY'))
GROUP BY s.TABLE_NAME, s.INDEX_NAME
ORDER BY s.TABLE_NAME, s.INDEX_NAME`

	myViewsQuery = `SELECT TABLE_NAME, VIEW_DEFINITION
FROM information_schema.VIEWS
WHERE TABLE_SCHEMA = ?
ORDER BY TABLE_NAME`

	myViewDepsQuery = `SELECT VIEW_NAME, TABLE_NAME
FROM information_schema.VIEW_TABLE_USAGE
WHERE VIEW_SCHEMA = ? AND TABLE_SCHEMA = VIEW_SCHEMA
ORDER BY VIEW_NAME, TABLE_NAME`

	myTriggersQuery = `SELECT EVENT_OBJECT_TABLE, TRIGGER_NAME, ACTION_TIMING, EVENT_MANIPULATION, ACTION_STATEMENT
FROM information_schema.TRIGGERS
WHERE TRIGGER_SCHEMA = ?
ORDER BY EVENT_OBJECT_TABLE, TRIGGER_NAME`

	myRoutinesQuery = `SELECT r.ROUTINE_NAME, r.ROUTINE_TYPE, COALESCE(r.DTD_IDENTIFIER, ''), r.ROUTINE_DEFINITION,
  r.IS_DETERMINISTIC, r.SQL_DATA_ACCESS,
  COALESCE((SELECT GROUP_CONCAT(CONCAT_WS(' ', IF(r.ROUTINE_TYPE = 'PROCEDURE', p.PARAMETER_MODE, NULL),
      CONCAT('` + "`" + `', p.PARAMETER_NAME, '` + "`" + `'), p.DTD_IDENTIFIER) ORDER BY p.ORDINAL_POSITION SEPARATOR ', ')
    FROM information_schema.PARAMETERS p
    WHERE p.SPECIFIC_SCHEMA = r.ROUTINE_SCHEMA AND p.SPECIFIC_NAME = r.SPECIFIC_NAME AND p.ORDINAL_POSITION > 0), '')
FROM information_schema.ROUTINES r
WHERE r.ROUTINE_SCHEMA = ?
ORDER BY r.ROUTINE_NAME`
)

// Introspect reads the catalog inside one read-only transaction.
func (i *MySQLIntrospector) Introspect(ctx context.Context, scope domain.Scope) (*domain.Snapshot, error) {
	return withSnapshot(ctx, i.db, scope, func(ctx context.Context, r *catalogReader) error {
		schema := scope.Schema
		if schema == "" {
			schema = i.db.Descriptor().Database
		}
		if schema == "" {
			if err := r.tx.QueryRow(ctx, `SELECT DATABASE()`).Scan(&schema); err != nil {
				return r.fail("database", err)
			}
		}

		var raw string
		if err := r.tx.QueryRow(ctx, myVersionQuery).Scan(&raw); err != nil {
			return r.fail("server version", err)
		}
		v, err := serverVersion(raw)
		if err != nil {
			return r.fail("server version", err)
		}
		mariadb := strings.Contains(strings.ToLower(raw), "mariadb")

		args := []interface{}{schema}
		steps := []catalogStep{
			{"tables", myTablesQuery, func(rows *sql.Rows) error { return r.myTable(rows, scope) }},
			{"columns", myColumnsQuery, r.myColumn},
			{"constraints", myKeysQuery, r.myKey},
		}
		if mysqlHasChecks(v, mariadb) {
			steps = append(steps, catalogStep{"check constraints", myChecksQuery, r.myCheck})
		}
		steps = append(steps,
			catalogStep{"indexes", myIndexesQuery, r.myIndex},
			catalogStep{"views", myViewsQuery, r.myView},
			catalogStep{"triggers", myTriggersQuery, r.myTrigger},
			catalogStep{"routines", myRoutinesQuery, r.myRoutine},
		)
		if err := r.run(ctx, args, steps); err != nil {
			return err
		}
		if mysqlHasViewTableUsage(v, mariadb) {
			return r.each(ctx, "view dependencies", myViewDepsQuery, args, r.myViewDependency)
		}
		return r.scanViewDependencies(sqlsplit.New(domain.MySQL))
	})
}

func mysqlHasChecks(v *version.Version, mariadb bool) bool {
	if mariadb {
		return atLeast(v, "10.2.1")
	}
	return atLeast(v, "8.0.16")
}

func mysqlHasViewTableUsage(v *version.Version, mariadb bool) bool {
	return !mariadb && atLeast(v, "8.0.13")
}

func (r *catalogReader) myTable(rows *sql.Rows, scope domain.Scope) error {
	var name, engine string
	if err := rows.Scan(&name, &engine); err != nil {
		return err
	}
	if scope.Ignores(name) {
		return nil
	}
	def := &domain.TableDef{}
	if engine != "" {
		def.Options = "ENGINE=" + engine
	}
	return r.add(topLevel(domain.ObjectTable, "", name, def))
}

// mysqlStringTypes have defaults reported unquoted by information_schema.
var mysqlStringTypes = map[string]bool{
	"char": true, "varchar": true, "text": true, "tinytext": true, "mediumtext": true, "longtext": true,
	"enum": true, "set": true, "binary": true, "varbinary": true,
}

func (r *catalogReader) myColumn(rows *sql.Rows) error {
	var (
		table, name, typ, extra, generated, collation, dataType string
		position                                               int
		nullable                                               bool
		def                                                    sql.NullString
	)
	if err := rows.Scan(&table, &name, &position, &typ, &nullable, &def, &extra, &generated, &collation, &dataType); err != nil {
		return err
	}
	col := &domain.ColumnDef{Type: typ, Nullable: nullable, Collation: collation, Position: position, Generated: generated}
	extra = strings.ToLower(extra)
	col.AutoIncrement = strings.Contains(extra, "auto_increment")
	if def.Valid && generated == "" {
		switch {
		case strings.HasPrefix(strings.ToUpper(def.String), "CURRENT_TIMESTAMP"):
			col.Default = def.String
		case strings.Contains(extra, "default_generated"):
			col.Default = "(" + def.String + ")"
		case mysqlStringTypes[strings.ToLower(dataType)] && !strings.HasPrefix(def.String, "'"):
			col.Default = "'" + strings.ReplaceAll(def.String, "'", "''") + "'"
		default:
			col.Default = def.String
		}
	}
	if i := strings.Index(extra, "on update "); i >= 0 {
		col.Type += " ON UPDATE " + strings.ToUpper(strings.TrimSpace(extra[i+len("on update "):]))
	}
	return r.add(childOf(domain.ObjectColumn, "", table, name, col))
}

func quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = "`" + strings.ReplaceAll(c, "`", "``") + "`"
	}
	return strings.Join(quoted, ", ")
}

func (r *catalogReader) myKey(rows *sql.Rows) error {
	var table, name, kind, columns, refTable, refColumns, onUpdate, onDelete string
	if err := rows.Scan(&table, &name, &kind, &columns, &refTable, &refColumns, &onUpdate, &onDelete); err != nil {
		return err
	}
	def := &domain.ConstraintDef{
		Kind:       domain.ConstraintKind(kind),
		Columns:    splitList(columns),
		RefColumns: splitList(refColumns),
	}
	var deps []domain.ObjectRef
	def.Definition = kind + " (" + quoteList(def.Columns) + ")"
	if def.Kind == domain.ConstraintForeignKey {
		def.RefTable = refTable
		def.Definition += " REFERENCES " + quoteList([]string{refTable}) + " (" + quoteList(def.RefColumns) + ")"
		if onUpdate != "" && onUpdate != "RESTRICT" && onUpdate != "NO ACTION" {
			def.Definition += " ON UPDATE " + onUpdate
		}
		if onDelete != "" && onDelete != "RESTRICT" && onDelete != "NO ACTION" {
			def.Definition += " ON DELETE " + onDelete
		}
		deps = append(deps, tableRef("", refTable))
	}
	return r.add(childOf(domain.ObjectConstraint, "", table, name, def, deps...))
}

func (r *catalogReader) myCheck(rows *sql.Rows) error {
	var table, name, clause string
	if err := rows.Scan(&table, &name, &clause); err != nil {
		return err
	}
	def := &domain.ConstraintDef{Kind: domain.ConstraintCheck, Definition: "CHECK (" + clause + ")"}
	return r.add(childOf(domain.ObjectConstraint, "", table, name, def))
}

func (r *catalogReader) myIndex(rows *sql.Rows) error {
	var table, name, kind, columns string
	var unique bool
	if err := rows.Scan(&table, &name, &unique, &kind, &columns); err != nil {
		return err
	}
	prefix := "CREATE INDEX "
	switch {
	case unique:
		prefix = "CREATE UNIQUE INDEX "
	case kind == "FULLTEXT" || kind == "SPATIAL":
		prefix = "CREATE " + kind + " INDEX "
	}
	stmt := fmt.Sprintf("%s%s ON %s (%s)", prefix, quoteList([]string{name}), quoteList([]string{table}), columns)
	return r.add(childOf(domain.ObjectIndex, "", table, name, &domain.IndexDef{Unique: unique, Statement: stmt}))
}

func (r *catalogReader) myView(rows *sql.Rows) error {
	var name, query string
	if err := rows.Scan(&name, &query); err != nil {
		return err
	}
	return r.add(topLevel(domain.ObjectView, "", name, &domain.ViewDef{Query: query}))
}

func (r *catalogReader) myViewDependency(rows *sql.Rows) error {
	var view, dep string
	if err := rows.Scan(&view, &dep); err != nil {
		return err
	}
	if obj, ok := r.snap.Get(domain.Ref(domain.ObjectView, view)); ok {
		obj.DependsOn = append(obj.DependsOn, relationRefs("", dep)...)
	}
	return nil
}

func (r *catalogReader) myTrigger(rows *sql.Rows) error {
	var table, name, timing, event, body string
	if err := rows.Scan(&table, &name, &timing, &event, &body); err != nil {
		return err
	}
	stmt := fmt.Sprintf("CREATE TRIGGER %s %s %s ON %s FOR EACH ROW %s",
		quoteList([]string{name}), timing, event, quoteList([]string{table}), body)
	return r.add(childOf(domain.ObjectTrigger, "", table, name, &domain.TriggerDef{Statement: stmt}))
}

func (r *catalogReader) myRoutine(rows *sql.Rows) error {
	var name, kind, returns, body, deterministic, access, params string
	if err := rows.Scan(&name, &kind, &returns, &body, &deterministic, &access, &params); err != nil {
		return err
	}
	def := &domain.FunctionDef{Procedure: kind == "PROCEDURE", IdentityArgs: params, Returns: returns, Language: "SQL"}
	var b strings.Builder
	b.WriteString("CREATE " + kind + " " + quoteList([]string{name}) + "(" + params + ")")
	if !def.Procedure {
		b.WriteString(" RETURNS " + returns)
	}
	if deterministic == "YES" {
		b.WriteString(" DETERMINISTIC")
	}
	if access != "" && access != "CONTAINS SQL" {
		b.WriteString(" " + access)
	}
	b.WriteString("\n" + body)
	def.Statement = b.String()

	obj := topLevel(domain.ObjectFunction, "", name, def)
	obj.QualifiedName = functionName("", name, params)
	return r.add(obj)
}

// scanViewDependencies derives view dependencies from the identifiers each view selects from.
// Names are matched case-insensitively against the tables and views of the snapshot.
func (r *catalogReader) scanViewDependencies(splitter *sqlsplit.Splitter) error {
	relations := make(map[string][]domain.ObjectRef)
	var views []*domain.SchemaObject
	for _, obj := range r.snap.Objects() {
		switch obj.ObjectType {
		case domain.ObjectView:
			views = append(views, obj)
			fallthrough
		case domain.ObjectTable:
			key := strings.ToLower(obj.Name)
			relations[key] = append(relations[key], obj.Ref())
		}
	}
	for _, obj := range views {
		view := obj.Definition.(*domain.ViewDef)
		query := view.Query
		if query == "" {
			query = view.Statement
		}
		ids, err := splitter.Identifiers(query)
		if err != nil {
			return r.fail("view dependencies", fmt.Errorf("%s: %w", obj.QualifiedName, err))
		}
		for _, id := range ids {
			for _, ref := range relations[strings.ToLower(id)] {
				if ref != obj.Ref() {
					obj.DependsOn = append(obj.DependsOn, ref)
				}
			}
		}
	}
	return nil
}

var _ domain.Introspector = (*MySQLIntrospector)(nil)
