package introspector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

// PostgresIntrospector reads pg_catalog. Every query is scoped by $1, the schema filter, where
// an empty string means all user schemas.
type PostgresIntrospector struct {
	db database.Adapter
}

// NewPostgresIntrospector creates a new PostgreSQL introspector.
func NewPostgresIntrospector(db database.Adapter) *PostgresIntrospector {
	return &PostgresIntrospector{db: db}
}

func pgSchemaFilter(col string) string {
	return fmt.Sprintf(`%[1]s NOT IN ('pg_catalog', 'information_schema') AND %[1]s NOT LIKE 'pg\_%%'
  AND ($1::text = '' OR %[1]s::text = $1::text)`, col)
}

func pgNotExtensionOwned(catalog, oid string) string {
	return fmt.Sprintf(`NOT EXISTS (SELECT 1 FROM pg_depend ext WHERE ext.classid = '%s'::regclass
  AND ext.objid = %s AND ext.deptype = 'e')`, catalog, oid)
}

const pgVersionQuery = `SELECT current_setting('server_version')`

var (
	pgSchemasQuery = `SELECT n.nspname FROM pg_namespace n
WHERE ` + pgSchemaFilter("n.nspname") + ` AND ` + pgNotExtensionOwned("pg_namespace", "n.oid") + `
ORDER BY 1`

	pgExtensionsQuery = `SELECT e.extname, e.extversion, n.nspname
FROM pg_extension e JOIN pg_namespace n ON n.oid = e.extnamespace
WHERE e.extname <> 'plpgsql' AND ($1::text = '' OR n.nspname::text = $1::text)
ORDER BY 1`

	pgEnumsQuery = `SELECT n.nspname, t.typname, array_agg(e.enumlabel ORDER BY e.enumsortorder)
FROM pg_type t
JOIN pg_enum e ON e.enumtypid = t.oid
JOIN pg_namespace n ON n.oid = t.typnamespace
WHERE ` + pgSchemaFilter("n.nspname") + ` AND ` + pgNotExtensionOwned("pg_type", "t.oid") + `
GROUP BY 1, 2 ORDER BY 1, 2`

	pgSequencesQuery = `SELECT n.nspname, c.relname, format_type(s.seqtypid, NULL), s.seqstart, s.seqincrement,
  s.seqmin, s.seqmax, s.seqcache, s.seqcycle,
  COALESCE(tn.nspname, ''), COALESCE(t.relname, ''), COALESCE(a.attname, '')
FROM pg_sequence s
JOIN pg_class c ON c.oid = s.seqrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_depend own ON own.classid = 'pg_class'::regclass AND own.objid = c.oid
  AND own.refclassid = 'pg_class'::regclass AND own.deptype = 'a'
LEFT JOIN pg_class t ON t.oid = own.refobjid
LEFT JOIN pg_namespace tn ON tn.oid = t.relnamespace
LEFT JOIN pg_attribute a ON a.attrelid = own.refobjid AND a.attnum = own.refobjsubid
WHERE ` + pgSchemaFilter("n.nspname") + `
  AND NOT EXISTS (SELECT 1 FROM pg_depend d WHERE d.classid = 'pg_class'::regclass
    AND d.objid = c.oid AND d.deptype IN ('i', 'e'))
ORDER BY 1, 2`

	pgTablesQuery = `SELECT n.nspname, c.relname
FROM pg_class c JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'p') AND NOT c.relispartition
  AND ` + pgSchemaFilter("n.nspname") + ` AND ` + pgNotExtensionOwned("pg_class", "c.oid") + `
ORDER BY 1, 2`

	pgConstraintsQuery = `SELECT n.nspname, c.relname, con.conname, con.contype::text, pg_get_constraintdef(con.oid, true),
  COALESCE(fn.nspname, ''), COALESCE(fc.relname, ''),
  COALESCE((SELECT string_agg(a.attname, ',' ORDER BY k.ord) FROM unnest(con.conkey) WITH ORDINALITY k(attnum, ord)
    JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum), ''),
  COALESCE((SELECT string_agg(a.attname, ',' ORDER BY k.ord) FROM unnest(con.confkey) WITH ORDINALITY k(attnum, ord)
    JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum), '')
FROM pg_constraint con
JOIN pg_class c ON c.oid = con.conrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_class fc ON fc.oid = con.confrelid
LEFT JOIN pg_namespace fn ON fn.oid = fc.relnamespace
WHERE con.contype IN ('p', 'u', 'f', 'c', 'x') AND c.relkind IN ('r', 'p')
  AND ` + pgSchemaFilter("n.nspname") + `
ORDER BY 1, 2, 3`

	pgIndexesQuery = `SELECT n.nspname, c.relname, i.relname, ix.indisunique, pg_get_indexdef(ix.indexrelid)
FROM pg_index ix
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_class c ON c.oid = ix.indrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'p')
  AND NOT EXISTS (SELECT 1 FROM pg_constraint con WHERE con.conindid = ix.indexrelid AND con.contype IN ('p', 'u', 'x'))
  AND ` + pgSchemaFilter("n.nspname") + ` AND ` + pgNotExtensionOwned("pg_class", "i.oid") + `
ORDER BY 1, 2, 3`

	pgViewsQuery = `SELECT n.nspname, c.relname, c.relkind = 'm', pg_get_viewdef(c.oid, true)
FROM pg_class c JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('v', 'm') AND ` + pgSchemaFilter("n.nspname") + ` AND ` + pgNotExtensionOwned("pg_class", "c.oid") + `
ORDER BY 1, 2`

	pgViewDepsQuery = `SELECT DISTINCT vn.nspname, v.relname, dn.nspname, d.relname, d.relkind::text
FROM pg_depend dep
JOIN pg_rewrite r ON r.oid = dep.objid
JOIN pg_class v ON v.oid = r.ev_class
JOIN pg_namespace vn ON vn.oid = v.relnamespace
JOIN pg_class d ON d.oid = dep.refobjid
JOIN pg_namespace dn ON dn.oid = d.relnamespace
WHERE dep.classid = 'pg_rewrite'::regclass AND dep.refclassid = 'pg_class'::regclass
  AND v.oid <> d.oid AND v.relkind IN ('v', 'm') AND ` + pgSchemaFilter("vn.nspname") + `
ORDER BY 1, 2, 3, 4`

	pgTriggersQuery = `SELECT n.nspname, c.relname, t.tgname, pg_get_triggerdef(t.oid, true),
  pn.nspname, p.proname, pg_get_function_identity_arguments(p.oid)
FROM pg_trigger t
JOIN pg_class c ON c.oid = t.tgrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_proc p ON p.oid = t.tgfoid
JOIN pg_namespace pn ON pn.oid = p.pronamespace
WHERE NOT t.tgisinternal AND c.relkind IN ('r', 'p') AND ` + pgSchemaFilter("n.nspname") + `
ORDER BY 1, 2, 3`
)

func pgColumnsQuery(generatedColumns bool) string {
	generated := `''`
	if generatedColumns {
		generated = `a.attgenerated::text`
	}
	return `SELECT n.nspname, c.relname, a.attname, a.attnum, format_type(a.atttypid, a.atttypmod), NOT a.attnotnull,
  COALESCE(pg_get_expr(ad.adbin, ad.adrelid), ''), a.attidentity::text, ` + generated + `,
  COALESCE(co.collname, ''), tn.nspname, t.typname, t.typtype::text
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_type t ON t.oid = a.atttypid
JOIN pg_namespace tn ON tn.oid = t.typnamespace
LEFT JOIN pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
LEFT JOIN pg_collation co ON co.oid = a.attcollation AND a.attcollation <> t.typcollation
WHERE a.attnum > 0 AND NOT a.attisdropped AND c.relkind IN ('r', 'p') AND NOT c.relispartition
  AND ` + pgSchemaFilter("n.nspname") + `
ORDER BY 1, 2, a.attnum`
}

func pgFunctionsQuery(prokind bool) string {
	isProcedure, filter := `false`, `NOT p.proisagg AND NOT p.proiswindow`
	if prokind {
		isProcedure, filter = `p.prokind = 'p'`, `p.prokind IN ('f', 'p')`
	}
	return `SELECT n.nspname, p.proname, pg_get_function_identity_arguments(p.oid), ` + isProcedure + `,
  COALESCE(pg_get_function_result(p.oid), ''), l.lanname, pg_get_functiondef(p.oid)
FROM pg_proc p
JOIN pg_namespace n ON n.oid = p.pronamespace
JOIN pg_language l ON l.oid = p.prolang
WHERE ` + filter + ` AND ` + pgSchemaFilter("n.nspname") + ` AND ` + pgNotExtensionOwned("pg_proc", "p.oid") + `
ORDER BY 1, 2, 3`
}

var nextvalPattern = regexp.MustCompile(`nextval\('((?:[^']|'')+)'::regclass\)`)

// Introspect reads the catalog inside one repeatable-read, read-only transaction.
func (i *PostgresIntrospector) Introspect(ctx context.Context, scope domain.Scope) (*domain.Snapshot, error) {
	return withSnapshot(ctx, i.db, scope, func(ctx context.Context, r *catalogReader) error {
		var raw string
		if err := r.tx.QueryRow(ctx, pgVersionQuery).Scan(&raw); err != nil {
			return r.fail("server version", err)
		}
		v, err := serverVersion(raw)
		if err != nil {
			return r.fail("server version", err)
		}
		if !atLeast(v, "10") {
			return r.fail("server version", fmt.Errorf("postgres %s is not supported, 10 or newer is required", v))
		}

		args := []interface{}{scope.Schema}
		steps := []catalogStep{
			{"schemas", pgSchemasQuery, r.pgSchema},
			{"extensions", pgExtensionsQuery, r.pgExtension},
			{"enum types", pgEnumsQuery, r.pgEnum},
			{"sequences", pgSequencesQuery, r.pgSequence},
			{"tables", pgTablesQuery, func(rows *sql.Rows) error { return r.pgTable(rows, scope) }},
			{"columns", pgColumnsQuery(atLeast(v, "12")), r.pgColumn},
			{"constraints", pgConstraintsQuery, r.pgConstraint},
			{"indexes", pgIndexesQuery, r.pgIndex},
			{"functions", pgFunctionsQuery(atLeast(v, "11")), r.pgFunction},
			{"views", pgViewsQuery, r.pgView},
			{"view dependencies", pgViewDepsQuery, r.pgViewDependency},
			{"triggers", pgTriggersQuery, r.pgTrigger},
		}
		return r.run(ctx, args, steps)
	})
}

func (r *catalogReader) pgSchema(rows *sql.Rows) error {
	var name string
	if err := rows.Scan(&name); err != nil {
		return err
	}
	return r.add(topLevel(domain.ObjectSchema, "", name, &domain.SchemaDef{}))
}

func (r *catalogReader) pgExtension(rows *sql.Rows) error {
	var name, ver, schema string
	if err := rows.Scan(&name, &ver, &schema); err != nil {
		return err
	}
	obj := topLevel(domain.ObjectExtension, "", name, &domain.ExtensionDef{Version: ver, Schema: schema},
		domain.Ref(domain.ObjectSchema, schema))
	return r.add(obj)
}

func (r *catalogReader) pgEnum(rows *sql.Rows) error {
	var schema, name string
	var labels []string
	if err := rows.Scan(&schema, &name, pq.Array(&labels)); err != nil {
		return err
	}
	return r.add(topLevel(domain.ObjectTypeEnum, schema, name, &domain.EnumDef{Labels: labels}))
}

// pgSequence reads standalone and serial-owned sequences. Identity sequences belong to their column.
func (r *catalogReader) pgSequence(rows *sql.Rows) error {
	var schema, name, ownerSchema, ownerTable, ownerColumn string
	def := &domain.SequenceDef{}
	if err := rows.Scan(&schema, &name, &def.DataType, &def.Start, &def.Increment,
		&def.Min, &def.Max, &def.Cache, &def.Cycle, &ownerSchema, &ownerTable, &ownerColumn); err != nil {
		return err
	}
	if ownerTable != "" && ownerColumn != "" {
		def.Owner = &domain.SequenceOwner{Schema: ownerSchema, Table: ownerTable, Column: ownerColumn}
	}
	return r.add(topLevel(domain.ObjectSequence, schema, name, def))
}

func (r *catalogReader) pgTable(rows *sql.Rows, scope domain.Scope) error {
	var schema, name string
	if err := rows.Scan(&schema, &name); err != nil {
		return err
	}
	if scope.Ignores(name) {
		return nil
	}
	return r.add(topLevel(domain.ObjectTable, schema, name, &domain.TableDef{}))
}

func (r *catalogReader) pgColumn(rows *sql.Rows) error {
	var (
		schema, table, name, typ, expr, identity, generated, collation string
		typeSchema, typeName, typeKind                                 string
		position                                                       int
		nullable                                                       bool
	)
	if err := rows.Scan(&schema, &table, &name, &position, &typ, &nullable, &expr, &identity, &generated,
		&collation, &typeSchema, &typeName, &typeKind); err != nil {
		return err
	}
	def := &domain.ColumnDef{Type: typ, Nullable: nullable, Collation: collation, Position: position}
	switch identity {
	case "a":
		def.Identity = "ALWAYS"
	case "d":
		def.Identity = "BY DEFAULT"
	}
	if generated == "s" {
		def.Generated = expr
	} else {
		def.Default = expr
	}

	var deps []domain.ObjectRef
	if typeKind == "e" {
		deps = append(deps, domain.Ref(domain.ObjectTypeEnum, qualify(typeSchema, typeName)))
	}
	for _, m := range nextvalPattern.FindAllStringSubmatch(expr, -1) {
		seqSchema, seqName := splitQualified(strings.ReplaceAll(m[1], "''", "'"), schema)
		deps = append(deps, domain.Ref(domain.ObjectSequence, qualify(seqSchema, seqName)))
	}
	return r.add(childOf(domain.ObjectColumn, schema, table, name, def, deps...))
}

var pgConstraintKinds = map[string]domain.ConstraintKind{
	"p": domain.ConstraintPrimaryKey,
	"u": domain.ConstraintUnique,
	"f": domain.ConstraintForeignKey,
	"c": domain.ConstraintCheck,
	"x": domain.ConstraintExclusion,
}

func (r *catalogReader) pgConstraint(rows *sql.Rows) error {
	var schema, table, name, kind, definition, refSchema, refTable, columns, refColumns string
	if err := rows.Scan(&schema, &table, &name, &kind, &definition, &refSchema, &refTable, &columns, &refColumns); err != nil {
		return err
	}
	def := &domain.ConstraintDef{
		Kind:       pgConstraintKinds[kind],
		Columns:    splitList(columns),
		RefColumns: splitList(refColumns),
		Definition: definition,
	}
	var deps []domain.ObjectRef
	if refTable != "" {
		def.RefTable = qualify(refSchema, refTable)
		deps = append(deps, tableRef(refSchema, refTable))
	}
	return r.add(childOf(domain.ObjectConstraint, schema, table, name, def, deps...))
}

func (r *catalogReader) pgIndex(rows *sql.Rows) error {
	var schema, table, name, statement string
	var unique bool
	if err := rows.Scan(&schema, &table, &name, &unique, &statement); err != nil {
		return err
	}
	return r.add(childOf(domain.ObjectIndex, schema, table, name, &domain.IndexDef{Unique: unique, Statement: statement}))
}

func (r *catalogReader) pgFunction(rows *sql.Rows) error {
	def := &domain.FunctionDef{}
	var schema, name string
	if err := rows.Scan(&schema, &name, &def.IdentityArgs, &def.Procedure, &def.Returns, &def.Language, &def.Statement); err != nil {
		return err
	}
	obj := topLevel(domain.ObjectFunction, schema, name, def)
	obj.QualifiedName = functionName(schema, name, def.IdentityArgs)
	return r.add(obj)
}

func functionName(schema, name, args string) string {
	return qualify(schema, name) + "(" + args + ")"
}

func (r *catalogReader) pgView(rows *sql.Rows) error {
	var schema, name, query string
	var materialized bool
	if err := rows.Scan(&schema, &name, &materialized, &query); err != nil {
		return err
	}
	return r.add(topLevel(domain.ObjectView, schema, name, &domain.ViewDef{Query: query, Materialized: materialized}))
}

// pgViewDependency attaches rewrite rule dependencies to views read by pgView.
func (r *catalogReader) pgViewDependency(rows *sql.Rows) error {
	var viewSchema, view, depSchema, dep, kind string
	if err := rows.Scan(&viewSchema, &view, &depSchema, &dep, &kind); err != nil {
		return err
	}
	obj, ok := r.snap.Get(domain.Ref(domain.ObjectView, qualify(viewSchema, view)))
	if !ok {
		return nil
	}
	switch kind {
	case "r", "p":
		obj.DependsOn = append(obj.DependsOn, tableRef(depSchema, dep))
	case "v", "m":
		obj.DependsOn = append(obj.DependsOn, domain.Ref(domain.ObjectView, qualify(depSchema, dep)))
	case "S":
		obj.DependsOn = append(obj.DependsOn, domain.Ref(domain.ObjectSequence, qualify(depSchema, dep)))
	}
	return nil
}

func (r *catalogReader) pgTrigger(rows *sql.Rows) error {
	var schema, table, name, statement, fnSchema, fnName, fnArgs string
	if err := rows.Scan(&schema, &table, &name, &statement, &fnSchema, &fnName, &fnArgs); err != nil {
		return err
	}
	fn := domain.Ref(domain.ObjectFunction, functionName(fnSchema, fnName, fnArgs))
	return r.add(childOf(domain.ObjectTrigger, schema, table, name, &domain.TriggerDef{Statement: statement}, fn))
}

// splitQualified splits a possibly quoted, possibly schema qualified name.
func splitQualified(name, defaultSchema string) (string, string) {
	var parts []string
	var cur strings.Builder
	quoted := false
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch == '"' && quoted && i+1 < len(name) && name[i+1] == '"':
			cur.WriteByte('"')
			i++
		case ch == '"':
			quoted = !quoted
		case ch == '.' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	parts = append(parts, cur.String())
	if len(parts) == 1 {
		return defaultSchema, parts[0]
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

var _ domain.Introspector = (*PostgresIntrospector)(nil)
