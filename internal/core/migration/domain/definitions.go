package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Comparable is implemented by every definition type. The differ decides Identical versus Modified
// by Canonical, and asks the definition itself for the statements of each transition.
type Comparable interface {
	// Canonical is the normalized form compared across snapshots.
	Canonical() string
	// Create renders the statements that bring obj into existence.
	Create(r Renderer, obj *SchemaObject) ([]Statement, error)
	// Drop renders the statements that remove obj.
	Drop(r Renderer, obj *SchemaObject) ([]Statement, error)
	// Alter renders the statements that turn from into to. The receiver is from's definition.
	Alter(r Renderer, from, to *SchemaObject) ([]Statement, error)
}

// NormalizeSQL collapses whitespace runs and trims a trailing semicolon.
func NormalizeSQL(sql string) string {
	return strings.TrimSuffix(strings.Join(strings.Fields(sql), " "), ";")
}

func ownerTable(r Renderer, obj *SchemaObject) string {
	return r.Qualify(obj.Schema, obj.Table)
}

func kindMismatch(from, to *SchemaObject) error {
	return Conflict(from.Ref(), fmt.Sprintf("cannot compare %T with %T", from.Definition, to.Definition), nil)
}

func unsupported(obj *SchemaObject, r Renderer) error {
	return Conflict(obj.Ref(), fmt.Sprintf("%s objects are not supported by %s", obj.ObjectType, r.Dialect()), ErrUnsupportedAlteration)
}

// SchemaDef is a namespace.
type SchemaDef struct{}

func (d *SchemaDef) Canonical() string { return "schema" }

func (d *SchemaDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	if !r.Capabilities().Schemas {
		return nil, unsupported(obj, r)
	}
	return []Statement{Main("CREATE SCHEMA IF NOT EXISTS " + r.Quote(obj.Name))}, nil
}

func (d *SchemaDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	if !r.Capabilities().Schemas {
		return nil, unsupported(obj, r)
	}
	return []Statement{Main("DROP SCHEMA " + r.Quote(obj.Name))}, nil
}

func (d *SchemaDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	return nil, nil
}

// ExtensionDef is an installed extension.
type ExtensionDef struct {
	Version string
	Schema  string
}

func (d *ExtensionDef) Canonical() string {
	return "version=" + d.Version + ";schema=" + d.Schema
}

func (d *ExtensionDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	if !r.Capabilities().Schemas {
		return nil, unsupported(obj, r)
	}
	sql := "CREATE EXTENSION IF NOT EXISTS " + r.Quote(obj.Name)
	if d.Schema != "" {
		sql += " WITH SCHEMA " + r.Quote(d.Schema)
	}
	if d.Version != "" {
		sql += " VERSION " + r.Literal(d.Version)
	}
	return []Statement{Main(sql)}, nil
}

// Drop removes the extension. Extensions own types and tables, so the drop can lose data.
func (d *ExtensionDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	if !r.Capabilities().Schemas {
		return nil, unsupported(obj, r)
	}
	return []Statement{Destroy("DROP EXTENSION " + r.Quote(obj.Name))}, nil
}

func (d *ExtensionDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	next, ok := to.Definition.(*ExtensionDef)
	if !ok {
		return nil, kindMismatch(from, to)
	}
	var stmts []Statement
	if d.Schema != next.Schema && next.Schema != "" {
		stmts = append(stmts, Main("ALTER EXTENSION "+r.Quote(to.Name)+" SET SCHEMA "+r.Quote(next.Schema)))
	}
	if d.Version != next.Version && next.Version != "" {
		stmts = append(stmts, Main("ALTER EXTENSION "+r.Quote(to.Name)+" UPDATE TO "+r.Literal(next.Version)))
	}
	return stmts, nil
}

// EnumDef is an enumerated type.
type EnumDef struct {
	Labels []string
}

func (d *EnumDef) Canonical() string {
	return strings.Join(d.Labels, ",")
}

func (d *EnumDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	if !r.Capabilities().Schemas {
		return nil, unsupported(obj, r)
	}
	labels := make([]string, len(d.Labels))
	for i, label := range d.Labels {
		labels[i] = r.Literal(label)
	}
	return []Statement{Main(fmt.Sprintf("CREATE TYPE %s AS ENUM (%s)", r.Qualify(obj.Schema, obj.Name), strings.Join(labels, ", ")))}, nil
}

func (d *EnumDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	if !r.Capabilities().Schemas {
		return nil, unsupported(obj, r)
	}
	return []Statement{Main("DROP TYPE " + r.Qualify(obj.Schema, obj.Name))}, nil
}

// Alter adds new labels in place. Removing or reordering labels cannot be done incrementally.
func (d *EnumDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	next, ok := to.Definition.(*EnumDef)
	if !ok {
		return nil, kindMismatch(from, to)
	}
	existing := make(map[string]int, len(d.Labels))
	for i, label := range d.Labels {
		existing[label] = i
	}
	last := -1
	for _, label := range next.Labels {
		if pos, ok := existing[label]; ok {
			if pos < last {
				return nil, Conflict(to.Ref(), "enum labels were reordered", ErrUnsupportedAlteration)
			}
			last = pos
		}
	}
	kept := 0
	for _, label := range next.Labels {
		if _, ok := existing[label]; ok {
			kept++
		}
	}
	if kept != len(d.Labels) {
		return nil, Conflict(to.Ref(), "enum labels were removed", ErrUnsupportedAlteration)
	}
	qualified := r.Qualify(to.Schema, to.Name)
	var stmts []Statement
	for i, label := range next.Labels {
		if _, ok := existing[label]; ok {
			continue
		}
		sql := fmt.Sprintf("ALTER TYPE %s ADD VALUE %s", qualified, r.Literal(label))
		if i > 0 {
			sql += " AFTER " + r.Literal(next.Labels[i-1])
		} else if len(next.Labels) > 1 {
			sql += " BEFORE " + r.Literal(next.Labels[1])
		}
		stmts = append(stmts, Main(sql))
	}
	return stmts, nil
}

// SequenceDef is a sequence generator.
type SequenceDef struct {
	DataType  string
	Start     int64
	Increment int64
	Min       int64
	Max       int64
	Cache     int64
	Cycle     bool
	// Owner is set for a sequence owned by a column (serial columns). Postgres drops an owned
	// sequence together with its table.
	Owner *SequenceOwner
}

// SequenceOwner is the column that owns a sequence.
type SequenceOwner struct {
	Schema string
	Table  string
	Column string
}

// TableRef is the reference of the owning table.
func (o *SequenceOwner) TableRef() ObjectRef {
	name := o.Table
	if o.Schema != "" {
		name = o.Schema + "." + o.Table
	}
	return Ref(ObjectTable, name)
}

// ColumnRef is the reference of the owning column.
func (o *SequenceOwner) ColumnRef() ObjectRef {
	return Ref(ObjectColumn, o.TableRef().Name+"."+o.Column)
}

func (o *SequenceOwner) clause(r Renderer) string {
	if o == nil {
		return "OWNED BY NONE"
	}
	return "OWNED BY " + r.Qualify(o.Schema, o.Table) + "." + r.Quote(o.Column)
}

func (d *SequenceDef) owner() string {
	if d.Owner == nil {
		return ""
	}
	return d.Owner.ColumnRef().Name
}

// OwnerChanged reports whether next is owned by a different column.
func (d *SequenceDef) OwnerChanged(next *SequenceDef) bool {
	return d.owner() != next.owner()
}

func (d *SequenceDef) Canonical() string {
	return fmt.Sprintf("type=%s;start=%d;inc=%d;min=%d;max=%d;cache=%d;cycle=%t;owner=%s",
		d.DataType, d.Start, d.Increment, d.Min, d.Max, d.Cache, d.Cycle, d.owner())
}

func (d *SequenceDef) options() string {
	var b strings.Builder
	if d.DataType != "" {
		b.WriteString(" AS " + d.DataType)
	}
	b.WriteString(" INCREMENT BY " + strconv.FormatInt(d.Increment, 10))
	b.WriteString(" MINVALUE " + strconv.FormatInt(d.Min, 10))
	b.WriteString(" MAXVALUE " + strconv.FormatInt(d.Max, 10))
	b.WriteString(" START WITH " + strconv.FormatInt(d.Start, 10))
	b.WriteString(" CACHE " + strconv.FormatInt(d.Cache, 10))
	if d.Cycle {
		b.WriteString(" CYCLE")
	} else {
		b.WriteString(" NO CYCLE")
	}
	return b.String()
}

func (d *SequenceDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	if !r.Capabilities().Schemas {
		return nil, unsupported(obj, r)
	}
	return []Statement{Main("CREATE SEQUENCE " + r.Qualify(obj.Schema, obj.Name) + d.options())}, nil
}

// Ownership links the sequence to its owning column, or unlinks it when Owner is nil. Create and
// Alter leave ownership out: the owning column may not exist until its table's group has run.
func (d *SequenceDef) Ownership(r Renderer, obj *SchemaObject) Statement {
	return Statement{SQL: "ALTER SEQUENCE " + r.Qualify(obj.Schema, obj.Name) + " " + d.Owner.clause(r), Phase: PhasePost}
}

// Drop removes the sequence and its current value.
func (d *SequenceDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	if !r.Capabilities().Schemas {
		return nil, unsupported(obj, r)
	}
	return []Statement{Destroy("DROP SEQUENCE " + r.Qualify(obj.Schema, obj.Name))}, nil
}

func (d *SequenceDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	next, ok := to.Definition.(*SequenceDef)
	if !ok {
		return nil, kindMismatch(from, to)
	}
	var clauses []string
	if d.DataType != next.DataType && next.DataType != "" {
		clauses = append(clauses, "AS "+next.DataType)
	}
	if d.Increment != next.Increment {
		clauses = append(clauses, "INCREMENT BY "+strconv.FormatInt(next.Increment, 10))
	}
	if d.Min != next.Min {
		clauses = append(clauses, "MINVALUE "+strconv.FormatInt(next.Min, 10))
	}
	if d.Max != next.Max {
		clauses = append(clauses, "MAXVALUE "+strconv.FormatInt(next.Max, 10))
	}
	if d.Start != next.Start {
		clauses = append(clauses, "START WITH "+strconv.FormatInt(next.Start, 10))
	}
	if d.Cache != next.Cache {
		clauses = append(clauses, "CACHE "+strconv.FormatInt(next.Cache, 10))
	}
	if d.Cycle != next.Cycle {
		if next.Cycle {
			clauses = append(clauses, "CYCLE")
		} else {
			clauses = append(clauses, "NO CYCLE")
		}
	}
	if len(clauses) == 0 {
		return nil, nil
	}
	return []Statement{Main("ALTER SEQUENCE " + r.Qualify(to.Schema, to.Name) + " " + strings.Join(clauses, " "))}, nil
}

// FunctionDef is a function or procedure. Statement is the complete CREATE statement from the catalog.
type FunctionDef struct {
	Procedure    bool
	IdentityArgs string
	Returns      string
	Language     string
	Statement    string
}

func (d *FunctionDef) Canonical() string {
	return fmt.Sprintf("proc=%t;args=%s;returns=%s;lang=%s;body=%s",
		d.Procedure, d.IdentityArgs, d.Returns, d.Language, NormalizeSQL(d.Statement))
}

func (d *FunctionDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	return []Statement{Main(d.Statement)}, nil
}

func (d *FunctionDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	return []Statement{Main(r.DropRoutine(obj.Schema, obj.Name, d))}, nil
}

// Alter replaces the routine. A changed signature or return type needs a drop first.
func (d *FunctionDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	next, ok := to.Definition.(*FunctionDef)
	if !ok {
		return nil, kindMismatch(from, to)
	}
	if r.Capabilities().ReplaceRoutine && d.Procedure == next.Procedure && d.Returns == next.Returns && d.IdentityArgs == next.IdentityArgs {
		return []Statement{Main(next.Statement)}, nil
	}
	return []Statement{
		Main(r.DropRoutine(from.Schema, from.Name, d)),
		Main(next.Statement),
	}, nil
}

// ViewDef is a view. Statement, when set, is a complete CREATE statement used verbatim.
type ViewDef struct {
	Query        string
	Materialized bool
	Statement    string
}

func (d *ViewDef) Canonical() string {
	body := d.Query
	if body == "" {
		body = d.Statement
	}
	return fmt.Sprintf("materialized=%t;query=%s", d.Materialized, NormalizeSQL(body))
}

func (d *ViewDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	if d.Statement != "" {
		return []Statement{Main(d.Statement)}, nil
	}
	return []Statement{Main(r.CreateView(r.Qualify(obj.Schema, obj.Name), d, false))}, nil
}

func (d *ViewDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	return []Statement{Main(r.DropView(r.Qualify(obj.Schema, obj.Name), d))}, nil
}

// Alter replaces plain views in place and recreates materialized ones.
func (d *ViewDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	next, ok := to.Definition.(*ViewDef)
	if !ok {
		return nil, kindMismatch(from, to)
	}
	qualified := r.Qualify(to.Schema, to.Name)
	if r.Capabilities().ReplaceView && !d.Materialized && !next.Materialized && next.Query != "" {
		return []Statement{Main(r.CreateView(qualified, next, true))}, nil
	}
	created, err := next.Create(r, to)
	if err != nil {
		return nil, err
	}
	return append([]Statement{Main(r.DropView(r.Qualify(from.Schema, from.Name), d))}, created...), nil
}

// TableDef is a table. Columns, constraints, indexes, and triggers are child objects.
type TableDef struct {
	// Options holds dialect specific table options such as a storage engine.
	Options string
}

func (d *TableDef) Canonical() string {
	return "options=" + d.Options
}

// Create renders CREATE TABLE with columns and inline constraints, followed by indexes and triggers.
// Foreign keys are added in the post phase unless the dialect only supports them inline.
func (d *TableDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	qualified := r.Qualify(obj.Schema, obj.Name)
	inlineFK := r.Capabilities().InlineForeignKeys

	columns := obj.ChildrenOf(ObjectColumn)
	sort.SliceStable(columns, func(i, j int) bool {
		ci, _ := columns[i].Definition.(*ColumnDef)
		cj, _ := columns[j].Definition.(*ColumnDef)
		if ci == nil || cj == nil || ci.Position == cj.Position {
			return columns[i].Name < columns[j].Name
		}
		return ci.Position < cj.Position
	})

	var lines []string
	inlineKey := ""
	for _, col := range columns {
		def, ok := col.Definition.(*ColumnDef)
		if !ok {
			return nil, kindMismatch(col, col)
		}
		if def.AutoIncrement && r.Capabilities().AutoIncrementKey {
			inlineKey = col.Name
		}
		lines = append(lines, r.ColumnClause(col.Name, def))
	}

	var post []Statement
	for _, con := range obj.ChildrenOf(ObjectConstraint) {
		def, ok := con.Definition.(*ConstraintDef)
		if !ok {
			return nil, kindMismatch(con, con)
		}
		if def.Kind == ConstraintPrimaryKey && inlineKey != "" && len(def.Columns) == 1 && def.Columns[0] == inlineKey {
			continue
		}
		if def.Kind == ConstraintForeignKey && !inlineFK {
			stmts, err := def.Create(r, con)
			if err != nil {
				return nil, err
			}
			post = append(post, stmts...)
			continue
		}
		lines = append(lines, "CONSTRAINT "+r.Quote(con.Name)+" "+def.Definition)
	}

	sql := "CREATE TABLE " + qualified + " (\n    " + strings.Join(lines, ",\n    ") + "\n)"
	if d.Options != "" {
		sql += " " + d.Options
	}
	stmts := []Statement{Main(sql)}
	for _, kind := range []ObjectType{ObjectIndex, ObjectTrigger} {
		for _, child := range obj.ChildrenOf(kind) {
			created, err := child.Definition.Create(r, child)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, created...)
		}
	}
	return append(stmts, post...), nil
}

// Drop removes outgoing foreign keys in the pre phase, then the table.
func (d *TableDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	var stmts []Statement
	if !r.Capabilities().InlineForeignKeys {
		for _, con := range obj.ChildrenOf(ObjectConstraint) {
			def, ok := con.Definition.(*ConstraintDef)
			if !ok || def.Kind != ConstraintForeignKey {
				continue
			}
			dropped, err := def.Drop(r, con)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, dropped...)
		}
	}
	return append(stmts, Destroy("DROP TABLE "+r.Qualify(obj.Schema, obj.Name))), nil
}

// Alter only compares table level options; child objects are diffed individually.
func (d *TableDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	next, ok := to.Definition.(*TableDef)
	if !ok {
		return nil, kindMismatch(from, to)
	}
	if d.Options != next.Options {
		return nil, Conflict(to.Ref(), fmt.Sprintf("table options changed from %q to %q", d.Options, next.Options), ErrUnsupportedAlteration)
	}
	return nil, nil
}

// ColumnDef is a table column.
type ColumnDef struct {
	Type     string
	Nullable bool
	Default  string
	// Identity is ALWAYS or BY DEFAULT for identity columns.
	Identity      string
	Generated     string
	AutoIncrement bool
	Collation     string
	// Position is the ordinal position. It orders CREATE TABLE but never makes two columns differ.
	Position int
}

func (d *ColumnDef) Canonical() string {
	return fmt.Sprintf("type=%s;null=%t;default=%s;identity=%s;generated=%s;autoinc=%t;collation=%s",
		strings.ToLower(d.Type), d.Nullable, d.Default, d.Identity, d.Generated, d.AutoIncrement, d.Collation)
}

func (d *ColumnDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	return []Statement{Main("ALTER TABLE " + ownerTable(r, obj) + " ADD COLUMN " + r.ColumnClause(obj.Name, d))}, nil
}

func (d *ColumnDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	sql, err := r.DropColumn(ownerTable(r, obj), obj.Name)
	if err != nil {
		return nil, Conflict(obj.Ref(), "column cannot be dropped in place", err)
	}
	return []Statement{Destroy(sql)}, nil
}

// Alter changes the column in place. A type change that is not a known widening is destructive.
func (d *ColumnDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	next, ok := to.Definition.(*ColumnDef)
	if !ok {
		return nil, kindMismatch(from, to)
	}
	sqls, err := r.AlterColumn(ownerTable(r, to), to.Name, d, next)
	if err != nil {
		return nil, Conflict(to.Ref(), "column cannot be altered in place", err)
	}
	destructive := !strings.EqualFold(d.Type, next.Type) && !IsWidening(d.Type, next.Type)
	stmts := make([]Statement, len(sqls))
	for i, sql := range sqls {
		stmts[i] = Statement{SQL: sql, Phase: PhaseMain, Destructive: destructive}
	}
	return stmts, nil
}

// ConstraintKind is the kind of a table constraint.
type ConstraintKind string

const (
	// ConstraintPrimaryKey is a primary key.
	ConstraintPrimaryKey ConstraintKind = "PRIMARY KEY"
	// ConstraintUnique is a unique constraint.
	ConstraintUnique ConstraintKind = "UNIQUE"
	// ConstraintForeignKey is a foreign key.
	ConstraintForeignKey ConstraintKind = "FOREIGN KEY"
	// ConstraintCheck is a check constraint.
	ConstraintCheck ConstraintKind = "CHECK"
	// ConstraintExclusion is a postgres exclusion constraint.
	ConstraintExclusion ConstraintKind = "EXCLUDE"
)

// ConstraintDef is a table constraint. Definition is the clause following CONSTRAINT <name>.
type ConstraintDef struct {
	Kind       ConstraintKind
	Columns    []string
	RefTable   string
	RefColumns []string
	Definition string
}

func (d *ConstraintDef) Canonical() string {
	return string(d.Kind) + ":" + NormalizeSQL(d.Definition)
}

func (d *ConstraintDef) phase(p Phase) Phase {
	if d.Kind == ConstraintForeignKey {
		return p
	}
	return PhaseMain
}

func (d *ConstraintDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	sql, err := r.AddConstraint(ownerTable(r, obj), obj.Name, d)
	if err != nil {
		return nil, Conflict(obj.Ref(), "constraint cannot be added in place", err)
	}
	return []Statement{{SQL: sql, Phase: d.phase(PhasePost)}}, nil
}

func (d *ConstraintDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	sql, err := r.DropConstraint(ownerTable(r, obj), obj.Name, d)
	if err != nil {
		return nil, Conflict(obj.Ref(), "constraint cannot be dropped in place", err)
	}
	return []Statement{{SQL: sql, Phase: d.phase(PhasePre)}}, nil
}

func (d *ConstraintDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	next, ok := to.Definition.(*ConstraintDef)
	if !ok {
		return nil, kindMismatch(from, to)
	}
	dropped, err := d.Drop(r, from)
	if err != nil {
		return nil, err
	}
	created, err := next.Create(r, to)
	if err != nil {
		return nil, err
	}
	return append(dropped, created...), nil
}

// IndexDef is an index. Statement is the complete CREATE INDEX statement.
type IndexDef struct {
	Unique    bool
	Columns   []string
	Statement string
}

func (d *IndexDef) Canonical() string {
	return NormalizeSQL(d.Statement)
}

func (d *IndexDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	return []Statement{Main(d.Statement)}, nil
}

func (d *IndexDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	return []Statement{Main(r.DropIndex(obj.Schema, obj.Table, obj.Name))}, nil
}

func (d *IndexDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	next, ok := to.Definition.(*IndexDef)
	if !ok {
		return nil, kindMismatch(from, to)
	}
	return []Statement{
		Main(r.DropIndex(from.Schema, from.Table, from.Name)),
		Main(next.Statement),
	}, nil
}

// TriggerDef is a trigger. Statement is the complete CREATE TRIGGER statement.
type TriggerDef struct {
	Statement string
}

func (d *TriggerDef) Canonical() string {
	return NormalizeSQL(d.Statement)
}

func (d *TriggerDef) Create(r Renderer, obj *SchemaObject) ([]Statement, error) {
	return []Statement{Main(d.Statement)}, nil
}

func (d *TriggerDef) Drop(r Renderer, obj *SchemaObject) ([]Statement, error) {
	return []Statement{Main(r.DropTrigger(obj.Schema, obj.Table, obj.Name))}, nil
}

func (d *TriggerDef) Alter(r Renderer, from, to *SchemaObject) ([]Statement, error) {
	next, ok := to.Definition.(*TriggerDef)
	if !ok {
		return nil, kindMismatch(from, to)
	}
	return []Statement{
		Main(r.DropTrigger(from.Schema, from.Table, from.Name)),
		Main(next.Statement),
	}, nil
}

var (
	_ Comparable = (*SchemaDef)(nil)
	_ Comparable = (*ExtensionDef)(nil)
	_ Comparable = (*EnumDef)(nil)
	_ Comparable = (*SequenceDef)(nil)
	_ Comparable = (*FunctionDef)(nil)
	_ Comparable = (*ViewDef)(nil)
	_ Comparable = (*TableDef)(nil)
	_ Comparable = (*ColumnDef)(nil)
	_ Comparable = (*ConstraintDef)(nil)
	_ Comparable = (*IndexDef)(nil)
	_ Comparable = (*TriggerDef)(nil)
)
