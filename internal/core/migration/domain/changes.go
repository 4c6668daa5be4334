package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Status classifies one ChangeEntry.
type Status string

const (
	// StatusIdentical means both sides carry the same definition.
	StatusIdentical Status = "Identical"
	// StatusAdded means the object exists only in the target.
	StatusAdded Status = "Added"
	// StatusRemoved means the object exists only in the source.
	StatusRemoved Status = "Removed"
	// StatusModified means both sides carry different definitions.
	StatusModified Status = "Modified"
)

// Rank orders statuses for deterministic emission: drops, then alterations, then creations.
func (s Status) Rank() int {
	switch s {
	case StatusRemoved:
		return 0
	case StatusModified:
		return 1
	case StatusAdded:
		return 2
	}
	return 3
}

// Phase positions a statement inside a statement group.
type Phase int

const (
	// PhasePre runs before any main statement of the group (foreign key drops).
	PhasePre Phase = iota
	// PhaseMain is the default phase.
	PhaseMain
	// PhasePost runs after every main statement of the group (foreign key additions).
	PhasePost
)

func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhasePost:
		return "post"
	}
	return "main"
}

// MarshalJSON encodes the phase by name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// MarshalYAML encodes the phase by name.
func (p Phase) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// Statement is one DDL operation.
type Statement struct {
	SQL         string `json:"sql" yaml:"sql"`
	Phase       Phase  `json:"phase" yaml:"phase"`
	Destructive bool   `json:"destructive" yaml:"destructive"`
}

// Main builds a main-phase statement.
func Main(sql string) Statement {
	return Statement{SQL: sql, Phase: PhaseMain}
}

// Destroy builds a destructive main-phase statement.
func Destroy(sql string) Statement {
	return Statement{SQL: sql, Phase: PhaseMain, Destructive: true}
}

// ChangeEntry is one row of a diff.
type ChangeEntry struct {
	Ref         ObjectRef   `json:"object" yaml:"object"`
	Status      Status      `json:"status" yaml:"status"`
	Statements  []Statement `json:"statements,omitempty" yaml:"statements,omitempty"`
	Destructive bool        `json:"destructive" yaml:"destructive"`
	Warnings    []string    `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// SourceDeps and TargetDeps are the top-level objects this entry depends on in each snapshot.
	SourceDeps []ObjectRef `json:"-" yaml:"-"`
	TargetDeps []ObjectRef `json:"-" yaml:"-"`
}

// SQL joins the entry's statements, one per line, each terminated by a semicolon.
func (e ChangeEntry) SQL() string {
	var b strings.Builder
	for _, stmt := range e.Statements {
		b.WriteString(Terminate(stmt.SQL))
		b.WriteString("\n")
	}
	return b.String()
}

// Dependencies returns the union of source and target dependencies.
func (e ChangeEntry) Dependencies() []ObjectRef {
	seen := make(map[ObjectRef]bool)
	var out []ObjectRef
	for _, list := range [][]ObjectRef{e.SourceDeps, e.TargetDeps} {
		for _, dep := range list {
			if dep == e.Ref || seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
		}
	}
	SortRefs(out)
	return out
}

func (e ChangeEntry) clone() ChangeEntry {
	out := e
	out.Statements = append([]Statement(nil), e.Statements...)
	out.Warnings = append([]string(nil), e.Warnings...)
	out.SourceDeps = append([]ObjectRef(nil), e.SourceDeps...)
	out.TargetDeps = append([]ObjectRef(nil), e.TargetDeps...)
	return out
}

// Terminate appends a semicolon when the statement does not end with one.
func Terminate(sql string) string {
	trimmed := strings.TrimRight(sql, " \t\r\n")
	if strings.HasSuffix(trimmed, ";") {
		return trimmed
	}
	return trimmed + ";"
}

// ChangeSet aggregates every ChangeEntry of one diff run. It is immutable.
type ChangeSet struct {
	dialect SQLDialect
	entries []ChangeEntry
	index   map[ObjectRef]int
}

// NewChangeSet builds a ChangeSet, sorting entries by type rank and name.
func NewChangeSet(dialect SQLDialect, entries []ChangeEntry) (*ChangeSet, error) {
	cs := &ChangeSet{
		dialect: dialect,
		entries: make([]ChangeEntry, 0, len(entries)),
		index:   make(map[ObjectRef]int, len(entries)),
	}
	for _, entry := range entries {
		if _, dup := cs.index[entry.Ref]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateObject, entry.Ref)
		}
		cs.index[entry.Ref] = 0
		cs.entries = append(cs.entries, entry.clone())
	}
	sort.Slice(cs.entries, func(i, j int) bool {
		return cs.entries[i].Ref.Less(cs.entries[j].Ref)
	})
	for i, entry := range cs.entries {
		cs.index[entry.Ref] = i
	}
	return cs, nil
}

// Dialect returns the dialect statements were rendered for.
func (c *ChangeSet) Dialect() SQLDialect {
	return c.dialect
}

// Len returns the number of entries.
func (c *ChangeSet) Len() int {
	return len(c.entries)
}

// Entries returns a copy of all entries.
func (c *ChangeSet) Entries() []ChangeEntry {
	out := make([]ChangeEntry, len(c.entries))
	for i, entry := range c.entries {
		out[i] = entry.clone()
	}
	return out
}

// Entry looks up one entry.
func (c *ChangeSet) Entry(ref ObjectRef) (ChangeEntry, bool) {
	i, ok := c.index[ref]
	if !ok {
		return ChangeEntry{}, false
	}
	return c.entries[i].clone(), true
}

// Count returns how many entries carry the status.
func (c *ChangeSet) Count(status Status) int {
	n := 0
	for _, entry := range c.entries {
		if entry.Status == status {
			n++
		}
	}
	return n
}

// HasChanges reports whether any entry is not Identical.
func (c *ChangeSet) HasChanges() bool {
	return c.Count(StatusIdentical) != len(c.entries)
}

// MarshalJSON encodes the change set as its entry list.
func (c *ChangeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.entries)
}

// ObjectFilter narrows a diff to some object types.
// Include applies to top-level objects only; exclude applies at every level.
type ObjectFilter struct {
	include map[ObjectType]bool
	exclude map[ObjectType]bool
}

// NewObjectFilter parses include and exclude lists. At most one may be non-empty, and include may
// only name top-level types.
func NewObjectFilter(include, exclude []string) (ObjectFilter, error) {
	var f ObjectFilter
	if len(include) > 0 && len(exclude) > 0 {
		return f, fmt.Errorf("include and exclude object filters are mutually exclusive")
	}
	parse := func(names []string) (map[ObjectType]bool, error) {
		if len(names) == 0 {
			return nil, nil
		}
		set := make(map[ObjectType]bool, len(names))
		for _, name := range names {
			if strings.TrimSpace(name) == "" {
				continue
			}
			t, err := ParseObjectType(name)
			if err != nil {
				return nil, err
			}
			set[t] = true
		}
		return set, nil
	}
	var err error
	if f.include, err = parse(include); err != nil {
		return f, err
	}
	for t := range f.include {
		if t.IsChild() {
			return f, fmt.Errorf("%s objects belong to a table and cannot be included on their own: include table, or exclude the types you do not want", t)
		}
	}
	if f.exclude, err = parse(exclude); err != nil {
		return f, err
	}
	return f, nil
}

// Allows reports whether objects of type t are part of the diff.
func (f ObjectFilter) Allows(t ObjectType) bool {
	if f.exclude[t] {
		return false
	}
	if len(f.include) == 0 || t.IsChild() {
		return true
	}
	return f.include[t]
}
