// Package differ implements snapshot comparison.
package differ

import (
	"context"
	"errors"
	"fmt"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/core/migration/sqlgen"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

// SnapshotDiffer implements the Differ interface.
type SnapshotDiffer struct{}

// NewSnapshotDiffer creates a new snapshot differ.
func NewSnapshotDiffer() *SnapshotDiffer {
	return &SnapshotDiffer{}
}

// pair is one top-level identity with its object on each side. Either side may be nil.
type pair struct {
	ref    domain.ObjectRef
	source *domain.SchemaObject
	target *domain.SchemaObject
}

// Compare returns the entries that transform source into target. Every top-level object allowed by
// the filter yields exactly one entry; children of a table are folded into the table's entry.
func (d *SnapshotDiffer) Compare(ctx context.Context, source, target *domain.Snapshot, opts domain.DiffOptions) (*domain.ChangeSet, error) {
	if source.Dialect != target.Dialect {
		return nil, fmt.Errorf("%w: %s and %s", domain.ErrDialectMismatch, source.Dialect, target.Dialect)
	}
	renderer, err := sqlgen.NewRenderer(target.Dialect)
	if err != nil {
		return nil, err
	}
	c := &comparison{
		renderer: renderer,
		source:   source,
		target:   target,
		filter:   opts.Filter,
	}
	c.deferOwnership()

	pairs := c.pairs()
	entries := make([]domain.ChangeEntry, 0, len(pairs))
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := c.compare(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compare %s: %w", p.ref, err)
		}
		entries = append(entries, entry)
		if opts.Progress != nil {
			opts.Progress(i+1, len(pairs), p.ref.Type)
		}
	}

	cs, err := domain.NewChangeSet(target.Dialect, entries)
	if err != nil {
		return nil, err
	}
	debug.Debug("compared snapshots",
		"entries", cs.Len(),
		"added", cs.Count(domain.StatusAdded),
		"removed", cs.Count(domain.StatusRemoved),
		"modified", cs.Count(domain.StatusModified))
	return cs, nil
}

type comparison struct {
	renderer domain.Renderer
	source   *domain.Snapshot
	target   *domain.Snapshot
	filter   domain.ObjectFilter
	// deferred holds sequence ownership statements that run with the owning table's entry.
	deferred map[domain.ObjectRef][]domain.Statement
}

// pairs matches top-level objects by type and qualified name, in rank and name order.
func (c *comparison) pairs() []pair {
	index := make(map[domain.ObjectRef]int)
	var out []pair
	for _, obj := range c.source.TopLevel() {
		if !c.filter.Allows(obj.ObjectType) {
			continue
		}
		index[obj.Ref()] = len(out)
		out = append(out, pair{ref: obj.Ref(), source: obj})
	}
	for _, obj := range c.target.TopLevel() {
		if !c.filter.Allows(obj.ObjectType) {
			continue
		}
		if i, ok := index[obj.Ref()]; ok {
			out[i].target = obj
			continue
		}
		out = append(out, pair{ref: obj.Ref(), target: obj})
	}
	refs := make([]domain.ObjectRef, len(out))
	byRef := make(map[domain.ObjectRef]pair, len(out))
	for i, p := range out {
		refs[i] = p.ref
		byRef[p.ref] = p
	}
	domain.SortRefs(refs)
	for i, ref := range refs {
		out[i] = byRef[ref]
	}
	return out
}

func (c *comparison) keepChild(child *domain.SchemaObject) bool {
	return c.filter.Allows(child.ObjectType)
}

func (c *comparison) compare(p pair) (domain.ChangeEntry, error) {
	entry := domain.ChangeEntry{Ref: p.ref}
	if p.source != nil {
		entry.SourceDeps = c.source.RolledUpDeps(p.source)
	}
	if p.target != nil {
		entry.TargetDeps = c.target.RolledUpDeps(p.target)
	}

	var (
		stmts []domain.Statement
		err   error
	)
	switch {
	case p.source == nil:
		entry.Status = domain.StatusAdded
		obj := p.target.Pruned(c.keepChild)
		stmts, err = obj.Definition.Create(c.renderer, obj)
		stmts = append(stmts, c.ownership(p)...)
		stmts = append(stmts, c.deferred[p.ref]...)
	case p.target == nil:
		entry.Status = domain.StatusRemoved
		if c.droppedWithOwner(p.source) {
			break
		}
		obj := p.source.Pruned(c.keepChild)
		stmts, err = obj.Definition.Drop(c.renderer, obj)
	default:
		stmts, entry.Warnings, err = c.modify(p.source, p.target)
		if err == nil {
			stmts = append(stmts, c.ownership(p)...)
			stmts = append(stmts, c.deferred[p.ref]...)
		}
		entry.Status = domain.StatusIdentical
		if len(stmts) > 0 || len(entry.Warnings) > 0 {
			entry.Status = domain.StatusModified
		}
	}
	if warning, conflictErr := conflict(err); conflictErr != nil {
		return entry, conflictErr
	} else if warning != "" {
		entry.Warnings = append(entry.Warnings, warning)
		stmts = nil
	}

	entry.Statements = stmts
	for _, stmt := range stmts {
		if stmt.Destructive {
			entry.Destructive = true
		}
	}
	return entry, nil
}

// deferOwnership collects the ownership links of target sequences whose owning column does not
// exist in the source. Those run after the column is created, in the owning table's entry.
func (c *comparison) deferOwnership() {
	c.deferred = make(map[domain.ObjectRef][]domain.Statement)
	if !c.filter.Allows(domain.ObjectSequence) {
		return
	}
	for _, obj := range c.target.TopLevel() {
		seq, ok := obj.Definition.(*domain.SequenceDef)
		if !ok || seq.Owner == nil {
			continue
		}
		if _, exists := c.source.Get(seq.Owner.ColumnRef()); exists {
			continue
		}
		table := seq.Owner.TableRef()
		c.deferred[table] = append(c.deferred[table], seq.Ownership(c.renderer, obj))
	}
}

// ownership links or unlinks a sequence whose owner changed, unless deferOwnership already moved
// the link to the owning table.
func (c *comparison) ownership(p pair) []domain.Statement {
	next, ok := p.target.Definition.(*domain.SequenceDef)
	if !ok {
		return nil
	}
	if next.Owner != nil {
		if _, exists := c.source.Get(next.Owner.ColumnRef()); !exists {
			return nil
		}
	}
	if p.source == nil {
		if next.Owner == nil {
			return nil
		}
	} else if prev, ok := p.source.Definition.(*domain.SequenceDef); !ok || !prev.OwnerChanged(next) {
		return nil
	}
	return []domain.Statement{next.Ownership(c.renderer, p.target)}
}

// droppedWithOwner reports whether a removed sequence goes away with its owning column, which the
// database drops along with the table or the column.
func (c *comparison) droppedWithOwner(obj *domain.SchemaObject) bool {
	seq, ok := obj.Definition.(*domain.SequenceDef)
	if !ok || seq.Owner == nil || !c.filter.Allows(domain.ObjectTable) || !c.filter.Allows(domain.ObjectColumn) {
		return false
	}
	if _, exists := c.source.Get(seq.Owner.ColumnRef()); !exists {
		return false
	}
	_, exists := c.target.Get(seq.Owner.ColumnRef())
	return !exists
}

// conflict turns a DiffConflictError into a warning. Any other error is returned as is.
func conflict(err error) (string, error) {
	if err == nil {
		return "", nil
	}
	var conflictErr *domain.DiffConflictError
	if errors.As(err, &conflictErr) {
		return conflictErr.Error(), nil
	}
	return "", err
}

// modify compares an object present on both sides. Conflicts on individual children become
// warnings so that the rest of the table is still migrated.
func (c *comparison) modify(from, to *domain.SchemaObject) ([]domain.Statement, []string, error) {
	var (
		stmts    []domain.Statement
		warnings []string
	)
	if from.Definition.Canonical() != to.Definition.Canonical() {
		altered, err := from.Definition.Alter(c.renderer, from, to)
		warning, err := conflict(err)
		if err != nil {
			return nil, nil, err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		stmts = append(stmts, altered...)
	}
	if from.ObjectType != domain.ObjectTable {
		return stmts, warnings, nil
	}

	children, childWarnings, err := c.children(from, to)
	if err != nil {
		return nil, nil, err
	}
	return append(stmts, children...), append(warnings, childWarnings...), nil
}

// children diffs the columns, constraints, indexes, and triggers of a table by name. Drops run
// in reverse rank order, then alterations, then additions in rank order.
func (c *comparison) children(from, to *domain.SchemaObject) ([]domain.Statement, []string, error) {
	targets := make(map[domain.ObjectRef]*domain.SchemaObject)
	for _, child := range to.Children() {
		if c.keepChild(child) {
			targets[child.Ref()] = child
		}
	}

	var (
		dropped, altered, added []domain.Statement
		warnings                []string
	)
	record := func(into *[]domain.Statement, stmts []domain.Statement, err error) error {
		warning, err := conflict(err)
		if err != nil {
			return err
		}
		if warning != "" {
			warnings = append(warnings, warning)
			return nil
		}
		*into = append(*into, stmts...)
		return nil
	}

	sources := from.Children()
	for i := len(sources) - 1; i >= 0; i-- {
		child := sources[i]
		if !c.keepChild(child) {
			continue
		}
		if _, ok := targets[child.Ref()]; ok {
			continue
		}
		stmts, err := child.Definition.Drop(c.renderer, child)
		if err := record(&dropped, stmts, err); err != nil {
			return nil, nil, err
		}
	}
	matched := make(map[domain.ObjectRef]bool)
	for _, child := range sources {
		next, ok := targets[child.Ref()]
		if !ok {
			continue
		}
		matched[child.Ref()] = true
		if child.Definition.Canonical() == next.Definition.Canonical() {
			continue
		}
		stmts, err := child.Definition.Alter(c.renderer, child, next)
		if err := record(&altered, stmts, err); err != nil {
			return nil, nil, err
		}
	}
	for _, child := range to.Children() {
		if !c.keepChild(child) || matched[child.Ref()] {
			continue
		}
		stmts, err := child.Definition.Create(c.renderer, child)
		if err := record(&added, stmts, err); err != nil {
			return nil, nil, err
		}
	}

	stmts := append(dropped, altered...)
	return append(stmts, added...), warnings, nil
}

// Ensure SnapshotDiffer implements Differ interface.
var _ domain.Differ = (*SnapshotDiffer)(nil)
