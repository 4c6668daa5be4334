// Package domain contains the core catalog, change, and migration types.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ObjectType is the kind of a catalog object.
type ObjectType string

const (
	// ObjectSchema is a namespace.
	ObjectSchema ObjectType = "schema"
	// ObjectExtension is an installed database extension.
	ObjectExtension ObjectType = "extension"
	// ObjectTypeEnum is a user-defined enum type.
	ObjectTypeEnum ObjectType = "type"
	// ObjectSequence is a standalone or serial-owned sequence.
	ObjectSequence ObjectType = "sequence"
	// ObjectFunction is a function or procedure.
	ObjectFunction ObjectType = "function"
	// ObjectTable is a table.
	ObjectTable ObjectType = "table"
	// ObjectColumn is a table column.
	ObjectColumn ObjectType = "column"
	// ObjectConstraint is a table constraint.
	ObjectConstraint ObjectType = "constraint"
	// ObjectIndex is an index not backing a constraint.
	ObjectIndex ObjectType = "index"
	// ObjectView is a view or materialized view.
	ObjectView ObjectType = "view"
	// ObjectTrigger is a table trigger.
	ObjectTrigger ObjectType = "trigger"
)

// objectTypeOrder ranks types for deterministic output. Dependencies, not rank, decide correctness.
var objectTypeOrder = []ObjectType{
	ObjectSchema,
	ObjectExtension,
	ObjectTypeEnum,
	ObjectSequence,
	ObjectFunction,
	ObjectTable,
	ObjectColumn,
	ObjectConstraint,
	ObjectIndex,
	ObjectView,
	ObjectTrigger,
}

// AllObjectTypes returns every supported object type in rank order.
func AllObjectTypes() []ObjectType {
	out := make([]ObjectType, len(objectTypeOrder))
	copy(out, objectTypeOrder)
	return out
}

// Rank returns the ordering rank of the type.
func (t ObjectType) Rank() int {
	for i, candidate := range objectTypeOrder {
		if candidate == t {
			return i
		}
	}
	return len(objectTypeOrder)
}

// IsChild reports whether objects of this type always belong to a table.
func (t ObjectType) IsChild() bool {
	switch t {
	case ObjectColumn, ObjectConstraint, ObjectIndex, ObjectTrigger:
		return true
	}
	return false
}

// ParseObjectType resolves a user supplied type name.
func ParseObjectType(name string) (ObjectType, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "enum", "types":
		return ObjectTypeEnum, nil
	case "mview", "materialized_view":
		return ObjectView, nil
	case "procedure":
		return ObjectFunction, nil
	}
	normalized = strings.TrimSuffix(normalized, "s")
	if normalized == "indexe" {
		normalized = "index"
	}
	for _, t := range objectTypeOrder {
		if string(t) == normalized {
			return t, nil
		}
	}
	names := make([]string, 0, len(objectTypeOrder))
	for _, t := range AllObjectTypes() {
		names = append(names, string(t))
	}
	return "", fmt.Errorf("unknown object type %q (expected one of %s)", name, strings.Join(names, ", "))
}

// ObjectRef identifies an object within a snapshot.
type ObjectRef struct {
	Type ObjectType `json:"type" yaml:"type"`
	Name string     `json:"name" yaml:"name"`
}

// Ref builds an ObjectRef.
func Ref(t ObjectType, name string) ObjectRef {
	return ObjectRef{Type: t, Name: name}
}

func (r ObjectRef) String() string {
	return string(r.Type) + " " + r.Name
}

// Less orders refs by type rank then name.
func (r ObjectRef) Less(other ObjectRef) bool {
	if r.Type != other.Type {
		return r.Type.Rank() < other.Type.Rank()
	}
	return r.Name < other.Name
}

// SortRefs sorts refs in place using Less.
func SortRefs(refs []ObjectRef) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
}

// SchemaObject is one node of a catalog graph.
type SchemaObject struct {
	QualifiedName string
	ObjectType    ObjectType
	Schema        string
	Name          string
	// Table is the unqualified owning table of a child object.
	Table      string
	Parent     *ObjectRef
	Definition Comparable
	DependsOn  []ObjectRef

	children []*SchemaObject
}

// Ref returns the identity of the object.
func (o *SchemaObject) Ref() ObjectRef {
	return ObjectRef{Type: o.ObjectType, Name: o.QualifiedName}
}

// Children returns the objects owned by this one, sorted by rank and name.
// Only populated once the owning snapshot is sealed.
func (o *SchemaObject) Children() []*SchemaObject {
	return o.children
}

// ChildrenOf returns children of the given type.
func (o *SchemaObject) ChildrenOf(t ObjectType) []*SchemaObject {
	var out []*SchemaObject
	for _, child := range o.children {
		if child.ObjectType == t {
			out = append(out, child)
		}
	}
	return out
}

// Pruned returns a shallow copy of o whose children are limited to those keep accepts.
func (o *SchemaObject) Pruned(keep func(child *SchemaObject) bool) *SchemaObject {
	out := *o
	out.children = nil
	for _, child := range o.children {
		if keep(child) {
			out.children = append(out.children, child)
		}
	}
	return &out
}

// Scope restricts what an introspector reads.
type Scope struct {
	// Schema limits introspection to one schema when non-empty.
	Schema string
	// Ignore lists unqualified table names that are never reported.
	Ignore []string
}

// Ignores reports whether a table name is excluded by the scope.
func (s Scope) Ignores(name string) bool {
	for _, ignored := range s.Ignore {
		if strings.EqualFold(ignored, name) {
			return true
		}
	}
	return false
}

// Snapshot is the object graph of one database at one instant.
type Snapshot struct {
	Dialect SQLDialect
	Scope   Scope

	objects map[ObjectRef]*SchemaObject
	sealed  bool
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot(dialect SQLDialect, scope Scope) *Snapshot {
	return &Snapshot{
		Dialect: dialect,
		Scope:   scope,
		objects: make(map[ObjectRef]*SchemaObject),
	}
}

// Add inserts an object. Identity must be unique.
func (s *Snapshot) Add(obj *SchemaObject) error {
	if s.sealed {
		return fmt.Errorf("snapshot is sealed")
	}
	if obj.Definition == nil {
		return fmt.Errorf("%s has no definition", obj.Ref())
	}
	ref := obj.Ref()
	if _, exists := s.objects[ref]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateObject, ref)
	}
	s.objects[ref] = obj
	return nil
}

// Seal links children to parents and drops dependencies that point outside the snapshot.
// Children whose parent is missing are removed.
func (s *Snapshot) Seal() {
	if s.sealed {
		return
	}
	for ref, obj := range s.objects {
		if obj.Parent == nil {
			continue
		}
		if _, ok := s.objects[*obj.Parent]; !ok {
			delete(s.objects, ref)
		}
	}
	for _, obj := range s.objects {
		obj.children = nil
		deps := obj.DependsOn[:0:0]
		seen := make(map[ObjectRef]bool)
		for _, dep := range obj.DependsOn {
			if dep == obj.Ref() || seen[dep] {
				continue
			}
			if _, ok := s.objects[dep]; ok {
				deps = append(deps, dep)
				seen[dep] = true
			}
		}
		SortRefs(deps)
		obj.DependsOn = deps
	}
	for _, obj := range s.objects {
		if obj.Parent != nil {
			parent := s.objects[*obj.Parent]
			parent.children = append(parent.children, obj)
		}
	}
	for _, obj := range s.objects {
		sort.Slice(obj.children, func(i, j int) bool {
			return obj.children[i].Ref().Less(obj.children[j].Ref())
		})
	}
	s.sealed = true
}

// Get looks up an object by identity.
func (s *Snapshot) Get(ref ObjectRef) (*SchemaObject, bool) {
	obj, ok := s.objects[ref]
	return obj, ok
}

// Len returns the number of objects, children included.
func (s *Snapshot) Len() int {
	return len(s.objects)
}

// Objects returns every object sorted by rank and name.
func (s *Snapshot) Objects() []*SchemaObject {
	out := make([]*SchemaObject, 0, len(s.objects))
	for _, obj := range s.objects {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref().Less(out[j].Ref()) })
	return out
}

// TopLevel returns objects without a parent, sorted by rank and name.
func (s *Snapshot) TopLevel() []*SchemaObject {
	var out []*SchemaObject
	for _, obj := range s.Objects() {
		if obj.Parent == nil {
			out = append(out, obj)
		}
	}
	return out
}

// Owner returns the top-level object owning ref (ref itself when it has no parent).
func (s *Snapshot) Owner(ref ObjectRef) (ObjectRef, bool) {
	obj, ok := s.objects[ref]
	if !ok {
		return ObjectRef{}, false
	}
	for obj.Parent != nil {
		parent, ok := s.objects[*obj.Parent]
		if !ok {
			return ObjectRef{}, false
		}
		obj = parent
	}
	return obj.Ref(), true
}

// RolledUpDeps returns the top-level objects that obj or any of its children depend on, excluding obj itself.
func (s *Snapshot) RolledUpDeps(obj *SchemaObject) []ObjectRef {
	seen := make(map[ObjectRef]bool)
	var out []ObjectRef
	var visit func(o *SchemaObject)
	visit = func(o *SchemaObject) {
		for _, dep := range o.DependsOn {
			owner, ok := s.Owner(dep)
			if !ok || owner == obj.Ref() || seen[owner] {
				continue
			}
			seen[owner] = true
			out = append(out, owner)
		}
		for _, child := range o.children {
			visit(child)
		}
	}
	visit(obj)
	SortRefs(out)
	return out
}
