// Package planner implements migration planning: it orders a change set by dependency and applies
// the safety policy.
package planner

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

// DependencyPlanner implements the Planner interface.
type DependencyPlanner struct{}

// NewDependencyPlanner creates a new dependency planner.
func NewDependencyPlanner() *DependencyPlanner {
	return &DependencyPlanner{}
}

// node is one non-Identical entry.
type node struct {
	id    int
	entry domain.ChangeEntry
	next  []int
	comp  int
}

func less(a, b domain.ChangeEntry) bool {
	if a.Status != b.Status {
		return a.Status.Rank() < b.Status.Rank()
	}
	return a.Ref.Less(b.Ref)
}

// precedes reports whether x must run before y when x depends on y. Drops of a dependent run before
// drops of its dependency; every other pairing runs the dependency first.
func precedes(x, y domain.ChangeEntry) bool {
	return x.Status == domain.StatusRemoved || (x.Status == domain.StatusModified && y.Status == domain.StatusRemoved)
}

// Plan orders the change set into statement groups.
func (p *DependencyPlanner) Plan(cs *domain.ChangeSet, opts domain.PlanOptions) (*domain.Plan, error) {
	plan := &domain.Plan{Dialect: cs.Dialect(), Unsafe: opts.Unsafe}

	var nodes []*node
	for _, entry := range cs.Entries() {
		if entry.Status == domain.StatusIdentical {
			continue
		}
		nodes = append(nodes, &node{entry: entry})
	}
	sort.Slice(nodes, func(i, j int) bool { return less(nodes[i].entry, nodes[j].entry) })
	byRef := make(map[domain.ObjectRef]*node, len(nodes))
	for i, n := range nodes {
		n.id = i
		byRef[n.entry.Ref] = n
		plan.Warnings = append(plan.Warnings, n.entry.Warnings...)
	}

	for _, x := range nodes {
		for _, dep := range x.entry.Dependencies() {
			y, ok := byRef[dep]
			if !ok {
				continue
			}
			if precedes(x.entry, y.entry) {
				x.next = append(x.next, y.id)
			} else {
				y.next = append(y.next, x.id)
			}
		}
	}
	for _, n := range nodes {
		sort.Ints(n.next)
	}

	comps := components(nodes)
	order, err := topological(nodes, comps)
	if err != nil {
		return nil, err
	}

	withheld := make(map[int]string)
	if !opts.Unsafe {
		withheld = withhold(nodes, comps, order)
	}

	for _, c := range order {
		members := comps[c]
		if reason, ok := withheld[c]; ok {
			for _, id := range members {
				r := reason
				if nodes[id].entry.Destructive {
					r = "destructive"
				}
				plan.Withheld = append(plan.Withheld, domain.WithheldEntry{Entry: nodes[id].entry, Reason: r})
			}
			continue
		}
		group := domain.StatementGroup{}
		for _, id := range members {
			group.Members = append(group.Members, nodes[id].entry.Ref)
		}
		for _, phase := range []domain.Phase{domain.PhasePre, domain.PhaseMain, domain.PhasePost} {
			for _, id := range members {
				for _, stmt := range nodes[id].entry.Statements {
					if stmt.Phase == phase {
						group.Statements = append(group.Statements, stmt)
					}
				}
			}
		}
		if len(group.Statements) > 0 {
			plan.Groups = append(plan.Groups, group)
		}
	}

	debug.Debug("planned migration",
		"groups", len(plan.Groups),
		"withheld", len(plan.Withheld),
		"unsafe", opts.Unsafe)
	return plan, nil
}

// components returns the strongly connected components of the graph (Tarjan), each sorted by entry
// order, and records the component of every node.
func components(nodes []*node) [][]int {
	var (
		index   = make([]int, len(nodes))
		low     = make([]int, len(nodes))
		onStack = make([]bool, len(nodes))
		stack   []int
		counter = 1
		comps   [][]int
	)
	var visit func(v int)
	visit = func(v int) {
		index[v], low[v] = counter, counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range nodes[v].next {
			if index[w] == 0 {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		var comp []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			nodes[w].comp = len(comps)
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	for v := range nodes {
		if index[v] == 0 {
			visit(v)
		}
	}
	return comps
}

// topological orders the condensation with Kahn's algorithm. Among ready components the one whose
// first member sorts first wins, which keeps output stable.
func topological(nodes []*node, comps [][]int) ([]int, error) {
	indegree := make([]int, len(comps))
	succ := make([]map[int]bool, len(comps))
	for c := range comps {
		succ[c] = make(map[int]bool)
	}
	for _, n := range nodes {
		for _, w := range n.next {
			to := nodes[w].comp
			if to == n.comp || succ[n.comp][to] {
				continue
			}
			succ[n.comp][to] = true
			indegree[to]++
		}
	}

	ready := &compQueue{comps: comps}
	for c := range comps {
		if indegree[c] == 0 {
			heap.Push(ready, c)
		}
	}
	order := make([]int, 0, len(comps))
	for ready.Len() > 0 {
		c := heap.Pop(ready).(int)
		order = append(order, c)
		next := make([]int, 0, len(succ[c]))
		for to := range succ[c] {
			next = append(next, to)
		}
		sort.Ints(next)
		for _, to := range next {
			indegree[to]--
			if indegree[to] == 0 {
				heap.Push(ready, to)
			}
		}
	}
	if len(order) != len(comps) {
		return nil, fmt.Errorf("failed to order changes: %d of %d groups are unreachable", len(comps)-len(order), len(comps))
	}
	return order, nil
}

// withhold marks components holding a destructive entry, and every component ordered after one.
// order must be topological.
func withhold(nodes []*node, comps [][]int, order []int) map[int]string {
	withheld := make(map[int]string)
	for _, c := range order {
		if _, ok := withheld[c]; !ok {
			for _, id := range comps[c] {
				if nodes[id].entry.Destructive {
					withheld[c] = fmt.Sprintf("in a dependency cycle with withheld %s", nodes[id].entry.Ref)
					break
				}
			}
		}
		if _, ok := withheld[c]; !ok {
			continue
		}
		blocker := nodes[comps[c][0]].entry.Ref
		for _, id := range comps[c] {
			for _, w := range nodes[id].next {
				to := nodes[w].comp
				if _, done := withheld[to]; !done && to != c {
					withheld[to] = fmt.Sprintf("depends on withheld %s", blocker)
				}
			}
		}
	}
	return withheld
}

// compQueue is a min-heap of component ids keyed by their first member.
type compQueue struct {
	comps [][]int
	items []int
}

func (q *compQueue) Len() int           { return len(q.items) }
func (q *compQueue) Less(i, j int) bool { return q.comps[q.items[i]][0] < q.comps[q.items[j]][0] }
func (q *compQueue) Swap(i, j int)      { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *compQueue) Push(x any)         { q.items = append(q.items, x.(int)) }
func (q *compQueue) Pop() any {
	last := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return last
}

// Ensure DependencyPlanner implements Planner interface.
var _ domain.Planner = (*DependencyPlanner)(nil)
