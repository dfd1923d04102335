package resolve

import (
	"slices"

	"github.com/odvcencio/glenhance/internal/models"
)

type node struct {
	namespace models.Namespace
	children  []int64
}

// Tree is an id-addressable index over a namespace forest. It is immutable
// once built.
type Tree struct {
	nodes   map[int64]*node
	roots   []int64
	orphans []int64
}

// BuildTree indexes namespaces and validates that every parent chain
// terminates. A namespace whose parent id is absent from the input is
// treated as a root and also reported by Orphans.
func BuildTree(namespaces []models.Namespace) (*Tree, error) {
	t := &Tree{nodes: make(map[int64]*node, len(namespaces))}
	for _, ns := range namespaces {
		if _, exists := t.nodes[ns.ID]; exists {
			return nil, &DuplicateIDError{Entity: "namespace", ID: ns.ID}
		}
		t.nodes[ns.ID] = &node{namespace: ns}
	}

	for _, id := range t.sortedIDs() {
		n := t.nodes[id]
		if n.namespace.ParentID == nil {
			t.roots = append(t.roots, id)
			continue
		}
		parent, ok := t.nodes[*n.namespace.ParentID]
		if !ok {
			t.roots = append(t.roots, id)
			t.orphans = append(t.orphans, id)
			continue
		}
		parent.children = append(parent.children, id)
	}

	if err := t.checkTermination(); err != nil {
		return nil, err
	}
	return t, nil
}

// checkTermination walks every parent chain at most len(nodes) hops. Chains
// proven to reach a root are remembered so the whole check stays linear.
func (t *Tree) checkTermination() error {
	limit := len(t.nodes)
	terminates := make(map[int64]bool, limit)
	for _, id := range t.sortedIDs() {
		var chain []int64
		cur := id
		for hops := 0; ; hops++ {
			if terminates[cur] || t.isRoot(cur) {
				break
			}
			if hops >= limit {
				return &CycleError{ID: id, Chain: chain}
			}
			chain = append(chain, cur)
			cur = *t.nodes[cur].namespace.ParentID
		}
		terminates[cur] = true
		for _, walked := range chain {
			terminates[walked] = true
		}
	}
	return nil
}

func (t *Tree) isRoot(id int64) bool {
	n := t.nodes[id]
	if n.namespace.ParentID == nil {
		return true
	}
	_, ok := t.nodes[*n.namespace.ParentID]
	return !ok
}

func (t *Tree) sortedIDs() []int64 {
	ids := make([]int64, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (t *Tree) Len() int { return len(t.nodes) }

// Roots returns root ids in ascending order.
func (t *Tree) Roots() []int64 { return slices.Clone(t.roots) }

// Orphans returns ids whose parent reference points to a missing namespace.
func (t *Tree) Orphans() []int64 { return slices.Clone(t.orphans) }

// Children returns the direct children of id in ascending order.
func (t *Tree) Children(id int64) []int64 {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.children)
}

func (t *Tree) Namespace(id int64) (models.Namespace, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return models.Namespace{}, false
	}
	return n.namespace, true
}

func (t *Tree) Has(id int64) bool {
	_, ok := t.nodes[id]
	return ok
}
