package resolve

import "slices"

// IDSet is a set of namespace ids.
type IDSet map[int64]struct{}

func (s IDSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Len() int { return len(s) }

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Subtree returns root and all of its transitive descendants, following
// child links. An unknown root yields an empty set.
func (t *Tree) Subtree(root int64) IDSet {
	set := IDSet{}
	if !t.Has(root) {
		return set
	}
	stack := []int64{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if set.Contains(id) {
			continue
		}
		set[id] = struct{}{}
		stack = append(stack, t.nodes[id].children...)
	}
	return set
}
