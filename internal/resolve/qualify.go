package resolve

import (
	"github.com/odvcencio/glenhance/internal/models"
)

const (
	pathSeparator = "/"
	nameSeparator = "::"
)

// Qualify computes level, qualified path and qualified name for every
// namespace in breadth-first order from the roots, so a parent is always
// qualified before its children.
func Qualify(t *Tree) ([]models.QualifiedNamespace, error) {
	out := make([]models.QualifiedNamespace, 0, t.Len())
	position := make(map[int64]int, t.Len())

	queue := make([]int64, 0, t.Len())
	for _, id := range t.roots {
		ns := t.nodes[id].namespace
		position[id] = len(out)
		out = append(out, models.QualifiedNamespace{
			Namespace:     ns,
			Level:         0,
			QualifiedPath: ns.Path,
			QualifiedName: ns.Name,
		})
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		parent := out[position[id]]
		for _, childID := range t.nodes[id].children {
			if _, done := position[childID]; done {
				continue
			}
			ns := t.nodes[childID].namespace
			position[childID] = len(out)
			out = append(out, models.QualifiedNamespace{
				Namespace:     ns,
				Level:         parent.Level + 1,
				QualifiedPath: parent.QualifiedPath + pathSeparator + ns.Path,
				QualifiedName: parent.QualifiedName + nameSeparator + ns.Name,
			})
			queue = append(queue, childID)
		}
	}

	if len(out) != t.Len() {
		var missing []int64
		for _, id := range t.sortedIDs() {
			if _, ok := position[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, &UnreachableError{IDs: missing}
	}
	return out, nil
}
