package resolve

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/odvcencio/glenhance/internal/models"
)

func sampleNamespaces() []models.Namespace {
	return []models.Namespace{
		ns(1, nil, "acme", "Acme"),
		ns(2, ptr(int64(1)), "core", "Core"),
		ns(3, ptr(int64(2)), "db", "Database"),
		ns(4, ptr(int64(1)), "web", "Web"),
		ns(5, nil, "labs", "Labs"),
	}
}

func TestQualifyComputesPathsNamesAndLevels(t *testing.T) {
	tree, err := BuildTree(sampleNamespaces())
	if err != nil {
		t.Fatal(err)
	}
	qualified, err := Qualify(tree)
	if err != nil {
		t.Fatalf("Qualify: %v", err)
	}

	want := map[int64]struct {
		level int
		path  string
		name  string
	}{
		1: {0, "acme", "Acme"},
		2: {1, "acme/core", "Acme::Core"},
		3: {2, "acme/core/db", "Acme::Core::Database"},
		4: {1, "acme/web", "Acme::Web"},
		5: {0, "labs", "Labs"},
	}
	if len(qualified) != len(want) {
		t.Fatalf("qualified %d namespaces, want %d", len(qualified), len(want))
	}
	for _, q := range qualified {
		w := want[q.ID]
		if q.Level != w.level || q.QualifiedPath != w.path || q.QualifiedName != w.name {
			t.Fatalf("namespace %d = (%d, %q, %q), want (%d, %q, %q)", q.ID, q.Level, q.QualifiedPath, q.QualifiedName, w.level, w.path, w.name)
		}
	}
}

func TestQualifyParentsPrecedeChildren(t *testing.T) {
	tree, err := BuildTree(sampleNamespaces())
	if err != nil {
		t.Fatal(err)
	}
	qualified, err := Qualify(tree)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[int64]models.QualifiedNamespace{}
	for _, q := range qualified {
		if q.ParentID != nil {
			parent, ok := seen[*q.ParentID]
			if !ok {
				t.Fatalf("namespace %d qualified before parent %d", q.ID, *q.ParentID)
			}
			if q.Level != parent.Level+1 {
				t.Fatalf("level(%d) = %d, want level(parent)+1 = %d", q.ID, q.Level, parent.Level+1)
			}
			if !strings.HasPrefix(q.QualifiedPath, parent.QualifiedPath+"/") {
				t.Fatalf("qualified path %q does not extend parent %q", q.QualifiedPath, parent.QualifiedPath)
			}
		} else if q.Level != 0 {
			t.Fatalf("root %d has level %d", q.ID, q.Level)
		}
		seen[q.ID] = q
	}
}

func TestQualifyIsDeterministic(t *testing.T) {
	input := sampleNamespaces()
	reversed := make([]models.Namespace, len(input))
	for i, n := range input {
		reversed[len(input)-1-i] = n
	}

	first, err := BuildTree(input)
	if err != nil {
		t.Fatal(err)
	}
	second, err := BuildTree(reversed)
	if err != nil {
		t.Fatal(err)
	}
	a, err := Qualify(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Qualify(second)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("qualification depends on input order:\n%v\n%v", a, b)
	}
}

func TestQualifyReportsUnreachableNodes(t *testing.T) {
	// Bypass BuildTree's termination check to hand Qualify a detached loop.
	tree := &Tree{
		nodes: map[int64]*node{
			1: {namespace: ns(1, nil, "acme", "Acme")},
			2: {namespace: ns(2, ptr(int64(3)), "a", "A"), children: []int64{3}},
			3: {namespace: ns(3, ptr(int64(2)), "b", "B"), children: []int64{2}},
		},
		roots: []int64{1},
	}

	_, err := Qualify(tree)
	if !errors.Is(err, ErrUnreachableNode) {
		t.Fatalf("Qualify error = %v, want ErrUnreachableNode", err)
	}
	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("Qualify error = %T, want *UnreachableError", err)
	}
	if want := []int64{2, 3}; !reflect.DeepEqual(unreachable.IDs, want) {
		t.Fatalf("unreachable ids = %v, want %v", unreachable.IDs, want)
	}
}
