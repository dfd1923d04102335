// Package resolve builds the namespace tree from a source snapshot and
// derives qualified paths and names for namespaces, projects and
// repositories.
package resolve

import (
	"time"

	"github.com/odvcencio/glenhance/internal/models"
)

// Result is the immutable output of one resolution pass.
type Result struct {
	Tree         *Tree
	Namespaces   []models.QualifiedNamespace
	Projects     []models.QualifiedProject
	Repositories []models.QualifiedRepository
	TakenAt      time.Time

	namespaceByID map[int64]*models.QualifiedNamespace
	projectByID   map[int64]*models.QualifiedProject
}

// Resolve runs tree building, qualification and attachment over snap. Any
// fatal error aborts the pass and no partial result is returned.
func Resolve(snap models.Snapshot) (*Result, error) {
	tree, err := BuildTree(snap.Namespaces)
	if err != nil {
		return nil, err
	}
	namespaces, err := Qualify(tree)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Tree:          tree,
		Namespaces:    namespaces,
		TakenAt:       snap.TakenAt,
		namespaceByID: make(map[int64]*models.QualifiedNamespace, len(namespaces)),
	}
	for i := range res.Namespaces {
		res.namespaceByID[res.Namespaces[i].ID] = &res.Namespaces[i]
	}

	res.Projects, err = AttachProjects(res.namespaceByID, snap.Projects)
	if err != nil {
		return nil, err
	}
	res.projectByID = make(map[int64]*models.QualifiedProject, len(res.Projects))
	for i := range res.Projects {
		res.projectByID[res.Projects[i].ID] = &res.Projects[i]
	}

	res.Repositories, err = AttachRepositories(res.Projects, snap.Repositories)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Result) Namespace(id int64) (models.QualifiedNamespace, bool) {
	ns, ok := r.namespaceByID[id]
	if !ok {
		return models.QualifiedNamespace{}, false
	}
	return *ns, true
}

func (r *Result) Project(id int64) (models.QualifiedProject, bool) {
	p, ok := r.projectByID[id]
	if !ok {
		return models.QualifiedProject{}, false
	}
	return *p, true
}

func (r *Result) Subtree(root int64) IDSet {
	return r.Tree.Subtree(root)
}

// Scope is a namespace filter. A nil Scope admits every namespace.
type Scope interface {
	Contains(id int64) bool
}

// Scope returns the subtree rooted at *root, or nil when root is nil.
func (r *Result) Scope(root *int64) Scope {
	if root == nil {
		return nil
	}
	return r.Tree.Subtree(*root)
}

// NamespacesIn returns the qualified namespaces whose ids are in scope,
// preserving resolution order.
func (r *Result) NamespacesIn(scope IDSet) []models.QualifiedNamespace {
	out := make([]models.QualifiedNamespace, 0, scope.Len())
	for _, ns := range r.Namespaces {
		if scope.Contains(ns.ID) {
			out = append(out, ns)
		}
	}
	return out
}

// ProjectsIn returns projects owned by a namespace in scope.
func (r *Result) ProjectsIn(scope IDSet) []models.QualifiedProject {
	var out []models.QualifiedProject
	for _, p := range r.Projects {
		if p.NamespaceID != nil && scope.Contains(*p.NamespaceID) {
			out = append(out, p)
		}
	}
	return out
}

func (r *Result) UnresolvedProjects() int {
	n := 0
	for _, p := range r.Projects {
		if !p.Resolved() {
			n++
		}
	}
	return n
}

func (r *Result) UnresolvedRepositories() int {
	n := 0
	for _, repo := range r.Repositories {
		if !repo.Resolved() {
			n++
		}
	}
	return n
}
