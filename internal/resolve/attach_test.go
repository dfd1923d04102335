package resolve

import (
	"errors"
	"testing"

	"github.com/odvcencio/glenhance/internal/models"
)

func qualifiedIndex(t *testing.T, namespaces []models.Namespace) map[int64]*models.QualifiedNamespace {
	t.Helper()
	tree, err := BuildTree(namespaces)
	if err != nil {
		t.Fatal(err)
	}
	qualified, err := Qualify(tree)
	if err != nil {
		t.Fatal(err)
	}
	index := make(map[int64]*models.QualifiedNamespace, len(qualified))
	for i := range qualified {
		index[qualified[i].ID] = &qualified[i]
	}
	return index
}

func TestAttachProjectsQualifiesAgainstNamespace(t *testing.T) {
	index := qualifiedIndex(t, sampleNamespaces())
	projects, err := AttachProjects(index, []models.Project{
		{ID: 10, NamespaceID: ptr(int64(2)), Path: "widgets", Name: "Widgets", Extra: map[string]any{"visibility_level": int64(20)}},
	})
	if err != nil {
		t.Fatalf("AttachProjects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("attached %d projects, want 1", len(projects))
	}
	p := projects[0]
	if !p.Resolved() {
		t.Fatal("expected project to resolve")
	}
	if got := *p.QualifiedProjectPath; got != "acme/core/widgets" {
		t.Fatalf("qualified_project_path = %q, want %q", got, "acme/core/widgets")
	}
	if got := *p.QualifiedProjectName; got != "Acme::Core::Widgets" {
		t.Fatalf("qualified_project_name = %q, want %q", got, "Acme::Core::Widgets")
	}
	if *p.NamespaceLevel != 1 || *p.ProjectLevel != 2 {
		t.Fatalf("levels = (%d, %d), want (1, 2)", *p.NamespaceLevel, *p.ProjectLevel)
	}
	if got := *p.QualifiedNamespacePath; got != "acme/core" {
		t.Fatalf("qualified_namespace_path = %q, want %q", got, "acme/core")
	}
	if got := *p.QualifiedNamespaceName; got != "Acme::Core" {
		t.Fatalf("qualified_namespace_name = %q, want %q", got, "Acme::Core")
	}
	if got := p.Extra["visibility_level"]; got != int64(20) {
		t.Fatalf("extra visibility_level = %v, want passthrough 20", got)
	}
}

func TestAttachProjectsKeepsUnresolvedProjects(t *testing.T) {
	index := qualifiedIndex(t, sampleNamespaces())
	projects, err := AttachProjects(index, []models.Project{
		{ID: 10, NamespaceID: ptr(int64(99)), Path: "lost", Name: "Lost"},
		{ID: 11, Path: "bare", Name: "Bare"},
		{ID: 12, NamespaceID: ptr(int64(5)), Path: "lab", Name: "Lab"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 3 {
		t.Fatalf("attached %d projects, want 3", len(projects))
	}
	for _, p := range projects[:2] {
		if p.Resolved() || p.NamespaceLevel != nil || p.QualifiedNamespaceName != nil || p.ProjectLevel != nil {
			t.Fatalf("project %d should carry nil namespace fields: %+v", p.ID, p)
		}
	}
	if !projects[2].Resolved() {
		t.Fatal("expected project 12 to resolve")
	}
}

func TestAttachProjectsRejectsDuplicateID(t *testing.T) {
	_, err := AttachProjects(nil, []models.Project{{ID: 1}, {ID: 1}})
	var dup *DuplicateIDError
	if !errors.As(err, &dup) || dup.Entity != "project" {
		t.Fatalf("AttachProjects error = %v, want project DuplicateIDError", err)
	}
}

func attachedProjects(t *testing.T, projects ...models.Project) []models.QualifiedProject {
	t.Helper()
	qualified, err := AttachProjects(qualifiedIndex(t, sampleNamespaces()), projects)
	if err != nil {
		t.Fatal(err)
	}
	return qualified
}

func TestAttachRepositories(t *testing.T) {
	projects := attachedProjects(t,
		models.Project{ID: 10, NamespaceID: ptr(int64(2)), Path: "widgets", Name: "Widgets"},
		models.Project{ID: 11, NamespaceID: ptr(int64(99)), Path: "lost", Name: "Lost"},
	)

	repos, err := AttachRepositories(projects, []models.Repository{
		{ID: 100, ProjectID: ptr(int64(10)), ShardID: ptr(int64(1)), DiskPath: "@hashed/ab/cd/xyz", Extra: map[string]any{"object_format": int64(0)}},
		{ID: 101, ProjectID: ptr(int64(11)), DiskPath: "@hashed/11"},
		{ID: 102, ProjectID: ptr(int64(404)), DiskPath: "@hashed/404"},
		{ID: 103, DiskPath: "@hashed/none"},
	})
	if err != nil {
		t.Fatalf("AttachRepositories: %v", err)
	}
	if len(repos) != 4 {
		t.Fatalf("attached %d rows, want 4", len(repos))
	}

	got := repos[0]
	if got.QualifiedProjectGitDirPath == nil || *got.QualifiedProjectGitDirPath != "acme/core/widgets.git" {
		t.Fatalf("qualified_project_git_dir_path = %v, want acme/core/widgets.git", got.QualifiedProjectGitDirPath)
	}
	if got.DiskGitDirRelPath == nil || *got.DiskGitDirRelPath != "@hashed/ab/cd/xyz.git" {
		t.Fatalf("disk_git_dir_rel_path = %v, want @hashed/ab/cd/xyz.git", got.DiskGitDirRelPath)
	}
	if got.NamespaceID == nil || *got.NamespaceID != 2 {
		t.Fatalf("namespace_id = %v, want 2", got.NamespaceID)
	}
	if got.ShardID == nil || *got.ShardID != 1 || got.Extra["object_format"] != int64(0) {
		t.Fatalf("repository fields not carried: %+v", got)
	}

	if repos[1].Resolved() {
		t.Fatal("repository on an unresolved project must stay unresolved")
	}
	if repos[1].NamespaceID == nil || *repos[1].NamespaceID != 99 {
		t.Fatalf("repository 101 namespace_id = %v, want passthrough 99", repos[1].NamespaceID)
	}
	if repos[2].ProjectID == nil || *repos[2].ProjectID != 404 {
		t.Fatalf("dangling repository project_id = %v, want 404", repos[2].ProjectID)
	}
	if repos[3].ProjectID != nil {
		t.Fatalf("repository without project_id got project_id %v", *repos[3].ProjectID)
	}
	for _, r := range repos[1:] {
		if r.Resolved() || r.QualifiedProjectPath != nil {
			t.Fatalf("repository %d should carry nil project fields", *r.RepositoryID)
		}
		if *r.DiskGitDirRelPath != *r.DiskPath+".git" {
			t.Fatalf("repository %d disk git dir = %q", *r.RepositoryID, *r.DiskGitDirRelPath)
		}
	}
}

func TestAttachRepositoriesKeepsProjectsWithoutRepository(t *testing.T) {
	projects := attachedProjects(t,
		models.Project{ID: 10, NamespaceID: ptr(int64(1)), Path: "empty", Name: "Empty"},
		models.Project{ID: 11, NamespaceID: ptr(int64(2)), Path: "widgets", Name: "Widgets"},
	)
	repos, err := AttachRepositories(projects, []models.Repository{
		{ID: 100, ProjectID: ptr(int64(11)), DiskPath: "@hashed/a"},
		{ID: 101, ProjectID: ptr(int64(11)), DiskPath: "@hashed/b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 3 {
		t.Fatalf("attached %d rows, want 3", len(repos))
	}

	empty := repos[0]
	if empty.ProjectID == nil || *empty.ProjectID != 10 {
		t.Fatalf("first row project_id = %v, want 10", empty.ProjectID)
	}
	if empty.HasRepository() || empty.ShardID != nil || empty.DiskPath != nil || empty.DiskGitDirRelPath != nil {
		t.Fatalf("project without repository should carry nil repository fields: %+v", empty)
	}
	if !empty.Resolved() || *empty.QualifiedProjectGitDirPath != "acme/empty.git" {
		t.Fatalf("project without repository lost its qualified path: %+v", empty)
	}

	for i, want := range []int64{100, 101} {
		r := repos[i+1]
		if r.RepositoryID == nil || *r.RepositoryID != want || *r.ProjectID != 11 {
			t.Fatalf("row %d = %+v, want repository %d of project 11", i+1, r, want)
		}
	}
}

func TestAttachRepositoriesRejectsDuplicateID(t *testing.T) {
	_, err := AttachRepositories(nil, []models.Repository{{ID: 5}, {ID: 5}})
	var dup *DuplicateIDError
	if !errors.As(err, &dup) || dup.Entity != "repository" || dup.ID != 5 {
		t.Fatalf("AttachRepositories error = %v, want repository DuplicateIDError", err)
	}
}
