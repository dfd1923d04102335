package models

import "time"

// Namespace is a node of the group hierarchy as recorded by the source system.
type Namespace struct {
	ID       int64          `json:"id" yaml:"id"`
	ParentID *int64         `json:"parent_id" yaml:"parent_id,omitempty"`
	Path     string         `json:"path" yaml:"path"`
	Name     string         `json:"name" yaml:"name"`
	Extra    map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

type Project struct {
	ID          int64          `json:"id" yaml:"id"`
	NamespaceID *int64         `json:"namespace_id" yaml:"namespace_id,omitempty"`
	Path        string         `json:"path" yaml:"path"`
	Name        string         `json:"name" yaml:"name"`
	Extra       map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Repository is a physical repository record. DiskPath is relative to the
// storage shard's repository root and carries no ".git" suffix.
type Repository struct {
	ID        int64          `json:"id" yaml:"id"`
	ProjectID *int64         `json:"project_id" yaml:"project_id,omitempty"`
	ShardID   *int64         `json:"shard_id" yaml:"shard_id,omitempty"`
	DiskPath  string         `json:"disk_path" yaml:"disk_path"`
	Extra     map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Snapshot is one consistent read of the three source collections.
type Snapshot struct {
	Namespaces   []Namespace  `json:"namespaces" yaml:"namespaces"`
	Projects     []Project    `json:"projects" yaml:"projects"`
	Repositories []Repository `json:"repositories" yaml:"repositories"`
	TakenAt      time.Time    `json:"taken_at" yaml:"taken_at,omitempty"`
}

type QualifiedNamespace struct {
	Namespace     `yaml:",inline"`
	Level         int    `json:"level" yaml:"level"`
	QualifiedPath string `json:"qualified_path" yaml:"qualified_path"`
	QualifiedName string `json:"qualified_name" yaml:"qualified_name"`
}

// QualifiedProject carries nil namespace-derived fields when the owning
// namespace could not be resolved.
type QualifiedProject struct {
	Project                `yaml:",inline"`
	NamespaceLevel         *int    `json:"namespace_level" yaml:"namespace_level"`
	QualifiedNamespacePath *string `json:"qualified_namespace_path" yaml:"qualified_namespace_path"`
	QualifiedNamespaceName *string `json:"qualified_namespace_name" yaml:"qualified_namespace_name"`
	ProjectLevel           *int    `json:"project_level" yaml:"project_level"`
	QualifiedProjectPath   *string `json:"qualified_project_path" yaml:"qualified_project_path"`
	QualifiedProjectName   *string `json:"qualified_project_name" yaml:"qualified_project_name"`
}

// Resolved reports whether the project is attached to a qualified namespace.
func (p QualifiedProject) Resolved() bool {
	return p.QualifiedProjectPath != nil
}

// QualifiedRepository is one project/repository pairing. A project without a
// repository record still yields a row, with nil repository fields. A
// repository whose project is missing yields a row with nil project-derived
// fields; ProjectID then keeps the dangling reference.
type QualifiedRepository struct {
	ProjectID                  *int64  `json:"project_id" yaml:"project_id"`
	NamespaceID                *int64  `json:"namespace_id" yaml:"namespace_id"`
	QualifiedProjectPath       *string `json:"qualified_project_path" yaml:"qualified_project_path"`
	QualifiedProjectName       *string `json:"qualified_project_name" yaml:"qualified_project_name"`
	QualifiedProjectGitDirPath *string `json:"qualified_project_git_dir_path" yaml:"qualified_project_git_dir_path"`

	RepositoryID      *int64         `json:"repository_id" yaml:"repository_id"`
	ShardID           *int64         `json:"shard_id" yaml:"shard_id"`
	DiskPath          *string        `json:"disk_path" yaml:"disk_path"`
	DiskGitDirRelPath *string        `json:"disk_git_dir_rel_path" yaml:"disk_git_dir_rel_path"`
	Extra             map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Resolved reports whether the row is attached to a qualified project.
func (r QualifiedRepository) Resolved() bool {
	return r.QualifiedProjectGitDirPath != nil
}

// HasRepository reports whether a physical repository record backs the row.
func (r QualifiedRepository) HasRepository() bool {
	return r.RepositoryID != nil
}

type CloneLocation struct {
	Repository QualifiedRepository `json:"repository" yaml:"repository"`
	CloneSSH   string              `json:"clone_ssh" yaml:"clone_ssh"`
	CloneHTTPS string              `json:"clone_https" yaml:"clone_https"`
}

type BareLocation struct {
	Repository    QualifiedRepository `json:"repository" yaml:"repository"`
	GitDirAbsPath string              `json:"git_dir_abs_path" yaml:"git_dir_abs_path"`
}

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ResolutionRun records the outcome of one resolution pass.
type ResolutionRun struct {
	ID                     string     `json:"id" yaml:"id"`
	Status                 RunStatus  `json:"status" yaml:"status"`
	StartedAt              time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt             *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Namespaces             int        `json:"namespaces" yaml:"namespaces"`
	Projects               int        `json:"projects" yaml:"projects"`
	Repositories           int        `json:"repositories" yaml:"repositories"`
	UnresolvedProjects     int        `json:"unresolved_projects" yaml:"unresolved_projects"`
	UnresolvedRepositories int        `json:"unresolved_repositories" yaml:"unresolved_repositories"`
	Error                  string     `json:"error,omitempty" yaml:"error,omitempty"`
}

func IsRunStatus(status RunStatus) bool {
	switch status {
	case RunSucceeded, RunFailed:
		return true
	default:
		return false
	}
}
