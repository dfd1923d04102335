// Package locate formats clone URLs and bare on-disk paths for qualified
// repositories.
package locate

import (
	"errors"
	"fmt"

	"github.com/odvcencio/glenhance/internal/models"
)

var (
	ErrUnresolvedRepository = errors.New("repository has no qualified project path")
	ErrNoRepositoryRecord   = errors.New("project has no repository record")
)

// UnresolvedRepositoryError names a row that could not be attached to a
// qualified project, so no clone URL can be formed for it.
type UnresolvedRepositoryError struct {
	RepositoryID *int64
	ProjectID    *int64
}

func (e *UnresolvedRepositoryError) Error() string {
	switch {
	case e.RepositoryID != nil:
		return fmt.Sprintf("repository %d: %s", *e.RepositoryID, ErrUnresolvedRepository)
	case e.ProjectID != nil:
		return fmt.Sprintf("project %d: %s", *e.ProjectID, ErrUnresolvedRepository)
	default:
		return ErrUnresolvedRepository.Error()
	}
}

func (e *UnresolvedRepositoryError) Unwrap() error { return ErrUnresolvedRepository }

// Scope restricts formatting to repositories whose namespace it contains.
// A nil Scope admits everything.
type Scope interface {
	Contains(id int64) bool
}

// InScope reports whether repo's namespace is in scope. Rows without a
// namespace only match a nil scope.
func InScope(scope Scope, repo models.QualifiedRepository) bool {
	if scope == nil {
		return true
	}
	return repo.NamespaceID != nil && scope.Contains(*repo.NamespaceID)
}

func gitDirPath(repo models.QualifiedRepository) (string, error) {
	if repo.QualifiedProjectGitDirPath == nil {
		return "", &UnresolvedRepositoryError{RepositoryID: repo.RepositoryID, ProjectID: repo.ProjectID}
	}
	return *repo.QualifiedProjectGitDirPath, nil
}

// CloneSSH returns git@host:group/project.git.
func CloneSSH(host string, repo models.QualifiedRepository) (string, error) {
	path, err := gitDirPath(repo)
	if err != nil {
		return "", err
	}
	return "git@" + host + ":" + path, nil
}

// CloneHTTPS returns https://host/group/project.git.
func CloneHTTPS(host string, repo models.QualifiedRepository) (string, error) {
	path, err := gitDirPath(repo)
	if err != nil {
		return "", err
	}
	return "https://" + host + "/" + path, nil
}

// BareDiskPath joins home with the repository's disk-relative git directory.
// home is used as given. Project attachment is irrelevant; only rows without
// a repository record fail.
func BareDiskPath(home string, repo models.QualifiedRepository) (string, error) {
	if repo.DiskGitDirRelPath == nil {
		return "", ErrNoRepositoryRecord
	}
	return home + "/" + *repo.DiskGitDirRelPath, nil
}

// Clones formats clone locations for every row in scope. Unresolved rows are
// reported individually and do not stop the batch.
func Clones(host string, repos []models.QualifiedRepository, scope Scope) ([]models.CloneLocation, []error) {
	var (
		out  []models.CloneLocation
		errs []error
	)
	for _, repo := range repos {
		if !InScope(scope, repo) {
			continue
		}
		path, err := gitDirPath(repo)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, models.CloneLocation{
			Repository: repo,
			CloneSSH:   "git@" + host + ":" + path,
			CloneHTTPS: "https://" + host + "/" + path,
		})
	}
	return out, errs
}

// Bare formats on-disk git directories for every repository record in scope.
// Unresolved repositories are included when scope is nil; project rows
// without a repository record have no disk path and are skipped.
func Bare(home string, repos []models.QualifiedRepository, scope Scope) []models.BareLocation {
	var out []models.BareLocation
	for _, repo := range repos {
		if !InScope(scope, repo) {
			continue
		}
		abs, err := BareDiskPath(home, repo)
		if err != nil {
			continue
		}
		out = append(out, models.BareLocation{
			Repository:    repo,
			GitDirAbsPath: abs,
		})
	}
	return out
}
