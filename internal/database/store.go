package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/glenhance/internal/models"
)

const (
	namespacesTable   = "namespaces"
	projectsTable     = "projects"
	repositoriesTable = "project_repositories"

	qualifiedNamespacesTable   = "qualified_namespaces"
	qualifiedProjectsTable     = "qualified_projects"
	qualifiedProjectReposTable = "qualified_project_repos"
	runsTable                  = "gitlab_qualified_project_repos_state"
)

// sqlStore holds the query logic shared by the Postgres and SQLite backends.
// Queries use $N placeholders, which both drivers accept.
type sqlStore struct {
	db      *sql.DB
	schemas Schemas
	// snapshotTx is used for LoadSnapshot; nil means driver defaults.
	snapshotTx *sql.TxOptions
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func qualifiedTable(schema, name string) string {
	if schema == "" {
		return quoteIdent(name)
	}
	return quoteIdent(schema) + "." + quoteIdent(name)
}

func (s *sqlStore) canonical(name string) string {
	return qualifiedTable(s.schemas.Canonical, name)
}

func (s *sqlStore) enhance(name string) string {
	return qualifiedTable(s.schemas.Enhance, name)
}

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlStore) DBStats() sql.DBStats { return s.db.Stats() }

// LoadSnapshot reads all three canonical tables inside one transaction so the
// resolver never sees a half-applied structural change.
func (s *sqlStore) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, s.snapshotTx)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := &models.Snapshot{TakenAt: time.Now().UTC()}

	rows, err := queryRowMaps(ctx, tx, "SELECT * FROM "+s.canonical(namespacesTable)+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load namespaces: %w", err)
	}
	snap.Namespaces = make([]models.Namespace, 0, len(rows))
	for _, row := range rows {
		ns, err := namespaceFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("load namespaces: %w", err)
		}
		snap.Namespaces = append(snap.Namespaces, ns)
	}

	rows, err = queryRowMaps(ctx, tx, "SELECT * FROM "+s.canonical(projectsTable)+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	snap.Projects = make([]models.Project, 0, len(rows))
	for _, row := range rows {
		p, err := projectFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("load projects: %w", err)
		}
		snap.Projects = append(snap.Projects, p)
	}

	rows, err = queryRowMaps(ctx, tx, "SELECT * FROM "+s.canonical(repositoriesTable)+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load project repositories: %w", err)
	}
	snap.Repositories = make([]models.Repository, 0, len(rows))
	for _, row := range rows {
		r, err := repositoryFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("load project repositories: %w", err)
		}
		snap.Repositories = append(snap.Repositories, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, nil
}

func (s *sqlStore) Materialize(ctx context.Context, run *models.ResolutionRun, m *Materialization) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{qualifiedProjectReposTable, qualifiedProjectsTable, qualifiedNamespacesTable} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+s.enhance(table)); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	nsStmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.enhance(qualifiedNamespacesTable)+`
		(namespace_id, parent_id, path, name, level, qualified_path, qualified_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return err
	}
	defer nsStmt.Close()
	for _, ns := range m.Namespaces {
		if _, err := nsStmt.ExecContext(ctx, ns.ID, ns.ParentID, ns.Path, ns.Name, ns.Level, ns.QualifiedPath, ns.QualifiedName); err != nil {
			return fmt.Errorf("insert qualified namespace %d: %w", ns.ID, err)
		}
	}

	projectStmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.enhance(qualifiedProjectsTable)+`
		(project_id, namespace_id, path, name, namespace_level, qualified_namespace_path, qualified_namespace_name,
		 project_level, qualified_project_path, qualified_project_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return err
	}
	defer projectStmt.Close()
	for _, p := range m.Projects {
		if _, err := projectStmt.ExecContext(ctx, p.ID, p.NamespaceID, p.Path, p.Name,
			p.NamespaceLevel, p.QualifiedNamespacePath, p.QualifiedNamespaceName,
			p.ProjectLevel, p.QualifiedProjectPath, p.QualifiedProjectName,
		); err != nil {
			return fmt.Errorf("insert qualified project %d: %w", p.ID, err)
		}
	}

	repoStmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.enhance(qualifiedProjectReposTable)+`
		(position, repository_id, project_id, namespace_id, shard_id, disk_path, qualified_project_path, qualified_project_name,
		 qualified_project_git_dir_path, disk_git_dir_rel_path, clone_ssh, clone_https, git_dir_abs_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
	if err != nil {
		return err
	}
	defer repoStmt.Close()
	for i, r := range m.Repositories {
		if _, err := repoStmt.ExecContext(ctx, i, r.RepositoryID, r.ProjectID, r.NamespaceID, r.ShardID, r.DiskPath,
			r.QualifiedProjectPath, r.QualifiedProjectName, r.QualifiedProjectGitDirPath, r.DiskGitDirRelPath,
			r.CloneSSH, r.CloneHTTPS, r.GitDirAbsPath,
		); err != nil {
			return fmt.Errorf("insert qualified repository row %d: %w", i, err)
		}
	}

	if err := s.insertRun(ctx, tx, run); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *sqlStore) RecordRun(ctx context.Context, run *models.ResolutionRun) error {
	return s.insertRun(ctx, s.db, run)
}

func (s *sqlStore) insertRun(ctx context.Context, db execer, run *models.ResolutionRun) error {
	if !models.IsRunStatus(run.Status) {
		return fmt.Errorf("invalid run status %q", run.Status)
	}
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	_, err := db.ExecContext(ctx, `INSERT INTO `+s.enhance(runsTable)+`
		(run_id, status, started_at, finished_at, namespaces, projects, repositories,
		 unresolved_projects, unresolved_repositories, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, string(run.Status), run.StartedAt.UTC(), finished,
		run.Namespaces, run.Projects, run.Repositories,
		run.UnresolvedProjects, run.UnresolvedRepositories, run.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *sqlStore) ListRuns(ctx context.Context, limit int) ([]models.ResolutionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, status, started_at, finished_at, namespaces, projects, repositories,
		unresolved_projects, unresolved_repositories, error
		FROM `+s.enhance(runsTable)+`
		ORDER BY started_at DESC, run_id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ResolutionRun
	for rows.Next() {
		var (
			run      models.ResolutionRun
			status   string
			finished sql.NullTime
		)
		if err := rows.Scan(&run.ID, &status, &run.StartedAt, &finished,
			&run.Namespaces, &run.Projects, &run.Repositories,
			&run.UnresolvedProjects, &run.UnresolvedRepositories, &run.Error,
		); err != nil {
			return nil, err
		}
		run.Status = models.RunStatus(status)
		run.StartedAt = run.StartedAt.UTC()
		if finished.Valid {
			t := finished.Time.UTC()
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
