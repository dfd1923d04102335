package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/odvcencio/glenhance/internal/models"

	_ "modernc.org/sqlite"
)

// SQLiteDB keeps canonical and materialized tables in one file. It is meant
// for local runs against an exported or seeded copy of the canonical data.
type SQLiteDB struct {
	sqlStore
}

func OpenSQLite(dsn string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Enable WAL mode and foreign keys
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}
	return &SQLiteDB{sqlStore: sqlStore{db: db}}, nil
}

func (s *SQLiteDB) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteCanonicalSchema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, renderEnhanceSchema(sqliteEnhanceSchema, ""))
	return err
}

const sqliteCanonicalSchema = `
CREATE TABLE IF NOT EXISTS namespaces (
	id INTEGER PRIMARY KEY,
	parent_id INTEGER,
	path TEXT NOT NULL,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY,
	namespace_id INTEGER,
	path TEXT NOT NULL,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS project_repositories (
	id INTEGER PRIMARY KEY,
	project_id INTEGER,
	shard_id INTEGER,
	disk_path TEXT NOT NULL
);
`

const sqliteEnhanceSchema = `
CREATE TABLE IF NOT EXISTS {enhance}qualified_namespaces (
	namespace_id INTEGER PRIMARY KEY,
	parent_id INTEGER,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	level INTEGER NOT NULL,
	qualified_path TEXT NOT NULL,
	qualified_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS {enhance}qualified_projects (
	project_id INTEGER PRIMARY KEY,
	namespace_id INTEGER,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	namespace_level INTEGER,
	qualified_namespace_path TEXT,
	qualified_namespace_name TEXT,
	project_level INTEGER,
	qualified_project_path TEXT,
	qualified_project_name TEXT
);

CREATE TABLE IF NOT EXISTS {enhance}qualified_project_repos (
	position INTEGER PRIMARY KEY,
	repository_id INTEGER,
	project_id INTEGER,
	namespace_id INTEGER,
	shard_id INTEGER,
	disk_path TEXT,
	qualified_project_path TEXT,
	qualified_project_name TEXT,
	qualified_project_git_dir_path TEXT,
	disk_git_dir_rel_path TEXT,
	clone_ssh TEXT,
	clone_https TEXT,
	git_dir_abs_path TEXT
);

CREATE INDEX IF NOT EXISTS idx_qualified_project_repos_namespace ON qualified_project_repos(namespace_id);

CREATE TABLE IF NOT EXISTS {enhance}gitlab_qualified_project_repos_state (
	run_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	namespaces INTEGER NOT NULL DEFAULT 0,
	projects INTEGER NOT NULL DEFAULT 0,
	repositories INTEGER NOT NULL DEFAULT 0,
	unresolved_projects INTEGER NOT NULL DEFAULT 0,
	unresolved_repositories INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
`

// SeedSnapshot replaces the canonical tables with snap. Extra attributes are
// not written.
func (s *SQLiteDB) SeedSnapshot(ctx context.Context, snap *models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{repositoriesTable, projectsTable, namespacesTable} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoteIdent(table)); err != nil {
			return err
		}
	}
	for _, ns := range snap.Namespaces {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO namespaces (id, parent_id, path, name) VALUES ($1, $2, $3, $4)`,
			ns.ID, ns.ParentID, ns.Path, ns.Name,
		); err != nil {
			return fmt.Errorf("seed namespace %d: %w", ns.ID, err)
		}
	}
	for _, p := range snap.Projects {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, namespace_id, path, name) VALUES ($1, $2, $3, $4)`,
			p.ID, p.NamespaceID, p.Path, p.Name,
		); err != nil {
			return fmt.Errorf("seed project %d: %w", p.ID, err)
		}
	}
	for _, r := range snap.Repositories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_repositories (id, project_id, shard_id, disk_path) VALUES ($1, $2, $3, $4)`,
			r.ID, r.ProjectID, r.ShardID, r.DiskPath,
		); err != nil {
			return fmt.Errorf("seed repository %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
