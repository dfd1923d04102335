package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresDB reads the canonical GitLab schema and materializes resolution
// output into the enhance schema of the same database.
type PostgresDB struct {
	sqlStore
}

func OpenPostgres(dsn string, schemas Schemas) (*PostgresDB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return newPostgresDB(db, schemas, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}), nil
}

func newPostgresDB(db *sql.DB, schemas Schemas, snapshotTx *sql.TxOptions) *PostgresDB {
	return &PostgresDB{sqlStore: sqlStore{db: db, schemas: schemas, snapshotTx: snapshotTx}}
}

// Migrate creates the enhance schema and its tables. The canonical schema is
// owned by GitLab and never touched.
func (p *PostgresDB) Migrate(ctx context.Context) error {
	if p.schemas.Enhance != "" {
		if _, err := p.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(p.schemas.Enhance)); err != nil {
			return err
		}
	}
	_, err := p.db.ExecContext(ctx, renderEnhanceSchema(pgEnhanceSchema, p.schemas.Enhance))
	return err
}

func renderEnhanceSchema(ddl, schema string) string {
	prefix := ""
	if schema != "" {
		prefix = quoteIdent(schema) + "."
	}
	return strings.ReplaceAll(ddl, "{enhance}", prefix)
}

const pgEnhanceSchema = `
CREATE TABLE IF NOT EXISTS {enhance}qualified_namespaces (
	namespace_id BIGINT PRIMARY KEY,
	parent_id BIGINT,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	level INTEGER NOT NULL,
	qualified_path TEXT NOT NULL,
	qualified_name TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_qualified_namespaces_parent ON {enhance}qualified_namespaces(parent_id);

CREATE TABLE IF NOT EXISTS {enhance}qualified_projects (
	project_id BIGINT PRIMARY KEY,
	namespace_id BIGINT,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	namespace_level INTEGER,
	qualified_namespace_path TEXT,
	qualified_namespace_name TEXT,
	project_level INTEGER,
	qualified_project_path TEXT,
	qualified_project_name TEXT
);

CREATE INDEX IF NOT EXISTS idx_qualified_projects_namespace ON {enhance}qualified_projects(namespace_id);

CREATE TABLE IF NOT EXISTS {enhance}qualified_project_repos (
	position BIGINT PRIMARY KEY,
	repository_id BIGINT,
	project_id BIGINT,
	namespace_id BIGINT,
	shard_id BIGINT,
	disk_path TEXT,
	qualified_project_path TEXT,
	qualified_project_name TEXT,
	qualified_project_git_dir_path TEXT,
	disk_git_dir_rel_path TEXT,
	clone_ssh TEXT,
	clone_https TEXT,
	git_dir_abs_path TEXT
);

CREATE INDEX IF NOT EXISTS idx_qualified_project_repos_namespace ON {enhance}qualified_project_repos(namespace_id);

CREATE TABLE IF NOT EXISTS {enhance}gitlab_qualified_project_repos_state (
	run_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	namespaces INTEGER NOT NULL DEFAULT 0,
	projects INTEGER NOT NULL DEFAULT 0,
	repositories INTEGER NOT NULL DEFAULT 0,
	unresolved_projects INTEGER NOT NULL DEFAULT 0,
	unresolved_repositories INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_qualified_project_repos_state_started ON {enhance}gitlab_qualified_project_repos_state(started_at);
`
