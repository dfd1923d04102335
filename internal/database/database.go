package database

import (
	"context"
	"errors"

	"github.com/odvcencio/glenhance/internal/models"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrUnknownDriver = errors.New("unknown database driver")
)

// Source supplies one consistent snapshot of the canonical namespaces,
// projects and project repositories.
type Source interface {
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// Sink persists resolution output and the run log.
type Sink interface {
	// Materialize replaces every materialized row and records run in a single
	// transaction.
	Materialize(ctx context.Context, run *models.ResolutionRun, m *Materialization) error
	RecordRun(ctx context.Context, run *models.ResolutionRun) error
	ListRuns(ctx context.Context, limit int) ([]models.ResolutionRun, error)
}

// DB is a SQL backend that is both a Source and a Sink. Implemented by SQLite
// and PostgreSQL backends.
type DB interface {
	Source
	Sink
	Close() error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Materialization is the full output of one resolution pass.
type Materialization struct {
	Namespaces   []models.QualifiedNamespace
	Projects     []models.QualifiedProject
	Repositories []MaterializedRepository
}

// MaterializedRepository is a qualified repository plus the locators that
// could be formed for it. Locators are nil when the corresponding host or
// home directory is not configured or the repository is unresolved.
type MaterializedRepository struct {
	models.QualifiedRepository
	CloneSSH      *string
	CloneHTTPS    *string
	GitDirAbsPath *string
}

// Schemas names the schema holding the canonical GitLab tables and the one
// receiving materialized output.
type Schemas struct {
	Canonical string
	Enhance   string
}
