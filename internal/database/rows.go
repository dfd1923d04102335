package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/odvcencio/glenhance/internal/models"
)

type rowMap map[string]any

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryRowMaps scans every row into a column-name keyed map so that columns
// this package does not know about survive as opaque values.
func queryRowMaps(ctx context.Context, q querier, query string, args ...any) ([]rowMap, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []rowMap
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(rowMap, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[strings.ToLower(col)] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r rowMap) requiredInt(col string) (int64, error) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w %q", ErrMissingColumn, col)
	}
	return toInt64(col, v)
}

func (r rowMap) optionalInt(col string) (*int64, error) {
	v, ok := r[col]
	if !ok || v == nil {
		return nil, nil
	}
	n, err := toInt64(col, v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r rowMap) text(col string) (string, error) {
	v, ok := r[col]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrMissingColumn, col)
	}
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	default:
		return fmt.Sprint(s), nil
	}
}

// extra returns every column not listed in known, or nil if none remain.
func (r rowMap) extra(known ...string) map[string]any {
	var out map[string]any
	for col, v := range r {
		if slices.Contains(known, col) {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[col] = v
	}
	return out
}

func toInt64(col string, v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("column %q: %w", col, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("column %q: unsupported integer type %T", col, v)
	}
}

func namespaceFromRow(r rowMap) (models.Namespace, error) {
	var (
		ns  models.Namespace
		err error
	)
	if ns.ID, err = r.requiredInt("id"); err != nil {
		return ns, err
	}
	if ns.ParentID, err = r.optionalInt("parent_id"); err != nil {
		return ns, err
	}
	if ns.Path, err = r.text("path"); err != nil {
		return ns, err
	}
	if ns.Name, err = r.text("name"); err != nil {
		return ns, err
	}
	ns.Extra = r.extra("id", "parent_id", "path", "name")
	return ns, nil
}

func projectFromRow(r rowMap) (models.Project, error) {
	var (
		p   models.Project
		err error
	)
	if p.ID, err = r.requiredInt("id"); err != nil {
		return p, err
	}
	if p.NamespaceID, err = r.optionalInt("namespace_id"); err != nil {
		return p, err
	}
	if p.Path, err = r.text("path"); err != nil {
		return p, err
	}
	if p.Name, err = r.text("name"); err != nil {
		return p, err
	}
	p.Extra = r.extra("id", "namespace_id", "path", "name")
	return p, nil
}

func repositoryFromRow(r rowMap) (models.Repository, error) {
	var (
		repo models.Repository
		err  error
	)
	if repo.ID, err = r.requiredInt("id"); err != nil {
		return repo, err
	}
	if repo.ProjectID, err = r.optionalInt("project_id"); err != nil {
		return repo, err
	}
	if repo.ShardID, err = r.optionalInt("shard_id"); err != nil {
		return repo, err
	}
	if repo.DiskPath, err = r.text("disk_path"); err != nil {
		return repo, err
	}
	repo.Extra = r.extra("id", "project_id", "shard_id", "disk_path")
	return repo, nil
}
