package database

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/odvcencio/glenhance/internal/models"
	"gopkg.in/yaml.v3"
)

// FileSource reads a snapshot from a YAML (or JSON) document with top-level
// namespaces, projects and repositories lists. The file is re-read on every
// LoadSnapshot.
type FileSource struct {
	path string
}

func OpenFile(path string) (*FileSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	return &FileSource{path: path}, nil
}

func (f *FileSource) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var snap models.Snapshot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("parse snapshot file %s: %w", f.path, err)
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	return &snap, nil
}
