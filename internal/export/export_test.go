package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/glenhance/internal/models"
	"github.com/odvcencio/glenhance/internal/resolve"
	"github.com/odvcencio/glenhance/internal/service"
	"github.com/odvcencio/glenhance/internal/storage"
)

func ptr[T any](v T) *T { return &v }

func testPublished(t *testing.T, runID string) *service.Published {
	t.Helper()
	res, err := resolve.Resolve(models.Snapshot{
		Namespaces: []models.Namespace{
			{ID: 1, Path: "acme", Name: "Acme"},
			{ID: 2, ParentID: ptr(int64(1)), Path: "core", Name: "Core"},
		},
		Projects: []models.Project{
			{ID: 10, NamespaceID: ptr(int64(2)), Path: "widgets", Name: "Widgets"},
			{ID: 11, NamespaceID: ptr(int64(99)), Path: "lost", Name: "Lost"},
		},
		Repositories: []models.Repository{
			{ID: 100, ProjectID: ptr(int64(10)), DiskPath: "@hashed/ab/cd/xyz"},
			{ID: 101, ProjectID: ptr(int64(11)), DiskPath: "@hashed/00/00/lost"},
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return &service.Published{
		Run:    models.ResolutionRun{ID: runID, Status: models.RunSucceeded},
		Result: res,
	}
}

func newTestExporter(t *testing.T, opts Options) (*Exporter, *storage.LocalBackend) {
	t.Helper()
	backend, err := storage.NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	exp, err := New(backend, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return exp, backend
}

func fileByName(t *testing.T, m *Manifest, name string) File {
	t.Helper()
	for _, f := range m.Files {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("manifest has no %q file: %+v", name, m.Files)
	return File{}
}

func TestExportJSON(t *testing.T) {
	ctx := context.Background()
	exp, _ := newTestExporter(t, Options{Prefix: "glenhance", HostName: "git.example.com", BareReposHome: "/srv/git"})

	manifest, err := exp.Export(ctx, testPublished(t, "run-1"))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(manifest.Files) != 5 {
		t.Fatalf("manifest has %d files, want 5", len(manifest.Files))
	}

	namespaces := fileByName(t, manifest, "namespaces")
	if namespaces.Path != "glenhance/run-1/namespaces.json" || namespaces.Records != 2 {
		t.Fatalf("namespaces file = %+v", namespaces)
	}
	data, err := exp.ReadFile(ctx, namespaces)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []models.QualifiedNamespace
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode namespaces: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d namespaces, want 2", len(decoded))
	}

	clones := fileByName(t, manifest, "clone_locations")
	if clones.Records != 1 {
		t.Fatalf("clone_locations records = %d, want 1 (unresolved repository skipped)", clones.Records)
	}
	data, err = exp.ReadFile(ctx, clones)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "git@git.example.com:acme/core/widgets.git") {
		t.Fatalf("clone_locations missing ssh url: %s", data)
	}
	if bare := fileByName(t, manifest, "bare_locations"); bare.Records != 2 {
		t.Fatalf("bare_locations records = %d, want 2", bare.Records)
	}

	latest, err := exp.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.RunID != "run-1" || len(latest.Files) != 5 {
		t.Fatalf("latest manifest = %+v", latest)
	}
}

func TestExportSkipsLocatorsWithoutParameters(t *testing.T) {
	exp, _ := newTestExporter(t, Options{})
	manifest, err := exp.Export(context.Background(), testPublished(t, "run-1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest.Files) != 3 {
		t.Fatalf("manifest has %d files, want namespaces, projects and repositories only", len(manifest.Files))
	}
	if got := manifest.Files[0].Path; got != "run-1/namespaces.json" {
		t.Fatalf("path without prefix = %q", got)
	}
}

func TestExportYAMLCompressed(t *testing.T) {
	ctx := context.Background()
	exp, backend := newTestExporter(t, Options{Prefix: "out", Format: FormatYAML, Compress: true})

	manifest, err := exp.Export(ctx, testPublished(t, "run-z"))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	projects := fileByName(t, manifest, "projects")
	if projects.Path != "out/run-z/projects.yaml.zst" || projects.Compression != "zstd" {
		t.Fatalf("projects file = %+v", projects)
	}

	rc, err := backend.Read(ctx, projects.Path)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(rc)
	rc.Close()
	if len(raw) < 4 || string(raw[:4]) != "\x28\xb5\x2f\xfd" {
		t.Fatalf("stored object does not start with the zstd magic number: % x", raw[:min(4, len(raw))])
	}

	data, err := exp.ReadFile(ctx, projects)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded []map[string]any
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d projects, want 2", len(decoded))
	}
	if decoded[0]["qualified_project_path"] != "acme/core/widgets" {
		t.Fatalf("first project = %v", decoded[0])
	}
	if decoded[1]["qualified_project_path"] != nil {
		t.Fatalf("unresolved project path = %v, want null", decoded[1]["qualified_project_path"])
	}
}

func TestExportPrunesOldRuns(t *testing.T) {
	ctx := context.Background()
	exp, backend := newTestExporter(t, Options{Prefix: "p", Keep: 2})

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if _, err := exp.Export(ctx, testPublished(t, id)); err != nil {
			t.Fatalf("Export(%s): %v", id, err)
		}
	}

	if objs, err := backend.List(ctx, "p/run-1/"); err != nil || len(objs) != 0 {
		t.Fatalf("run-1 objects = %v, %v, want pruned", objs, err)
	}
	for _, id := range []string{"run-2", "run-3"} {
		objs, err := backend.List(ctx, "p/"+id+"/")
		if err != nil || len(objs) != 4 {
			t.Fatalf("%s objects = %v, %v, want 3 documents and a manifest", id, objs, err)
		}
	}
	runs, err := exp.readIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0] != "run-3" || runs[1] != "run-2" {
		t.Fatalf("index = %v, want [run-3 run-2]", runs)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	backend, err := storage.NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(backend, Options{Format: "xml"}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("New(xml) error = %v, want %v", err, ErrUnknownFormat)
	}
}

func TestExportRequiresPublishedResult(t *testing.T) {
	exp, _ := newTestExporter(t, Options{})
	if _, err := exp.Export(context.Background(), nil); !errors.Is(err, service.ErrNotReady) {
		t.Fatalf("Export(nil) error = %v, want %v", err, service.ErrNotReady)
	}
}

func TestHookExportsPublishedPass(t *testing.T) {
	ctx := context.Background()
	exp, _ := newTestExporter(t, Options{Prefix: "hook"})
	exp.Hook()(ctx, testPublished(t, "run-h"))

	latest, err := exp.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.RunID != "run-h" {
		t.Fatalf("latest run = %q, want run-h", latest.RunID)
	}
}
