// Package export writes published resolution results to a storage backend.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/glenhance/internal/locate"
	"github.com/odvcencio/glenhance/internal/service"
	"github.com/odvcencio/glenhance/internal/storage"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"

	latestName = "latest.json"
	indexName  = "index.json"

	uploadConcurrency = 4
)

var ErrUnknownFormat = errors.New("unknown export format")

type Options struct {
	Prefix   string
	Format   string // json (default) or yaml
	Compress bool
	// Keep bounds the number of exported runs retained. Zero keeps all.
	Keep int
	// HostName and BareReposHome add clone and bare location documents.
	HostName      string
	BareReposHome string
	Logger        *slog.Logger
}

// File describes one exported document.
type File struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Records     int    `json:"records"`
	Bytes       int    `json:"bytes"`
	Compression string `json:"compression,omitempty"`
}

// Manifest is written next to the documents and copied to latest.json.
type Manifest struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	TakenAt     time.Time `json:"taken_at"`
	Format      string    `json:"format"`
	Files       []File    `json:"files"`
}

type Exporter struct {
	backend storage.Backend
	opts    Options
	logger  *slog.Logger
	encoder *zstd.Encoder
	now     func() time.Time
}

func New(backend storage.Backend, opts Options) (*Exporter, error) {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if opts.Format != FormatJSON && opts.Format != FormatYAML {
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, opts.Format)
	}
	if opts.Keep < 0 {
		return nil, fmt.Errorf("keep must not be negative")
	}
	e := &Exporter{
		backend: backend,
		opts:    opts,
		logger:  opts.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if opts.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		e.encoder = enc
	}
	return e, nil
}

type document struct {
	name    string
	records int
	value   any
}

func (e *Exporter) documents(p *service.Published) []document {
	res := p.Result
	docs := []document{
		{name: "namespaces", records: len(res.Namespaces), value: res.Namespaces},
		{name: "projects", records: len(res.Projects), value: res.Projects},
		{name: "repositories", records: len(res.Repositories), value: res.Repositories},
	}
	if e.opts.HostName != "" {
		clones, _ := locate.Clones(e.opts.HostName, res.Repositories, nil)
		docs = append(docs, document{name: "clone_locations", records: len(clones), value: clones})
	}
	if e.opts.BareReposHome != "" {
		bare := locate.Bare(e.opts.BareReposHome, res.Repositories, nil)
		docs = append(docs, document{name: "bare_locations", records: len(bare), value: bare})
	}
	return docs
}

func (e *Exporter) key(parts ...string) string {
	return path.Join(append([]string{e.opts.Prefix}, parts...)...)
}

// Export uploads every document of p in parallel, then the manifest, then
// latest.json. Old runs beyond Keep are pruned last; pruning failures are
// logged and do not fail the export.
func (e *Exporter) Export(ctx context.Context, p *service.Published) (*Manifest, error) {
	if p == nil || p.Result == nil {
		return nil, service.ErrNotReady
	}
	docs := e.documents(p)
	manifest := &Manifest{
		RunID:       p.Run.ID,
		GeneratedAt: e.now(),
		TakenAt:     p.Result.TakenAt,
		Format:      e.opts.Format,
		Files:       make([]File, len(docs)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			data, err := e.encode(doc.value)
			if err != nil {
				return fmt.Errorf("encode %s: %w", doc.name, err)
			}
			file := File{
				Name:    doc.name,
				Path:    e.key(p.Run.ID, doc.name+"."+e.opts.Format),
				Records: doc.records,
			}
			contentType := contentTypeFor(e.opts.Format)
			if e.encoder != nil {
				data = e.encoder.EncodeAll(data, nil)
				file.Path += ".zst"
				file.Compression = "zstd"
				contentType = "application/zstd"
			}
			file.Bytes = len(data)
			if err := e.backend.Write(gctx, file.Path, data, contentType); err != nil {
				return fmt.Errorf("write %s: %w", file.Path, err)
			}
			manifest.Files[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := e.backend.Write(ctx, e.key(p.Run.ID, "manifest.json"), raw, "application/json"); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := e.backend.Write(ctx, e.key(latestName), raw, "application/json"); err != nil {
		return nil, fmt.Errorf("write %s: %w", latestName, err)
	}

	if err := e.prune(ctx, p.Run.ID); err != nil {
		e.logger.Warn("export prune failed", "run_id", p.Run.ID, "error", err)
	}
	e.logger.Info("export complete", "run_id", p.Run.ID, "files", len(manifest.Files), "prefix", e.opts.Prefix)
	return manifest, nil
}

// Hook returns a publish hook that exports each published pass.
func (e *Exporter) Hook() service.PublishHook {
	return func(ctx context.Context, p *service.Published) {
		if _, err := e.Export(ctx, p); err != nil {
			e.logger.Error("export failed", "run_id", p.Run.ID, "error", err)
		}
	}
}

func (e *Exporter) encode(v any) ([]byte, error) {
	switch e.opts.Format {
	case FormatYAML:
		return yaml.Marshal(v)
	default:
		return json.MarshalIndent(v, "", "  ")
	}
}

func contentTypeFor(format string) string {
	if format == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// prune records runID at the head of the run index and deletes every run
// that falls beyond Keep.
func (e *Exporter) prune(ctx context.Context, runID string) error {
	runs, err := e.readIndex(ctx)
	if err != nil {
		return err
	}
	index := []string{runID}
	for _, id := range runs {
		if id != runID {
			index = append(index, id)
		}
	}

	var expired []string
	if e.opts.Keep > 0 && len(index) > e.opts.Keep {
		expired = index[e.opts.Keep:]
		index = index[:e.opts.Keep]
	}
	raw, err := json.Marshal(index)
	if err != nil {
		return err
	}
	if err := e.backend.Write(ctx, e.key(indexName), raw, "application/json"); err != nil {
		return fmt.Errorf("write %s: %w", indexName, err)
	}

	for _, id := range expired {
		objects, err := e.backend.List(ctx, e.key(id)+"/")
		if err != nil {
			return fmt.Errorf("list run %s: %w", id, err)
		}
		for _, obj := range objects {
			if err := e.backend.Delete(ctx, obj); err != nil {
				return fmt.Errorf("delete %s: %w", obj, err)
			}
		}
		e.logger.Debug("pruned export", "run_id", id, "objects", len(objects))
	}
	return nil
}

func (e *Exporter) readIndex(ctx context.Context) ([]string, error) {
	rc, err := e.backend.Read(ctx, e.key(indexName))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var runs []string
	if err := json.NewDecoder(rc).Decode(&runs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", indexName, err)
	}
	return runs, nil
}

// Latest returns the manifest of the most recent export.
func (e *Exporter) Latest(ctx context.Context) (*Manifest, error) {
	rc, err := e.backend.Read(ctx, e.key(latestName))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", latestName, err)
	}
	return &m, nil
}

// ReadFile returns the decompressed contents of an exported document.
func (e *Exporter) ReadFile(ctx context.Context, f File) ([]byte, error) {
	rc, err := e.backend.Read(ctx, f.Path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if f.Compression != "zstd" {
		return data, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
