// Package service runs resolution passes against a source and publishes the
// latest successful result.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/odvcencio/glenhance/internal/database"
	"github.com/odvcencio/glenhance/internal/locate"
	"github.com/odvcencio/glenhance/internal/models"
	"github.com/odvcencio/glenhance/internal/resolve"
)

const (
	tracerName     = "github.com/odvcencio/glenhance/internal/service"
	maxMemoryRuns  = 100
	refreshFlightK = "refresh"
)

var (
	ErrNotReady = errors.New("no resolution result has been published yet")
	ErrClosed   = errors.New("resolver is closed")
)

// Published is an immutable, successfully resolved pass.
type Published struct {
	Run    models.ResolutionRun
	Result *resolve.Result
}

// PublishHook is called after a pass is published. Hooks run on the
// refreshing goroutine and should not block for long.
type PublishHook func(ctx context.Context, p *Published)

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSink materializes every successful pass and records every run.
func WithSink(sink database.Sink) Option {
	return func(r *Resolver) { r.sink = sink }
}

// WithLocate sets the formatting parameters used for materialized locators.
func WithLocate(hostName, bareReposHome string) Option {
	return func(r *Resolver) {
		r.hostName = hostName
		r.bareReposHome = bareReposHome
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Resolver) { r.metrics = newResolverMetrics(reg) }
}

func WithPublishHook(hook PublishHook) Option {
	return func(r *Resolver) {
		if hook != nil {
			r.hooks = append(r.hooks, hook)
		}
	}
}

// Resolver loads snapshots from a Source, resolves them and publishes the
// result. At most one pass is in flight; concurrent Refresh callers share it.
type Resolver struct {
	source        database.Source
	sink          database.Sink
	hostName      string
	bareReposHome string
	timeout       time.Duration
	logger        *slog.Logger
	metrics       *resolverMetrics
	hooks         []PublishHook
	now           func() time.Time

	flight  singleflight.Group
	current atomic.Pointer[Published]

	mu     sync.Mutex
	runs   []models.ResolutionRun // newest first, used when there is no sink
	closed bool
	passes sync.WaitGroup
}

func NewResolver(source database.Source, opts ...Option) *Resolver {
	r := &Resolver{
		source: source,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = newResolverMetrics(nil)
	}
	return r
}

// Current returns the last published pass, or nil before the first success.
func (r *Resolver) Current() *Published {
	return r.current.Load()
}

func (r *Resolver) Ready() bool {
	return r.current.Load() != nil
}

// Refresh runs a resolution pass, or joins the one already running. The pass
// itself is detached from ctx cancellation and bounded by the configured
// timeout instead; ctx only bounds how long this caller waits.
func (r *Resolver) Refresh(ctx context.Context) (*Published, error) {
	ch := r.flight.DoChan(refreshFlightK, func() (any, error) {
		if !r.beginPass() {
			return nil, ErrClosed
		}
		defer r.passes.Done()
		passCtx := context.WithoutCancel(ctx)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			passCtx, cancel = context.WithTimeout(passCtx, r.timeout)
			defer cancel()
		}
		return r.refresh(passCtx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Published), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Resolver) beginPass() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.passes.Add(1)
	return true
}

// Close rejects new passes and waits for the one in flight, if any, to
// finish. Call it before closing the sink.
func (r *Resolver) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.passes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Resolver) refresh(ctx context.Context) (*Published, error) {
	run := models.ResolutionRun{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "resolver.refresh")
	span.SetAttributes(attribute.String("glenhance.run_id", run.ID))
	defer span.End()

	start := time.Now()
	published, err := r.runPass(ctx, &run)
	finished := r.now()
	run.FinishedAt = &finished

	if err != nil {
		run.Status = models.RunFailed
		run.Error = err.Error()
		r.metrics.passesTotal.WithLabelValues(string(models.RunFailed)).Inc()
		r.metrics.passDuration.WithLabelValues(string(models.RunFailed)).Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		r.recordFailed(ctx, run)
		r.logger.Error("resolution failed", "run_id", run.ID, "error", err)
		return nil, err
	}

	r.current.Store(published)
	r.remember(published.Run)

	res := published.Result
	r.metrics.passesTotal.WithLabelValues(string(models.RunSucceeded)).Inc()
	r.metrics.passDuration.WithLabelValues(string(models.RunSucceeded)).Observe(time.Since(start).Seconds())
	r.metrics.entities.WithLabelValues("namespaces").Set(float64(len(res.Namespaces)))
	r.metrics.entities.WithLabelValues("projects").Set(float64(len(res.Projects)))
	r.metrics.entities.WithLabelValues("repositories").Set(float64(len(res.Repositories)))
	r.metrics.unresolved.WithLabelValues("projects").Set(float64(published.Run.UnresolvedProjects))
	r.metrics.unresolved.WithLabelValues("repositories").Set(float64(published.Run.UnresolvedRepositories))
	r.metrics.lastSuccessTS.Set(float64(finished.Unix()))
	span.SetAttributes(
		attribute.Int("glenhance.namespaces", len(res.Namespaces)),
		attribute.Int("glenhance.projects", len(res.Projects)),
		attribute.Int("glenhance.repositories", len(res.Repositories)),
	)
	span.SetStatus(codes.Ok, "")

	r.logger.Info("resolution complete",
		"run_id", published.Run.ID,
		"namespaces", published.Run.Namespaces,
		"projects", published.Run.Projects,
		"repositories", published.Run.Repositories,
		"unresolved_projects", published.Run.UnresolvedProjects,
		"unresolved_repositories", published.Run.UnresolvedRepositories,
		"orphan_namespaces", len(res.Tree.Orphans()),
	)

	for _, hook := range r.hooks {
		hook(ctx, published)
	}
	return published, nil
}

// runPass loads, resolves and materializes. run is completed in place on
// success.
func (r *Resolver) runPass(ctx context.Context, run *models.ResolutionRun) (*Published, error) {
	snap, err := r.source.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	res, err := resolve.Resolve(*snap)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	run.Status = models.RunSucceeded
	run.Namespaces = len(res.Namespaces)
	run.Projects = len(res.Projects)
	run.Repositories = len(res.Repositories)
	run.UnresolvedProjects = res.UnresolvedProjects()
	run.UnresolvedRepositories = res.UnresolvedRepositories()
	finished := r.now()
	run.FinishedAt = &finished

	if r.sink != nil {
		if err := r.sink.Materialize(ctx, run, r.materialization(res)); err != nil {
			return nil, fmt.Errorf("materialize: %w", err)
		}
	}
	return &Published{Run: *run, Result: res}, nil
}

func (r *Resolver) materialization(res *resolve.Result) *database.Materialization {
	repos := make([]database.MaterializedRepository, 0, len(res.Repositories))
	for _, repo := range res.Repositories {
		m := database.MaterializedRepository{QualifiedRepository: repo}
		if r.hostName != "" {
			if ssh, err := locate.CloneSSH(r.hostName, repo); err == nil {
				https, _ := locate.CloneHTTPS(r.hostName, repo)
				m.CloneSSH = &ssh
				m.CloneHTTPS = &https
			}
		}
		if r.bareReposHome != "" {
			if abs, err := locate.BareDiskPath(r.bareReposHome, repo); err == nil {
				m.GitDirAbsPath = &abs
			}
		}
		repos = append(repos, m)
	}
	return &database.Materialization{
		Namespaces:   res.Namespaces,
		Projects:     res.Projects,
		Repositories: repos,
	}
}

func (r *Resolver) recordFailed(ctx context.Context, run models.ResolutionRun) {
	r.remember(run)
	if r.sink == nil {
		return
	}
	if err := r.sink.RecordRun(context.WithoutCancel(ctx), &run); err != nil {
		r.logger.Warn("record failed run", "run_id", run.ID, "error", err)
	}
}

func (r *Resolver) remember(run models.ResolutionRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append([]models.ResolutionRun{run}, r.runs...)
	if len(r.runs) > maxMemoryRuns {
		r.runs = r.runs[:maxMemoryRuns]
	}
}

// Runs lists recent runs, newest first. Runs come from the sink when one is
// configured and from process memory otherwise.
func (r *Resolver) Runs(ctx context.Context, limit int) ([]models.ResolutionRun, error) {
	if r.sink != nil {
		return r.sink.ListRuns(ctx, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > len(r.runs) {
		limit = len(r.runs)
	}
	out := make([]models.ResolutionRun, limit)
	copy(out, r.runs[:limit])
	return out, nil
}
