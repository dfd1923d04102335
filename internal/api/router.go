// Package api serves the published resolution over HTTP.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odvcencio/glenhance/internal/auth"
	"github.com/odvcencio/glenhance/internal/models"
	"github.com/odvcencio/glenhance/internal/service"
)

// Resolver is the part of service.Resolver the API depends on.
type Resolver interface {
	Current() *service.Published
	Refresh(ctx context.Context) (*service.Published, error)
	Runs(ctx context.Context, limit int) ([]models.ResolutionRun, error)
}

type dbStatsProvider interface {
	DBStats() sql.DBStats
}

type ServerOptions struct {
	Logger *slog.Logger
	// Registerer and Gatherer back /metrics. Both default to the prometheus
	// default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// HostName and BareReposHome are used when a locator request omits host
	// or home.
	HostName      string
	BareReposHome string
	// DB, when it exposes DBStats, adds connection pool stats to /healthz.
	DB any
}

type Server struct {
	resolver Resolver
	authSvc  *auth.Service
	logger   *slog.Logger
	opts     ServerOptions
	metrics  *httpMetrics
	mux      *http.ServeMux
	handler  http.Handler
}

type middlewareFunc func(http.Handler) http.Handler

func NewServer(resolver Resolver, authSvc *auth.Service, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		resolver: resolver,
		authSvc:  authSvc,
		logger:   opts.Logger,
		opts:     opts,
		metrics:  newHTTPMetrics(opts.Registerer),
		mux:      http.NewServeMux(),
	}
	s.routes()
	s.handler = chainMiddleware(s.mux,
		requestTracingMiddleware(s.routeLabel),
		func(next http.Handler) http.Handler { return requestMetricsMiddleware(s.metrics, s.routeLabel, next) },
		requestLoggingMiddleware(s.logger),
		requestBodyLimitMiddleware,
		auth.Middleware(s.authSvc),
	)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// chainMiddleware wraps h so the first middleware is outermost.
func chainMiddleware(h http.Handler, middlewares ...middlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.Handle("GET /metrics", metricsHandler(s.opts.Gatherer))

	// Auth
	s.mux.HandleFunc("POST /api/v1/token", s.handleToken)

	// Resolution
	s.mux.HandleFunc("GET /api/v1/namespaces", s.handleListNamespaces)
	s.mux.HandleFunc("GET /api/v1/namespaces/{id}", s.handleGetNamespace)
	s.mux.HandleFunc("GET /api/v1/namespaces/{id}/subtree", s.handleNamespaceSubtree)
	s.mux.HandleFunc("GET /api/v1/projects", s.handleListProjects)
	s.mux.HandleFunc("GET /api/v1/projects/{id}", s.handleGetProject)
	s.mux.HandleFunc("GET /api/v1/repositories", s.handleListRepositories)
	s.mux.HandleFunc("GET /api/v1/repositories/clone", s.handleCloneLocations)
	s.mux.HandleFunc("GET /api/v1/repositories/bare", s.handleBareLocations)

	// Runs
	s.mux.HandleFunc("GET /api/v1/runs", s.handleListRuns)
	s.mux.Handle("POST /api/v1/refresh", auth.RequireAdmin(http.HandlerFunc(s.handleRefresh)))
}

// published writes 503 and returns nil until the first pass is published.
func (s *Server) published(w http.ResponseWriter, r *http.Request) *service.Published {
	p := s.resolver.Current()
	if p == nil {
		jsonError(w, service.ErrNotReady.Error(), http.StatusServiceUnavailable)
		return nil
	}
	annotateRequest(r, attrRunID.String(p.Run.ID))
	return p
}
