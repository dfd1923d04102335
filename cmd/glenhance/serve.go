package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/odvcencio/glenhance/internal/api"
	"github.com/odvcencio/glenhance/internal/auth"
	"github.com/odvcencio/glenhance/internal/jobs"
	"github.com/odvcencio/glenhance/internal/service"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh on a schedule and serve the latest result over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	traceShutdown, err := initTracing(ctx)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(shutdownCtx); err != nil {
			a.logger.Error("shutdown tracing", "error", err)
		}
	}()

	src, db, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDB(db)

	opts := []service.Option{service.WithRegisterer(prometheus.DefaultRegisterer)}
	if db != nil {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		opts = append(opts, service.WithSink(db))
	}
	if cfg.Export.OnPublish {
		exp, err := a.newExporter(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, service.WithPublishHook(exp.Hook()))
	}
	resolver, err := a.newResolver(src, opts...)
	if err != nil {
		return err
	}

	ttl, err := cfg.TokenTTL()
	if err != nil {
		return err
	}
	authSvc := auth.NewService(cfg.Auth.JWTSecret, ttl)
	if cfg.Auth.AdminUser != "" {
		authSvc.WithAdmin(cfg.Auth.AdminUser, cfg.Auth.AdminPasswordHash)
	}

	server := api.NewServer(resolver, authSvc, api.ServerOptions{
		Logger:        a.logger,
		HostName:      cfg.Locate.HostName,
		BareReposHome: cfg.Locate.BareReposHome,
		DB:            db,
	})

	scheduler, err := jobs.NewScheduler(func(ctx context.Context) error {
		_, err := resolver.Refresh(ctx)
		return err
	}, jobs.SchedulerOptions{
		Schedule: cfg.Refresh.Schedule,
		OnStart:  cfg.Refresh.OnStart,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "addr", cfg.Addr(), "schedule", cfg.Refresh.Schedule)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown server", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Error("stop scheduler", "error", err)
	}
	// The deferred closeDB must not run under an in-flight pass.
	if err := resolver.Close(shutdownCtx); err != nil {
		a.logger.Error("wait for resolution pass", "error", err)
	}
	return serveErr
}
