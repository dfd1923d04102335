package main

import (
	"context"
	"fmt"

	"github.com/odvcencio/glenhance/internal/config"
	"github.com/odvcencio/glenhance/internal/database"
	"github.com/odvcencio/glenhance/internal/export"
	"github.com/odvcencio/glenhance/internal/service"
	"github.com/odvcencio/glenhance/internal/storage"
)

// openSource opens the configured snapshot source. db is nil for the file
// driver, which can only be read.
func openSource(cfg *config.Config) (src database.Source, db database.DB, err error) {
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, nil, err
	}
	switch cfg.Database.Driver {
	case "file":
		f, err := database.OpenFile(cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		return f, nil, nil
	case "sqlite":
		s, err := database.OpenSQLite(cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		p, err := database.OpenPostgres(cfg.Database.DSN, database.Schemas{
			Canonical: cfg.Database.CanonicalSchema,
			Enhance:   cfg.Database.EnhanceSchema,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", database.ErrUnknownDriver, cfg.Database.Driver)
	}
}

func closeDB(db database.DB) {
	if db != nil {
		db.Close()
	}
}

func openExportBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if err := cfg.ValidateExport(); err != nil {
		return nil, err
	}
	switch cfg.Export.Backend {
	case "s3":
		return storage.NewS3Backend(ctx, storage.S3Config{
			Endpoint:  cfg.Export.S3.Endpoint,
			Bucket:    cfg.Export.S3.Bucket,
			Region:    cfg.Export.S3.Region,
			AccessKey: cfg.Export.S3.AccessKey,
			SecretKey: cfg.Export.S3.SecretKey,
			UseSSL:    cfg.Export.S3.UseSSL,
		})
	default:
		return storage.NewLocalBackend(cfg.Export.Path)
	}
}

func (a *app) newExporter(ctx context.Context) (*export.Exporter, error) {
	backend, err := openExportBackend(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("open export backend: %w", err)
	}
	return export.New(backend, export.Options{
		Prefix:        a.cfg.Export.Prefix,
		Format:        a.cfg.Export.Format,
		Compress:      a.cfg.Export.Compress,
		Keep:          a.cfg.Export.Keep,
		HostName:      a.cfg.Locate.HostName,
		BareReposHome: a.cfg.Locate.BareReposHome,
		Logger:        a.logger,
	})
}

func (a *app) newResolver(src database.Source, opts ...service.Option) (*service.Resolver, error) {
	timeout, err := a.cfg.RefreshTimeout()
	if err != nil {
		return nil, err
	}
	base := []service.Option{
		service.WithLogger(a.logger),
		service.WithLocate(a.cfg.Locate.HostName, a.cfg.Locate.BareReposHome),
		service.WithTimeout(timeout),
	}
	return service.NewResolver(src, append(base, opts...)...), nil
}

// resolveOnce runs a single pass in memory. Nothing is materialized.
func (a *app) resolveOnce(ctx context.Context) (*service.Published, error) {
	src, db, err := openSource(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer closeDB(db)

	resolver, err := a.newResolver(src)
	if err != nil {
		return nil, err
	}
	defer resolver.Close(context.Background())
	return resolver.Refresh(ctx)
}
