package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/glenhance/internal/locate"
	"github.com/odvcencio/glenhance/internal/models"
	"github.com/odvcencio/glenhance/internal/resolve"
	"github.com/odvcencio/glenhance/internal/service"
	"github.com/odvcencio/glenhance/internal/sqlgen"
)

// optionalID returns nil when the flag was not set, so that id 0 stays a
// valid namespace.
func optionalID(cmd *cobra.Command, name string, v int64) *int64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

// scopeFor validates root against res and returns the matching subtree.
func scopeFor(res *resolve.Result, root *int64) (resolve.Scope, error) {
	if root != nil && !res.Tree.Has(*root) {
		return nil, fmt.Errorf("namespace %d not found", *root)
	}
	return res.Scope(root), nil
}

func newNamespacesCmd(a *app) *cobra.Command {
	var (
		root int64
		tree bool
	)
	cmd := &cobra.Command{
		Use:   "namespaces",
		Short: "List qualified namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveOnce(cmd.Context())
			if err != nil {
				return err
			}
			rootID := optionalID(cmd, "root", root)
			if tree {
				return writeNamespaceTree(cmd.OutOrStdout(), p.Result, rootID)
			}
			if rootID == nil {
				return a.write(cmd.OutOrStdout(), p.Result.Namespaces)
			}
			if !p.Result.Tree.Has(*rootID) {
				return fmt.Errorf("namespace %d not found", *rootID)
			}
			return a.write(cmd.OutOrStdout(), p.Result.NamespacesIn(p.Result.Subtree(*rootID)))
		},
	}
	cmd.Flags().Int64Var(&root, "root", 0, "only the subtree rooted at this namespace id")
	cmd.Flags().BoolVar(&tree, "tree", false, "render the hierarchy as a tree")
	return cmd
}

func newProjectsCmd(a *app) *cobra.Command {
	var (
		namespace  int64
		unresolved bool
	)
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects with namespace-qualified paths and names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveOnce(cmd.Context())
			if err != nil {
				return err
			}
			scope, err := scopeFor(p.Result, optionalID(cmd, "namespace", namespace))
			if err != nil {
				return err
			}
			out := []models.QualifiedProject{}
			for _, proj := range p.Result.Projects {
				if unresolved && proj.Resolved() {
					continue
				}
				if scope != nil && (proj.NamespaceID == nil || !scope.Contains(*proj.NamespaceID)) {
					continue
				}
				out = append(out, proj)
			}
			return a.write(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().Int64Var(&namespace, "namespace", 0, "only projects under this namespace subtree")
	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "only projects whose namespace could not be resolved")
	return cmd
}

func newCloneURLsCmd(a *app) *cobra.Command {
	var (
		host      string
		namespace int64
	)
	cmd := &cobra.Command{
		Use:   "clone-urls",
		Short: "Print SSH and HTTPS clone URLs for resolved repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" {
				host = a.cfg.Locate.HostName
			}
			if host == "" {
				return fmt.Errorf("--host or locate.host_name is required")
			}
			p, err := a.resolveOnce(cmd.Context())
			if err != nil {
				return err
			}
			scope, err := scopeFor(p.Result, optionalID(cmd, "namespace", namespace))
			if err != nil {
				return err
			}
			clones, skipped := locate.Clones(host, p.Result.Repositories, scope)
			if len(skipped) > 0 {
				a.logger.Warn("skipped unresolved repositories", "count", len(skipped))
			}
			return a.write(cmd.OutOrStdout(), clones)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "GitLab host name (default locate.host_name)")
	cmd.Flags().Int64Var(&namespace, "namespace", 0, "only repositories under this namespace subtree")
	return cmd
}

func newBarePathsCmd(a *app) *cobra.Command {
	var (
		home      string
		namespace int64
	)
	cmd := &cobra.Command{
		Use:   "bare-paths",
		Short: "Print absolute on-disk paths of bare repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				home = a.cfg.Locate.BareReposHome
			}
			if home == "" {
				return fmt.Errorf("--home or locate.bare_repos_home is required")
			}
			p, err := a.resolveOnce(cmd.Context())
			if err != nil {
				return err
			}
			scope, err := scopeFor(p.Result, optionalID(cmd, "namespace", namespace))
			if err != nil {
				return err
			}
			return a.write(cmd.OutOrStdout(), locate.Bare(home, p.Result.Repositories, scope))
		},
	}
	cmd.Flags().StringVar(&home, "home", "", "bare repository root on disk (default locate.bare_repos_home)")
	cmd.Flags().Int64Var(&namespace, "namespace", 0, "only repositories under this namespace subtree")
	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one resolution pass and materialize the output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, db, err := openSource(a.cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer closeDB(db)

			var opts []service.Option
			if db != nil {
				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				opts = append(opts, service.WithSink(db))
			}
			resolver, err := a.newResolver(src, opts...)
			if err != nil {
				return err
			}
			defer resolver.Close(context.Background())
			p, err := resolver.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return a.write(cmd.OutOrStdout(), p.Run)
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables glenhance reads and writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openSource(a.cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if db == nil {
				return fmt.Errorf("the %s driver has nothing to migrate", a.cfg.Database.Driver)
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			a.logger.Info("migrations complete", "driver", a.cfg.Database.Driver)
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Resolve once and write the result to the export backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := a.newExporter(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.resolveOnce(cmd.Context())
			if err != nil {
				return err
			}
			manifest, err := exp.Export(cmd.Context(), p)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			return a.write(cmd.OutOrStdout(), manifest)
		},
	}
}

func newSQLCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print Postgres views and functions computing the same qualifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := sqlgen.Options{
				CanonicalSchema: a.cfg.Database.CanonicalSchema,
				EnhanceSchema:   a.cfg.Database.EnhanceSchema,
			}
			if out == "" || out == "-" {
				return sqlgen.Render(cmd.OutOrStdout(), opts)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := sqlgen.Render(f, opts); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	return cmd
}
