// Command glenhance resolves GitLab namespace hierarchies into qualified
// paths and names, and formats clone URLs and bare repository paths.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/glenhance/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries state shared by every subcommand once PersistentPreRunE has
// loaded the configuration.
type app struct {
	configPath string
	output     string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "glenhance",
		Short: "Resolve GitLab namespaces into qualified paths and repository locators",
		Long: `glenhance reads GitLab's namespaces, projects and project_repositories,
derives fully qualified paths and names for every entity, and formats clone
URLs and on-disk bare repository paths. It can run one-shot from the command
line or as a service that refreshes on a schedule and serves the result over
HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "json", "output format: json or yaml")

	root.AddCommand(
		newVersionCmd(),
		newMigrateCmd(a),
		newRefreshCmd(a),
		newNamespacesCmd(a),
		newProjectsCmd(a),
		newCloneURLsCmd(a),
		newBarePathsCmd(a),
		newExportCmd(a),
		newSQLCmd(a),
		newServeCmd(a),
		newTokenCmd(a),
		newHashPasswordCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	switch a.output {
	case "json", "yaml":
	default:
		return fmt.Errorf("--output must be json or yaml (got %q)", a.output)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	a.cfg = cfg
	a.logger = logger
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "glenhance %s\n", version)
		},
	}
}
