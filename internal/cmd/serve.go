package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/reactome/release-qa-sub001/domain/checks"
	"github.com/reactome/release-qa-sub001/domain/health"
	"github.com/reactome/release-qa-sub001/domain/instances"
	"github.com/reactome/release-qa-sub001/domain/scheduler"
	"github.com/reactome/release-qa-sub001/domain/schema"
	"github.com/reactome/release-qa-sub001/domain/tracing"
	"github.com/reactome/release-qa-sub001/internal/config"
	"github.com/reactome/release-qa-sub001/internal/database"
	"github.com/reactome/release-qa-sub001/internal/server"
	"github.com/reactome/release-qa-sub001/internal/storage"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the check API and run the suite on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig(opts.logger())
			if err != nil {
				return err
			}
			opts.apply(cfg)
			app := fx.New(serverOptions(cfg)...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().String("suite", "", "check suite YAML; defaults to the built-in suite (QA_SUITE_PATH)")
	return cmd
}

// serverOptions assembles the fx graph. PostgreSQL is wired only when the
// schema or the instances come from it, and the archive only when a bucket
// is configured.
func serverOptions(cfg *config.Config) []fx.Option {
	opts := []fx.Option{
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure
		logger.Module,
		fx.Supply(cfg),
		server.Module,
		tracing.Module,

		// Domain
		schema.Module,
		instances.Module,
		checks.Module,
		scheduler.Module,
		health.Module,
	}
	if cfg.QA.UsesDatabase() {
		opts = append(opts, database.Module)
	}
	if cfg.Storage.IsConfigured() {
		opts = append(opts, storage.Module)
	}
	return opts
}
