package cli

import (
	"github.com/spf13/cobra"

	"acme/internal/log"
	"acme/internal/storage"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadAndValidateConfig()
			if err != nil {
				return err
			}
			logger := SetupLogger(cfg, rootOpts.Verbose).WithComponent(log.ComponentStorage)

			dialect, err := storage.ParseDialect(cfg.DatabaseDriver)
			if err != nil {
				return WrapExitError(ExitConfigError, "invalid database driver", err)
			}
			if err := storage.RunMigrations(dialect, cfg.DSN()); err != nil {
				return WrapExitError(ExitFailure, "migration failed", err)
			}
			logger.Info("Migrations applied", "driver", string(dialect))
			return nil
		},
	}
}
