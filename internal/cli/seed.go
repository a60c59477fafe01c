package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"acme/internal/log"
	"acme/internal/seed"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	DataFile    string
	Concurrency int
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create tables and load the seed dataset",
		Long: `Create any missing tables and load the seed dataset. Rows that already
exist are left untouched, so seeding twice is safe.

Example:
  acme seed
  acme seed --data ./fixtures/demo.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DataFile, "data", "", "YAML dataset to load instead of the embedded one")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 8, "concurrent inserts per kind")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *SeedOptions) error {
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := SetupLogger(cfg, opts.Verbose)

	ds, err := loadDataset(opts.DataFile)
	if err != nil {
		return WrapExitError(ExitConfigError, "failed to load dataset", err)
	}

	ctx := cmd.Context()
	db, err := OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	loader := seed.NewLoader(db, db.Dialect(), logger,
		seed.WithBcryptCost(cfg.BcryptCost),
		seed.WithConcurrency(opts.Concurrency),
	)
	report := loader.Run(ctx, ds)
	printReport(cmd.OutOrStdout(), report)

	if err := report.Err(); err != nil {
		logger.Error("Seeding finished with errors", log.FieldError, err, log.FieldOperation, log.OpSeed)
		return WrapExitError(ExitFailure, "seeding failed", err)
	}
	logger.Info("Database seeded successfully", log.FieldOperation, log.OpSeed)
	return nil
}

func loadDataset(path string) (*seed.Dataset, error) {
	if path == "" {
		return seed.Placeholder()
	}
	return seed.LoadFile(path)
}

func printReport(w io.Writer, report seed.Report) {
	for _, k := range report.Kinds {
		status := "ok"
		if k.Err != nil {
			status = "FAILED: " + k.Err.Error()
		}
		fmt.Fprintf(w, "%-10s %4d rows  %8s  %s\n", k.Kind, k.Rows, k.Duration.Round(time.Millisecond), status)
	}
}
