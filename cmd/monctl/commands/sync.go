package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/monctl/monctl/pkg/config"
	"github.com/monctl/monctl/pkg/engine"
)

func newSyncCommand() *cobra.Command {
	var (
		maxConcurrency int
		maxRetries     int
		dryRun         bool
		watch          bool
		user           string
		noHistory      bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync resources to the monitoring service",
		Long: `Apply every resource definition to the monitoring service.

Resources are applied in natural tracking id order by a bounded pool of workers.
Transient, throttled and timeout errors are retried with exponential backoff;
the first error that survives its retries stops new work from starting.

Each run is recorded in the local run history (see "monctl history").`,
		Example: `  # Sync everything in the configured resource paths
  monctl sync

  # Preview without sending anything
  monctl sync --dry-run

  # Keep syncing whenever a resource file changes
  monctl sync --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Flags().Changed("max-concurrency") {
				a.cfg.Execution.MaxConcurrency = maxConcurrency
			}
			if cmd.Flags().Changed("max-retries") {
				a.cfg.Execution.MaxRetries = maxRetries
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			if user == "" {
				user = currentUser()
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}

			var store engine.RunStore
			if !noHistory {
				s, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				store = s
			}

			syncer, err := a.newSyncer(c, store)
			if err != nil {
				return err
			}

			opts := engine.SyncOptions{DryRun: dryRun, User: user}
			runOnce := func(ctx context.Context, resources []engine.Resource) error {
				run, err := syncer.Sync(ctx, resources, opts)
				if run != nil {
					a.tel.Metrics.RecordRun(run)
					if store != nil {
						a.tel.Logger.WithRunID(run.ID).Info("Run recorded")
					}
					if jsonOutput {
						if werr := writeJSON(cmd.OutOrStdout(), run); werr != nil {
							return werr
						}
					} else if perr := printRun(cmd.OutOrStdout(), run); perr != nil {
						return perr
					}
				}
				return err
			}

			resources, err := a.loadResources()
			if err != nil {
				return err
			}

			if !watch {
				return runOnce(cmd.Context(), resources)
			}

			logger := a.tel.Logger.NewComponentLogger("watch")
			if err := runOnce(cmd.Context(), resources); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				logger.WithError(err).Warn("Initial sync failed")
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Watching %v for changes (Ctrl+C to stop)\n", a.cfg.Resources.Paths)
			watcher := config.NewWatcher(a.cfg.Resources.Paths, config.WithWatchLogger(logger.Zerolog()))
			return watcher.Watch(cmd.Context(), runOnce)
		},
	}

	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "maximum resources applied at once (overrides config)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retries per resource for retryable errors (overrides config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be applied without sending anything")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-sync whenever a resource file changes")
	cmd.Flags().StringVar(&user, "user", "", "user recorded on the run (default: current OS user)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run in the local history")

	return cmd
}
