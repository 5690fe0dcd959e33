package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/monctl/monctl/pkg/engine"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a sync would apply",
		Long: `Load resource definitions and run them through the sync executor in dry-run
mode. Nothing is sent to the monitoring service and no run is recorded.

Resources are listed in natural tracking id order, the order sync uses.`,
		Example: `  # Show the plan as a table
  monctl plan

  # Machine-readable plan
  monctl plan --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			resources, err := a.loadResources()
			if err != nil {
				return err
			}

			noop := engine.ApplierFunc(func(ctx context.Context, res engine.Resource) (engine.ApplyResult, error) {
				return engine.ApplyResult{Action: engine.OperationNoop}, nil
			})
			syncer, err := a.newSyncer(noop, nil)
			if err != nil {
				return err
			}

			run, err := syncer.Sync(cmd.Context(), resources, engine.SyncOptions{DryRun: true, User: currentUser()})
			if err != nil {
				return err
			}

			ordered := make([]engine.Resource, len(resources))
			copy(ordered, resources)
			engine.SortNaturalFunc(ordered, engine.Resource.TrackingID)

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), struct {
					Resources []engine.Resource `json:"resources"`
					Summary   engine.RunSummary `json:"summary"`
				}{ordered, run.Summary})
			}
			return printResources(cmd.OutOrStdout(), ordered)
		},
	}

	return cmd
}
