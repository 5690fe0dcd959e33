package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/monctl/monctl/pkg/config"
	"github.com/monctl/monctl/pkg/engine"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [path...]",
		Short: "Validate resource definitions",
		Long: `Validate resource definitions without contacting the monitoring service.

This command checks:
  - YAML syntax of every document
  - Required fields and allowed kinds
  - Uniqueness of tracking ids across all files`,
		Example: `  # Validate the configured resource paths
  monctl validate

  # Validate specific files or directories
  monctl validate ./resources/web ./resources/api.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			paths := args
			if len(paths) == 0 {
				paths = a.cfg.Resources.Paths
			}

			resources, err := config.LoadResources(paths...)
			if err != nil {
				return err
			}

			if jsonOutput {
				engine.SortNaturalFunc(resources, engine.Resource.TrackingID)
				return writeJSON(cmd.OutOrStdout(), resources)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d resource(s) valid\n", len(resources))
			return err
		},
	}

	return cmd
}
