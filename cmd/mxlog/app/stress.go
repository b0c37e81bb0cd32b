package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/multixact/src/app"
)

func initStress() {
	var opts app.StressOptions

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Runs concurrent workers against the data directory and verifies every group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTool(cmd, false, func(ctx context.Context, t *app.ToolEntrypoint) error {
				report, err := app.Stress(ctx, t.Manager(), t.Oracle(), opts)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(
					cmd.OutOrStdout(),
					"created %d groups (%d by expansion), verified %d in %s\n",
					report.Created, report.Expanded, report.Verified, report.Elapsed,
				)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "Concurrent sessions")
	cmd.Flags().IntVar(&opts.Ops, "ops", 1000, "Units of work per session")

	rootCmd.AddCommand(cmd)
}
