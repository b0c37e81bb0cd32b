package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/multixact/src/app"
)

func initBootstrap() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "bootstrap",
		Short: "Initializes a new data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTool(cmd, true, func(_ context.Context, t *app.ToolEntrypoint) error {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "bootstrapped %s\n", t.Config().DataDir)
				return err
			})
		},
	})
}
