package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/multixact/src/app"
)

func initStats() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Prints the allocator counters and the retention floor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTool(cmd, false, func(_ context.Context, t *app.ToolEntrypoint) error {
				m := t.Manager()
				state := m.CheckpointState()

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "next id\t%d\n", state.NextID)
				fmt.Fprintf(w, "next offset\t%d\n", state.NextOffset)
				fmt.Fprintf(w, "oldest id\t%d\n", state.OldestID)
				fmt.Fprintf(w, "oldest owner\t%s\n", state.OldestOwner)
				fmt.Fprintf(w, "oldest referenced\t%d\n", m.GetOldestMultiXactID())
				return w.Flush()
			})
		},
	})
}
