package app

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/multixact/src/app"
	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

func initTruncate() {
	var owner string

	cmd := &cobra.Command{
		Use:   "truncate <floor>",
		Short: "Removes every group older than floor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			floor, err := parseMultiXactID(args[0])
			if err != nil {
				return err
			}

			ownerID := common.NilOwner
			if owner != "" {
				if ownerID, err = uuid.Parse(owner); err != nil {
					return errors.Wrapf(err, "parse owner %q", owner)
				}
			}

			return runTool(cmd, false, func(_ context.Context, t *app.ToolEntrypoint) error {
				m := t.Manager()
				if err := m.Truncate(floor, ownerID); err != nil {
					return err
				}
				if err := m.Checkpoint(); err != nil {
					return err
				}

				_, err := fmt.Fprintf(cmd.OutOrStdout(), "oldest id is now %d\n", m.CheckpointState().OldestID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "UUID of the database holding the oldest group")

	rootCmd.AddCommand(cmd)
}
