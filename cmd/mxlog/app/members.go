package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/multixact/src/app"
	"github.com/Blackdeer1524/multixact/src/multixact"
	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

func parseMultiXactID(s string) (common.MultiXactID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "parse multixact id %q", s)
	}
	return common.MultiXactID(v), nil
}

func initMembers() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "members <id>",
		Short: "Prints the members of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			multi, err := parseMultiXactID(args[0])
			if err != nil {
				return err
			}

			return runTool(cmd, false, func(_ context.Context, t *app.ToolEntrypoint) error {
				s, err := t.Manager().NewSession(0)
				if err != nil {
					return err
				}
				defer s.Close()

				members, err := s.ListMembers(multi)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), multixact.Describe(multi, members))
				return err
			})
		},
	})
}
