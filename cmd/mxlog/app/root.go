package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/multixact/src/app"
	"github.com/Blackdeer1524/multixact/src/cli"
)

var rootCmd = cli.Init("mxlog", "Inspect and exercise a multixact data directory")

func MustExecute(ctx context.Context) {
	initBootstrap()
	initMembers()
	initStats()
	initTruncate()
	initStress()
	rootCmd.MustExecute(ctx)
}

func runTool(cmd *cobra.Command, bootstrap bool, action func(context.Context, *app.ToolEntrypoint) error) error {
	return app.Run(cmd.Context(), &app.ToolEntrypoint{
		ConfigPath: rootCmd.Options.ConfigPath,
		DataDir:    rootCmd.Options.DataDir,
		Bootstrap:  bootstrap,
		Action:     action,
	})
}
