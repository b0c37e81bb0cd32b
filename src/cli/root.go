package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type Options struct {
	ConfigPath string
	DataDir    string
}

const envHelp = `Settings are read from the --config file, if any, and then from the
environment. The environment wins.

  MULTIXACT_ENVIRONMENT      dev or prod, picks the log format
  MULTIXACT_DATA_DIR         directory holding the journal and both logs
  MULTIXACT_MAX_WORKERS      concurrent sessions
  MULTIXACT_PREPARED_SLOTS   slots for prepared units of work
  MULTIXACT_OFFSET_BUFFERS   offset log pages kept in memory
  MULTIXACT_MEMBER_BUFFERS   member log pages kept in memory
  MULTIXACT_CACHE_ENTRIES    per-session membership cache size
  MULTIXACT_FREEZE_MAX_AGE   ids past the floor before vacuum is requested
  MULTIXACT_RESOLVE_RETRIES  waits for a successor offset before giving up
  MULTIXACT_RESOLVE_BACKOFF  sleep between those waits`

type RootCommand struct {
	*cobra.Command
	Options Options
}

func Init(name, short string) *RootCommand {
	cmd := &RootCommand{
		Command: &cobra.Command{
			Use:           name,
			Short:         short,
			Long:          short + "\n\n" + envHelp,
			SilenceUsage:  true,
			SilenceErrors: true,
		},
	}
	cmd.initFlags()

	return cmd
}

func (c *RootCommand) Execute(ctx context.Context) error {
	return c.ExecuteContext(ctx)
}

func (c *RootCommand) MustExecute(ctx context.Context) {
	if err := c.Execute(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s failed: %v\n", c.Name(), err)
		os.Exit(1)
	}
}
