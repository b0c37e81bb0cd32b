package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistentFlagsReachSubcommands(t *testing.T) {
	root := Init("mxlog", "test")

	var seen Options
	root.AddCommand(&cobra.Command{
		Use: "stats",
		RunE: func(*cobra.Command, []string) error {
			seen = root.Options
			return nil
		},
	})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"stats", "--config", "/etc/mx.env", "-d", "/srv/mx"})

	require.NoError(t, root.Execute(context.Background()))
	assert.Equal(t, Options{ConfigPath: "/etc/mx.env", DataDir: "/srv/mx"}, seen)
}
