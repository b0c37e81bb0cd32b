package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/multixact/src/multixact"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvDev, c.Environment)
	assert.Equal(t, "./data", c.DataDir)
	assert.Equal(t, multixact.DefaultOptions(), c.ManagerOptions())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"MULTIXACT_ENVIRONMENT=prod\n"+
			"MULTIXACT_DATA_DIR=/var/lib/mx\n"+
			"MULTIXACT_MAX_WORKERS=4\n",
	), 0o600))
	// godotenv sets the variables for the whole process
	t.Cleanup(func() {
		_ = os.Unsetenv("MULTIXACT_ENVIRONMENT")
		_ = os.Unsetenv("MULTIXACT_DATA_DIR")
	})

	t.Setenv("MULTIXACT_RESOLVE_BACKOFF", "5ms")
	// the environment takes precedence over the file
	t.Setenv("MULTIXACT_MAX_WORKERS", "16")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EnvProd, c.Environment)
	assert.Equal(t, "/var/lib/mx", c.DataDir)
	assert.Equal(t, 16, c.MaxWorkers)
	assert.Equal(t, 5*time.Millisecond, c.ResolveBackoff)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load("")
	require.NoError(t, err)

	bad := c
	bad.Environment = "staging"
	assert.Error(t, bad.Validate())

	bad = c
	bad.DataDir = ""
	assert.Error(t, bad.Validate())

	bad = c
	bad.OffsetBuffers = 1
	assert.Error(t, bad.Validate())

	t.Setenv("MULTIXACT_MAX_WORKERS", "0")
	_, err = Load("")
	assert.Error(t, err)
}
