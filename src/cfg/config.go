package cfg

import (
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Blackdeer1524/multixact/src/multixact"
)

const EnvPrefix = "MULTIXACT"

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"

	DefaultEnv = EnvDev
)

type Environment string

func (e Environment) Validate() error {
	if e != EnvDev && e != EnvProd {
		return errors.New("environment must be either dev or prod")
	}

	return nil
}

type Config struct {
	Environment Environment `split_words:"true" default:"dev"`
	DataDir     string      `split_words:"true" default:"./data"`

	MaxWorkers     int           `split_words:"true" default:"64"`
	PreparedSlots  int           `split_words:"true" default:"8"`
	OffsetBuffers  uint64        `split_words:"true" default:"8"`
	MemberBuffers  uint64        `split_words:"true" default:"16"`
	CacheEntries   int           `split_words:"true" default:"256"`
	FreezeMaxAge   uint32        `split_words:"true" default:"400000000"`
	ResolveRetries int           `split_words:"true" default:"1000"`
	ResolveBackoff time.Duration `split_words:"true" default:"1ms"`
}

// Load reads the optional .env file at path, then the MULTIXACT_*
// environment variables. Variables already set in the environment win
// over the file.
func Load(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, errors.Wrapf(err, "load %s", path)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrap(err, "load .env")
	}

	var c Config
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return Config{}, errors.Wrap(err, "process environment")
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c Config) Validate() error {
	if err := c.Environment.Validate(); err != nil {
		return errors.Wrap(err, "environment validation")
	}
	if c.DataDir == "" {
		return errors.New("data dir must be set")
	}
	if err := c.ManagerOptions().Validate(); err != nil {
		return errors.Wrap(err, "manager options")
	}

	return nil
}

func (c Config) ManagerOptions() multixact.Options {
	return multixact.Options{
		MaxWorkers:     c.MaxWorkers,
		PreparedSlots:  c.PreparedSlots,
		OffsetBuffers:  c.OffsetBuffers,
		MemberBuffers:  c.MemberBuffers,
		CacheEntries:   c.CacheEntries,
		FreezeMaxAge:   c.FreezeMaxAge,
		ResolveRetries: c.ResolveRetries,
		ResolveBackoff: c.ResolveBackoff,
	}
}
