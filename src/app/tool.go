package app

import (
	"context"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/multixact/src"
	"github.com/Blackdeer1524/multixact/src/cfg"
	"github.com/Blackdeer1524/multixact/src/multixact"
	"github.com/Blackdeer1524/multixact/src/pkg/utils"
	"github.com/Blackdeer1524/multixact/src/recovery"
	"github.com/Blackdeer1524/multixact/src/txns"
)

const journalName = "journal"

var (
	ErrNotBootstrapped     = errors.New("data directory is not bootstrapped")
	ErrAlreadyBootstrapped = errors.New("data directory is already bootstrapped")
)

// ToolEntrypoint opens a data directory, brings the manager up to date
// from the journal and runs Action against it.
type ToolEntrypoint struct {
	ConfigPath string
	DataDir    string
	// Bootstrap initializes a new data directory instead of recovering an
	// existing one.
	Bootstrap bool
	Action    func(ctx context.Context, t *ToolEntrypoint) error

	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// Log defaults to a zap logger picked by the configured environment.
	Log src.Logger

	cfg     cfg.Config
	journal *recovery.FileLog
	oracle  *txns.Oracle
	manager *multixact.Manager
}

func (e *ToolEntrypoint) Init(_ context.Context) error {
	config, err := cfg.Load(e.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if e.DataDir != "" {
		config.DataDir = e.DataDir
	}
	e.cfg = config

	if e.Log == nil {
		if e.cfg.Environment == cfg.EnvDev {
			e.Log = utils.Must(zap.NewDevelopment()).Sugar()
		} else {
			e.Log = utils.Must(zap.NewProduction()).Sugar()
		}
	}
	if e.Fs == nil {
		e.Fs = afero.NewOsFs()
	}

	if err := e.Fs.MkdirAll(e.cfg.DataDir, 0o755); err != nil {
		return errors.Wrapf(err, "create data dir %s", e.cfg.DataDir)
	}

	journalPath := filepath.Join(e.cfg.DataDir, journalName)
	exists, err := utils.IsFileExists(e.Fs, journalPath)
	if err != nil {
		return err
	}
	switch {
	case e.Bootstrap && exists:
		return errors.Wrap(ErrAlreadyBootstrapped, e.cfg.DataDir)
	case !e.Bootstrap && !exists:
		return errors.Wrap(ErrNotBootstrapped, e.cfg.DataDir)
	}

	e.journal, err = recovery.OpenFileLog(e.Fs, journalPath, e.Log)
	if err != nil {
		return err
	}

	e.oracle = txns.NewOracle()
	e.manager, err = multixact.Open(e.Fs, e.cfg.DataDir, multixact.Deps{
		WAL:    e.journal,
		Oracle: e.oracle,
		Log:    e.Log,
		Vacuum: func() {
			e.Log.Warnw("vacuum requested, nothing to run it in this tool")
		},
	}, e.cfg.ManagerOptions())
	if err != nil {
		return errors.Wrap(err, "open multixact manager")
	}

	if e.Bootstrap {
		return e.manager.Bootstrap(uuid.New())
	}
	if err := e.manager.Recover(e.journal.Iterator()); err != nil {
		return errors.Wrap(err, "recover")
	}
	e.Log.Infow("recovered multixact state", "state", e.manager.CheckpointState())

	return nil
}

func (e *ToolEntrypoint) Run(ctx context.Context) error {
	if e.Action == nil {
		return nil
	}
	return e.Action(ctx, e)
}

func (e *ToolEntrypoint) Close() (err error) {
	if e.manager != nil {
		err = e.manager.Shutdown()
		e.manager = nil
	}

	if e.journal != nil {
		if closeErr := e.journal.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		e.journal = nil
	}

	if e.Log != nil {
		if err != nil {
			e.Log.Errorw("failed to close data directory", "error", err)
		}
		// syncing stderr fails on some platforms
		_ = e.Log.Sync()
	}

	return
}

func (e *ToolEntrypoint) Config() cfg.Config {
	return e.cfg
}

func (e *ToolEntrypoint) Manager() *multixact.Manager {
	return e.manager
}

func (e *ToolEntrypoint) Oracle() *txns.Oracle {
	return e.oracle
}
