package multixact

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Blackdeer1524/multixact/src"
	"github.com/Blackdeer1524/multixact/src/bufferpool"
	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/recovery"
	"github.com/Blackdeer1524/multixact/src/storage/disk"
)

// TransactionOracle answers liveness questions about member xids.
type TransactionOracle interface {
	IsInProgress(xid common.TransactionID) bool
	DidCommit(xid common.TransactionID) bool
}

// xidAdvancer is implemented by oracles that assign xids themselves, so
// replay can move their counter past every xid it sees.
type xidAdvancer interface {
	AdvanceNextXid(xid common.TransactionID)
}

type Options struct {
	MaxWorkers     int
	PreparedSlots  int
	OffsetBuffers  uint64
	MemberBuffers  uint64
	CacheEntries   int
	FreezeMaxAge   uint32
	ResolveRetries int
	ResolveBackoff time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxWorkers:     64,
		PreparedSlots:  8,
		OffsetBuffers:  8,
		MemberBuffers:  16,
		CacheEntries:   defaultCacheEntries,
		FreezeMaxAge:   400_000_000,
		ResolveRetries: 1000,
		ResolveBackoff: time.Millisecond,
	}
}

func (o Options) Validate() error {
	switch {
	case o.MaxWorkers <= 0:
		return errors.Errorf("max workers must be positive, got %d", o.MaxWorkers)
	case o.PreparedSlots < 0:
		return errors.Errorf("prepared slots must not be negative, got %d", o.PreparedSlots)
	case o.OffsetBuffers < 2 || o.MemberBuffers < 2:
		return errors.Errorf(
			"each log needs at least two buffers, got offsets=%d members=%d",
			o.OffsetBuffers, o.MemberBuffers,
		)
	case o.FreezeMaxAge == 0:
		return errors.New("freeze max age must be positive")
	case o.ResolveRetries < 0:
		return errors.Errorf("resolve retries must not be negative, got %d", o.ResolveRetries)
	}
	return nil
}

type Deps struct {
	OffsetDisk bufferpool.DiskManager
	MemberDisk bufferpool.DiskManager
	WAL        recovery.Sink
	Oracle     TransactionOracle
	Log        src.Logger

	// Vacuum is asked to run when the allocator crosses the vacuum limit.
	// May be nil.
	Vacuum func()
	// Meter defaults to the global otel meter provider.
	Meter metric.Meter
	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
}

// Manager is the state shared by all workers: the allocator counters, the
// liveness slots and both page logs.
type Manager struct {
	opts    Options
	log     src.Logger
	wal     recovery.Sink
	oracle  TransactionOracle
	vacuum  func()
	metrics *metrics
	tracer  trace.Tracer

	offsets *bufferpool.Pool
	members *bufferpool.Pool

	state          sharedState
	truncationLock sync.Mutex
	inRecovery     atomic.Bool
	slotsInUse     []atomic.Bool
}

func New(deps Deps, opts Options) (*Manager, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if deps.OffsetDisk == nil || deps.MemberDisk == nil || deps.WAL == nil || deps.Oracle == nil || deps.Log == nil {
		return nil, errors.New("multixact manager needs both disks, a journal, an oracle and a logger")
	}

	met, err := newMetrics(deps.Meter)
	if err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}

	m := &Manager{
		opts:    opts,
		log:     deps.Log,
		wal:     deps.WAL,
		oracle:  deps.Oracle,
		vacuum:  deps.Vacuum,
		metrics: met,
		tracer:  newTracer(deps.Tracer),
		offsets: bufferpool.New(
			common.OffsetLog.String(),
			opts.OffsetBuffers,
			bufferpool.NewLRUReplacer(),
			deps.OffsetDisk,
			offsetPagePrecedes,
			deps.Log,
		),
		members: bufferpool.New(
			common.MemberLog.String(),
			opts.MemberBuffers,
			bufferpool.NewLRUReplacer(),
			deps.MemberDisk,
			memberPagePrecedes,
			deps.Log,
		),
		state:      newSharedState(opts.MaxWorkers + opts.PreparedSlots),
		slotsInUse: make([]atomic.Bool, opts.MaxWorkers),
	}
	m.state.multiVacLimit = m.vacuumLimit(m.state.oldestMultiXactID)

	return m, nil
}

// Open keeps both logs under dir, in the offsets and members
// subdirectories.
func Open(fs afero.Fs, dir string, deps Deps, opts Options) (*Manager, error) {
	offsets := disk.New(fs, filepath.Join(dir, common.OffsetLog.String()))
	if err := offsets.Init(); err != nil {
		return nil, err
	}
	members := disk.New(fs, filepath.Join(dir, common.MemberLog.String()))
	if err := members.Init(); err != nil {
		return nil, err
	}

	deps.OffsetDisk = offsets
	deps.MemberDisk = members

	return New(deps, opts)
}

func (m *Manager) Options() Options {
	return m.opts
}

func (m *Manager) pool(kind common.LogKind) (*bufferpool.Pool, bool) {
	switch kind {
	case common.OffsetLog:
		return m.offsets, true
	case common.MemberLog:
		return m.members, true
	default:
		return nil, false
	}
}

// zeroPage initializes a page in memory and, outside of replay, reports it
// to the journal.
func (m *Manager) zeroPage(kind common.LogKind, pageno int64, writeLog bool) error {
	pool, _ := m.pool(kind)
	if err := pool.ZeroPage(pageno); err != nil {
		return ioError(err, "zero page")
	}

	m.log.Debugw("zeroed page", "log", kind, "page", pageno)

	if !writeLog {
		return nil
	}

	rec := recovery.NewZeroPageRecord(kind, pageno)
	if _, err := m.wal.Append(&rec); err != nil {
		return errors.Wrap(err, "log page zeroing")
	}
	return nil
}

func (m *Manager) signalVacuum(next common.MultiXactID) {
	m.metrics.inc(m.metrics.vacuumRequests)
	m.log.Warnw("multixact ids are past the vacuum limit, requesting vacuum", "next", next)
	if m.vacuum != nil {
		m.vacuum()
	}
}

// critical is called after the allocator has advanced: nothing may fail
// from here on without leaving a half-created group behind.
func (m *Manager) critical(err error, op string) {
	if err == nil {
		return
	}
	m.log.Errorw("failure inside critical section", "op", op, "error", err)
	panic(errors.Wrap(err, op))
}
