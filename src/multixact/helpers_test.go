package multixact

import (
	"sync/atomic"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/recovery"
	"github.com/Blackdeer1524/multixact/src/txns"
)

var testOwner = uuid.MustParse("3b0d3c5e-8f7a-4a55-9d0e-6f5b2c1a7e90")

func testOptions() Options {
	opts := DefaultOptions()
	opts.MaxWorkers = 8
	opts.PreparedSlots = 2
	opts.ResolveRetries = 3
	opts.ResolveBackoff = 0
	return opts
}

type testEnv struct {
	fs     afero.Fs
	m      *Manager
	wal    *recovery.MemoryLog
	oracle *txns.Oracle
}

func openTestManager(t *testing.T, fs afero.Fs, wal recovery.Sink, oracle TransactionOracle, opts Options) *Manager {
	t.Helper()

	m, err := Open(fs, "/data", Deps{
		WAL:    wal,
		Oracle: oracle,
		Log:    zap.NewNop().Sugar(),
	}, opts)
	require.NoError(t, err)

	return m
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	env := &testEnv{
		fs:     afero.NewMemMapFs(),
		wal:    recovery.NewMemoryLog(),
		oracle: txns.NewOracle(),
	}
	env.m = openTestManager(t, env.fs, env.wal, env.oracle, opts)
	require.NoError(t, env.m.Bootstrap(testOwner))

	return env
}

func (e *testEnv) session(t *testing.T, slot int) *Session {
	t.Helper()

	s, err := e.m.NewSession(slot)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

// worker returns a session that is ready to create groups.
func (e *testEnv) worker(t *testing.T, slot int) *Session {
	t.Helper()

	s := e.session(t, slot)
	s.BeginUnitOfWork(e.oracle.Begin())
	s.SetOldestMember()

	return s
}

func members(pairs ...any) []common.MultiXactMember {
	res := make([]common.MultiXactMember, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		res = append(res, common.MultiXactMember{
			Xid:    pairs[i].(common.TransactionID),
			Status: pairs[i+1].(common.MemberStatus),
		})
	}
	return res
}

var errSinkBroken = errors.New("journal is broken")

// failingSink accepts okAppends records and fails every append after that.
type failingSink struct {
	recovery.MemoryLog
	okAppends int64
	appended  atomic.Int64
}

func (s *failingSink) Append(r recovery.Record) (common.LSN, error) {
	if s.appended.Add(1) > s.okAppends {
		return common.NIL_LSN, errSinkBroken
	}
	return s.MemoryLog.Append(r)
}

// journaled returns the records of type T appended to wal so far.
func journaled[T recovery.Record](t *testing.T, wal *recovery.MemoryLog) []T {
	t.Helper()

	var res []T
	require.NoError(t, recovery.ForEach(wal.Iterator(), func(_ common.LSN, r recovery.Record) error {
		if rec, ok := r.(T); ok {
			res = append(res, rec)
		}
		return nil
	}))
	return res
}

func zeroedPages(t *testing.T, wal *recovery.MemoryLog, kind common.LogKind) []int64 {
	t.Helper()

	var pages []int64
	for _, r := range journaled[*recovery.ZeroPageRecord](t, wal) {
		if r.Log == kind {
			pages = append(pages, r.PageNo)
		}
	}
	return pages
}

// numberedMembers builds n members with distinct xids starting at base.
func numberedMembers(base common.TransactionID, n int, status common.MemberStatus) []common.MultiXactMember {
	res := make([]common.MultiXactMember, 0, n)
	for i := range n {
		res = append(res, common.MultiXactMember{Xid: base + common.TransactionID(i), Status: status})
	}
	return res
}
