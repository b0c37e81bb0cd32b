package multixact

import (
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Blackdeer1524/multixact/src/bufferpool"
	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/recovery"
)

// Bootstrap initializes a fresh data directory: the first page of each log
// is written and the counters start from the beginning.
func (m *Manager) Bootstrap(owner common.OwnerID) error {
	for _, kind := range []common.LogKind{common.OffsetLog, common.MemberLog} {
		pool, _ := m.pool(kind)
		if err := m.zeroPage(kind, 0, false); err != nil {
			return err
		}
		if err := pool.WritePage(0); err != nil {
			return ioError(err, "write first page")
		}
	}

	m.state.mu.Lock()
	m.state.nextMXact = common.FirstMultiXactID
	m.state.nextOffset = 0
	m.state.finishedStartup = true
	m.state.mu.Unlock()

	m.SetRetentionFloor(common.FirstMultiXactID, owner)
	m.log.Infow("bootstrapped multixact logs", "owner", owner)

	return nil
}

// Startup prepares the logs for replay from the current counters.
func (m *Manager) Startup() {
	m.state.mu.RLock()
	next := m.state.nextLocked()
	offset := m.state.nextOffset
	m.state.mu.RUnlock()

	m.offsets.SetLatestPage(offsetPage(next))
	m.members.SetLatestPage(memberPage(offset))
}

// Trim runs after replay. The rest of the current offset page and the
// current member page are zeroed, so entries past the counters read as
// "not written yet" even if a crash left garbage there.
func (m *Manager) Trim() error {
	m.state.mu.RLock()
	next := m.state.nextLocked()
	offset := m.state.nextOffset
	oldest := m.state.oldestMultiXactID
	owner := m.state.oldestOwner
	m.state.mu.RUnlock()

	m.offsets.SetLatestPage(offsetPage(next))
	if entry := offsetEntry(next); entry != 0 {
		err := m.offsets.Exclusive(func(tx bufferpool.Txn) error {
			page, err := tx.Page(offsetPage(next))
			if err != nil {
				return err
			}
			clear(page[entry*offsetEntrySize:])
			return nil
		})
		if err != nil {
			return ioError(err, "trim offsets")
		}
	}

	m.members.SetLatestPage(memberPage(offset))
	if offset%membersPerPage != 0 {
		err := m.members.Exclusive(func(tx bufferpool.Txn) error {
			page, err := tx.Page(memberPage(offset))
			if err != nil {
				return err
			}
			clear(page[memberOffset(offset):])
			return nil
		})
		if err != nil {
			return ioError(err, "trim members")
		}
	}

	m.state.mu.Lock()
	m.state.finishedStartup = true
	m.state.mu.Unlock()

	m.SetRetentionFloor(oldest, owner)
	m.log.Infow("multixact logs trimmed", "next", next, "next_offset", offset, "oldest", oldest)

	return nil
}

// Recover replays the journal on top of what is on disk and leaves the
// manager ready for new work.
func (m *Manager) Recover(it recovery.Iterator) error {
	return m.traced("multixact.Recover", func() error {
		return m.replayAndTrim(it)
	})
}

func (m *Manager) replayAndTrim(it recovery.Iterator) error {
	m.inRecovery.Store(true)
	m.offsets.SetZeroMissing(true)
	m.members.SetZeroMissing(true)
	defer func() {
		m.offsets.SetZeroMissing(false)
		m.members.SetZeroMissing(false)
	}()

	m.Startup()
	err := m.Replay(it)
	m.inRecovery.Store(false)
	if err != nil {
		return errors.Wrap(err, "replay multixact journal")
	}

	return m.Trim()
}

func (m *Manager) InRecovery() bool {
	return m.inRecovery.Load()
}

// Checkpoint writes every dirty page of both logs.
func (m *Manager) Checkpoint() error {
	return m.traced("multixact.Checkpoint", func() error {
		var g errgroup.Group
		g.Go(m.offsets.Flush)
		g.Go(m.members.Flush)

		if err := g.Wait(); err != nil {
			return ioError(err, "checkpoint")
		}
		return nil
	})
}

func (m *Manager) Shutdown() error {
	if err := m.Checkpoint(); err != nil {
		return err
	}
	m.log.Infow("multixact logs shut down", "state", m.CheckpointState())
	return nil
}
