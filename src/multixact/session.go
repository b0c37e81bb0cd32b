package multixact

import (
	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

// Session is one worker. It is not safe for concurrent use; run one
// Session per goroutine.
type Session struct {
	m     *Manager
	slot  int
	xid   common.TransactionID
	cache *memberCache
}

func (m *Manager) NewSession(slot int) (*Session, error) {
	if slot < 0 || slot >= m.opts.MaxWorkers {
		return nil, errors.Errorf("worker slot %d out of range [0, %d)", slot, m.opts.MaxWorkers)
	}
	if !m.slotsInUse[slot].CompareAndSwap(false, true) {
		return nil, errors.Wrapf(ErrSlotInUse, "slot %d", slot)
	}

	return &Session{
		m:     m,
		slot:  slot,
		cache: newMemberCache(m.opts.CacheEntries),
	}, nil
}

// Close ends the current unit of work and frees the slot.
func (s *Session) Close() {
	s.EndUnitOfWork()
	s.m.slotsInUse[s.slot].Store(false)
}

func (s *Session) Slot() int {
	return s.slot
}

func (s *Session) BeginUnitOfWork(xid common.TransactionID) {
	s.xid = xid
}

func (s *Session) CurrentXid() common.TransactionID {
	return s.xid
}

// EndUnitOfWork forgets everything the unit of work learned: the liveness
// slots are cleared and the cache dropped.
func (s *Session) EndUnitOfWork() {
	storeSlot(s.m.state.oldestMember, s.slot, common.InvalidMultiXactID)
	storeSlot(s.m.state.oldestVisible, s.slot, common.InvalidMultiXactID)
	s.cache.reset()
	s.xid = common.InvalidTransactionID
}

// SetOldestMember must be called before the unit of work creates or
// expands a group, and before it checks whether the other members are
// still running.
func (s *Session) SetOldestMember() {
	if loadSlot(s.m.state.oldestMember, s.slot).IsValid() {
		return
	}

	s.m.state.mu.RLock()
	next := s.m.state.nextLocked()
	storeSlot(s.m.state.oldestMember, s.slot, next)
	s.m.state.mu.RUnlock()

	s.m.log.Debugw("set oldest member", "slot", s.slot, "oldest", next)
}

func (s *Session) OldestMember() common.MultiXactID {
	return loadSlot(s.m.state.oldestMember, s.slot)
}

// setOldestVisible pins the oldest group this unit of work may look at:
// no truncation can pass it while the slot is set.
func (s *Session) setOldestVisible() {
	if loadSlot(s.m.state.oldestVisible, s.slot).IsValid() {
		return
	}

	st := &s.m.state
	st.mu.Lock()
	oldest := st.nextLocked()
	for i := range st.oldestMember {
		v := loadSlot(st.oldestMember, i)
		if v.IsValid() && v.Precedes(oldest) {
			oldest = v
		}
	}
	storeSlot(st.oldestVisible, s.slot, oldest)
	st.mu.Unlock()

	s.m.log.Debugw("set oldest visible", "slot", s.slot, "oldest", oldest)
}

func (s *Session) OldestVisible() common.MultiXactID {
	return loadSlot(s.m.state.oldestVisible, s.slot)
}
