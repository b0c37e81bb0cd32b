package multixact

import (
	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

// Prepared units of work keep their oldest-member value in one of the
// PreparedSlots extra slots, after the worker ones, until they finish.

func (m *Manager) preparedSlot(idx int) (int, error) {
	if idx < 0 || idx >= m.opts.PreparedSlots {
		return 0, errors.Errorf("prepared slot %d out of range [0, %d)", idx, m.opts.PreparedSlots)
	}
	return m.opts.MaxWorkers + idx, nil
}

// Prepare returns the value the prepared state must persist, so the slot
// can be restored with AdoptPrepared after a restart.
func (s *Session) Prepare() common.MultiXactID {
	return s.OldestMember()
}

// PostPrepare hands the session's oldest-member value over to prepared
// slot idx. The session itself no longer pins anything.
func (m *Manager) PostPrepare(s *Session, idx int) error {
	slot, err := m.preparedSlot(idx)
	if err != nil {
		return err
	}

	m.state.mu.Lock()
	storeSlot(m.state.oldestMember, slot, s.OldestMember())
	storeSlot(m.state.oldestMember, s.slot, common.InvalidMultiXactID)
	storeSlot(m.state.oldestVisible, s.slot, common.InvalidMultiXactID)
	m.state.mu.Unlock()

	s.cache.reset()
	return nil
}

// AdoptPrepared restores a prepared unit of work's slot from its persisted
// state.
func (m *Manager) AdoptPrepared(idx int, oldest common.MultiXactID) error {
	slot, err := m.preparedSlot(idx)
	if err != nil {
		return err
	}

	storeSlot(m.state.oldestMember, slot, oldest)
	m.log.Debugw("adopted prepared multixact slot", "index", idx, "oldest", oldest)
	return nil
}

// ReleasePrepared clears the slot once the prepared unit of work commits
// or aborts.
func (m *Manager) ReleasePrepared(idx int) error {
	slot, err := m.preparedSlot(idx)
	if err != nil {
		return err
	}

	storeSlot(m.state.oldestMember, slot, common.InvalidMultiXactID)
	return nil
}
