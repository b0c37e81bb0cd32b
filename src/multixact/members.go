package multixact

import (
	"time"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/multixact/src/bufferpool"
	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

// GetMembers resolves a group to its members. An invalid id, or a lock-only
// lookup of a group older than any this unit of work can see, yields no
// members and no error.
func (s *Session) GetMembers(multi common.MultiXactID, lockOnly bool) ([]common.MultiXactMember, error) {
	if !multi.IsValid() {
		return nil, nil
	}

	if members, ok := s.cache.getByID(multi); ok {
		s.m.metrics.cacheHit(lookupByID)
		s.m.log.Debugw("multixact members found in cache", "multi", multi, "members", members)
		return members, nil
	}
	s.m.metrics.cacheMiss(lookupByID)

	s.setOldestVisible()

	if lockOnly && multi.Precedes(s.OldestVisible()) {
		s.m.log.Debugw("lock-only multixact is not visible to anyone", "multi", multi)
		return nil, nil
	}

	members, err := s.m.resolve(multi)
	if err != nil {
		return nil, err
	}

	s.cache.put(multi, members)
	return members, nil
}

// ListMembers is GetMembers for operators: ids below the first valid one
// are rejected rather than treated as empty.
func (s *Session) ListMembers(multi common.MultiXactID) ([]common.MultiXactMember, error) {
	if multi < common.FirstMultiXactID {
		return nil, errors.Wrapf(ErrInvalidID, "multi %d", multi)
	}
	return s.GetMembers(multi, false)
}

// IsRunning reports whether any member of the group is still in progress.
func (s *Session) IsRunning(multi common.MultiXactID, lockOnly bool) (bool, error) {
	members, err := s.GetMembers(multi, lockOnly)
	if err != nil {
		return false, err
	}
	if len(members) == 0 {
		return false, nil
	}

	// our own unit of work is the cheap check, do it first
	if s.xid.IsValid() {
		for _, mem := range members {
			if mem.Xid == s.xid {
				return true, nil
			}
		}
	}

	for _, mem := range members {
		if s.m.oracle.IsInProgress(mem.Xid) {
			return true, nil
		}
	}

	return false, nil
}

func (m *Manager) resolve(multi common.MultiXactID) ([]common.MultiXactMember, error) {
	m.state.mu.RLock()
	oldest := m.state.oldestMultiXactID
	next := m.state.nextLocked()
	m.state.mu.RUnlock()

	if multi.Precedes(oldest) {
		return nil, errors.Wrapf(ErrBeforeRetentionFloor, "multi %d, floor %d", multi, oldest)
	}
	if !multi.Precedes(next) {
		return nil, errors.Wrapf(ErrAheadOfAllocator, "multi %d, next %d", multi, next)
	}

	offset, length, err := m.memberRange(multi)
	if err != nil {
		return nil, err
	}

	return m.readMembers(offset, length)
}

// memberRange finds where the members of multi live. The length is the
// distance to the successor's offset, which the successor's creator may
// not have recorded yet; in that case we wait.
func (m *Manager) memberRange(multi common.MultiXactID) (common.MultiXactOffset, int, error) {
	for attempt := 0; ; attempt++ {
		offset, length, err := m.tryMemberRange(multi)
		if !errors.Is(err, errNextOffsetPending) {
			return offset, length, err
		}
		if attempt >= m.opts.ResolveRetries {
			return 0, 0, errors.Wrapf(err, "multi %d after %d retries", multi, attempt)
		}

		m.metrics.inc(m.metrics.resolveRetries)
		time.Sleep(m.opts.ResolveBackoff)
	}
}

func (m *Manager) tryMemberRange(multi common.MultiXactID) (common.MultiXactOffset, int, error) {
	// counters are reread each attempt: the successor may have been the
	// last one allocated
	m.state.mu.RLock()
	next := m.state.nextLocked()
	nextOffset := m.state.nextOffset
	m.state.mu.RUnlock()

	var offset, successor common.MultiXactOffset
	err := m.offsets.Shared(func(tx bufferpool.ReadTxn) error {
		page, err := tx.ReadPage(offsetPage(multi))
		if err != nil {
			return ioError(err, "read offset")
		}
		offset = readOffset(page, offsetEntry(multi))
		if offset == 0 {
			return errors.Wrapf(errNextOffsetPending, "multi %d itself", multi)
		}

		tmp := multi.Next()
		if tmp == next {
			successor = nextOffset
			return nil
		}

		if offsetPage(tmp) != offsetPage(multi) {
			if page, err = tx.ReadPage(offsetPage(tmp)); err != nil {
				return ioError(err, "read successor offset")
			}
		}
		successor = readOffset(page, offsetEntry(tmp))
		if successor == 0 {
			return errors.Wrapf(errNextOffsetPending, "successor %d", tmp)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return offset, int(successor - offset), nil
}

func (m *Manager) readMembers(offset common.MultiXactOffset, length int) ([]common.MultiXactMember, error) {
	var members []common.MultiXactMember

	err := m.members.Shared(func(tx bufferpool.ReadTxn) error {
		members = make([]common.MultiXactMember, 0, length)

		var page []byte
		prev := int64(-1)
		for i := 0; i < length; i++ {
			off := offset + common.MultiXactOffset(i)
			if pageno := memberPage(off); pageno != prev {
				p, err := tx.ReadPage(pageno)
				if err != nil {
					return err
				}
				page, prev = p, pageno
			}

			mem := readMember(page, off)
			if !mem.Xid.IsValid() {
				// offset 0, skipped by the allocator
				continue
			}
			members = append(members, mem)
		}
		return nil
	})
	if err != nil {
		return nil, ioError(err, "read members")
	}

	return members, nil
}
