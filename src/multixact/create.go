package multixact

import (
	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/multixact/src/bufferpool"
	"github.com/Blackdeer1524/multixact/src/pkg/assert"
	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/recovery"
)

// Create makes a group of two members, typically when a second locker
// arrives at a row held by a single one.
func (s *Session) Create(
	xid1 common.TransactionID, status1 common.MemberStatus,
	xid2 common.TransactionID, status2 common.MemberStatus,
) (common.MultiXactID, error) {
	return s.CreateFromMembers([]common.MultiXactMember{
		{Xid: xid1, Status: status1},
		{Xid: xid2, Status: status2},
	})
}

func validateMembers(members []common.MultiXactMember) ([]common.MultiXactMember, error) {
	if len(members) == 0 {
		return nil, errors.Wrap(ErrInvalidID, "empty member set")
	}

	for _, mem := range members {
		if !mem.Xid.IsValid() {
			return nil, errors.Wrapf(ErrInvalidID, "member %v has an invalid xid", mem)
		}
		if !mem.Status.IsValid() {
			return nil, errors.Wrapf(ErrInvalidID, "member %v has an invalid status", mem)
		}
	}

	sorted := sortMembers(members)
	updates := 0
	for i, mem := range sorted {
		if i > 0 && sorted[i-1] == mem {
			return nil, errors.Wrapf(ErrInvalidID, "member %v is listed twice", mem)
		}
		if mem.Status.IsUpdate() {
			updates++
		}
	}
	if updates > 1 {
		return nil, errors.Wrapf(ErrDuplicateUpdateMember, "%d updating members", updates)
	}

	return sorted, nil
}

// CreateFromMembers returns a group holding exactly the given members. If
// this unit of work already created or saw a group with the same members,
// its id is returned instead of a new one.
func (s *Session) CreateFromMembers(members []common.MultiXactMember) (common.MultiXactID, error) {
	sorted, err := validateMembers(members)
	if err != nil {
		return common.InvalidMultiXactID, err
	}

	assert.Assert(
		s.OldestMember().IsValid(),
		"slot %d creates a multixact without setting its oldest member",
		s.slot,
	)

	if id, ok := s.cache.getBySet(sorted).Get(); ok {
		s.m.metrics.cacheHit(lookupBySet)
		s.m.log.Debugw("multixact found in cache", "multi", id, "members", sorted)
		return id, nil
	}
	s.m.metrics.cacheMiss(lookupBySet)

	m := s.m
	multi, offset, err := m.getNewMultiXactID(len(sorted))
	if err != nil {
		return common.InvalidMultiXactID, err
	}

	rec := recovery.NewCreateRecord(multi, offset, sorted)
	_, err = m.wal.Append(&rec)
	m.critical(err, "log multixact creation")
	m.critical(m.recordNewMultiXact(multi, offset, sorted), "record multixact")

	s.cache.put(multi, sorted)
	m.metrics.inc(m.metrics.created)
	m.log.Debugw("created multixact", "multi", multi, "offset", offset, "members", sorted)

	return multi, nil
}

// Expand returns a group holding the members of multi that still matter
// plus the new member. Members that are gone are dropped, except updaters
// that committed, since their update is still visible in the row.
func (s *Session) Expand(
	multi common.MultiXactID,
	xid common.TransactionID,
	status common.MemberStatus,
) (common.MultiXactID, error) {
	if !multi.IsValid() || !xid.IsValid() || !status.IsValid() {
		return common.InvalidMultiXactID, errors.Wrapf(
			ErrInvalidID, "expand %d with %d(%s)", multi, xid, status,
		)
	}

	assert.Assert(
		s.OldestMember().IsValid(),
		"slot %d expands a multixact without setting its oldest member",
		s.slot,
	)

	added := common.MultiXactMember{Xid: xid, Status: status}

	members, err := s.expandable(multi)
	if errors.Is(err, ErrObsoleteGroup) {
		s.m.log.Debugw("expanding an obsolete multixact", "multi", multi, "member", added)
		return s.CreateFromMembers([]common.MultiXactMember{added})
	}
	if err != nil {
		return common.InvalidMultiXactID, err
	}

	for _, mem := range members {
		if mem == added {
			s.m.log.Debugw("multixact already has the member", "multi", multi, "member", added)
			return multi, nil
		}
	}

	kept := make([]common.MultiXactMember, 0, len(members)+1)
	for _, mem := range members {
		if s.m.oracle.IsInProgress(mem.Xid) ||
			(mem.Status.IsUpdate() && s.m.oracle.DidCommit(mem.Xid)) {
			kept = append(kept, mem)
		}
	}
	kept = append(kept, added)

	return s.CreateFromMembers(kept)
}

func (s *Session) expandable(multi common.MultiXactID) ([]common.MultiXactMember, error) {
	members, err := s.GetMembers(multi, false)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, errors.Wrapf(ErrObsoleteGroup, "multi %d", multi)
	}
	return members, nil
}

// getNewMultiXactID reserves an id and a run of member offsets. The
// counters advance only after the pages that will hold the new entries
// exist.
func (m *Manager) getNewMultiXactID(nmembers int) (common.MultiXactID, common.MultiXactOffset, error) {
	assert.Assert(nmembers > 0, "multixact with %d members", nmembers)

	if m.inRecovery.Load() {
		return 0, 0, ErrInRecovery
	}

	st := &m.state
	st.mu.Lock()

	result := st.nextLocked()
	st.nextMXact = result

	if !result.Precedes(st.multiVacLimit) {
		st.mu.Unlock()
		if result%vacuumSignalInterval == 0 {
			m.signalVacuum(result)
		}
		st.mu.Lock()

		result = st.nextLocked()
		st.nextMXact = result
	}

	if err := m.extendOffsets(result); err != nil {
		st.mu.Unlock()
		return 0, 0, err
	}

	// Offset 0 is never handed out: a zero entry in the offset log means
	// "not written yet".
	start := st.nextOffset
	offset := start
	if offset == 0 {
		offset = 1
		nmembers++
	}

	if err := m.extendMembers(start, nmembers); err != nil {
		st.mu.Unlock()
		return 0, 0, err
	}

	st.nextMXact++
	st.nextOffset = start + common.MultiXactOffset(nmembers)
	st.mu.Unlock()

	return result, offset, nil
}

func (m *Manager) extendOffsets(multi common.MultiXactID) error {
	if offsetEntry(multi) != 0 && multi != common.FirstMultiXactID {
		return nil
	}
	return m.zeroPage(common.OffsetLog, offsetPage(multi), true)
}

// extendMembers zeroes every member page the run [offset, offset+n) starts.
func (m *Manager) extendMembers(offset common.MultiXactOffset, n int) error {
	for n > 0 {
		if flagsOffset(offset) == 0 && flagsBitShift(offset) == 0 {
			if err := m.zeroPage(common.MemberLog, memberPage(offset), true); err != nil {
				return err
			}
		}

		difference := membersPerPage - offset%membersPerPage
		if offset+difference < offset {
			// the last page before wraparound is short
			difference = common.MaxMultiXactOffset - offset + 1
		}
		n -= int(difference)
		offset += difference
	}

	return nil
}

func (m *Manager) recordNewMultiXact(
	multi common.MultiXactID,
	offset common.MultiXactOffset,
	members []common.MultiXactMember,
) error {
	assert.Assert(offset != 0, "multixact %d recorded at offset 0", multi)

	err := m.offsets.Exclusive(func(tx bufferpool.Txn) error {
		page, err := tx.Page(offsetPage(multi))
		if err != nil {
			return err
		}
		writeOffset(page, offsetEntry(multi), offset)
		return nil
	})
	if err != nil {
		return ioError(err, "record offset")
	}

	err = m.members.Exclusive(func(tx bufferpool.Txn) error {
		var page []byte
		prev := int64(-1)
		for i, mem := range members {
			off := offset + common.MultiXactOffset(i)
			if pageno := memberPage(off); pageno != prev {
				p, err := tx.Page(pageno)
				if err != nil {
					return err
				}
				page, prev = p, pageno
			}
			writeMember(page, off, mem)
		}
		return nil
	})
	if err != nil {
		return ioError(err, "record members")
	}

	return nil
}
