package multixact

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/pkg/optional"
	"github.com/Blackdeer1524/multixact/src/recovery"
)

// Truncate moves the retention floor to newOldest and removes the pages
// holding only older groups. The caller guarantees nothing older than
// newOldest is referenced anywhere. It may be called before or after
// SetRetentionFloor for the same value.
//
// When the start offset of either end of the range cannot be determined,
// the truncation is skipped; it will be attempted again next time.
func (m *Manager) Truncate(newOldest common.MultiXactID, owner common.OwnerID) error {
	return m.traced("multixact.Truncate", func() error {
		return m.truncate(newOldest, owner)
	}, attribute.Int64("multixact.new_oldest", int64(newOldest)))
}

func (m *Manager) truncate(newOldest common.MultiXactID, owner common.OwnerID) error {
	if !newOldest.IsValid() {
		return errors.Wrap(ErrInvalidID, "truncate to invalid multixact")
	}
	if m.inRecovery.Load() {
		return errors.Wrap(ErrInRecovery, "truncate")
	}

	m.truncationLock.Lock()
	defer m.truncationLock.Unlock()

	m.state.mu.RLock()
	started := m.state.finishedStartup
	next := m.state.nextLocked()
	nextOffset := m.state.nextOffset
	m.state.mu.RUnlock()

	if !started {
		return ErrNotStarted
	}
	if next.Precedes(newOldest) {
		return errors.Wrapf(ErrAheadOfAllocator, "truncate to %d, next %d", newOldest, next)
	}

	// Pages written so far must be visible to the directory scan and to
	// the existence checks below.
	if err := m.offsets.Flush(); err != nil {
		return ioError(err, "flush offsets")
	}

	earliestPage, ok, err := m.offsets.EarliestPage()
	if err != nil {
		return ioError(err, "find earliest offset segment")
	}
	if !ok {
		m.log.Warnw("no offset segments found, skipping truncation", "new_oldest", newOldest)
		return nil
	}
	earliest := common.MultiXactID(earliestPage * offsetsPerPage)
	if earliest < common.FirstMultiXactID {
		earliest = common.FirstMultiXactID
	}
	// The range starts at what is still on disk, not at the floor: the
	// floor may already have been moved by SetRetentionFloor, or a
	// previous truncation removed files but didn't get to update it.
	oldest := earliest
	if newOldest.PrecedesOrEquals(oldest) {
		return nil
	}

	oldestOffset, err := m.startOffset(oldest, next, nextOffset)
	if err != nil {
		return err
	}
	start, ok := oldestOffset.Get()
	if !ok {
		m.log.Infow(
			"cannot truncate: start offset of the oldest multixact is unknown",
			"oldest", oldest,
		)
		return nil
	}

	newOldestOffset, err := m.startOffset(newOldest, next, nextOffset)
	if err != nil {
		return err
	}
	end, ok := newOldestOffset.Get()
	if !ok {
		m.log.Infow(
			"cannot truncate: start offset of the new oldest multixact is unknown",
			"new_oldest", newOldest,
		)
		return nil
	}

	m.log.Infow(
		"truncating multixacts",
		"from", oldest, "to", newOldest,
		"from_offset", start, "to_offset", end,
		"owner", owner,
	)

	rec := recovery.NewTruncateRecord(owner, oldest, newOldest, start, end)
	lsn, err := m.wal.Append(&rec)
	if err != nil {
		return errors.Wrap(err, "log truncation")
	}
	if err := m.wal.Flush(lsn); err != nil {
		return errors.Wrap(err, "flush truncation record")
	}

	m.state.mu.Lock()
	if m.state.oldestMultiXactID.Precedes(newOldest) {
		m.state.oldestMultiXactID = newOldest
		m.state.oldestOwner = owner
	}
	m.state.mu.Unlock()

	if err := m.truncateMembers(start, end); err != nil {
		return err
	}
	if err := m.truncateOffsets(newOldest); err != nil {
		return err
	}

	m.metrics.inc(m.metrics.truncations)
	return nil
}

// startOffset finds where the members of multi begin. None means the
// offset log no longer has (or never had) the entry.
func (m *Manager) startOffset(
	multi, next common.MultiXactID,
	nextOffset common.MultiXactOffset,
) (optional.Optional[common.MultiXactOffset], error) {
	if multi == next {
		return optional.Some(nextOffset), nil
	}

	pageno := offsetPage(multi)
	exists, err := m.offsets.PageExists(pageno)
	if err != nil {
		return optional.None[common.MultiXactOffset](), ioError(err, "check offset page")
	}
	if !exists {
		return optional.None[common.MultiXactOffset](), nil
	}

	var offset common.MultiXactOffset
	if err := m.offsets.View(pageno, func(page []byte) {
		offset = readOffset(page, offsetEntry(multi))
	}); err != nil {
		return optional.None[common.MultiXactOffset](), ioError(err, "read offset")
	}
	if offset == 0 {
		return optional.None[common.MultiXactOffset](), nil
	}

	return optional.Some(offset), nil
}

// truncateMembers deletes the member segments from the one holding start
// up to, not including, the one holding end, wrapping around.
func (m *Manager) truncateMembers(start, end common.MultiXactOffset) error {
	maxSegment := memberSegment(common.MaxMultiXactOffset)

	seg := memberSegment(start)
	endSeg := memberSegment(end)
	for seg != endSeg {
		if err := m.members.DeleteSegment(seg); err != nil {
			return ioError(err, "delete member segment")
		}
		if seg == maxSegment {
			seg = 0
		} else {
			seg++
		}
	}

	return nil
}

// truncateOffsets removes offset segments that only hold ids before
// newOldest. It steps back one id: when newOldest is both the next id and
// the first entry of a page, that page may not exist yet.
func (m *Manager) truncateOffsets(newOldest common.MultiXactID) error {
	if err := m.offsets.Truncate(offsetPage(newOldest.Previous())); err != nil {
		return ioError(err, "truncate offsets")
	}
	return nil
}
