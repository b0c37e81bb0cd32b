package multixact

import (
	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/recovery"
)

// Redo applies one journal record. Applying a record twice is harmless.
func (m *Manager) Redo(rec recovery.Record) error {
	switch r := rec.(type) {
	case *recovery.ZeroPageRecord:
		pool, ok := m.pool(r.Log)
		if !ok {
			return errors.Errorf("zero page record for unknown log %d", r.Log)
		}
		if err := m.zeroPage(r.Log, r.PageNo, false); err != nil {
			return err
		}
		if err := pool.WritePage(r.PageNo); err != nil {
			return ioError(err, "write zeroed page")
		}
		return nil

	case *recovery.CreateRecord:
		m.log.Debugw("redo create", "multi", r.ID, "offset", r.Offset, "members", r.Members)

		if err := m.recordNewMultiXact(r.ID, r.Offset, r.Members); err != nil {
			return err
		}
		m.AdvanceNextMultiXactID(r.ID+1, r.Offset+common.MultiXactOffset(len(r.Members)))

		if adv, ok := m.oracle.(xidAdvancer); ok {
			maxXid := common.InvalidTransactionID
			for _, mem := range r.Members {
				if !maxXid.IsValid() || maxXid.Precedes(mem.Xid) {
					maxXid = mem.Xid
				}
			}
			if maxXid.IsValid() {
				adv.AdvanceNextXid(maxXid)
			}
		}
		return nil

	case *recovery.TruncateRecord:
		m.log.Debugw("redo truncate", "record", r.String())

		m.truncationLock.Lock()
		defer m.truncationLock.Unlock()

		m.AdvanceOldest(r.EndID, r.Owner)
		if err := m.truncateMembers(r.StartOffset, r.EndOffset); err != nil {
			return err
		}
		m.offsets.SetLatestPage(offsetPage(r.EndID))
		return m.truncateOffsets(r.EndID)

	default:
		return errors.Errorf("unexpected multixact record %T", rec)
	}
}

// Replay applies every record of the iterator in order.
func (m *Manager) Replay(it recovery.Iterator) error {
	return recovery.ForEach(it, func(lsn common.LSN, r recovery.Record) error {
		if err := m.Redo(r); err != nil {
			return errors.Wrapf(err, "redo record at %d", lsn)
		}
		return nil
	})
}
