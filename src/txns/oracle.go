package txns

import (
	"sync"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

var ErrUnknownTransaction = errors.New("transaction is not running")

type txnStatus uint8

const (
	statusInProgress txnStatus = iota
	statusCommitted
	statusAborted
)

// Oracle hands out transaction ids and remembers how each one ended. It
// keeps everything in memory and is meant for tests and tools.
type Oracle struct {
	mu     sync.RWMutex
	next   common.TransactionID
	status map[common.TransactionID]txnStatus
}

func NewOracle() *Oracle {
	return &Oracle{
		next:   common.FirstNormalTransactionID,
		status: make(map[common.TransactionID]txnStatus),
	}
}

func (o *Oracle) Begin() common.TransactionID {
	o.mu.Lock()
	defer o.mu.Unlock()

	xid := o.next
	o.next = o.next.Advance()
	o.status[xid] = statusInProgress

	return xid
}

func (o *Oracle) Commit(xid common.TransactionID) error {
	return o.finish(xid, statusCommitted)
}

func (o *Oracle) Abort(xid common.TransactionID) error {
	return o.finish(xid, statusAborted)
}

func (o *Oracle) finish(xid common.TransactionID, st txnStatus) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if cur, ok := o.status[xid]; !ok || cur != statusInProgress {
		return errors.Wrapf(ErrUnknownTransaction, "xid %d", xid)
	}
	o.status[xid] = st

	return nil
}

func (o *Oracle) IsInProgress(xid common.TransactionID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	st, ok := o.status[xid]
	return ok && st == statusInProgress
}

// DidCommit is false for unknown xids, as if they had crashed.
func (o *Oracle) DidCommit(xid common.TransactionID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	st, ok := o.status[xid]
	return ok && st == statusCommitted
}

// AdvanceNextXid makes sure xid is never handed out again.
func (o *Oracle) AdvanceNextXid(xid common.TransactionID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !xid.Precedes(o.next) {
		o.next = xid.Advance()
	}
}

func (o *Oracle) NextXid() common.TransactionID {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.next
}
