package recovery

import (
	"sync"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

// Sink is the write-ahead journal the multixact logs report to. A record
// appended before a page change must be durable, once flushed, before the
// page itself reaches disk.
type Sink interface {
	Append(r Record) (common.LSN, error)
	Flush(lsn common.LSN) error
}

// MemoryLog keeps marshalled records in memory. LSNs are 1-based record
// numbers.
type MemoryLog struct {
	mu      sync.Mutex
	records [][]byte
	flushed common.LSN
}

var (
	_ Sink = &MemoryLog{}
)

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(r Record) (common.LSN, error) {
	data, err := r.MarshalBinary()
	if err != nil {
		return common.NIL_LSN, errors.Wrap(err, "marshal record")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, data)
	return common.LSN(len(l.records)), nil
}

func (l *MemoryLog) Flush(lsn common.LSN) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lsn > common.LSN(len(l.records)) {
		return errors.Errorf("flush past end of log: %d > %d", lsn, len(l.records))
	}
	if lsn > l.flushed {
		l.flushed = lsn
	}
	return nil
}

func (l *MemoryLog) Flushed() common.LSN {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.flushed
}

func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.records)
}

// Iterator walks a snapshot of the records appended so far.
func (l *MemoryLog) Iterator() Iterator {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make([][]byte, len(l.records))
	copy(snapshot, l.records)

	return &memoryIter{records: snapshot, pos: -1}
}

type memoryIter struct {
	records [][]byte
	pos     int
}

func (it *memoryIter) MoveForward() (bool, error) {
	if it.pos+1 >= len(it.records) {
		it.pos = len(it.records)
		return false, nil
	}
	it.pos++
	return true, nil
}

func (it *memoryIter) ReadRecord() (Record, error) {
	if it.pos < 0 || it.pos >= len(it.records) {
		return nil, ErrInvalidIterator
	}
	return ReadRecord(it.records[it.pos])
}

func (it *memoryIter) Location() common.LSN {
	return common.LSN(it.pos + 1)
}
