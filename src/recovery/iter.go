package recovery

import (
	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

var ErrInvalidIterator = errors.New("iterator is invalid")

// Iterator starts before the first record. MoveForward reports whether it
// is now positioned on a record.
type Iterator interface {
	MoveForward() (bool, error)
	ReadRecord() (Record, error)
	Location() common.LSN
}

// ForEach feeds every record of the iterator to fn, in order.
func ForEach(it Iterator, fn func(lsn common.LSN, r Record) error) error {
	for {
		ok, err := it.MoveForward()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		r, err := it.ReadRecord()
		if err != nil {
			return errors.Wrapf(err, "read record at %d", it.Location())
		}
		if err := fn(it.Location(), r); err != nil {
			return err
		}
	}
}
