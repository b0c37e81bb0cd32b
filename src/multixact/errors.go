package multixact

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrInvalidID             = errors.New("invalid multixact input")
	ErrBeforeRetentionFloor  = errors.New("multixact is older than the retention floor")
	ErrAheadOfAllocator      = errors.New("multixact has not been created yet")
	ErrDuplicateUpdateMember = errors.New("multixact has more than one updating member")
	ErrIO                    = errors.New("multixact page i/o failed")
	ErrInRecovery            = errors.New("cannot assign multixact ids during recovery")
	ErrNotStarted            = errors.New("multixact startup is not finished")
	ErrSlotInUse             = errors.New("worker slot is already in use")

	// ErrObsoleteGroup is returned while expanding a group that resolves to
	// no members.
	ErrObsoleteGroup = errors.New("multixact has no members")

	// errNextOffsetPending means the successor's offset entry is not written
	// yet. The creating worker is between allocation and recording.
	errNextOffsetPending = errors.New("next multixact offset is not set yet")
)

func ioError(err error, msg string) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrIO, err)
}
