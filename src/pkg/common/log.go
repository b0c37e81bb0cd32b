package common

// LSN is the position right after a record in the write-ahead journal.
type LSN uint64

var NIL_LSN LSN = LSN(0)

// LogKind selects one of the two page logs.
type LogKind byte

const (
	OffsetLog LogKind = iota + 1
	MemberLog
)

func (k LogKind) String() string {
	switch k {
	case OffsetLog:
		return "offsets"
	case MemberLog:
		return "members"
	default:
		return "unknown"
	}
}
