package common

import "fmt"

// MemberStatus is the lock strength (or update kind) a member holds.
type MemberStatus uint8

const (
	ForKeyShare MemberStatus = iota
	ForShare
	ForNoKeyUpdate
	ForUpdate
	NoKeyUpdate
	Update
)

const MaxMemberStatus = Update

func (s MemberStatus) IsValid() bool {
	return s <= MaxMemberStatus
}

// IsUpdate reports whether the member modified the row rather than only
// locking it.
func (s MemberStatus) IsUpdate() bool {
	return s == NoKeyUpdate || s == Update
}

func (s MemberStatus) String() string {
	switch s {
	case ForKeyShare:
		return "keysh"
	case ForShare:
		return "sh"
	case ForNoKeyUpdate:
		return "fornokeyupd"
	case ForUpdate:
		return "forupd"
	case NoKeyUpdate:
		return "nokeyupd"
	case Update:
		return "upd"
	default:
		return fmt.Sprintf("unk%d", uint8(s))
	}
}

type MultiXactMember struct {
	Xid    TransactionID
	Status MemberStatus
}

func (m MultiXactMember) String() string {
	return fmt.Sprintf("%d(%s)", m.Xid, m.Status)
}

// Less orders members by xid, then by status, ignoring wraparound. Only
// used to build a canonical form of a member set.
func (m MultiXactMember) Less(o MultiXactMember) bool {
	if m.Xid != o.Xid {
		return m.Xid < o.Xid
	}
	return m.Status < o.Status
}
