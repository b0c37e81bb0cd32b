package multixact

import (
	"encoding/binary"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/storage/disk"
)

// Offset log: one little-endian uint32 per group id.
const (
	offsetEntrySize = 4
	offsetsPerPage  = disk.PageSize / offsetEntrySize
)

// Member log: members are stored in groups of membersPerGroup. A group is
// one flag byte per member (packed as a little-endian uint64) followed by
// the members' xids.
const (
	memberBitsPerXact  = 8
	memberFlagsPerByte = 1
	memberXactBitmask  = (1 << memberBitsPerXact) - 1

	flagBytesPerGroup   = 8
	membersPerGroup     = flagBytesPerGroup * memberFlagsPerByte
	memberGroupSize     = 4*membersPerGroup + flagBytesPerGroup
	memberGroupsPerPage = disk.PageSize / memberGroupSize
	membersPerPage      = memberGroupsPerPage * membersPerGroup
)

func offsetPage(multi common.MultiXactID) int64 {
	return int64(multi / offsetsPerPage)
}

func offsetEntry(multi common.MultiXactID) int {
	return int(multi % offsetsPerPage)
}

func offsetSegment(multi common.MultiXactID) int64 {
	return offsetPage(multi) / disk.PagesPerSegment
}

func memberPage(off common.MultiXactOffset) int64 {
	return int64(off / membersPerPage)
}

func memberSegment(off common.MultiXactOffset) int64 {
	return memberPage(off) / disk.PagesPerSegment
}

// flagsOffset is the byte position of the flag word of the group holding
// off.
func flagsOffset(off common.MultiXactOffset) int {
	group := off / membersPerGroup
	return int(group%memberGroupsPerPage) * memberGroupSize
}

func flagsBitShift(off common.MultiXactOffset) uint {
	return uint(off%membersPerGroup) * memberBitsPerXact
}

func memberOffset(off common.MultiXactOffset) int {
	return flagsOffset(off) + flagBytesPerGroup + int(off%membersPerGroup)*4
}

// offsetPagePrecedes compares offset log pages by the first group id each
// holds, since the id space wraps around.
func offsetPagePrecedes(a, b int64) bool {
	multiA := common.MultiXactID(a*offsetsPerPage) + common.FirstMultiXactID
	multiB := common.MultiXactID(b*offsetsPerPage) + common.FirstMultiXactID
	return multiA.Precedes(multiB)
}

func memberPagePrecedes(a, b int64) bool {
	offA := common.MultiXactOffset(a * membersPerPage)
	offB := common.MultiXactOffset(b * membersPerPage)
	return offA.Precedes(offB)
}

func readOffset(page []byte, entry int) common.MultiXactOffset {
	return common.MultiXactOffset(binary.LittleEndian.Uint32(page[entry*offsetEntrySize:]))
}

func writeOffset(page []byte, entry int, off common.MultiXactOffset) {
	binary.LittleEndian.PutUint32(page[entry*offsetEntrySize:], uint32(off))
}

func readMember(page []byte, off common.MultiXactOffset) common.MultiXactMember {
	flags := binary.LittleEndian.Uint64(page[flagsOffset(off):])
	xid := binary.LittleEndian.Uint32(page[memberOffset(off):])

	return common.MultiXactMember{
		Xid:    common.TransactionID(xid),
		Status: common.MemberStatus((flags >> flagsBitShift(off)) & memberXactBitmask),
	}
}

func writeMember(page []byte, off common.MultiXactOffset, m common.MultiXactMember) {
	flagsAt := flagsOffset(off)
	shift := flagsBitShift(off)

	flags := binary.LittleEndian.Uint64(page[flagsAt:])
	flags &^= memberXactBitmask << shift
	flags |= uint64(m.Status) << shift
	binary.LittleEndian.PutUint64(page[flagsAt:], flags)

	binary.LittleEndian.PutUint32(page[memberOffset(off):], uint32(m.Xid))
}
