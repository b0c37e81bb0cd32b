package recovery

import (
	"encoding"
	"fmt"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

// Record is one durable change to the multixact logs.
type Record interface {
	encoding.BinaryMarshaler
	Tag() LogRecordTypeTag
}

var (
	_ Record = &ZeroPageRecord{}
	_ Record = &CreateRecord{}
	_ Record = &TruncateRecord{}
)

// ZeroPageRecord says a page of one of the logs was initialized.
type ZeroPageRecord struct {
	Log    common.LogKind
	PageNo int64
}

func NewZeroPageRecord(log common.LogKind, pageno int64) ZeroPageRecord {
	return ZeroPageRecord{
		Log:    log,
		PageNo: pageno,
	}
}

func (r *ZeroPageRecord) Tag() LogRecordTypeTag {
	return TypeZeroPage
}

func (r *ZeroPageRecord) String() string {
	return fmt.Sprintf("ZERO_PAGE %s page=%d", r.Log, r.PageNo)
}

// CreateRecord carries everything needed to redo a group creation.
type CreateRecord struct {
	ID      common.MultiXactID
	Offset  common.MultiXactOffset
	Members []common.MultiXactMember
}

func NewCreateRecord(
	id common.MultiXactID,
	offset common.MultiXactOffset,
	members []common.MultiXactMember,
) CreateRecord {
	return CreateRecord{
		ID:      id,
		Offset:  offset,
		Members: members,
	}
}

func (r *CreateRecord) Tag() LogRecordTypeTag {
	return TypeCreate
}

func (r *CreateRecord) String() string {
	return fmt.Sprintf("CREATE id=%d offset=%d members=%v", r.ID, r.Offset, r.Members)
}

// TruncateRecord moves the retention floor from StartID to EndID and
// frees the member range [StartOffset, EndOffset).
type TruncateRecord struct {
	Owner       common.OwnerID
	StartID     common.MultiXactID
	EndID       common.MultiXactID
	StartOffset common.MultiXactOffset
	EndOffset   common.MultiXactOffset
}

func NewTruncateRecord(
	owner common.OwnerID,
	startID, endID common.MultiXactID,
	startOffset, endOffset common.MultiXactOffset,
) TruncateRecord {
	return TruncateRecord{
		Owner:       owner,
		StartID:     startID,
		EndID:       endID,
		StartOffset: startOffset,
		EndOffset:   endOffset,
	}
}

func (r *TruncateRecord) Tag() LogRecordTypeTag {
	return TypeTruncate
}

func (r *TruncateRecord) String() string {
	return fmt.Sprintf(
		"TRUNCATE owner=%s ids=[%d, %d) offsets=[%d, %d)",
		r.Owner, r.StartID, r.EndID, r.StartOffset, r.EndOffset,
	)
}
