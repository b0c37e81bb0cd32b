package recovery

import (
	"bytes"
	"encoding/binary"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

type LogRecordTypeTag byte

// Type tags for each log record type.
const (
	TypeZeroPage LogRecordTypeTag = iota + 1
	TypeCreate
	TypeTruncate
	TypeUnknown
)

var ErrUnknownRecord = errors.New("unknown log record type")

func checkTag(data []byte, want LogRecordTypeTag) (*bytes.Reader, error) {
	if len(data) < 1 {
		return nil, errors.New("insufficient data for type tag")
	}
	if data[0] != byte(want) {
		return nil, errors.Errorf("invalid type tag %x, want %x", data[0], byte(want))
	}
	return bytes.NewReader(data[1:]), nil
}

func (r *ZeroPageRecord) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(TypeZeroPage))
	buf.WriteByte(byte(r.Log))

	if err := binary.Write(buf, binary.BigEndian, r.PageNo); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (r *ZeroPageRecord) UnmarshalBinary(data []byte) error {
	reader, err := checkTag(data, TypeZeroPage)
	if err != nil {
		return err
	}

	kind, err := reader.ReadByte()
	if err != nil {
		return err
	}
	r.Log = common.LogKind(kind)
	if r.Log != common.OffsetLog && r.Log != common.MemberLog {
		return errors.Errorf("invalid log kind %d", kind)
	}

	return binary.Read(reader, binary.BigEndian, &r.PageNo)
}

func (r *CreateRecord) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(TypeCreate))

	if err := binary.Write(buf, binary.BigEndian, r.ID); err != nil {
		return nil, err
	}

	if err := binary.Write(buf, binary.BigEndian, r.Offset); err != nil {
		return nil, err
	}

	if err := binary.Write(buf, binary.BigEndian, uint32(len(r.Members))); err != nil {
		return nil, err
	}

	for _, m := range r.Members {
		if err := binary.Write(buf, binary.BigEndian, m.Xid); err != nil {
			return nil, err
		}
		buf.WriteByte(byte(m.Status))
	}

	return buf.Bytes(), nil
}

func (r *CreateRecord) UnmarshalBinary(data []byte) error {
	reader, err := checkTag(data, TypeCreate)
	if err != nil {
		return err
	}

	if err := binary.Read(reader, binary.BigEndian, &r.ID); err != nil {
		return err
	}

	if err := binary.Read(reader, binary.BigEndian, &r.Offset); err != nil {
		return err
	}

	var n uint32
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return err
	}
	if int64(n)*5 > int64(reader.Len()) {
		return errors.Errorf("member count %d exceeds record size", n)
	}

	r.Members = make([]common.MultiXactMember, n)
	for i := range r.Members {
		if err := binary.Read(reader, binary.BigEndian, &r.Members[i].Xid); err != nil {
			return err
		}
		st, err := reader.ReadByte()
		if err != nil {
			return err
		}
		r.Members[i].Status = common.MemberStatus(st)
	}

	return nil
}

func (r *TruncateRecord) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(TypeTruncate))

	fields := []any{r.Owner, r.StartID, r.EndID, r.StartOffset, r.EndOffset}
	for _, f := range fields {
		if err := binary.Write(buf, binary.BigEndian, f); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func (r *TruncateRecord) UnmarshalBinary(data []byte) error {
	reader, err := checkTag(data, TypeTruncate)
	if err != nil {
		return err
	}

	fields := []any{&r.Owner, &r.StartID, &r.EndID, &r.StartOffset, &r.EndOffset}
	for _, f := range fields {
		if err := binary.Read(reader, binary.BigEndian, f); err != nil {
			return err
		}
	}

	return nil
}

// ReadRecord decodes a record written by one of the MarshalBinary methods.
func ReadRecord(data []byte) (Record, error) {
	if len(data) == 0 {
		return nil, errors.New("empty record")
	}

	switch LogRecordTypeTag(data[0]) {
	case TypeZeroPage:
		r := &ZeroPageRecord{}
		return r, r.UnmarshalBinary(data)
	case TypeCreate:
		r := &CreateRecord{}
		return r, r.UnmarshalBinary(data)
	case TypeTruncate:
		r := &TruncateRecord{}
		return r, r.UnmarshalBinary(data)
	default:
		return nil, errors.Wrapf(ErrUnknownRecord, "tag %x", data[0])
	}
}
