package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

func TestReadRecord(t *testing.T) {
	for _, original := range sampleRecords() {
		data, err := original.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, byte(original.Tag()), data[0])

		recovered, err := ReadRecord(data)
		require.NoError(t, err)
		assert.Equal(t, original, recovered)
	}
}

func TestCreateRecordEmptyMembers(t *testing.T) {
	original := NewCreateRecord(3, 40, nil)
	data, err := original.MarshalBinary()
	require.NoError(t, err)

	var recovered CreateRecord
	require.NoError(t, recovered.UnmarshalBinary(data))
	assert.Empty(t, recovered.Members)
	assert.Equal(t, common.MultiXactID(3), recovered.ID)
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	zero := NewZeroPageRecord(common.OffsetLog, 1)
	data, err := zero.MarshalBinary()
	require.NoError(t, err)

	var create CreateRecord
	assert.Error(t, create.UnmarshalBinary(data), "wrong tag")

	data[1] = 9
	var z ZeroPageRecord
	assert.Error(t, z.UnmarshalBinary(data), "bad log kind")

	_, err = ReadRecord([]byte{byte(TypeUnknown)})
	assert.ErrorIs(t, err, ErrUnknownRecord)

	_, err = ReadRecord(nil)
	assert.Error(t, err)

	c := NewCreateRecord(1, 1, []common.MultiXactMember{{Xid: 5, Status: common.Update}})
	data, err = c.MarshalBinary()
	require.NoError(t, err)
	_, err = ReadRecord(data[:len(data)-2])
	assert.Error(t, err, "truncated member list")
}
