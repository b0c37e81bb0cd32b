package bufferpool

import (
	"sort"
	"testing"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/multixact/src/storage/disk"
)

func plainPrecedes(a, b int64) bool {
	return a < b
}

func newDiskPool(t *testing.T, size uint64) (*Pool, *disk.Manager) {
	dm := disk.New(afero.NewMemMapFs(), "/data/test")
	require.NoError(t, dm.Init())
	return New("test", size, NewLRUReplacer(), dm, plainPrecedes, zap.NewNop().Sugar()), dm
}

func TestZeroPageAndReadBack(t *testing.T) {
	pool, dm := newDiskPool(t, 4)

	require.NoError(t, pool.Exclusive(func(tx Txn) error {
		page, err := tx.ZeroPage(3)
		if err != nil {
			return err
		}
		page[10] = 0xAB
		return nil
	}))
	assert.EqualValues(t, 3, pool.LatestPage())

	exists, err := dm.PageExists(3)
	require.NoError(t, err)
	assert.False(t, exists, "zeroing doesn't write through")

	require.NoError(t, pool.WritePage(3))
	exists, err = dm.PageExists(3)
	require.NoError(t, err)
	assert.True(t, exists)

	var got byte
	require.NoError(t, pool.View(3, func(page []byte) { got = page[10] }))
	assert.Equal(t, byte(0xAB), got)
}

func TestReadMissingPage(t *testing.T) {
	pool, _ := newDiskPool(t, 2)

	err := pool.View(7, func([]byte) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, disk.ErrPageNotFound))
	assert.Equal(t, 0, pool.Resident())

	pool.SetZeroMissing(true)
	require.NoError(t, pool.View(7, func(page []byte) {
		assert.Equal(t, make([]byte, disk.PageSize), page)
	}))
	assert.Equal(t, 1, pool.Resident())
}

func TestEvictionWritesDirtyVictim(t *testing.T) {
	dm := new(MockDiskManager)
	pool := New("mock", 2, NewLRUReplacer(), dm, plainPrecedes, zap.NewNop().Sugar())

	dm.On("ReadPage", int64(1), mock.Anything).Return(nil)
	dm.On("ReadPage", int64(2), mock.Anything).Return(nil)
	dm.On("WritePage", int64(1), mock.Anything).Return(nil)

	require.NoError(t, pool.Exclusive(func(tx Txn) error {
		page, err := tx.Page(1)
		if err != nil {
			return err
		}
		page[0] = 1
		_, err = tx.ReadPage(2)
		return err
	}))

	dm.On("ReadPage", int64(5), mock.Anything).Return(nil)
	require.NoError(t, pool.View(5, func([]byte) {}))

	dm.AssertCalled(t, "WritePage", int64(1), mock.Anything)
	dm.AssertNotCalled(t, "WritePage", int64(2), mock.Anything)
	dm.AssertExpectations(t)
}

func TestLatestPageIsNotEvicted(t *testing.T) {
	pool, dm := newDiskPool(t, 2)
	pool.SetZeroMissing(true)

	require.NoError(t, pool.ZeroPage(0))
	for pageno := int64(1); pageno < 6; pageno++ {
		require.NoError(t, pool.View(pageno, func([]byte) {}))
	}

	_, ok := pool.pageToFrame[0]
	assert.True(t, ok, "latest page must stay resident")

	exists, err := dm.PageExists(0)
	require.NoError(t, err)
	assert.False(t, exists, "latest page was never written back")
}

func TestFlush(t *testing.T) {
	pool, dm := newDiskPool(t, 4)

	for pageno := int64(0); pageno < 3; pageno++ {
		require.NoError(t, pool.ZeroPage(pageno))
	}
	require.NoError(t, pool.Flush())

	for pageno := int64(0); pageno < 3; pageno++ {
		exists, err := dm.PageExists(pageno)
		require.NoError(t, err)
		assert.True(t, exists)
	}
}

func TestTruncate(t *testing.T) {
	pool, dm := newDiskPool(t, 4)

	for _, pageno := range []int64{0, disk.PagesPerSegment, 2 * disk.PagesPerSegment, 3*disk.PagesPerSegment + 1} {
		require.NoError(t, pool.ZeroPage(pageno))
		require.NoError(t, pool.WritePage(pageno))
	}

	require.NoError(t, pool.Truncate(2*disk.PagesPerSegment+5))

	segs, err := dm.Segments()
	require.NoError(t, err)
	sort.Slice(segs, func(i, j int) bool { return segs[i] < segs[j] })
	assert.Equal(t, []int64{2, 3}, segs)

	earliest, ok, err := pool.EarliestPage()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2*disk.PagesPerSegment, earliest)
}

func TestTruncateRefusesPastLatest(t *testing.T) {
	pool, dm := newDiskPool(t, 4)

	require.NoError(t, pool.ZeroPage(0))
	require.NoError(t, pool.WritePage(0))

	require.NoError(t, pool.Truncate(10*disk.PagesPerSegment))

	segs, err := dm.Segments()
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, segs)
}

func TestDeleteSegment(t *testing.T) {
	pool, dm := newDiskPool(t, 4)

	require.NoError(t, pool.ZeroPage(1))
	require.NoError(t, pool.WritePage(1))
	require.NoError(t, pool.ZeroPage(disk.PagesPerSegment))
	require.NoError(t, pool.WritePage(disk.PagesPerSegment))

	require.NoError(t, pool.DeleteSegment(0))
	assert.Equal(t, 1, pool.Resident())

	segs, err := dm.Segments()
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, segs)

	_, ok, err := New("empty", 2, NewLRUReplacer(), disk.New(afero.NewMemMapFs(), "/x"), plainPrecedes, zap.NewNop().Sugar()).EarliestPage()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSharedReadsResidentPages(t *testing.T) {
	dm := new(MockDiskManager)
	pool := New("mock", 4, NewLRUReplacer(), dm, plainPrecedes, zap.NewNop().Sugar())

	require.NoError(t, pool.Exclusive(func(tx Txn) error {
		for _, pageno := range []int64{1, 2} {
			page, err := tx.ZeroPage(pageno)
			if err != nil {
				return err
			}
			page[0] = byte(pageno)
		}
		return nil
	}))

	passes := 0
	var got []byte
	require.NoError(t, pool.Shared(func(tx ReadTxn) error {
		passes++
		got = got[:0]
		for _, pageno := range []int64{1, 2} {
			page, err := tx.ReadPage(pageno)
			if err != nil {
				return err
			}
			got = append(got, page[0])
		}
		return nil
	}))
	assert.Equal(t, 1, passes)
	assert.Equal(t, []byte{1, 2}, got)
	dm.AssertNotCalled(t, "ReadPage", mock.Anything, mock.Anything)
}

func TestSharedFallsBackToExclusiveForMissingPage(t *testing.T) {
	dm := new(MockDiskManager)
	pool := New("mock", 4, NewLRUReplacer(), dm, plainPrecedes, zap.NewNop().Sugar())
	require.NoError(t, pool.ZeroPage(1))

	dm.On("ReadPage", int64(6), mock.Anything).Return(nil).Once()

	passes := 0
	require.NoError(t, pool.Shared(func(tx ReadTxn) error {
		passes++
		if _, err := tx.ReadPage(1); err != nil {
			return err
		}
		_, err := tx.ReadPage(6)
		return err
	}))
	assert.Equal(t, 2, passes, "rerun once under the exclusive lock")
	assert.Equal(t, 2, pool.Resident())

	// now resident, a single shared pass is enough
	passes = 0
	require.NoError(t, pool.Shared(func(tx ReadTxn) error {
		passes++
		_, err := tx.ReadPage(6)
		return err
	}))
	assert.Equal(t, 1, passes)
	dm.AssertExpectations(t)
}

func TestSharedReturnsReadErrors(t *testing.T) {
	dm := new(MockDiskManager)
	pool := New("mock", 2, NewLRUReplacer(), dm, plainPrecedes, zap.NewNop().Sugar())

	dm.On("ReadPage", int64(3), mock.Anything).Return(disk.ErrPageNotFound)

	err := pool.Shared(func(tx ReadTxn) error {
		_, err := tx.ReadPage(3)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, disk.ErrPageNotFound))
	assert.False(t, errors.Is(err, errNotResident))
}

func TestEarliestPageFollowsPrecedes(t *testing.T) {
	dm := new(MockDiskManager)
	// the space wrapped around: segments 0 and 1 are newer than 7
	wrapped := func(a, b int64) bool {
		shift := func(p int64) int64 {
			if p < 5*disk.PagesPerSegment {
				return p + 100*disk.PagesPerSegment
			}
			return p
		}
		return shift(a) < shift(b)
	}
	pool := New("mock", 2, NewLRUReplacer(), dm, wrapped, zap.NewNop().Sugar())

	dm.On("Segments").Return([]int64{0, 1, 6, 7}, nil)

	earliest, ok, err := pool.EarliestPage()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(6*disk.PagesPerSegment), earliest)
}
