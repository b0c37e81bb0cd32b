package bufferpool

import (
	"github.com/stretchr/testify/mock"
)

type MockDiskManager struct {
	mock.Mock
}

var (
	_ DiskManager = &MockDiskManager{}
)

func (m *MockDiskManager) ReadPage(pageno int64, dst []byte) error {
	args := m.Called(pageno, dst)
	return args.Error(0)
}

func (m *MockDiskManager) WritePage(pageno int64, src []byte) error {
	args := m.Called(pageno, src)
	return args.Error(0)
}

func (m *MockDiskManager) PageExists(pageno int64) (bool, error) {
	args := m.Called(pageno)
	return args.Bool(0), args.Error(1)
}

func (m *MockDiskManager) Segments() ([]int64, error) {
	args := m.Called()
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockDiskManager) DeleteSegment(segno int64) error {
	args := m.Called(segno)
	return args.Error(0)
}
