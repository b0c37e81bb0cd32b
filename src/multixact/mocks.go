package multixact

import (
	"github.com/stretchr/testify/mock"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
)

type MockTransactionOracle struct {
	mock.Mock
}

var (
	_ TransactionOracle = &MockTransactionOracle{}
)

func (m *MockTransactionOracle) IsInProgress(xid common.TransactionID) bool {
	args := m.Called(xid)
	return args.Bool(0)
}

func (m *MockTransactionOracle) DidCommit(xid common.TransactionID) bool {
	args := m.Called(xid)
	return args.Bool(0)
}
