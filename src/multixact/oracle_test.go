package multixact

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/recovery"
)

func newMockedManager(t *testing.T) (*Manager, *MockTransactionOracle) {
	t.Helper()

	oracle := &MockTransactionOracle{}
	m := openTestManager(t, afero.NewMemMapFs(), recovery.NewMemoryLog(), oracle, testOptions())
	require.NoError(t, m.Bootstrap(testOwner))

	return m, oracle
}

func TestExpandAsksOracleOncePerMember(t *testing.T) {
	m, oracle := newMockedManager(t)

	s, err := m.NewSession(0)
	require.NoError(t, err)
	defer s.Close()
	s.SetOldestMember()

	multi, err := s.CreateFromMembers(members(
		common.TransactionID(10), common.ForShare,
		common.TransactionID(11), common.NoKeyUpdate,
		common.TransactionID(12), common.ForKeyShare,
	))
	require.NoError(t, err)

	oracle.On("IsInProgress", common.TransactionID(10)).Return(true).Once()
	oracle.On("IsInProgress", common.TransactionID(11)).Return(false).Once()
	oracle.On("DidCommit", common.TransactionID(11)).Return(true).Once()
	oracle.On("IsInProgress", common.TransactionID(12)).Return(false).Once()

	expanded, err := s.Expand(multi, 13, common.ForUpdate)
	require.NoError(t, err)
	oracle.AssertExpectations(t)
	// lock-only members that are gone are not asked about commit
	oracle.AssertNotCalled(t, "DidCommit", common.TransactionID(12))

	got, err := s.GetMembers(expanded, false)
	require.NoError(t, err)
	assert.Equal(t, members(
		common.TransactionID(10), common.ForShare,
		common.TransactionID(11), common.NoKeyUpdate,
		common.TransactionID(13), common.ForUpdate,
	), got)
}

func TestIsRunningSkipsOracleForOwnXid(t *testing.T) {
	m, oracle := newMockedManager(t)

	s, err := m.NewSession(0)
	require.NoError(t, err)
	defer s.Close()
	s.BeginUnitOfWork(20)
	s.SetOldestMember()

	multi, err := s.Create(20, common.ForUpdate, 21, common.ForShare)
	require.NoError(t, err)

	running, err := s.IsRunning(multi, false)
	require.NoError(t, err)
	assert.True(t, running)
	oracle.AssertNotCalled(t, "IsInProgress", common.TransactionID(21))
}
