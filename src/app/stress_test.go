package app

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/multixact/src/multixact"
	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/recovery"
	"github.com/Blackdeer1524/multixact/src/txns"
)

func newStressManager(t *testing.T) (*multixact.Manager, *txns.Oracle) {
	t.Helper()

	oracle := txns.NewOracle()
	opts := multixact.DefaultOptions()
	opts.MaxWorkers = 4

	m, err := multixact.Open(afero.NewMemMapFs(), "/mx", multixact.Deps{
		WAL:    recovery.NewMemoryLog(),
		Oracle: oracle,
		Log:    zap.NewNop().Sugar(),
	}, opts)
	require.NoError(t, err)
	require.NoError(t, m.Bootstrap(common.NilOwner))

	return m, oracle
}

func TestStress(t *testing.T) {
	m, oracle := newStressManager(t)

	report, err := Stress(context.Background(), m, oracle, StressOptions{Workers: 4, Ops: 60})
	require.NoError(t, err)

	assert.Equal(t, 240, report.Created)
	assert.Equal(t, 80, report.Expanded)
	assert.Equal(t, 240, report.Verified)
}

func TestStressRejectsBadOptions(t *testing.T) {
	m, oracle := newStressManager(t)

	_, err := Stress(context.Background(), m, oracle, StressOptions{Workers: 5, Ops: 1})
	assert.Error(t, err)
	_, err = Stress(context.Background(), m, oracle, StressOptions{Workers: 1, Ops: 0})
	assert.Error(t, err)
}
