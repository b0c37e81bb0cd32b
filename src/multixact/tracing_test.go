package multixact

import (
	"context"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/multixact/src/pkg/common"
	"github.com/Blackdeer1524/multixact/src/recovery"
	"github.com/Blackdeer1524/multixact/src/txns"
)

// spanRecorder remembers the names of the spans it started.
type spanRecorder struct {
	embedded.Tracer

	mu    sync.Mutex
	names []string
}

func (r *spanRecorder) Start(
	ctx context.Context,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()

	return noop.NewTracerProvider().Tracer("").Start(ctx, name, opts...)
}

func (r *spanRecorder) started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.names...)
}

func TestMaintenanceIsTraced(t *testing.T) {
	tracer := &spanRecorder{}
	wal := recovery.NewMemoryLog()

	m, err := Open(afero.NewMemMapFs(), "/data", Deps{
		WAL:    wal,
		Oracle: txns.NewOracle(),
		Log:    zap.NewNop().Sugar(),
		Tracer: tracer,
	}, testOptions())
	require.NoError(t, err)
	require.NoError(t, m.Bootstrap(testOwner))

	s, err := m.NewSession(0)
	require.NoError(t, err)
	defer s.Close()
	s.SetOldestMember()
	_, err = s.Create(10, common.ForShare, 11, common.ForShare)
	require.NoError(t, err)
	_, err = s.Create(12, common.ForShare, 13, common.ForShare)
	require.NoError(t, err)

	require.NoError(t, m.Checkpoint())
	require.NoError(t, m.Truncate(2, testOwner))
	assert.Error(t, m.Truncate(10, testOwner), "failures are traced too")

	replica, err := Open(afero.NewMemMapFs(), "/data", Deps{
		WAL:    recovery.NewMemoryLog(),
		Oracle: txns.NewOracle(),
		Log:    zap.NewNop().Sugar(),
		Tracer: tracer,
	}, testOptions())
	require.NoError(t, err)
	require.NoError(t, replica.Recover(wal.Iterator()))

	assert.Equal(t, []string{
		"multixact.Checkpoint",
		"multixact.Truncate",
		"multixact.Truncate",
		"multixact.Recover",
	}, tracer.started())
}
