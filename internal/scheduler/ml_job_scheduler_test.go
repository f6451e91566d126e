package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRefresher struct {
	n atomic.Int32
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.n.Add(1)
	return nil
}

func TestMLJobSchedulerRefreshes(t *testing.T) {
	r := &countingRefresher{}
	s := NewMLJobScheduler(r, zap.NewNop())

	require.NoError(t, s.Start(context.Background(), "@every 1s"))
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.n.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestMLJobSchedulerReschedule(t *testing.T) {
	s := NewMLJobScheduler(&countingRefresher{}, zap.NewNop())

	require.NoError(t, s.Reschedule("@every 5m"))
	assert.Equal(t, "@every 5m", s.Spec())

	assert.Error(t, s.Reschedule("not a spec"))
	assert.Equal(t, "@every 5m", s.Spec())

	require.NoError(t, s.Reschedule("0 */10 * * * *"))
	assert.Equal(t, "0 */10 * * * *", s.Spec())
	assert.Len(t, s.cron.Entries(), 1)
}
