package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGatherer struct {
	runs    atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	hold    time.Duration
}

func (g *countingGatherer) Name() string { return "counting" }

func (g *countingGatherer) Run(ctx context.Context) error {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	g.runs.Add(1)
	select {
	case <-ctx.Done():
	case <-time.After(g.hold):
	}
	return nil
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("30 18 * * MON-FRI"))
	assert.NoError(t, Validate("0 0 7 * * *"))
	assert.NoError(t, Validate("@daily"))
	assert.Error(t, Validate("every day"))
	assert.Error(t, Validate("61 * * * *"))
}

func TestSchedulerRunsJob(t *testing.T) {
	s := New(time.UTC)
	g := &countingGatherer{}
	require.NoError(t, s.Add("* * * * * *", g))
	assert.False(t, s.Next().IsZero())

	s.Start()
	defer s.Stop()
	require.Eventually(t, func() bool { return g.runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	s := New(time.UTC)
	g := &countingGatherer{hold: 2500 * time.Millisecond}
	require.NoError(t, s.Add("* * * * * *", g))

	s.Start()
	require.Eventually(t, func() bool { return g.runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(1500 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), g.maxSeen.Load())
	assert.Equal(t, int32(0), g.active.Load(), "stop waits for the running job")
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := New(time.UTC)
	assert.Error(t, s.Add("not a schedule", &countingGatherer{}))
}
