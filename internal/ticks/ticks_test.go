package ticks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTicksElapsedCountsWholePeriods(t *testing.T) {
	start := time.Unix(0, 0)
	require.EqualValues(t, 0, TicksElapsed(start, start))
	require.EqualValues(t, 2, TicksElapsed(start, start.Add(2*Period+Period/2)))
}

func TestTicksElapsedClampsNegative(t *testing.T) {
	start := time.Unix(100, 0)
	require.EqualValues(t, 0, TicksElapsed(start, start.Add(-time.Second)))
}

func TestSchedulerAdvancesOnTime(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewScheduler(start)
	require.False(t, s.Due(start))

	now := start.Add(Period)
	require.True(t, s.Due(now))
	overran := s.Advance(now)
	require.False(t, overran)
	require.Zero(t, s.Overruns())
}

func TestSchedulerSkipsOverdueTickWithoutBacklog(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewScheduler(start)

	late := start.Add(10 * Period)
	overran := s.Advance(late)
	require.True(t, overran)
	require.EqualValues(t, 1, s.Overruns())

	// nextDue should have jumped to late+Period, not backlogged to start+2*Period.
	require.False(t, s.Due(late))
	require.True(t, s.Due(late.Add(Period)))
}
