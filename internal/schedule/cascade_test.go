package schedule

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heatsAt(times ...time.Time) []heat.Heat {
	heats := make([]heat.Heat, len(times))
	for i, t := range times {
		heats[i] = heat.Heat{ID: uuid.New(), StartTime: t, MaxLimitPerHeat: 6}
	}
	return heats
}

func TestScheduleStartTimes(t *testing.T) {
	times := ScheduleStartTimes(nil, 3, testStart, 30, time.UTC)
	require.Len(t, times, 3)
	assert.WithinDuration(t, testStart, times[0], 0)
	assert.WithinDuration(t, testStart.Add(30*time.Minute), times[1], 0)
	assert.WithinDuration(t, testStart.Add(60*time.Minute), times[2], 0)

	existing := []time.Time{testStart.Add(time.Hour), testStart}
	next := ScheduleStartTimes(existing, 2, testStart, 15, time.UTC)
	require.Len(t, next, 2)
	assert.WithinDuration(t, testStart.Add(75*time.Minute), next[0], 0)
	assert.WithinDuration(t, testStart.Add(90*time.Minute), next[1], 0)

	assert.Empty(t, ScheduleStartTimes(nil, 0, testStart, 15, time.UTC))
}

func TestAddMinutesKeepsLocalWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Clocks fall back at 02:00 on 2024-11-03.
	start := time.Date(2024, 11, 3, 0, 30, 0, 0, loc)
	next := AddMinutes(start, 120, loc)

	assert.Equal(t, 2, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.Equal(t, 3*time.Hour, next.Sub(start))
}

func TestCascadeShiftRewritesEveryHeat(t *testing.T) {
	heats := heatsAt(
		testStart.Add(95*time.Minute),
		testStart,
		testStart.Add(10*time.Minute),
	)

	shifted := CascadeShift(heats, testStart.Add(time.Hour), 20, time.UTC)
	require.Len(t, shifted, 3)

	assert.Equal(t, heats[1].ID, shifted[0].ID)
	assert.Equal(t, heats[2].ID, shifted[1].ID)
	assert.Equal(t, heats[0].ID, shifted[2].ID)
	for i, h := range shifted {
		assert.WithinDuration(t, testStart.Add(time.Hour+time.Duration(i*20)*time.Minute), h.StartTime, 0)
	}
	assert.WithinDuration(t, testStart, heats[1].StartTime, 0, "input is not mutated")
}

func TestShiftAfterOnlyMovesHeatsFromTheBreak(t *testing.T) {
	heats := heatsAt(
		testStart,
		testStart.Add(30*time.Minute),
		testStart.Add(60*time.Minute),
		testStart.Add(90*time.Minute),
	)
	breakStart := testStart.Add(60 * time.Minute)

	moved := ShiftAfter(heats, breakStart, 30)
	require.Len(t, moved, 2)

	before := make(map[uuid.UUID]time.Time)
	for _, h := range heats {
		before[h.ID] = h.StartTime
	}
	for _, h := range moved {
		assert.False(t, before[h.ID].Before(breakStart))
		assert.Equal(t, 30*time.Minute, h.StartTime.Sub(before[h.ID]))
	}
}

func TestShiftAfterAddsElapsedTimeAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 01:45 EDT; 30 minutes later the clocks have fallen back to 01:15 EST.
	breakStart := time.Date(2024, 11, 3, 5, 45, 0, 0, time.UTC).In(loc)
	heats := heatsAt(breakStart)

	moved := ShiftAfter(heats, breakStart, 30)
	require.Len(t, moved, 1)
	assert.Equal(t, 30*time.Minute, moved[0].StartTime.Sub(breakStart))
	assert.Equal(t, 1, moved[0].StartTime.In(loc).Hour())
	assert.Equal(t, 15, moved[0].StartTime.In(loc).Minute())
}

func TestCascadeFromKeepsEarlierGaps(t *testing.T) {
	heats := heatsAt(
		testStart,
		testStart.Add(90*time.Minute),
		testStart.Add(200*time.Minute),
		testStart.Add(150*time.Minute),
	)
	from := testStart.Add(150 * time.Minute)

	shifted := CascadeFrom(heats, from, 30, time.UTC)
	require.Len(t, shifted, 2)
	assert.Equal(t, heats[3].ID, shifted[0].ID)
	assert.Equal(t, heats[2].ID, shifted[1].ID)
	assert.WithinDuration(t, from, shifted[0].StartTime, 0)
	assert.WithinDuration(t, from.Add(30*time.Minute), shifted[1].StartTime, 0)

	assert.Empty(t, CascadeFrom(heats, testStart.Add(5*time.Hour), 30, time.UTC))
}
