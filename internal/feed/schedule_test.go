package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveScheduleBaseWidth(t *testing.T) {
	s := AdaptiveSchedule{}
	assert.Equal(t, 7*24*time.Hour, s.BaseWidth(1))
	assert.Equal(t, 7*24*time.Hour, s.BaseWidth(10))
	assert.Equal(t, 24*time.Hour, s.BaseWidth(11))
	assert.Equal(t, 24*time.Hour, s.BaseWidth(100))
	assert.Equal(t, 6*time.Hour, s.BaseWidth(1000))
	assert.Equal(t, time.Hour, s.BaseWidth(10000))
}

func TestSchedulesAreMonotoneAndEnd(t *testing.T) {
	for _, s := range []Schedule{AdaptiveSchedule{}, AdaptiveSchedule{MaxRounds: 3}, DailySchedule{MaxRounds: 50}} {
		prev := baseTime
		reachedUnbounded := false
		for round := 0; round < 5000; round++ {
			c := s.Cutoff(baseTime, round, 500)
			assert.LessOrEqual(t, c, prev, "%T round %d", s, round)
			prev = c
			if c == Unbounded {
				reachedUnbounded = true
				break
			}
		}
		assert.True(t, reachedUnbounded, "%T never became unbounded", s)
	}
}

func TestAdaptiveScheduleDoubles(t *testing.T) {
	s := AdaptiveSchedule{}
	hour := time.Hour.Milliseconds()
	assert.Equal(t, baseTime-hour, s.Cutoff(baseTime, 0, 5000))
	assert.Equal(t, baseTime-2*hour, s.Cutoff(baseTime, 1, 5000))
	assert.Equal(t, baseTime-8*hour, s.Cutoff(baseTime, 3, 5000))
}

func TestDailySchedule(t *testing.T) {
	day := (24 * time.Hour).Milliseconds()
	s := DailySchedule{}
	assert.Equal(t, baseTime-day, s.Cutoff(baseTime, 0, 1))
	assert.Equal(t, baseTime-3*day, s.Cutoff(baseTime, 2, 1))
	assert.Equal(t, Unbounded, s.Cutoff(baseTime, 3650, 1))
}
