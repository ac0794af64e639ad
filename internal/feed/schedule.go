package feed

import (
	"math"
	"time"
)

// Unbounded is the cutoff that admits every remaining post.
const Unbounded int64 = math.MinInt64

// Schedule yields the age thresholds of successive rounds. Cutoffs must not
// increase from one round to the next, and some round must return Unbounded.
type Schedule interface {
	// Cutoff returns the oldest timestamp, in milliseconds, read during
	// round (0-based) for a viewer watching fanout users.
	Cutoff(now int64, round, fanout int) int64
}

const defaultMaxRounds = 40

// AdaptiveSchedule widens the window exponentially from a base width that
// shrinks as the number of watched users grows.
type AdaptiveSchedule struct {
	// MaxRounds bounds the number of windowed rounds before the cutoff
	// becomes Unbounded. Zero means 40.
	MaxRounds int
}

// BaseWidth returns the width of the first window for fanout watched users.
func (AdaptiveSchedule) BaseWidth(fanout int) time.Duration {
	switch {
	case fanout <= 10:
		return 7 * 24 * time.Hour
	case fanout <= 100:
		return 24 * time.Hour
	case fanout <= 1000:
		return 6 * time.Hour
	default:
		return time.Hour
	}
}

func (s AdaptiveSchedule) Cutoff(now int64, round, fanout int) int64 {
	maxRounds := s.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	if round >= maxRounds {
		return Unbounded
	}
	width := s.BaseWidth(fanout).Milliseconds()
	for i := 0; i < round; i++ {
		if width > math.MaxInt64/2 {
			return Unbounded
		}
		width *= 2
	}
	return sub(now, width)
}

// DailySchedule moves the cutoff back by one day per round.
type DailySchedule struct {
	// MaxRounds bounds the number of days scanned before the cutoff becomes
	// Unbounded. Zero means 3650.
	MaxRounds int
}

func (s DailySchedule) Cutoff(now int64, round, _ int) int64 {
	maxRounds := s.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 3650
	}
	if round >= maxRounds {
		return Unbounded
	}
	return sub(now, int64(round+1)*(24*time.Hour).Milliseconds())
}

func sub(now, width int64) int64 {
	if now < math.MinInt64+width {
		return Unbounded
	}
	return now - width
}
