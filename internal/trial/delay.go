package trial

import (
	"math/rand/v2"
	"time"
)

const (
	// MinDelay is the shortest stimulus delay, inclusive.
	MinDelay = 3500 * time.Millisecond
	// MaxDelay is the longest stimulus delay, exclusive.
	MaxDelay = 9000 * time.Millisecond
)

// IntN draws a uniform integer in [0, n).
type IntN func(n int) int

// DelayRange draws stimulus delays in whole milliseconds from [Min, Max).
type DelayRange struct {
	Min  time.Duration
	Max  time.Duration
	rand IntN
}

// DefaultDelayRange returns the [3500ms, 9000ms) range backed by math/rand/v2.
func DefaultDelayRange() DelayRange {
	return DelayRange{Min: MinDelay, Max: MaxDelay, rand: rand.IntN}
}

// WithSource returns a copy of r drawing from src.
func (r DelayRange) WithSource(src IntN) DelayRange {
	r.rand = src
	return r
}

// Span is the number of distinct millisecond values the range can produce.
func (r DelayRange) Span() int {
	return int((r.Max - r.Min) / time.Millisecond)
}

// Draw returns Min + src(Span) milliseconds.
func (r DelayRange) Draw() time.Duration {
	src := r.rand
	if src == nil {
		src = rand.IntN
	}
	return r.Min + time.Duration(src(r.Span()))*time.Millisecond
}
