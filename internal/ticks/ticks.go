// Package ticks schedules the 44 Hz SpectrumTick/BeatTick clock of
// spec.md §4.9/§5: pure counting functions decide whether a tick is
// due and whether it overran, mirroring the plain
// counters-over-structs style of schollz-221e's own internal/ticks
// (CalculatePhraseTicks and friends), generalized from summing
// sequencer delta-times to counting wall-clock periods.
package ticks

import "time"

// Rate is the fixed tick rate spec.md §4.9 specifies ("44 Hz (23 ms
// nominal period)").
const Rate = 44.0

// Period is one nominal tick interval.
var Period = time.Duration(float64(time.Second) / Rate)

// TicksElapsed returns how many whole Period-length ticks have passed
// between since and now. It is pure and makes no assumption about
// which tick (if any) actually ran.
func TicksElapsed(since, now time.Time) int64 {
	if now.Before(since) {
		return 0
	}
	return int64(now.Sub(since) / Period)
}

// IsOverrun reports whether lateBy exceeds one Period, per spec.md
// §4.9's "late by more than one period" rule.
func IsOverrun(lateBy time.Duration) bool {
	return lateBy > Period
}

// Scheduler tracks the next due tick time and counts overruns for
// health reporting (spec.md §7's TickOverrun kind). It has no
// knowledge of what a tick does — Engine calls Due/Advance and runs
// SpectrumTick/BeatTick itself.
type Scheduler struct {
	nextDue  time.Time
	overruns uint64
}

// NewScheduler builds a Scheduler whose first tick is due one Period
// after start.
func NewScheduler(start time.Time) *Scheduler {
	return &Scheduler{nextDue: start.Add(Period)}
}

// Due reports whether a tick is due at now.
func (s *Scheduler) Due(now time.Time) bool {
	return !now.Before(s.nextDue)
}

// Advance moves the schedule forward by one Period from now. If the
// elapsed time since nextDue exceeds one extra Period, the overdue
// tick is skipped rather than backlogged: nextDue jumps straight to
// now+Period and Overruns increments, per spec.md §4.9.
func (s *Scheduler) Advance(now time.Time) (overran bool) {
	lateBy := now.Sub(s.nextDue)
	if IsOverrun(lateBy) {
		s.overruns++
		s.nextDue = now.Add(Period)
		return true
	}
	s.nextDue = s.nextDue.Add(Period)
	return false
}

// Overruns returns the cumulative overrun count.
func (s *Scheduler) Overruns() uint64 {
	return s.overruns
}
