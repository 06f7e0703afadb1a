package trigger

import (
	"math"

	"github.com/sound2osc/engine/internal/domain"
)

// levelRateLimit is the minimum spacing between level-message emissions
// while Active, per spec.md §4.5 ("at most once per 20 ms").
const levelRateLimit = 20 * 1e-3 // seconds

// Emitter is the minimal surface TriggerFilter needs from the OSC stage:
// format and send one value against a template. It is defined here
// (rather than importing the osc packages) so trigger has no dependency
// on the transport layer, matching the Engine-drives-everything-by-owned-
// reference shape of design note §9 ("Signal/slot coupling").
type Emitter interface {
	Send(tmpl domain.OscTemplate, value float32)
}

// Listener receives non-wire state-change notifications, preserved even
// when a trigger is muted, per spec.md §4.5 ("Mute semantics").
type Listener interface {
	OnStateChange(id string, state domain.TriggerState)
}

// Filter is the sample-time state machine of spec.md §4.5. Timers are
// counted in ticks of the processing context's 44 Hz clock rather than
// wall-clock time, per design note §9 ("Timer-based state machines").
type Filter struct {
	def *domain.TriggerDefinition

	state       domain.TriggerState
	enteredAt   domain.SampleTime // timestamp of entry into the *current* state
	activeSince domain.SampleTime // timestamp of entry into Active, survives OffPending cancellation
	lastLevel   float32

	lastLevelEmit   domain.SampleTime
	everEmittedLvl  bool

	emitter  Emitter
	listener Listener
}

// New builds a Filter for def. emitter/listener may be nil (a nil emitter
// drops all wire output; a nil listener drops all UI notifications).
func New(def *domain.TriggerDefinition, emitter Emitter, listener Listener) *Filter {
	return &Filter{def: def, state: domain.Idle, emitter: emitter, listener: listener}
}

// State returns the current runtime snapshot, per spec.md §3
// ("TriggerRuntime").
func (f *Filter) State() domain.TriggerRuntime {
	return domain.TriggerRuntime{State: f.state, StateEnteredAt: f.enteredAt, LastLevel: f.lastLevel}
}

func secondsToTicks(seconds float32, tickRateHz float32) domain.SampleTime {
	if seconds <= 0 {
		return 0
	}
	return domain.SampleTime(math.Round(float64(seconds) * float64(tickRateHz)))
}

func elapsed(since, now domain.SampleTime) domain.SampleTime {
	if now < since {
		return 0
	}
	return now - since
}

// TriggerOn is the detector's "level crossed the threshold" edge, per
// spec.md §4.5. Idempotent while OnPending or Active.
func (f *Filter) TriggerOn(now domain.SampleTime) {
	switch f.state {
	case domain.Idle:
		if f.def.OnDelayS <= 0 {
			f.enterActive(now)
		} else {
			f.state = domain.OnPending
			f.enteredAt = now
			f.notify()
		}
	case domain.OffPending:
		// A fresh trigger_on during OffPending cancels the off timer and
		// returns to Active without re-emitting on_msg.
		f.state = domain.Active
		f.enteredAt = now
		f.notify()
	case domain.OnPending, domain.Active:
		// idempotent
	}
}

// TriggerOff is the detector's "level dropped below the threshold" edge.
// Idempotent while Idle or OffPending.
func (f *Filter) TriggerOff(now domain.SampleTime) {
	switch f.state {
	case domain.OnPending:
		f.state = domain.Idle
		f.notify()
	case domain.Active:
		if f.def.OffDelayS <= 0 {
			f.exitActive(now)
		} else {
			f.state = domain.OffPending
			f.enteredAt = now
			f.notify()
		}
	case domain.Idle, domain.OffPending:
		// idempotent
	}
}

// Advance checks timer expiry for the current state against now, per
// spec.md §4.5's on_delay/off_delay/max_hold transitions. Must be called
// once per SpectrumTick regardless of whether TriggerOn/TriggerOff fired
// that tick.
func (f *Filter) Advance(now domain.SampleTime, tickRateHz float32) {
	switch f.state {
	case domain.OnPending:
		if elapsed(f.enteredAt, now) >= secondsToTicks(f.def.OnDelayS, tickRateHz) {
			f.enterActive(now)
		}
	case domain.Active:
		if f.def.MaxHoldS > 0 && elapsed(f.activeSince, now) >= secondsToTicks(f.def.MaxHoldS, tickRateHz) {
			f.exitActive(now)
		}
	case domain.OffPending:
		if elapsed(f.enteredAt, now) >= secondsToTicks(f.def.OffDelayS, tickRateHz) {
			f.exitActive(now)
		}
	}
}

// FeedLevel records the detector's current level and, while Active,
// emits a rate-limited level message, per spec.md §4.5.
func (f *Filter) FeedLevel(now domain.SampleTime, level float32, tickRateHz float32) {
	f.lastLevel = level
	if f.state != domain.Active {
		return
	}
	interval := secondsToTicks(levelRateLimit, tickRateHz)
	if !f.everEmittedLvl || elapsed(f.lastLevelEmit, now) >= interval {
		f.emitLevel()
		f.lastLevelEmit = now
		f.everEmittedLvl = true
	}
}

func (f *Filter) enterActive(now domain.SampleTime) {
	f.state = domain.Active
	f.enteredAt = now
	f.activeSince = now
	f.everEmittedLvl = false
	f.emitOn()
	f.notify()
}

// exitActive transitions out of Active (via off_delay or max_hold
// expiry, or an immediate off_delay==0 trigger_off) to Idle. Level
// messages are rate-limited but the last value is always flushed on
// state exit, and per spec.md §5 level messages precede the on/off
// transition within the same tick.
func (f *Filter) exitActive(now domain.SampleTime) {
	f.emitLevel()
	f.state = domain.Idle
	f.emitOff()
	f.notify()
}

func (f *Filter) emitOn() {
	if f.emitter == nil || f.def.Mute || f.def.Osc.OnMsg == nil {
		return
	}
	f.emitter.Send(*f.def.Osc.OnMsg, f.lastLevel)
}

func (f *Filter) emitOff() {
	if f.emitter == nil || f.def.Mute || f.def.Osc.OffMsg == nil {
		return
	}
	f.emitter.Send(*f.def.Osc.OffMsg, f.lastLevel)
}

func (f *Filter) emitLevel() {
	if f.emitter == nil || f.def.Mute || f.def.Osc.LevelMsg == nil {
		return
	}
	value := lerp(f.def.Osc.LevelMin, f.def.Osc.LevelMax, f.lastLevel)
	f.emitter.Send(*f.def.Osc.LevelMsg, value)
}

func (f *Filter) notify() {
	if f.listener == nil {
		return
	}
	f.listener.OnStateChange(f.def.ID, f.state)
}

func lerp(lo, hi, t float32) float32 {
	return lo + (hi-lo)*t
}
