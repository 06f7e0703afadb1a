package tempo

import "github.com/sound2osc/engine/internal/domain"

// bpmChangeThreshold is the minimum delta that counts as a BPM change
// worth emitting, per spec.md §4.8 ("only when it moves by more than
// 0.5 BPM").
const bpmChangeThreshold = 0.5

// Emitter is the minimal OSC surface BeatEmitter needs, mirroring
// trigger.Emitter so this package has no dependency on the transport
// layer.
type Emitter interface {
	Send(tmpl domain.OscTemplate, value float32)
}

// MidiClock is the optional secondary destination BeatEmitter drives
// alongside its OSC traffic: a 24-ppqn realtime clock locked to the
// current BPM estimate. Satisfied by *midiclock.Clock without this
// package importing it.
type MidiClock interface {
	Start() error
	Stop() error
	Tick() error
}

// BeatEmitter turns Estimator output and onset pulses into OSC traffic:
// a BPM message on meaningful change, and a beat pulse per onset, both
// suppressed while stale or muted, per spec.md §4.7/§4.8.
type BeatEmitter struct {
	bpmMsg  domain.OscTemplate
	beatMsg domain.OscTemplate

	emitter Emitter
	mute    bool

	lastEmittedBPM float32
	haveEmitted    bool

	midiClock      MidiClock
	midiTickRateHz float64
	midiLocked     bool
	midiAccumTicks float64
}

// NewBeatEmitter builds a BeatEmitter that sends bpmMsg on BPM change and
// beatMsg on every accepted onset pulse.
func NewBeatEmitter(emitter Emitter, bpmMsg, beatMsg domain.OscTemplate) *BeatEmitter {
	return &BeatEmitter{emitter: emitter, bpmMsg: bpmMsg, beatMsg: beatMsg}
}

// SetMute toggles wire suppression, per spec.md §6 ("bpm.mute").
func (b *BeatEmitter) SetMute(mute bool) {
	b.mute = mute
}

// SetMidiClock wires an optional MIDI beat clock. tickRateHz is the rate
// OnEstimate is called at (one call per BeatTick), needed to convert the
// clock's seconds-per-pulse interval into a tick count. A nil clock
// disables MIDI output.
func (b *BeatEmitter) SetMidiClock(clock MidiClock, tickRateHz float64) {
	b.midiClock = clock
	b.midiTickRateHz = tickRateHz
	b.midiLocked = false
	b.midiAccumTicks = 0
}

// OnEstimate is called once per BeatTick with the Estimator's current
// snapshot; it emits a BPM message only when the change exceeds
// bpmChangeThreshold and the estimate isn't stale.
func (b *BeatEmitter) OnEstimate(est domain.BeatEstimate) {
	b.driveMidiClock(est)

	if b.mute || est.Stale || est.BPM == nil {
		return
	}
	bpm := *est.BPM
	delta := bpm - b.lastEmittedBPM
	if delta < 0 {
		delta = -delta
	}
	if !b.haveEmitted || delta > bpmChangeThreshold {
		b.emitter.Send(b.bpmMsg, bpm)
		b.lastEmittedBPM = bpm
		b.haveEmitted = true
	}
}

// driveMidiClock fires Start/Stop on the stale<->locked transition and
// paces Tick calls at 24 pulses per quarter note for the current BPM,
// per SPEC_FULL's midiclock section. It is a no-op until SetMidiClock
// has been called with a non-nil clock.
func (b *BeatEmitter) driveMidiClock(est domain.BeatEstimate) {
	if b.midiClock == nil {
		return
	}
	locked := !est.Stale && est.BPM != nil
	switch {
	case locked && !b.midiLocked:
		b.midiClock.Start()
		b.midiAccumTicks = 0
	case !locked && b.midiLocked:
		b.midiClock.Stop()
	}
	b.midiLocked = locked
	if !locked {
		return
	}

	intervalTicks := pulseIntervalTicks(*est.BPM, b.midiTickRateHz)
	if intervalTicks <= 0 {
		return
	}
	b.midiAccumTicks++
	for b.midiAccumTicks >= intervalTicks {
		b.midiClock.Tick()
		b.midiAccumTicks -= intervalTicks
	}
}

// pulseIntervalTicks converts the 24-ppqn MIDI clock period at bpm into
// a count of tickRateHz-rate ticks. Mirrors
// midiclock.TickerIntervalSeconds's formula in ticks instead of
// seconds; duplicated rather than imported so this package stays free
// of any concrete MIDI dependency.
func pulseIntervalTicks(bpm float32, tickRateHz float64) float64 {
	if bpm <= 0 {
		return 0
	}
	secondsPerQuarter := 60.0 / float64(bpm)
	secondsPerPulse := secondsPerQuarter / 24.0
	return secondsPerPulse * tickRateHz
}

// OnOnset is called whenever the onset tracker declares an onset; it
// emits a beat pulse unless muted or the estimate is currently stale.
func (b *BeatEmitter) OnOnset(est domain.BeatEstimate) {
	if b.mute || est.Stale {
		return
	}
	b.emitter.Send(b.beatMsg, 1)
}
