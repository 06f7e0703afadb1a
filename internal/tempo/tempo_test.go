package tempo

import (
	"testing"

	"github.com/sound2osc/engine/internal/domain"
	"github.com/stretchr/testify/require"
)

// pushSteadyBeat feeds n onsets spaced intervalSeconds apart, starting
// at tick 0, returning the tick of the last onset.
func pushSteadyBeat(e *Estimator, tickRateHz float64, intervalSeconds float64, n int) domain.SampleTime {
	var at domain.SampleTime
	for i := 0; i < n; i++ {
		e.OnOnset(at)
		at += domain.SampleTime(intervalSeconds * tickRateHz)
	}
	return at - domain.SampleTime(intervalSeconds*tickRateHz)
}

func TestConvergesOnSteadyTempo(t *testing.T) {
	const tickRateHz = 44.0
	e := NewEstimator(tickRateHz, DefaultMinBPM, DefaultMaxBPM)

	// 120 BPM -> 0.5s between onsets.
	pushSteadyBeat(e, tickRateHz, 0.5, 12)

	est := e.Estimate()
	require.NotNil(t, est.BPM)
	require.InDelta(t, 120.0, float64(*est.BPM), 6.0)
	require.False(t, est.Stale)
	require.Greater(t, est.Confidence, float32(0))
}

func TestStaleAfterSilence(t *testing.T) {
	const tickRateHz = 44.0
	e := NewEstimator(tickRateHz, DefaultMinBPM, DefaultMaxBPM)
	last := pushSteadyBeat(e, tickRateHz, 0.5, 8)

	e.Advance(last + domain.SampleTime(6*tickRateHz))
	require.True(t, e.Estimate().Stale)
}

func TestNotStaleWithinWindow(t *testing.T) {
	const tickRateHz = 44.0
	e := NewEstimator(tickRateHz, DefaultMinBPM, DefaultMaxBPM)
	last := pushSteadyBeat(e, tickRateHz, 0.5, 8)

	e.Advance(last + domain.SampleTime(2*tickRateHz))
	require.False(t, e.Estimate().Stale)
}

func TestOctaveResolutionPrefersPreviousLock(t *testing.T) {
	const tickRateHz = 44.0
	e := NewEstimator(tickRateHz, DefaultMinBPM, DefaultMaxBPM)

	// Lock onto 120 BPM first.
	last := pushSteadyBeat(e, tickRateHz, 0.5, 12)
	require.NotNil(t, e.Estimate().BPM)
	locked := *e.Estimate().BPM

	// Candidate resolveOctave should pick the variant nearest the lock.
	resolved := e.resolveOctave(locked * 2)
	require.InDelta(t, float64(locked), float64(resolved), 0.01)

	_ = last
}

type recordingEmitter struct {
	sent []struct {
		addr  string
		value float32
	}
}

func (r *recordingEmitter) Send(tmpl domain.OscTemplate, value float32) {
	r.sent = append(r.sent, struct {
		addr  string
		value float32
	}{tmpl.Address, value})
}

func TestBeatEmitterSuppressesSmallChanges(t *testing.T) {
	em := &recordingEmitter{}
	b := NewBeatEmitter(em, domain.OscTemplate{Address: "/bpm", ArgType: "f"}, domain.OscTemplate{Address: "/beat", ArgType: "i"})

	bpm := float32(120.0)
	b.OnEstimate(domain.BeatEstimate{BPM: &bpm})
	require.Len(t, em.sent, 1)

	tiny := float32(120.2)
	b.OnEstimate(domain.BeatEstimate{BPM: &tiny})
	require.Len(t, em.sent, 1, "sub-threshold change should not emit")

	big := float32(121.0)
	b.OnEstimate(domain.BeatEstimate{BPM: &big})
	require.Len(t, em.sent, 2, "change beyond threshold should emit")
}

type recordingMidiClock struct {
	starts, stops, ticks int
}

func (r *recordingMidiClock) Start() error { r.starts++; return nil }
func (r *recordingMidiClock) Stop() error  { r.stops++; return nil }
func (r *recordingMidiClock) Tick() error  { r.ticks++; return nil }

func TestMidiClockStartsOnLockAndStopsOnStale(t *testing.T) {
	em := &recordingEmitter{}
	b := NewBeatEmitter(em, domain.OscTemplate{Address: "/bpm", ArgType: "f"}, domain.OscTemplate{Address: "/beat", ArgType: "i"})
	clock := &recordingMidiClock{}
	b.SetMidiClock(clock, 44.0)

	bpm := float32(120.0)
	b.OnEstimate(domain.BeatEstimate{BPM: &bpm})
	require.Equal(t, 1, clock.starts)

	// Staying locked across further ticks must not re-fire Start.
	b.OnEstimate(domain.BeatEstimate{BPM: &bpm})
	require.Equal(t, 1, clock.starts)

	b.OnEstimate(domain.BeatEstimate{BPM: &bpm, Stale: true})
	require.Equal(t, 1, clock.stops)
}

func TestMidiClockPacesTicksAtTwentyFourPPQN(t *testing.T) {
	em := &recordingEmitter{}
	b := NewBeatEmitter(em, domain.OscTemplate{Address: "/bpm", ArgType: "f"}, domain.OscTemplate{Address: "/beat", ArgType: "i"})
	clock := &recordingMidiClock{}
	b.SetMidiClock(clock, 44.0)

	// At 120 BPM, one pulse every 60/120/24 = 0.02083s; at a 44 Hz
	// OnEstimate rate that's roughly one pulse every 0.92 ticks, so 44
	// calls (one simulated second) should yield close to 48 pulses.
	bpm := float32(120.0)
	for i := 0; i < 44; i++ {
		b.OnEstimate(domain.BeatEstimate{BPM: &bpm})
	}
	require.InDelta(t, 48, clock.ticks, 2)
}

func TestMidiClockDisabledByDefault(t *testing.T) {
	em := &recordingEmitter{}
	b := NewBeatEmitter(em, domain.OscTemplate{Address: "/bpm", ArgType: "f"}, domain.OscTemplate{Address: "/beat", ArgType: "i"})

	bpm := float32(120.0)
	require.NotPanics(t, func() { b.OnEstimate(domain.BeatEstimate{BPM: &bpm}) })
}

func TestBeatEmitterSuppressesWhileStaleOrMuted(t *testing.T) {
	em := &recordingEmitter{}
	b := NewBeatEmitter(em, domain.OscTemplate{Address: "/bpm", ArgType: "f"}, domain.OscTemplate{Address: "/beat", ArgType: "i"})

	bpm := float32(120.0)
	b.OnEstimate(domain.BeatEstimate{BPM: &bpm, Stale: true})
	require.Empty(t, em.sent)

	b.OnOnset(domain.BeatEstimate{Stale: true})
	require.Empty(t, em.sent)

	b.SetMute(true)
	b.OnOnset(domain.BeatEstimate{})
	require.Empty(t, em.sent)
}
