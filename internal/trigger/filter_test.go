package trigger

import (
	"testing"

	"github.com/sound2osc/engine/internal/domain"
	"github.com/stretchr/testify/require"
)

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

func newDef(threshold, onDelay, offDelay, maxHold float32) *domain.TriggerDefinition {
	on := domain.OscTemplate{Address: "/on", ArgType: "f"}
	off := domain.OscTemplate{Address: "/off", ArgType: "f"}
	return &domain.TriggerDefinition{
		ID:        "bass",
		Kind:      domain.BandPass,
		Threshold: threshold,
		OnDelayS:  onDelay,
		OffDelayS: offDelay,
		MaxHoldS:  maxHold,
		Osc: domain.OscBinding{
			OnMsg:  &on,
			OffMsg: &off,
		},
	}
}

const tickRate = float32(44)

func TestZeroOnDelayEntersActiveSameTick(t *testing.T) {
	def := newDef(0.3, 0, 0, 0)
	em := &recordingEmitter{}
	f := New(def, em, nil)

	f.Advance(0, tickRate)
	f.TriggerOn(0)

	require.Equal(t, domain.Active, f.state)
	require.Len(t, em.sent, 1)
	require.Equal(t, "/on", em.sent[0].addr)
}

func TestThresholdZeroAlwaysActiveWhenNonZeroLevel(t *testing.T) {
	def := newDef(0.0, 0, 0, 0)
	f := New(def, &recordingEmitter{}, nil)
	f.Advance(0, tickRate)
	if 0.01 >= def.Threshold {
		f.TriggerOn(0)
	}
	require.Equal(t, domain.Active, f.state)
}

func TestThresholdOneStaysIdleForBoundedInput(t *testing.T) {
	def := newDef(1.0, 0, 0, 0)
	f := New(def, &recordingEmitter{}, nil)
	level := float32(0.99)
	f.Advance(0, tickRate)
	if level >= def.Threshold {
		f.TriggerOn(0)
	} else {
		f.TriggerOff(0)
	}
	require.Equal(t, domain.Idle, f.state)
}

func TestOnDelayThenOffBalancesEmissions(t *testing.T) {
	def := newDef(0.3, 0.1, 0.1, 0) // 0.1s ~= 4.4 ticks at 44Hz
	em := &recordingEmitter{}
	f := New(def, em, nil)

	var now domain.SampleTime
	f.Advance(now, tickRate)
	f.TriggerOn(now)
	require.Equal(t, domain.OnPending, f.state)

	for i := 0; i < 10; i++ {
		now++
		f.Advance(now, tickRate)
	}
	require.Equal(t, domain.Active, f.state)

	f.TriggerOff(now)
	require.Equal(t, domain.OffPending, f.state)
	for i := 0; i < 10; i++ {
		now++
		f.Advance(now, tickRate)
	}
	require.Equal(t, domain.Idle, f.state)

	onCount, offCount := 0, 0
	for _, s := range em.sent {
		if s.addr == "/on" {
			onCount++
		}
		if s.addr == "/off" {
			offCount++
		}
	}
	require.Equal(t, 1, onCount)
	require.Equal(t, 1, offCount)
}

func TestMaxHoldForcesReleaseThenReentersOnFreshTrigger(t *testing.T) {
	def := newDef(0.3, 0, 0, 0.05) // max_hold ~= 2.2 ticks
	em := &recordingEmitter{}
	f := New(def, em, nil)

	var now domain.SampleTime
	f.TriggerOn(now) // on_delay=0 -> immediately Active
	require.Equal(t, domain.Active, f.state)

	for i := 0; i < 5; i++ {
		now++
		f.Advance(now, tickRate)
	}
	require.Equal(t, domain.Idle, f.state, "max_hold should have forced release")

	// max_hold released at tick 2; the detector asserts again -> fresh trigger_on re-enters Active
	f.TriggerOn(now)
	require.Equal(t, domain.Active, f.state)

	onCount := 0
	for _, s := range em.sent {
		if s.addr == "/on" {
			onCount++
		}
	}
	require.Equal(t, 2, onCount, "one on for initial entry, one for re-entry after max_hold release")
}

func TestOffPendingCancelledByFreshTriggerOn(t *testing.T) {
	def := newDef(0.3, 0, 1.0, 0)
	em := &recordingEmitter{}
	f := New(def, em, nil)

	var now domain.SampleTime
	f.TriggerOn(now)
	require.Equal(t, domain.Active, f.state)

	f.TriggerOff(now)
	require.Equal(t, domain.OffPending, f.state)

	now++
	f.TriggerOn(now)
	require.Equal(t, domain.Active, f.state)

	offCount := 0
	for _, s := range em.sent {
		if s.addr == "/off" {
			offCount++
		}
	}
	require.Equal(t, 0, offCount, "off timer was cancelled before it expired")
}

func TestMuteSuppressesWireButPreservesTransitionsAndListener(t *testing.T) {
	def := newDef(0.3, 0, 0, 0)
	def.Mute = true
	em := &recordingEmitter{}
	listener := &fakeListener{}
	f := New(def, em, listener)

	f.TriggerOn(0)
	require.Equal(t, domain.Active, f.state)
	require.Empty(t, em.sent, "muted trigger must not emit to wire")
	require.NotEmpty(t, listener.states, "non-wire listener must still be notified")
}

type fakeListener struct {
	states []domain.TriggerState
}

func (l *fakeListener) OnStateChange(id string, state domain.TriggerState) {
	l.states = append(l.states, state)
}

func TestIdempotentTriggerCalls(t *testing.T) {
	def := newDef(0.3, 0.5, 0.5, 0)
	em := &recordingEmitter{}
	f := New(def, em, nil)

	f.TriggerOn(0)
	f.TriggerOn(0)
	f.TriggerOn(0)
	require.Equal(t, domain.OnPending, f.state)

	f.TriggerOff(0)
	f.TriggerOff(0)
	require.Equal(t, domain.Idle, f.state)
}
