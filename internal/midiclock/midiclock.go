// Package midiclock adds an optional MIDI beat clock output: 24
// pulses-per-quarter-note timing bytes plus transport START/STOP,
// driven off the same BeatEstimate the OSC BeatEmitter consumes. It is
// disabled by default and purely additive — nothing else in the engine
// depends on it.
//
// The raw-byte send idiom (out.Send([]byte{...})) is grounded on
// schollz-221e's internal/midiconnector, which opens a
// gitlab.com/gomidi/midi/v2 output port by name and writes MIDI bytes
// directly rather than through a higher-level message builder.
package midiclock

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Standard MIDI realtime status bytes.
const (
	statusClock = 0xF8
	statusStart = 0xFA
	statusStop  = 0xFC
)

// pulsesPerQuarterNote is the MIDI beat clock's fixed resolution.
const pulsesPerQuarterNote = 24

// Clock emits MIDI realtime bytes to a named output port at a rate
// derived from the current BPM. It holds no reference to the tempo
// package so it can be wired optionally without pulling MIDI into the
// core engine's import graph.
type Clock struct {
	mu      sync.Mutex
	out     drivers.Out
	running bool
}

// Open finds and opens the named MIDI output port. A missing or
// unavailable port is a non-fatal condition the caller should treat
// like spec.md §7's AudioUnavailable: log it and leave MIDI clock
// output disabled.
func Open(name string) (*Clock, error) {
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, fmt.Errorf("midiclock: find port %q: %w", name, err)
	}
	if err := out.Open(); err != nil {
		return nil, fmt.Errorf("midiclock: open port %q: %w", name, err)
	}
	return &Clock{out: out}, nil
}

// Start sends a single MIDI Start (0xFA) and marks the clock running.
func (c *Clock) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	return c.out.Send([]byte{statusStart})
}

// Stop sends a single MIDI Stop (0xFC) and marks the clock idle.
func (c *Clock) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return c.out.Send([]byte{statusStop})
}

// Tick sends one MIDI Clock pulse (0xF8) if the clock is running. The
// caller is responsible for invoking Tick pulsesPerQuarterNote times
// per quarter note at the current BPM; see TickerIntervalSeconds.
func (c *Clock) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	return c.out.Send([]byte{statusClock})
}

// Close releases the output port.
func (c *Clock) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Close()
}

// TickerIntervalSeconds returns the spacing between MIDI Clock pulses
// for bpm, i.e. one 24th of a quarter note.
func TickerIntervalSeconds(bpm float32) float64 {
	if bpm <= 0 {
		return 0
	}
	secondsPerQuarter := 60.0 / float64(bpm)
	return secondsPerQuarter / pulsesPerQuarterNote
}
