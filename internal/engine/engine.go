// Package engine implements the orchestrator of spec.md §4.9: it owns
// every component from §4.2-§4.8 by direct reference, drives the
// 44 Hz SpectrumTick/BeatTick clock, and is the only place allowed to
// mutate trigger/DSP state via to_state/from_state (spec.md §5).
//
// The start()/stop() lifecycle and its context.Context/CancelFunc pair
// follow the same shape as schollz-221e's
// internal/supercollider.StartupProgressModel (a context built at
// construction, cancelled on stop); the mutex guarding tick state is
// schollz-221e's internal/storage pattern (a single sync.Mutex guarding
// a whole save operation), generalized here to guard one tick plus any
// concurrent FromState call.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sound2osc/engine/internal/audiosource"
	"github.com/sound2osc/engine/internal/diagnostics"
	"github.com/sound2osc/engine/internal/domain"
	"github.com/sound2osc/engine/internal/dsp"
	"github.com/sound2osc/engine/internal/emitter"
	"github.com/sound2osc/engine/internal/onset"
	"github.com/sound2osc/engine/internal/preset"
	"github.com/sound2osc/engine/internal/ringbuffer"
	"github.com/sound2osc/engine/internal/tempo"
	"github.com/sound2osc/engine/internal/ticks"
	"github.com/sound2osc/engine/internal/transport"
	"github.com/sound2osc/engine/internal/trigger"
)

// sourceRetryInterval is how often Engine retries AudioSource
// selection after a failed Start, per spec.md §7's AudioUnavailable
// recovery ("retries selection every 2 s").
const sourceRetryInterval = 2 * time.Second

// stopDrainCap bounds how long Stop waits for in-flight OSC output to
// flush, per spec.md §5 ("drains in-flight OSC messages with a 500 ms
// cap").
const stopDrainCap = 500 * time.Millisecond

// Config is everything Engine needs at construction time.
type Config struct {
	SampleRate  float64
	Document    *preset.Document
	Source      audiosource.Source
	Sender      transport.Sender
	EmitterMode emitter.Mode
	Diagnostics diagnostics.Sink
	// MidiClock, if set, receives Start/Stop/Tick calls from the
	// BeatEmitter per SPEC_FULL's midiclock section. Leave nil to
	// disable MIDI output entirely.
	MidiClock tempo.MidiClock
}

// Engine is the orchestrator of spec.md §4.9.
type Engine struct {
	mu sync.Mutex // guards every field below, held for the whole tick body and for FromState

	sampleRate float64
	ring       *ringbuffer.RingBuffer
	fft        *dsp.FFTStage
	spectrum   *dsp.ScaledSpectrum

	lowSoloMode bool
	channels    map[preset.TriggerID]*trigger.Channel
	mixScratch  []float32
	document    *preset.Document
	bpmConfig   preset.BPMConfig

	onsetTracker   *onset.Tracker
	tempoEstimator *tempo.Estimator
	beatEmitter    *tempo.BeatEmitter

	osc    *emitter.OscEmitter
	sender transport.Sender
	source audiosource.Source
	diag   diagnostics.Sink

	scheduler   *ticks.Scheduler
	tickCounter domain.SampleTime

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	running bool
}

// New builds an Engine from cfg. It does not start anything.
func New(cfg Config) (*Engine, error) {
	if cfg.Document == nil {
		return nil, fmt.Errorf("engine: Config.Document is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("engine: Config.Source is required")
	}
	if cfg.Sender == nil {
		return nil, fmt.Errorf("engine: Config.Sender is required")
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = audiosource.ExpectedSampleRate
	}
	diag := cfg.Diagnostics
	if diag == nil {
		diag = diagnostics.NopSink{}
	}

	ring := ringbuffer.New()
	e := &Engine{
		sampleRate: sampleRate,
		ring:       ring,
		fft:        dsp.NewFFTStage(ring),
		spectrum:   dsp.NewScaledSpectrum(sampleRate),
		source:     cfg.Source,
		sender:     cfg.Sender,
		diag:       diag,
		osc:        emitter.New(cfg.Sender, cfg.EmitterMode, diag),
	}

	e.onsetTracker = onset.New(sampleRate, e.handleOnset)
	e.tempoEstimator = tempo.NewEstimator(ticks.Rate, cfg.Document.BPM.Min, cfg.Document.BPM.Max)
	bpmTmpl, beatTmpl := bpmTemplates(cfg.Document.BPM)
	e.beatEmitter = tempo.NewBeatEmitter(e.osc, bpmTmpl, beatTmpl)
	e.beatEmitter.SetMute(cfg.Document.BPM.Mute)
	if cfg.MidiClock != nil {
		e.beatEmitter.SetMidiClock(cfg.MidiClock, ticks.Rate)
	}

	if err := e.applyDocumentLocked(cfg.Document); err != nil {
		return nil, err
	}

	return e, nil
}

// bpmTemplates resolves the BeatEmitter's two OSC addresses from
// preset.BPMConfig.OSC.Commands: the first entry is the BPM-change
// address (float arg), the second is the beat-pulse address (int arg).
// A missing entry disables that half of BeatEmitter's output, the same
// way emitter.OscEmitter.Send no-ops on an empty address.
func bpmTemplates(cfg preset.BPMConfig) (bpm, beat domain.OscTemplate) {
	if len(cfg.OSC.Commands) > 0 {
		bpm = domain.OscTemplate{Address: cfg.OSC.Commands[0], ArgType: "f"}
	}
	if len(cfg.OSC.Commands) > 1 {
		beat = domain.OscTemplate{Address: cfg.OSC.Commands[1], ArgType: "i"}
	}
	return bpm, beat
}

// handleOnset is the onset.Tracker callback: it feeds the tempo
// estimator and pulses the BeatEmitter, per spec.md §4.7.
func (e *Engine) handleOnset(at domain.SampleTime) {
	e.tempoEstimator.OnOnset(at)
	e.beatEmitter.OnOnset(e.tempoEstimator.Estimate())
}

// Start begins the processing and audio contexts, per spec.md §4.9
// ("new(config) → start() → (ticking) → stop()"). Calling it while
// already running is a no-op that returns nil.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.done = make(chan struct{})
	e.scheduler = ticks.NewScheduler(time.Now())
	e.running = true
	ctx := e.ctx
	e.mu.Unlock()

	e.source.SetCallback(e.onAudioSamples)
	if err := e.source.Start(); err != nil {
		e.diag.Emit(diagnostics.Event{
			Level: diagnostics.Warn, Code: diagnostics.CodeAudioUnavailable,
			Message: "audio source unavailable, retrying: " + err.Error(),
		})
		go e.retrySourceSelection(ctx)
	}

	go e.runLoop(ctx)
	return nil
}

func (e *Engine) retrySourceSelection(ctx context.Context) {
	ticker := time.NewTicker(sourceRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.source.Start(); err == nil {
				return
			}
		}
	}
}

// runLoop drives SpectrumTick/BeatTick at ticks.Rate until ctx is
// cancelled, per spec.md §4.9's "both tasks are driven by the same
// clock; they are serial with respect to each other" rule.
func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(ticks.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !e.scheduler.Due(now) {
				continue
			}
			if overran := e.scheduler.Advance(now); overran {
				e.diag.Emit(diagnostics.Event{
					Level: diagnostics.Warn, Code: diagnostics.CodeTickOverrun,
					Message: "tick overrun, skipping backlog",
				})
			}
			e.runOneTick()
		}
	}
}

func (e *Engine) runOneTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCounter++
	e.spectrumTick(e.tickCounter)
	e.beatTick(e.tickCounter)
	e.osc.FlushTick()
}

// Stop idempotently signals the processing context, waits up to
// stopDrainCap for the run loop to exit, and closes the transport, per
// spec.md §5.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopDrainCap):
	}

	_ = e.source.Stop()
	e.sender.Close()
	return nil
}
