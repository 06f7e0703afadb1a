package engine

import (
	"github.com/sound2osc/engine/internal/domain"
	"github.com/sound2osc/engine/internal/preset"
)

// tickRateHz is ticks.Rate narrowed to float32, matching the
// trigger/tempo packages' tick-counter arithmetic.
const tickRateHz = float32(44.0)

// onAudioSamples is the Engine's AudioSource callback, registered at
// Start. It runs on the audio context and does no locking, logging, or
// blocking: it only mixes to mono (a pure arithmetic loop over a reused
// scratch buffer) and pushes into the wait-free RingBuffer. The scratch
// buffer is allocated on the first multi-channel block and again only
// when a block has more frames than any earlier one.
func (e *Engine) onAudioSamples(samples []float32, channelCount int) {
	if channelCount <= 1 {
		e.ring.Push(samples)
		return
	}
	frames := len(samples) / channelCount
	if cap(e.mixScratch) < frames {
		e.mixScratch = make([]float32, frames)
	}
	mono := e.mixScratch[:frames]
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channelCount; c++ {
			sum += samples[i*channelCount+c]
		}
		mono[i] = sum / float32(channelCount)
	}
	e.ring.Push(mono)
}

// spectrumTick runs FFTStage → ScaledSpectrum → each TriggerDetector →
// each TriggerFilter timer advance, in the fixed order of spec.md §5:
// bass, lo-mid, hi-mid, high, envelope, silence.
func (e *Engine) spectrumTick(now domain.SampleTime) {
	linear := e.fft.Run()
	e.spectrum.Update(linear)

	for _, id := range preset.AllTriggerIDs {
		ch := e.channels[id]
		if ch == nil {
			continue
		}
		ch.Tick(now, tickRateHz, e.spectrum, e.lowSoloMode)
	}
}

// beatTick runs OnsetTracker append → TempoEstimator update →
// BeatEmitter, per spec.md §4.9. BeatTick messages are sent after
// SpectrumTick of the same period because Engine calls spectrumTick
// then beatTick from the same runOneTick before a single FlushTick.
func (e *Engine) beatTick(now domain.SampleTime) {
	e.onsetTracker.Tick(now, e.spectrum.Normalized())
	e.tempoEstimator.Advance(now)
	e.beatEmitter.OnEstimate(e.tempoEstimator.Estimate())
}
