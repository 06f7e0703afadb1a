// Package onset implements the spectral-flux onset detector of
// spec.md §4.6: it watches the bass-to-low-mid portion of the Spectrum
// for flux spikes and reports each onset's sample time to a
// tempo.Estimator.
package onset

import (
	"math"

	"github.com/sound2osc/engine/internal/domain"
	"github.com/sound2osc/engine/internal/dsp"
)

// fluxLoHz and fluxHiHz bound the bass-to-low-mid sub-range spec.md §4.6
// specifies for flux computation ("20 Hz … 200 Hz").
const (
	fluxLoHz = 20.0
	fluxHiHz = 200.0

	// fluxIIRCoeff is the one-pole smoothing coefficient for new samples.
	fluxIIRCoeff = 0.2

	// localWindow is "the last 43 samples (~1 s)" used for the adaptive
	// onset threshold.
	localWindow = 43

	// historyCapacity is the bound on retained (time, flux) samples,
	// "the most recent 1 024 entries (~23 s at 44 Hz)".
	historyCapacity = 1024
)

// Sample is one entry in OnsetHistory.
type Sample struct {
	Time domain.SampleTime
	Flux float32
}

// OnsetCallback is invoked once per detected onset with its sample time.
type OnsetCallback func(at domain.SampleTime)

// Tracker computes smoothed spectral flux per tick and declares onsets
// when it spikes above a locally adaptive threshold.
type Tracker struct {
	sampleRate float64
	loBandLo, loBandHi int // band index range covering fluxLoHz..fluxHiHz

	prevBands      [dsp.Bands]float32
	havePrev       bool
	smoothedFlux   float32

	history []Sample // ring-like slice, oldest first, capped at historyCapacity

	onOnset OnsetCallback
}

// New builds a Tracker. onOnset is called synchronously from Tick
// whenever an onset is declared; pass nil to just accumulate history.
func New(sampleRate float64, onOnset OnsetCallback) *Tracker {
	t := &Tracker{sampleRate: sampleRate, onOnset: onOnset}
	ratio := math.Pow((sampleRate/2)/20.0, 1.0/float64(dsp.Bands))
	haveLo := false
	for b := 0; b < dsp.Bands; b++ {
		lo := 20.0 * math.Pow(ratio, float64(b))
		if lo >= fluxLoHz && !haveLo {
			t.loBandLo = b
			haveLo = true
		}
		if lo < fluxHiHz {
			t.loBandHi = b
		}
	}
	t.history = make([]Sample, 0, historyCapacity)
	return t
}

// Tick computes flux for the current band vector, smooths it, appends to
// history (evicting the oldest entry past historyCapacity), and declares
// an onset if the smoothed flux is rising and the adaptive threshold is
// exceeded, per spec.md §4.6.
func (t *Tracker) Tick(now domain.SampleTime, bands *[dsp.Bands]float32) {
	var flux float32
	if t.havePrev {
		for b := t.loBandLo; b <= t.loBandHi; b++ {
			d := bands[b] - t.prevBands[b]
			if d > 0 {
				flux += d
			}
		}
	}
	t.prevBands = *bands
	t.havePrev = true

	prevSmoothed := t.smoothedFlux
	t.smoothedFlux = fluxIIRCoeff*flux + (1-fluxIIRCoeff)*t.smoothedFlux

	t.append(Sample{Time: now, Flux: t.smoothedFlux})

	// Only a rising smoothed flux counts as a peak: the decaying tail after
	// a spike can stay above the adaptive threshold for a few ticks, and
	// those ticks are not reported as further onsets.
	if t.smoothedFlux > prevSmoothed && t.isOnset() && t.onOnset != nil {
		t.onOnset(now)
	}
}

func (t *Tracker) append(s Sample) {
	t.history = append(t.history, s)
	if len(t.history) > historyCapacity {
		copy(t.history, t.history[1:])
		t.history = t.history[:historyCapacity]
	}
}

// isOnset reports whether the most recently appended flux sample exceeds
// local_mean + 1.5*local_std over the last localWindow samples.
func (t *Tracker) isOnset() bool {
	n := len(t.history)
	if n == 0 {
		return false
	}
	window := localWindow
	if window > n {
		window = n
	}
	start := n - window
	var sum float64
	for i := start; i < n; i++ {
		sum += float64(t.history[i].Flux)
	}
	mean := sum / float64(window)

	var variance float64
	for i := start; i < n; i++ {
		d := float64(t.history[i].Flux) - mean
		variance += d * d
	}
	variance /= float64(window)
	std := math.Sqrt(variance)

	current := float64(t.history[n-1].Flux)
	return current > mean+1.5*std
}

// History returns a read-only view of the retained onset history.
func (t *Tracker) History() []Sample {
	return t.history
}
