// Package tempo implements the autocorrelation-style TempoEstimator of
// spec.md §4.7: an inter-onset-interval histogram over a 2 s trailing
// window, octave-ambiguity resolution against the previous lock, and
// stale detection when onsets stop arriving.
package tempo

import (
	"math"

	"github.com/sound2osc/engine/internal/domain"
)

const (
	histogramBinSeconds = 0.010 // 10 ms bins, spec.md §4.7
	ioiWindowSeconds     = 2.0   // "every previous onset in the last 2 s"
	blendThreshold       = 0.05  // "within 5% of the candidate"
	octaveCandidates     = 3     // {half, unity, double}
)

// DefaultMinBPM and DefaultMaxBPM are spec.md §4.7's defaults.
const (
	DefaultMinBPM = 75.0
	DefaultMaxBPM = 200.0
)

// Estimator tracks onset arrival times and derives a BPM estimate via a
// weighted inter-onset-interval histogram, per spec.md §4.7.
type Estimator struct {
	tickRateHz float64
	minBPM     float32
	maxBPM     float32

	onsets []float64 // onset times in seconds, most recent last, pruned to ioiWindowSeconds

	estimate domain.BeatEstimate
}

// NewEstimator builds an Estimator. tickRateHz converts the
// domain.SampleTime ticks used elsewhere in the engine into seconds.
func NewEstimator(tickRateHz float64, minBPM, maxBPM float32) *Estimator {
	if minBPM <= 0 {
		minBPM = DefaultMinBPM
	}
	if maxBPM <= 0 {
		maxBPM = DefaultMaxBPM
	}
	return &Estimator{
		tickRateHz: tickRateHz,
		minBPM:     minBPM,
		maxBPM:     maxBPM,
	}
}

// SetRange updates the BPM bounds used for future candidate selection.
// A non-positive bound falls back to its default, as in NewEstimator.
func (e *Estimator) SetRange(minBPM, maxBPM float32) {
	if minBPM <= 0 {
		minBPM = DefaultMinBPM
	}
	if maxBPM <= 0 {
		maxBPM = DefaultMaxBPM
	}
	e.minBPM = minBPM
	e.maxBPM = maxBPM
}

// OnOnset reports a new onset at sample time `at`. It updates the IOI
// histogram and re-derives the BPM estimate, per spec.md §4.7 steps 1-5.
func (e *Estimator) OnOnset(at domain.SampleTime) {
	t := float64(at) / e.tickRateHz

	minInterval := 60.0 / float64(e.maxBPM)
	maxInterval := 60.0 / float64(e.minBPM)
	nBins := int(math.Ceil((maxInterval - minInterval) / histogramBinSeconds))
	if nBins < 1 {
		nBins = 1
	}
	hist := make([]float64, nBins)

	// Prune onsets older than the IOI window relative to this new onset.
	cutoff := t - ioiWindowSeconds
	kept := e.onsets[:0]
	for _, prev := range e.onsets {
		if prev >= cutoff {
			kept = append(kept, prev)
		}
	}
	e.onsets = kept

	var totalWeight float64
	for _, prev := range e.onsets {
		interval := t - prev
		if interval < minInterval || interval >= maxInterval {
			continue
		}
		age := t - prev
		weight := math.Exp(-age / ioiWindowSeconds)
		bin := int((interval - minInterval) / histogramBinSeconds)
		if bin < 0 {
			bin = 0
		}
		if bin >= nBins {
			bin = nBins - 1
		}
		hist[bin] += weight
		totalWeight += weight
	}

	e.onsets = append(e.onsets, t)
	e.estimate.LastUpdated = at
	e.estimate.Stale = false

	if totalWeight > 0 {
		bestBin, bestCount := 0, -1.0
		for i, c := range hist {
			if c > bestCount {
				bestCount = c
				bestBin = i
			}
		}
		intervalOfBin := minInterval + (float64(bestBin)+0.5)*histogramBinSeconds
		candidateBPM := float32(60.0 / intervalOfBin)
		candidateBPM = e.resolveOctave(candidateBPM)

		confidence := float32(bestCount / totalWeight)
		if confidence > 1 {
			confidence = 1
		}

		e.applyCandidate(candidateBPM, confidence)
	}
}

// resolveOctave prefers the {0.5x, 1x, 2x} variant of candidate closest
// to the previously locked BPM, per spec.md §4.7 step 5.
func (e *Estimator) resolveOctave(candidate float32) float32 {
	if e.estimate.BPM == nil {
		return candidate
	}
	prev := *e.estimate.BPM
	variants := [octaveCandidates]float32{candidate * 0.5, candidate, candidate * 2}
	best := variants[0]
	bestDiff := float32(math.Abs(float64(best - prev)))
	for _, v := range variants[1:] {
		diff := float32(math.Abs(float64(v - prev)))
		if diff < bestDiff {
			best = v
			bestDiff = diff
		}
	}
	return best
}

// applyCandidate implements spec.md §4.7 step 3: blend if within 5% of
// the current estimate, else replace and reset confidence.
func (e *Estimator) applyCandidate(candidate, confidence float32) {
	if e.estimate.BPM == nil {
		bpm := candidate
		e.estimate.BPM = &bpm
		e.estimate.Confidence = confidence
		return
	}
	prev := *e.estimate.BPM
	diff := float32(math.Abs(float64(candidate - prev)))
	if diff <= prev*blendThreshold {
		blended := 0.7*prev + 0.3*candidate
		e.estimate.BPM = &blended
		// confidence also blends toward the new observation.
		e.estimate.Confidence = 0.7*e.estimate.Confidence + 0.3*confidence
	} else {
		bpm := candidate
		e.estimate.BPM = &bpm
		e.estimate.Confidence = confidence
	}
}

// Advance re-evaluates staleness against now without requiring a new
// onset; call it once per BeatTick. stale becomes true once now -
// last_updated exceeds domain.StaleAfter, per spec.md §3.
func (e *Estimator) Advance(now domain.SampleTime) {
	if e.estimate.BPM == nil {
		return
	}
	elapsedTicks := float64(now) - float64(e.estimate.LastUpdated)
	if elapsedTicks < 0 {
		elapsedTicks = 0
	}
	elapsed := elapsedTicks / e.tickRateHz
	e.estimate.Stale = elapsed > domain.StaleAfter.Seconds()
}

// Estimate returns the current BeatEstimate snapshot.
func (e *Estimator) Estimate() domain.BeatEstimate {
	return e.estimate
}
