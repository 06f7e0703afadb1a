// Package dsp implements the FFTStage and ScaledSpectrum components of
// spec.md §4.2 and §4.3: a windowed real FFT of a fixed-size frame, and
// the logarithmic 200-band perceptual remapping with AGC/compression/dB
// applied on top of it.
package dsp

import (
	"math"

	"github.com/sound2osc/engine/internal/ringbuffer"
	"gonum.org/v1/gonum/dsp/fourier"
)

// FrameSize is N from spec.md §3/§4.2: the fixed FFT frame length.
const FrameSize = 4096

// LinearBins is the length of the linear magnitude spectrum produced by
// FFTStage.Run, per spec.md §4.2 ("length N/2").
const LinearBins = FrameSize / 2

// FFTStage converts the ring buffer's most recent frame into a linear
// magnitude spectrum. All buffers are preallocated at construction time;
// Run never allocates, matching the "must not allocate on any hot-path
// invocation" contract in spec.md §4.2.
//
// The transform itself is gonum's real-to-complex FFT
// (gonum.org/v1/gonum/dsp/fourier), the same library used for real-time
// spectrum analysis in the retrieval pack's vscode-music-player analyzer
// — no other FFT implementation appears anywhere in the corpus.
type FFTStage struct {
	ring   *ringbuffer.RingBuffer
	fft    *fourier.FFT
	window [FrameSize]float64
	frame  [FrameSize]float32
	scratch [FrameSize]float64
	coeffs  []complex128 // reused destination for fft.Coefficients
	magnitude [LinearBins]float32
}

// NewFFTStage builds an FFTStage reading frames from ring.
func NewFFTStage(ring *ringbuffer.RingBuffer) *FFTStage {
	s := &FFTStage{
		ring: ring,
		fft:  fourier.NewFFT(FrameSize),
	}
	for i := 0; i < FrameSize; i++ {
		// Hann window, precomputed once.
		s.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(FrameSize-1)))
	}
	// fourier.FFT.Coefficients wants a destination of len(seq)/2+1.
	s.coeffs = make([]complex128, FrameSize/2+1)
	return s
}

// Run performs one FFTStage tick: snapshot the latest frame, apply the
// window, transform, and compute magnitudes. Returns the stage's own
// internal buffer — callers in the same processing-context tick must not
// retain it past the next Run call.
func (s *FFTStage) Run() []float32 {
	s.ring.SnapshotLast(s.frame[:])

	for i := 0; i < FrameSize; i++ {
		s.scratch[i] = float64(s.frame[i]) * s.window[i]
	}

	coeffs := s.fft.Coefficients(s.coeffs, s.scratch[:])
	for i := 0; i < LinearBins; i++ {
		c := coeffs[i]
		s.magnitude[i] = float32(math.Hypot(real(c), imag(c)))
	}
	return s.magnitude[:]
}
