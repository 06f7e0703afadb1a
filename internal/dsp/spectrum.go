package dsp

import "math"

// Bands is L from spec.md §3: the number of logarithmic bands in a
// Spectrum.
const Bands = 200

const (
	baseHz = 20.0 // f_base, spec.md §3
	agcDecay = 0.9995
	agcFloor = 1e-6
)

// bandRange is one band's fractional linear-bin coverage, precomputed
// once from the sample rate at construction time.
type bandRange struct {
	lo, hi float64 // fractional bin indices
}

// ScaledSpectrum converts FFTStage's linear magnitude spectrum into the
// logarithmic Bands-wide Spectrum of spec.md §4.3, applying gain,
// compression, optional dB conversion, and optional AGC.
type ScaledSpectrum struct {
	sampleRate float64
	ranges     [Bands]bandRange

	Gain         float32
	Compression  float32
	AGCEnabled   bool
	DecibelMode  bool
	agcEnvelope  float32

	bands [Bands]float32
}

// NewScaledSpectrum builds a ScaledSpectrum for the given sample rate
// (normally 44100). Gain/Compression default to 1.0: spec.md §3 bounds
// gain to [0,64] and compression to [0.5,2.0] without mandating a
// particular neutral default, so 1.0 is used for both as the identity
// point of each operation.
func NewScaledSpectrum(sampleRate float64) *ScaledSpectrum {
	s := &ScaledSpectrum{
		sampleRate:  sampleRate,
		Gain:        1.0,
		Compression: 1.0,
	}
	nyquist := sampleRate / 2
	ratio := math.Pow(nyquist/baseHz, 1.0/Bands)
	binHz := sampleRate / FrameSize
	for b := 0; b < Bands; b++ {
		loHz := baseHz * math.Pow(ratio, float64(b))
		hiHz := baseHz * math.Pow(ratio, float64(b+1))
		s.ranges[b] = bandRange{lo: loHz / binHz, hi: hiHz / binHz}
	}
	return s
}

// Update runs the pipeline of spec.md §4.3 (band averaging, gain,
// compression, dB/clamp, AGC) over a linear spectrum produced by
// FFTStage.Run.
func (s *ScaledSpectrum) Update(linear []float32) {
	for b := 0; b < Bands; b++ {
		v := s.bandAverage(linear, s.ranges[b])
		v *= s.Gain
		v = powf32(v, s.Compression)
		if s.DecibelMode {
			v = decibelCurve(v)
		} else {
			v = clamp01(v)
		}
		s.bands[b] = v
	}

	if s.AGCEnabled {
		peak := float32(0)
		for _, v := range s.bands {
			if v > peak {
				peak = v
			}
		}
		s.agcEnvelope = maxf32(peak, s.agcEnvelope*agcDecay)
		divisor := maxf32(s.agcEnvelope, agcFloor)
		for b := range s.bands {
			s.bands[b] = clamp01(s.bands[b] / divisor)
		}
	}
}

// bandAverage averages (or linearly interpolates, for sub-bin-width
// bands) the linear magnitude bins covered by r.
func (s *ScaledSpectrum) bandAverage(linear []float32, r bandRange) float32 {
	if r.hi-r.lo < 1 {
		lo := int(math.Floor(r.lo))
		if lo < 0 {
			lo = 0
		}
		if lo >= len(linear)-1 {
			if lo >= len(linear) {
				return 0
			}
			return linear[lo]
		}
		frac := r.lo - math.Floor(r.lo)
		return float32((1-frac))*linear[lo] + float32(frac)*linear[lo+1]
	}

	loBin := int(math.Floor(r.lo))
	hiBin := int(math.Ceil(r.hi))
	if loBin < 0 {
		loBin = 0
	}
	if hiBin > len(linear) {
		hiBin = len(linear)
	}
	if loBin >= hiBin {
		return 0
	}
	var sum float32
	for i := loBin; i < hiBin; i++ {
		sum += linear[i]
	}
	return sum / float32(hiBin-loBin)
}

// MaxLevelIn returns the maximum band value within
// [centerHz*(1-width), centerHz*(1+width)], clamped to [0,1], per
// spec.md §4.3.
func (s *ScaledSpectrum) MaxLevelIn(centerHz, width float32) float32 {
	lo := centerHz * (1 - width)
	hi := centerHz * (1 + width)
	var max float32
	for b := 0; b < Bands; b++ {
		bandLo, bandHi := s.bandHz(b)
		if bandHi < float64(lo) || bandLo > float64(hi) {
			continue
		}
		if s.bands[b] > max {
			max = s.bands[b]
		}
	}
	return clamp01(max)
}

// bandHz returns the [lo,hi) frequency range covered by band b.
func (s *ScaledSpectrum) bandHz(b int) (float64, float64) {
	nyquist := s.sampleRate / 2
	ratio := math.Pow(nyquist/baseHz, 1.0/Bands)
	return baseHz * math.Pow(ratio, float64(b)), baseHz * math.Pow(ratio, float64(b+1))
}

// Normalized borrows the current Spectrum.
func (s *ScaledSpectrum) Normalized() *[Bands]float32 {
	return &s.bands
}

func decibelCurve(x float32) float32 {
	if x <= 0 {
		return 0
	}
	db := 20 * math.Log10(float64(x))
	v := (db + 60) / 60
	if v < 0 {
		v = 0
	}
	return clamp01(float32(v))
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxf32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func powf32(base, exp float32) float32 {
	if base <= 0 {
		return 0
	}
	return float32(math.Pow(float64(base), float64(exp)))
}
