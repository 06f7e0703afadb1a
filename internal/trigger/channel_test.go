package trigger

import (
	"testing"

	"github.com/sound2osc/engine/internal/domain"
	"github.com/sound2osc/engine/internal/dsp"
	"github.com/stretchr/testify/require"
)

func TestNewChannelDispatchesDetectorByKind(t *testing.T) {
	bass := newDef(0.3, 0, 0, 0)
	bass.Kind = domain.BandPass
	bass.CenterHz = 80
	bass.Width = 0.2
	ch := NewChannel(bass, &recordingEmitter{}, nil)
	require.Equal(t, KindBandPass, ch.Detector.Kind)

	env := newDef(0.3, 0, 0, 0)
	env.Kind = domain.Envelope
	ch = NewChannel(env, &recordingEmitter{}, nil)
	require.Equal(t, KindEnvelope, ch.Detector.Kind)

	sil := newDef(0.3, 0, 0, 0)
	sil.Kind = domain.Silence
	ch = NewChannel(sil, &recordingEmitter{}, nil)
	require.Equal(t, KindSilence, ch.Detector.Kind)
}

func TestChannelTickOpensAndReportsLevel(t *testing.T) {
	def := newDef(0.3, 0, 0, 0)
	def.Kind = domain.BandPass
	def.CenterHz = 80
	def.Width = 0.2
	em := &recordingEmitter{}
	ch := NewChannel(def, em, nil)

	spectrum := dsp.NewScaledSpectrum(44100)
	linear := make([]float32, dsp.LinearBins)
	for i := range linear {
		linear[i] = 10
	}
	spectrum.Update(linear)

	level := ch.Tick(0, tickRate, spectrum, false)
	require.Equal(t, float32(1), level)
	require.Equal(t, domain.Active, ch.Filter.state)
	require.NotEmpty(t, em.sent)
}

func TestChannelTickRespectsLowSoloForHighBands(t *testing.T) {
	def := newDef(0.3, 0, 0, 0)
	def.Kind = domain.BandPass
	def.CenterHz = 8000
	def.Width = 0.2
	em := &recordingEmitter{}
	ch := NewChannel(def, em, nil)

	spectrum := dsp.NewScaledSpectrum(44100)
	linear := make([]float32, dsp.LinearBins)
	for i := range linear {
		linear[i] = 10
	}
	spectrum.Update(linear)

	level := ch.Tick(0, tickRate, spectrum, true)
	require.Equal(t, float32(0), level)
	require.Equal(t, domain.Idle, ch.Filter.state)
}
