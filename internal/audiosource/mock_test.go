package audiosource

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockSourceDeliversSineSamples(t *testing.T) {
	m := NewMockSource(44100, 1)
	var got []float32
	m.SetCallback(func(samples []float32, channelCount int) {
		got = append(got, samples...)
		require.Equal(t, 1, channelCount)
	})

	m.GenerateSine(440, 0.5, 128)
	require.Len(t, got, 128)

	var nonZero bool
	for _, v := range got {
		if v != 0 {
			nonZero = true
		}
		require.LessOrEqual(t, v, float32(0.5))
		require.GreaterOrEqual(t, v, float32(-0.5))
	}
	require.True(t, nonZero)
}

func TestMockSourceDeliversSilence(t *testing.T) {
	m := NewMockSource(44100, 2)
	var got []float32
	m.SetCallback(func(samples []float32, channelCount int) {
		got = samples
		require.Equal(t, 2, channelCount)
	})

	m.GenerateSilence(64)
	require.Len(t, got, 128)
	for _, v := range got {
		require.Zero(t, v)
	}
}

func TestMockSourceVolumeScalesOutput(t *testing.T) {
	m := NewMockSource(44100, 1)
	m.SetVolume(0.5)
	var got []float32
	m.SetCallback(func(samples []float32, channelCount int) {
		got = samples
	})

	m.GenerateSine(100, 1.0, 16)
	for _, v := range got {
		require.LessOrEqual(t, v, float32(0.5001))
	}
}

func TestMockSourceSelectRejectsUnknownDevice(t *testing.T) {
	m := NewMockSource(44100, 1)
	require.NoError(t, m.Select("mock"))
	require.Error(t, m.Select("other"))
}
