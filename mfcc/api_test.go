package mfcc

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestReadWavMono_ThenCalculate(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	path := filepath.Join(t.TempDir(), "mono.wav")
	windowSize, hopSize := frameParamsFromDurations(16_000, defaultWindowDuration, defaultHopDuration)
	writeTestWav(t, path, 16_000, 16, 1, make([]int, windowSize+2*hopSize))

	samples, sampleRate, err := ReadWavMono(path)
	require.NoError(t, err)
	assert.Equal(t, 16_000, sampleRate)

	extractor, err := NewExtractor(sampleRate, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, hopSize, extractor.HopSize())

	mfccs, err := extractor.Calculate(samples)
	require.NoError(t, err)
	require.Len(t, mfccs, 3)
	for _, frame := range mfccs {
		assert.Len(t, frame, defaultNumCoefficients)
	}
}

func TestNewExtractor_CustomConfig(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	cfg := DefaultConfig()
	cfg.NumFilters = 20
	cfg.NumCoefficients = 20
	cfg.DisablePreEmphasis = true

	extractor, err := NewExtractor(16_000, cfg)
	require.NoError(t, err)
	assert.Equal(t, 20, extractor.NumFilters())
	assert.Equal(t, 20, extractor.NumCoefficients())
	assert.Zero(t, extractor.preEmphasis)

	mfccs, err := extractor.Calculate(make([]float64, extractor.WindowSize()))
	require.NoError(t, err)
	require.Len(t, mfccs, 1)
	assert.Len(t, mfccs[0], 20)
}

func TestNewExtractor_ZeroConfigUsesDefaults(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	extractor, err := NewExtractor(16_000, Config{})
	require.NoError(t, err)
	assert.Equal(t, 400, extractor.WindowSize())
	assert.Equal(t, 160, extractor.HopSize())
	assert.Equal(t, defaultNumFilters, extractor.NumFilters())
	assert.Equal(t, defaultNumCoefficients, extractor.NumCoefficients())
	assert.Equal(t, defaultPreEmphasis, extractor.preEmphasis)
}

func TestNewExtractor_InvalidConfig(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	tests := []struct {
		name       string
		sampleRate int
		mutate     func(*Config)
		want       string
	}{
		{"negative window", 16_000, func(c *Config) { c.WindowDuration = -5 * time.Millisecond }, "invalid window duration"},
		{"negative hop", 16_000, func(c *Config) { c.HopDuration = -5 * time.Millisecond }, "invalid hop duration"},
		{"sub-sample hop", 16_000, func(c *Config) { c.HopDuration = time.Microsecond }, "invalid hop duration"},
		{"zero sample rate", 0, func(*Config) {}, "invalid sample rate"},
		{"too many coefficients", 16_000, func(c *Config) { c.NumCoefficients = 41 }, "num coefficients"},
		{"pre-emphasis out of range", 16_000, func(c *Config) { c.PreEmphasis = 1.5 }, "pre-emphasis"},
		{"negative energy floor", 16_000, func(c *Config) { c.EnergyFloor = -1 }, "energy floor"},
		{"low sample rate", 2_000, func(*Config) {}, "insufficient mel resolution"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewExtractor(tt.sampleRate, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExtractorCalculate_RejectsInvalidSamples(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	extractor, err := NewExtractor(16_000, DefaultConfig())
	require.NoError(t, err)

	for _, tt := range []struct {
		name  string
		value float64
	}{
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
		{"negative inf", math.Inf(-1)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]float64, extractor.WindowSize())
			samples[7] = tt.value

			_, err := extractor.Calculate(samples)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid sample at index 7")
		})
	}
}

func TestExtractorCalculate_TooShort(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	extractor, err := NewExtractor(16_000, DefaultConfig())
	require.NoError(t, err)

	_, err = extractor.Calculate(make([]float64, extractor.WindowSize()-1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestExtractorCalculate_NilExtractor(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	var extractor *Extractor
	_, err := extractor.Calculate(make([]float64, 1_000))
	require.Error(t, err)
	assert.Zero(t, extractor.SampleRate())
	assert.Zero(t, extractor.WindowSize())
	assert.Zero(t, extractor.HopSize())
}

func TestExtractorCalculate_Deterministic(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	extractor, err := NewExtractor(16_000, DefaultConfig())
	require.NoError(t, err)

	samples := sineWave(16_000, 440, 0.5, 4_000)
	first, err := extractor.Calculate(samples)
	require.NoError(t, err)
	second, err := extractor.Calculate(samples)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := NewExtractor(16_000, DefaultConfig())
	require.NoError(t, err)
	third, err := other.Calculate(samples)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestFrameMean(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	assert.Nil(t, FrameMean(nil))
	assert.Equal(t, []float64{2, -1}, FrameMean([][]float64{{1, 0}, {3, -2}}))
}

func TestWriteWavMono_RoundTrip(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	path := filepath.Join(t.TempDir(), "out.wav")
	samples := []float64{0, 0.5, -0.5, 1, -1, 2, -2}
	require.NoError(t, WriteWavMono(path, samples, 8_000))

	got, sampleRate, err := ReadWavMono(path)
	require.NoError(t, err)
	assert.Equal(t, 8_000, sampleRate)
	expected := []float64{0, 0.5, -0.5, 1, -1, 1, -1}
	assert.InDeltaSlice(t, expected, got, 1.0/16_384)
}

func TestWriteWavMono_RejectsInvalidInput(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	dir := t.TempDir()
	err := WriteWavMono(filepath.Join(dir, "rate.wav"), []float64{0}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sample rate")

	err = WriteWavMono(filepath.Join(dir, "nan.wav"), []float64{0, math.NaN()}, 16_000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sample at index 1")
}

func sineWave(sampleRate int, freq, amplitude float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}
