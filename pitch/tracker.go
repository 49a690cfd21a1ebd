// Package pitch는 STFT 스펙트럼 피크에서 프레임별 기본 주파수 후보를 추정한다.
package pitch

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/pkg/errors"
)

const (
	defaultFFTSize      = 2048
	defaultHopSize      = 512
	defaultMinFrequency = 150.0
	defaultMaxFrequency = 4000.0
	defaultThreshold    = 0.1
)

// Config는 피치 추적 파라미터다. 0으로 남긴 값은 기본값을 쓴다.
type Config struct {
	FFTSize      int
	HopSize      int
	MinFrequency float64
	MaxFrequency float64
	// Threshold는 프레임 최대 크기에 대한 비율로, 이 값 이하의 피크는 무시한다.
	Threshold float64
}

// DefaultConfig는 2048점 FFT, 512 홉, 150~4000Hz, 임계값 0.1을 반환한다.
func DefaultConfig() Config {
	return Config{
		FFTSize:      defaultFFTSize,
		HopSize:      defaultHopSize,
		MinFrequency: defaultMinFrequency,
		MaxFrequency: defaultMaxFrequency,
		Threshold:    defaultThreshold,
	}
}

// Tracker는 고정된 샘플레이트에서 프레임별 피치를 추정한다.
// 내부 상태를 변경하지 않으므로 여러 고루틴에서 동시에 사용해도 된다.
type Tracker struct {
	sampleRate int
	fftSize    int
	hopSize    int
	threshold  float64
	window     []float64
	// [minBin, maxBin) 범위의 빈만 후보가 된다.
	minBin int
	maxBin int
}

// NewTracker는 설정을 검증하고 Tracker를 만든다.
func NewTracker(sampleRate int, cfg Config) (*Tracker, error) {
	if sampleRate <= 0 {
		return nil, errors.Errorf("invalid sample rate: %dHz", sampleRate)
	}
	def := DefaultConfig()
	if cfg.FFTSize == 0 {
		cfg.FFTSize = def.FFTSize
	}
	if cfg.HopSize == 0 {
		cfg.HopSize = def.HopSize
	}
	if cfg.MinFrequency == 0 {
		cfg.MinFrequency = def.MinFrequency
	}
	if cfg.MaxFrequency == 0 {
		cfg.MaxFrequency = def.MaxFrequency
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = def.Threshold
	}

	if cfg.FFTSize < 4 {
		return nil, errors.Errorf("invalid FFT size: %d", cfg.FFTSize)
	}
	if cfg.HopSize < 1 {
		return nil, errors.Errorf("invalid hop size: %d", cfg.HopSize)
	}
	if !(cfg.MinFrequency >= 0) || !(cfg.MaxFrequency > cfg.MinFrequency) {
		return nil, errors.Errorf("invalid frequency range: [%v, %v)", cfg.MinFrequency, cfg.MaxFrequency)
	}
	if !(cfg.Threshold >= 0 && cfg.Threshold < 1) {
		return nil, errors.Errorf("invalid threshold: %v", cfg.Threshold)
	}

	binHz := float64(sampleRate) / float64(cfg.FFTSize)
	binCount := cfg.FFTSize/2 + 1
	minBin := int(math.Ceil(cfg.MinFrequency / binHz))
	maxBin := int(math.Ceil(cfg.MaxFrequency / binHz))
	if maxBin > binCount {
		maxBin = binCount
	}
	if minBin >= maxBin {
		return nil, errors.Errorf("frequency range [%v, %v) contains no FFT bins at %dHz", cfg.MinFrequency, cfg.MaxFrequency, sampleRate)
	}

	return &Tracker{
		sampleRate: sampleRate,
		fftSize:    cfg.FFTSize,
		hopSize:    cfg.HopSize,
		threshold:  cfg.Threshold,
		window:     periodicHann(cfg.FFTSize),
		minBin:     minBin,
		maxBin:     maxBin,
	}, nil
}

// SampleRate는 Tracker의 샘플레이트를 반환한다.
func (t *Tracker) SampleRate() int { return t.sampleRate }

// NumFrames는 길이 n인 신호에서 만들어지는 프레임 수를 반환한다.
// 신호 양쪽에 FFTSize/2만큼 0을 덧대 프레임 중심을 샘플에 맞춘다.
func (t *Tracker) NumFrames(n int) int {
	if n <= 0 {
		return 0
	}
	return 1 + n/t.hopSize
}

// Track은 프레임마다 선택된 피치(Hz)를 반환한다.
// 후보가 없는 프레임은 0이다.
func (t *Tracker) Track(samples []float64) []float64 {
	numFrames := t.NumFrames(len(samples))
	out := make([]float64, numFrames)
	if numFrames == 0 {
		return out
	}

	half := t.fftSize / 2
	binCount := half + 1
	frame := make([]float64, t.fftSize)
	mag := make([]float64, binCount)

	for f := range numFrames {
		start := f*t.hopSize - half
		for i := range frame {
			j := start + i
			if j < 0 || j >= len(samples) {
				frame[i] = 0
				continue
			}
			frame[i] = samples[j] * t.window[i]
		}

		spectrum := fft.FFTReal(frame)
		maxMag := 0.0
		for k := range binCount {
			mag[k] = math.Hypot(real(spectrum[k]), imag(spectrum[k]))
			maxMag = math.Max(maxMag, mag[k])
		}
		out[f] = t.selectPitch(mag, maxMag*t.threshold)
	}
	return out
}

// selectPitch는 중심 주파수가 [MinFrequency, MaxFrequency) 안에 있는 국소 최대 빈 중
// 보간된 크기가 가장 큰 빈의 피치를 고른다. 크기가 같으면 낮은 빈을 택한다.
func (t *Tracker) selectPitch(mag []float64, ref float64) float64 {
	last := len(mag) - 1
	bestMag := 0.0
	bestPitch := 0.0
	for k := t.minBin; k < t.maxBin; k++ {
		cur := mag[k]
		if cur <= ref {
			continue
		}
		// 양 끝은 가장자리 값을 복제한 것으로 보고 국소 최대를 판정한다.
		prev := mag[max(k-1, 0)]
		next := mag[min(k+1, last)]
		if !(cur > prev && cur >= next) {
			continue
		}

		shift, avg := 0.0, 0.0
		if k > 0 && k < last {
			avg = 0.5 * (next - prev)
			den := 2*cur - next - prev
			if math.Abs(den) < math.SmallestNonzeroFloat64 {
				den++
			}
			shift = avg / den
		}

		freq := (float64(k) + shift) * float64(t.sampleRate) / float64(t.fftSize)
		peak := cur + 0.5*avg*shift
		if peak > bestMag {
			bestMag = peak
			bestPitch = freq
		}
	}
	return bestPitch
}

// MeanPitch는 피치가 0보다 큰 프레임들의 평균을 반환한다. 그런 프레임이 없으면 0이다.
func (t *Tracker) MeanPitch(samples []float64) float64 {
	sum := 0.0
	count := 0
	for _, p := range t.Track(samples) {
		if p > 0 {
			sum += p
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// periodicHann은 STFT 분석용 주기 Hann 창을 만든다.
// go-dsp의 대칭 창을 한 점 길게 만든 뒤 마지막 점을 버린다.
func periodicHann(n int) []float64 {
	return window.Hann(n + 1)[:n]
}
