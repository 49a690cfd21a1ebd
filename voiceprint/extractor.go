package voiceprint

import (
	"sync"

	"github.com/pkg/errors"
	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/zrma/go-voiceprint/mfcc"
	"github.com/zrma/go-voiceprint/pitch"
)

const (
	// DefaultSampleRate는 분석 샘플레이트 기본값이다.
	DefaultSampleRate = 16_000
	// DefaultNumMFCC는 서명에 들어가는 MFCC 계수 개수 기본값이다.
	DefaultNumMFCC = 13
)

// ExtractorOption은 Extractor의 분석 파라미터를 바꾼다.
type ExtractorOption func(*extractorOptions)

type extractorOptions struct {
	mfcc  mfcc.Config
	pitch pitch.Config
}

// WithMFCCConfig는 MFCC 창/홉/필터 설정을 바꾼다. NumCoefficients는 무시된다.
func WithMFCCConfig(cfg mfcc.Config) ExtractorOption {
	return func(o *extractorOptions) {
		o.mfcc = cfg
	}
}

// WithPitchConfig는 피치 추적 설정을 바꾼다.
func WithPitchConfig(cfg pitch.Config) ExtractorOption {
	return func(o *extractorOptions) {
		o.pitch = cfg
	}
}

// Extractor는 파형에서 서명을 뽑는다. 여러 고루틴에서 동시에 사용해도 된다.
type Extractor struct {
	sampleRate int
	numMFCC    int
	tracker    *pitch.Tracker

	// mfcc.Extractor는 작업 버퍼를 재사용하므로 직렬화한다.
	mu   sync.Mutex
	mfcc *mfcc.Extractor
}

// NewExtractor는 분석 샘플레이트와 MFCC 계수 개수로 Extractor를 만든다.
func NewExtractor(sampleRate, numMFCC int, opts ...ExtractorOption) (*Extractor, error) {
	if sampleRate <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "sample rate must be positive, got %d", sampleRate)
	}
	if numMFCC <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "n_mfcc must be positive, got %d", numMFCC)
	}

	o := extractorOptions{
		mfcc:  mfcc.DefaultConfig(),
		pitch: pitch.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.mfcc.NumCoefficients = numMFCC

	m, err := mfcc.NewExtractor(sampleRate, o.mfcc)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	tracker, err := pitch.NewTracker(sampleRate, o.pitch)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}

	return &Extractor{
		sampleRate: sampleRate,
		numMFCC:    numMFCC,
		tracker:    tracker,
		mfcc:       m,
	}, nil
}

// SampleRate는 분석 샘플레이트를 반환한다.
func (e *Extractor) SampleRate() int { return e.sampleRate }

// Dim은 이 Extractor가 만드는 서명의 차원(n_mfcc+1)을 반환한다.
func (e *Extractor) Dim() int { return e.numMFCC + 1 }

// Extract는 파형의 서명을 계산한다.
// 원본 샘플레이트가 분석 샘플레이트와 다르면 먼저 리샘플링하고,
// 한 창보다 짧은 파형은 0으로 채워 최소 한 프레임을 만든다.
func (e *Extractor) Extract(w Waveform) (Signature, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}

	samples := w.Samples
	if w.SampleRate != 0 && w.SampleRate != e.sampleRate {
		resampled, err := resample(samples, w.SampleRate, e.sampleRate)
		if err != nil {
			return nil, err
		}
		samples = resampled
	}

	sig := make(Signature, 0, e.Dim())
	timbre, err := e.timbre(samples)
	if err != nil {
		return nil, err
	}
	sig = append(sig, timbre...)
	sig = append(sig, e.tracker.MeanPitch(samples))
	return sig, nil
}

func (e *Extractor) timbre(samples []float64) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n := e.mfcc.WindowSize(); len(samples) < n {
		padded := make([]float64, n)
		copy(padded, samples)
		samples = padded
	}
	frames, err := e.mfcc.Calculate(samples)
	if err != nil {
		return nil, errors.Wrap(err, "compute MFCC failed")
	}
	return mfcc.FrameMean(frames), nil
}

// Extract는 일회성 Extractor로 서명을 계산한다.
func Extract(w Waveform, sampleRate, numMFCC int) (Signature, error) {
	e, err := NewExtractor(sampleRate, numMFCC)
	if err != nil {
		return nil, err
	}
	return e.Extract(w)
}

func resample(samples []float64, from, to int) ([]float64, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	out, err := r.Process(samples)
	if err != nil {
		return nil, errors.Wrapf(err, "resample %dHz to %dHz failed", from, to)
	}
	// 필터 지연만큼 남은 꼬리 샘플을 내보낸다.
	tail, err := r.Flush()
	if err != nil {
		return nil, errors.Wrapf(err, "flush resampler %dHz to %dHz failed", from, to)
	}
	out = append(out, tail...)
	if len(out) == 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "waveform too short to resample from %dHz", from)
	}
	return out, nil
}
