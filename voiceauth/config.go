package voiceauth

import (
	"log/slog"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/zrma/go-voiceprint/capture"
	"github.com/zrma/go-voiceprint/voiceprint"
)

const (
	DefaultSampleRate = voiceprint.DefaultSampleRate
	DefaultDuration   = 3 * time.Second
	DefaultNumMFCC    = voiceprint.DefaultNumMFCC
	DefaultThreshold  = 0.85
)

// Config는 등록/인증 엔진의 분석 파라미터다.
type Config struct {
	// SampleRate는 분석 샘플레이트(Hz)다.
	SampleRate int
	// Duration은 캡처 소스에서 읽을 녹음 길이다.
	Duration time.Duration
	// NumMFCC는 서명의 MFCC 계수 개수다. 서명 차원은 NumMFCC+1이다.
	NumMFCC int
	// Threshold 이상의 유사도면 수락한다.
	Threshold float64
}

// DefaultConfig는 16kHz, 3초, 13개 계수, 임계값 0.85를 반환한다.
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		Duration:   DefaultDuration,
		NumMFCC:    DefaultNumMFCC,
		Threshold:  DefaultThreshold,
	}
}

// Validate는 설정값의 범위를 검사한다.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.Wrapf(ErrInvalidInput, "sample rate must be positive, got %d", c.SampleRate)
	case c.Duration < 0:
		return errors.Wrapf(ErrInvalidInput, "duration must not be negative, got %v", c.Duration)
	case c.NumMFCC <= 0:
		return errors.Wrapf(ErrInvalidInput, "n_mfcc must be positive, got %d", c.NumMFCC)
	case math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0):
		return errors.Wrapf(ErrInvalidInput, "threshold must be finite, got %v", c.Threshold)
	}
	return nil
}

type options struct {
	cfg           Config
	logger        *slog.Logger
	now           func() time.Time
	archive       *capture.Archive
	extractorOpts []voiceprint.ExtractorOption
}

// Option은 Engine 생성 옵션이다.
type Option func(*options)

// WithConfig는 분석 설정 전체를 바꾼다.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

func WithSampleRate(rate int) Option {
	return func(o *options) {
		o.cfg.SampleRate = rate
	}
}

func WithDuration(d time.Duration) Option {
	return func(o *options) {
		o.cfg.Duration = d
	}
}

func WithNumMFCC(n int) Option {
	return func(o *options) {
		o.cfg.NumMFCC = n
	}
}

func WithThreshold(threshold float64) Option {
	return func(o *options) {
		o.cfg.Threshold = threshold
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithClock은 레코드 갱신 시각을 구하는 함수를 바꾼다.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithArchive를 주면 캡처 소스에서 얻은 녹음을 파일로 남긴다.
func WithArchive(a *capture.Archive) Option {
	return func(o *options) {
		o.archive = a
	}
}

// WithExtractorOptions는 MFCC/피치 분석 세부 설정을 넘긴다.
func WithExtractorOptions(opts ...voiceprint.ExtractorOption) Option {
	return func(o *options) {
		o.extractorOpts = append(o.extractorOpts, opts...)
	}
}

func defaultOptions() options {
	return options{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
}
