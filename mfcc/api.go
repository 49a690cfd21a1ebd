package mfcc

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// Config는 MFCC 계산에 사용할 설정값을 담는다.
// 0으로 남겨둔 값은 DefaultConfig의 기본값으로 채워진다.
type Config struct {
	WindowDuration     time.Duration
	HopDuration        time.Duration
	NumFilters         int
	NumCoefficients    int
	PreEmphasis        float64
	DisablePreEmphasis bool
	EnergyFloor        float64
}

// DefaultConfig는 화자 서명 추출에 쓰는 기본 설정을 반환한다.
// 25ms 창, 10ms 홉, 40개 멜 필터, 13개 계수.
func DefaultConfig() Config {
	return Config{
		WindowDuration:  defaultWindowDuration,
		HopDuration:     defaultHopDuration,
		NumFilters:      defaultNumFilters,
		NumCoefficients: defaultNumCoefficients,
		PreEmphasis:     defaultPreEmphasis,
		EnergyFloor:     defaultEnergyFloor,
	}
}

// NewExtractor는 재사용 가능한 MFCC 추출기를 생성한다.
// Extractor는 내부 버퍼를 재사용하므로 고루틴 간에 공유하지 않는다.
func NewExtractor(sampleRate int, cfg Config) (*Extractor, error) {
	resolved, err := getMFCCConfig(sampleRate, cfg)
	if err != nil {
		return nil, err
	}
	return newExtractorFromConfig(resolved), nil
}

// SampleRate는 Extractor가 참조하는 샘플레이트를 반환한다.
func (e *Extractor) SampleRate() int {
	if e == nil {
		return 0
	}
	return e.sampleRate
}

// WindowSize는 분석 창의 길이를 샘플 단위로 반환한다.
func (e *Extractor) WindowSize() int {
	if e == nil {
		return 0
	}
	return e.windowSize
}

// HopSize는 프레임 홉 길이를 샘플 단위로 반환한다.
func (e *Extractor) HopSize() int {
	if e == nil {
		return 0
	}
	return e.hopSize
}

// NumFilters는 멜 필터 개수를 반환한다.
func (e *Extractor) NumFilters() int {
	if e == nil {
		return 0
	}
	return e.numFilters
}

// NumCoefficients는 프레임당 MFCC 계수 개수를 반환한다.
func (e *Extractor) NumCoefficients() int {
	if e == nil {
		return 0
	}
	return e.numCoefficients
}

// Calculate는 입력 샘플에서 프레임별 MFCC를 계산한다.
// 창 길이보다 짧은 입력은 거부한다. 0 패딩은 호출자가 결정한다.
func (e *Extractor) Calculate(samples []float64) ([][]float64, error) {
	if e == nil {
		return nil, errors.New("extractor is nil")
	}
	if len(samples) < e.windowSize {
		return nil, errors.Errorf("input too short to compute MFCCs: need at least %d samples, got %d", e.windowSize, len(samples))
	}
	mean, err := meanAndValidateSamples(samples)
	if err != nil {
		return nil, err
	}
	mfcc := e.calculateWithMean(samples, mean)
	if len(mfcc) == 0 {
		return nil, errors.New("failed to compute MFCCs")
	}
	if err := validateMFCC(mfcc); err != nil {
		return nil, errors.Wrap(err, "invalid MFCC output")
	}
	return mfcc, nil
}

// FrameMean은 프레임 축으로 각 계수의 평균을 구한다.
// 프레임이 없으면 nil을 반환한다.
func FrameMean(mfcc [][]float64) []float64 {
	if len(mfcc) == 0 {
		return nil
	}
	mean := make([]float64, len(mfcc[0]))
	for _, frame := range mfcc {
		for c, v := range frame {
			mean[c] += v
		}
	}
	n := float64(len(mfcc))
	for c := range mean {
		mean[c] /= n
	}
	return mean
}

// ReadWavMono는 WAV 파일을 읽어 모노로 변환한 샘플과 샘플레이트를 반환한다.
func ReadWavMono(path string) ([]float64, int, error) {
	return readWavFile(path)
}

// WriteWavMono는 [-1, 1] 범위의 모노 샘플을 16비트 PCM WAV 파일로 기록한다.
func WriteWavMono(path string, samples []float64, sampleRate int) error {
	return writeWavFile(path, samples, sampleRate)
}

func meanAndValidateSamples(samples []float64) (float64, error) {
	sum := 0.0
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errors.Errorf("invalid sample at index %d: %v", i, v)
		}
		sum += v
	}
	return sum / float64(len(samples)), nil
}

func validateMFCC(mfcc [][]float64) error {
	for i, frame := range mfcc {
		for c, v := range frame {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Errorf("invalid MFCC value at frame %d, coefficient %d", i, c)
			}
		}
	}
	return nil
}
