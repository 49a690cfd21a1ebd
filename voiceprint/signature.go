// Package voiceprint는 음성 파형에서 고정 길이 화자 서명을 만들고 비교한다.
//
// 서명은 프레임별 MFCC의 시간 평균 뒤에 평균 피치(Hz)를 붙인 벡터다.
package voiceprint

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput은 파형이나 파라미터가 올바르지 않을 때 반환된다.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDimensionMismatch는 길이가 다른 두 서명을 비교할 때 반환된다.
	ErrDimensionMismatch = errors.Wrap(ErrInvalidInput, "signature dimension mismatch")
)

// Waveform은 모노 PCM 샘플과 원본 샘플레이트다.
// SampleRate가 0이면 분석 샘플레이트로 녹음된 것으로 본다.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration은 파형의 재생 길이를 반환한다. SampleRate를 모르면 0이다.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

func (w Waveform) validate() error {
	if len(w.Samples) == 0 {
		return errors.Wrap(ErrInvalidInput, "empty waveform")
	}
	if w.SampleRate < 0 {
		return errors.Wrapf(ErrInvalidInput, "negative sample rate %d", w.SampleRate)
	}
	for i, v := range w.Samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidInput, "non-finite sample at index %d", i)
		}
	}
	return nil
}

// Signature는 MFCC 평균(n_mfcc개)과 평균 피치 1개로 이루어진 화자 서명이다.
type Signature []float64

// Dim은 서명의 차원을 반환한다.
func (s Signature) Dim() int { return len(s) }

// Clone은 서명을 깊은 복사한다.
func (s Signature) Clone() Signature {
	if s == nil {
		return nil
	}
	return append(Signature(nil), s...)
}

// Timbre는 MFCC 평균 부분을 반환한다. 반환값은 s와 메모리를 공유한다.
func (s Signature) Timbre() []float64 {
	if len(s) == 0 {
		return nil
	}
	return s[:len(s)-1]
}

// Pitch는 서명의 마지막 원소인 평균 피치(Hz)를 반환한다.
func (s Signature) Pitch() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// CosineSimilarity는 두 서명의 코사인 유사도를 [-1, 1] 범위로 반환한다.
// 한쪽의 노름이 0이면 0을 반환한다.
func CosineSimilarity(a, b Signature) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Wrapf(ErrDimensionMismatch, "%d != %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	sim := dot / math.Sqrt(normA*normB)
	return math.Max(-1, math.Min(1, sim)), nil
}
