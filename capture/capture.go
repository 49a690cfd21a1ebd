// Package capture는 인증 엔진에 넣을 파형을 얻고, 받은 녹음을 보관한다.
package capture

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/zrma/go-voiceprint/mfcc"
	"github.com/zrma/go-voiceprint/voiceprint"
)

// ErrNoAudio는 소스에서 샘플을 하나도 얻지 못했을 때 반환된다.
var ErrNoAudio = errors.New("capture: no audio")

// Source는 지정한 길이만큼 모노 파형을 얻는다.
// sampleRate는 희망 샘플레이트로, 구현은 다른 레이트를 돌려줄 수 있으며
// 반환된 Waveform.SampleRate가 실제 값이다.
type Source interface {
	Capture(ctx context.Context, duration time.Duration, sampleRate int) (voiceprint.Waveform, error)
}

// FileSource는 WAV 파일을 녹음 대신 읽는다.
type FileSource struct {
	Path string
}

var _ Source = FileSource{}

// Capture는 파일을 모노로 디코딩하고 duration보다 길면 앞부분만 남긴다.
// duration이 0 이하이면 파일 전체를 쓴다. 리샘플링은 서명 추출 단계에서 한다.
func (s FileSource) Capture(ctx context.Context, duration time.Duration, _ int) (voiceprint.Waveform, error) {
	if err := ctx.Err(); err != nil {
		return voiceprint.Waveform{}, err
	}
	samples, rate, err := mfcc.ReadWavMono(s.Path)
	if err != nil {
		return voiceprint.Waveform{}, errors.Wrapf(err, "capture: read %s", s.Path)
	}
	if len(samples) == 0 {
		return voiceprint.Waveform{}, errors.Wrapf(ErrNoAudio, "%s has no samples", s.Path)
	}
	if duration > 0 {
		if limit := int(duration.Seconds() * float64(rate)); limit > 0 && limit < len(samples) {
			samples = samples[:limit]
		}
	}
	return voiceprint.Waveform{Samples: samples, SampleRate: rate}, nil
}
