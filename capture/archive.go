package capture

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zrma/go-voiceprint/mfcc"
	"github.com/zrma/go-voiceprint/voiceprint"
)

// Archive는 등록/인증에 쓰인 녹음을 16비트 PCM WAV로 디렉터리에 남긴다.
type Archive struct {
	Dir string
	// sampleRate는 Waveform.SampleRate가 0일 때 쓴다.
	sampleRate int
	newID      func() string
}

// NewArchive는 dir에 녹음을 저장하는 Archive를 만든다.
// 샘플레이트를 모르는 파형은 defaultRate로 기록한다.
func NewArchive(dir string, defaultRate int) *Archive {
	return &Archive{
		Dir:        dir,
		sampleRate: defaultRate,
		newID:      uuid.NewString,
	}
}

// SaveEnrollment는 "<user>_enroll_<id>.wav"로 등록 녹음을 저장하고 경로를 반환한다.
func (a *Archive) SaveEnrollment(userID string, w voiceprint.Waveform) (string, error) {
	return a.save(sanitize(userID)+"_enroll_"+a.newID()+".wav", w)
}

// SaveProbe는 "probe_<id>.wav"로 인증 시도 녹음을 저장하고 경로를 반환한다.
func (a *Archive) SaveProbe(w voiceprint.Waveform) (string, error) {
	return a.save("probe_"+a.newID()+".wav", w)
}

func (a *Archive) save(name string, w voiceprint.Waveform) (string, error) {
	rate := w.SampleRate
	if rate == 0 {
		rate = a.sampleRate
	}
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, "capture: create archive directory")
	}
	path := filepath.Join(a.Dir, name)
	if err := mfcc.WriteWavMono(path, w.Samples, rate); err != nil {
		return "", errors.Wrapf(err, "capture: archive %s", name)
	}
	return path, nil
}

// sanitize는 사용자 ID를 파일 이름에 넣을 수 있게 경로 구분자를 바꾼다.
func sanitize(userID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, userID)
}
