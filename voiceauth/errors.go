package voiceauth

import (
	"github.com/pkg/errors"

	"github.com/zrma/go-voiceprint/voiceprint"
)

var (
	// ErrInvalidInput은 빈 사용자 ID, 빈 파형, 잘못된 파라미터에 쓰인다.
	ErrInvalidInput = voiceprint.ErrInvalidInput
	// ErrNotEnrolled는 인증하려는 사용자의 등록 레코드가 없을 때 반환된다.
	ErrNotEnrolled = errors.New("user not enrolled")
	// ErrStorage는 저장소 읽기/쓰기 실패나 손상된 레코드를 나타낸다.
	ErrStorage = errors.New("storage failure")
)

// storageError는 원인 오류를 보존하면서 ErrStorage로도 식별되게 한다.
type storageError struct {
	op    string
	cause error
}

func (e *storageError) Error() string {
	return ErrStorage.Error() + ": " + e.op + ": " + e.cause.Error()
}

func (e *storageError) Unwrap() []error { return []error{ErrStorage, e.cause} }

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storageError{op: op, cause: err}
}
