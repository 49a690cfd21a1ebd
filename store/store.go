// Package store는 사용자별 등록 서명을 저장한다.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/zrma/go-voiceprint/voiceprint"
)

var (
	// ErrNotFound는 해당 사용자의 레코드가 없을 때 반환된다.
	ErrNotFound = errors.New("store: record not found")
	// ErrCorrupt는 저장된 바이트를 레코드로 해석할 수 없을 때 반환된다.
	ErrCorrupt = errors.New("store: corrupt record")
	// ErrEmptyUserID는 빈 사용자 ID로 접근할 때 반환된다.
	ErrEmptyUserID = errors.New("store: empty user id")
)

// Record는 한 사용자의 등록 서명이다. 사용자 ID는 대소문자를 구분한다.
type Record struct {
	UserID    string
	Signature voiceprint.Signature
	UpdatedAt time.Time
}

// Store는 사용자 ID를 키로 한 레코드 저장소다.
// Put은 기존 레코드를 원자적으로 덮어쓴다.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, userID string) (Record, error)
	Delete(ctx context.Context, userID string) error
	// List는 등록된 사용자 ID를 사전순으로 반환한다.
	List(ctx context.Context) ([]string, error)
	Close() error
}

// 지원하는 드라이버 이름.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Open은 드라이버 이름으로 Store를 연다.
// memory 드라이버는 path를 무시하고, badger는 디렉터리, sqlite는 파일 경로를 받는다.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverBadger:
		return NewBadger(BadgerOptions{Dir: path})
	case DriverSQLite:
		return NewSQLite(path)
	default:
		return nil, errors.Errorf("store: unknown driver %q", driver)
	}
}

func checkUserID(userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	return nil
}
