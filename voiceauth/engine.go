// Package voiceauth는 사용자 등록과 화자 인증을 수행한다.
//
// 등록은 파형의 서명을 저장소에 한 사용자당 하나씩 덮어쓰고,
// 인증은 새 파형의 서명과 저장된 서명의 코사인 유사도를 임계값과 비교한다.
package voiceauth

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zrma/go-voiceprint/capture"
	"github.com/zrma/go-voiceprint/store"
	"github.com/zrma/go-voiceprint/voiceprint"
)

// Engine은 서명 추출기와 저장소를 묶은 등록/인증 엔진이다.
// 여러 고루틴에서 동시에 사용해도 되며, 같은 사용자에 대한 쓰기는 직렬화된다.
type Engine struct {
	cfg       Config
	store     store.Store
	extractor *voiceprint.Extractor
	archive   *capture.Archive
	log       *slog.Logger
	now       func() time.Time

	locks sync.Map // userID -> *sync.Mutex
}

// New는 저장소 st를 쓰는 Engine을 만든다. st의 수명은 호출자가 관리한다.
func New(st store.Store, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.Wrap(ErrInvalidInput, "store is nil")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	extractor, err := voiceprint.NewExtractor(o.cfg.SampleRate, o.cfg.NumMFCC, o.extractorOpts...)
	if err != nil {
		return nil, err
	}
	log := o.logger
	if log == nil {
		log = slog.Default()
	}
	now := o.now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:       o.cfg,
		store:     st,
		extractor: extractor,
		archive:   o.archive,
		log:       log,
		now:       now,
	}, nil
}

// Config는 엔진 설정을 반환한다.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) userLock(userID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Enroll은 파형의 서명을 계산해 userID의 레코드로 저장한다. 기존 레코드는 덮어쓴다.
func (e *Engine) Enroll(ctx context.Context, userID string, w voiceprint.Waveform) error {
	if userID == "" {
		return errors.Wrap(ErrInvalidInput, "user id is empty")
	}
	sig, err := e.extractor.Extract(w)
	if err != nil {
		return errors.Wrapf(err, "extract signature for %q", userID)
	}

	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	rec := store.Record{UserID: userID, Signature: sig, UpdatedAt: e.now()}
	if err := e.store.Put(ctx, rec); err != nil {
		e.log.Error("enroll failed", "user", userID, "error", err)
		return wrapStorage("put "+userID, err)
	}
	e.log.Info("enrolled", "user", userID, "dim", sig.Dim(), "pitch", sig.Pitch())
	return nil
}

// Authenticate는 설정된 임계값으로 AuthenticateWithThreshold를 호출한다.
func (e *Engine) Authenticate(ctx context.Context, userID string, w voiceprint.Waveform) (Result, error) {
	return e.AuthenticateWithThreshold(ctx, userID, w, e.cfg.Threshold)
}

// AuthenticateWithThreshold는 파형을 userID의 등록 서명과 비교한다.
// 등록 레코드가 없으면 파형을 분석하지 않고 ErrNotEnrolled를 반환한다.
func (e *Engine) AuthenticateWithThreshold(ctx context.Context, userID string, w voiceprint.Waveform, threshold float64) (Result, error) {
	if userID == "" {
		return Result{}, errors.Wrap(ErrInvalidInput, "user id is empty")
	}
	if math.IsNaN(threshold) {
		return Result{}, errors.Wrap(ErrInvalidInput, "threshold is NaN")
	}

	enrolled, err := e.Signature(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	probe, err := e.extractor.Extract(w)
	if err != nil {
		return Result{}, errors.Wrapf(err, "extract probe signature for %q", userID)
	}
	sim, err := voiceprint.CosineSimilarity(enrolled, probe)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		UserID:     userID,
		Decision:   Decide(sim, threshold),
		Similarity: sim,
		Threshold:  threshold,
		Probe:      probe,
	}
	e.log.Info("authenticated", "user", userID, "similarity", sim, "threshold", threshold, "decision", res.Decision.String())
	return res, nil
}

// Signature는 userID의 등록 서명을 반환한다.
// 레코드가 없으면 ErrNotEnrolled, 읽기 실패나 차원이 맞지 않는 레코드는 ErrStorage다.
func (e *Engine) Signature(ctx context.Context, userID string) (voiceprint.Signature, error) {
	if userID == "" {
		return nil, errors.Wrap(ErrInvalidInput, "user id is empty")
	}
	rec, err := e.store.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotEnrolled, "no stored voice for %q", userID)
	}
	if err != nil {
		return nil, wrapStorage("get "+userID, err)
	}
	if dim := e.extractor.Dim(); rec.Signature.Dim() != dim {
		return nil, wrapStorage("get "+userID, errors.Errorf("stored signature has dimension %d, expected %d", rec.Signature.Dim(), dim))
	}
	for i, v := range rec.Signature {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, wrapStorage("get "+userID, errors.Errorf("stored signature has non-finite value at %d", i))
		}
	}
	return rec.Signature, nil
}

// Delete는 userID의 등록을 지운다. 없는 사용자는 무시한다.
func (e *Engine) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.Wrap(ErrInvalidInput, "user id is empty")
	}
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.store.Delete(ctx, userID); err != nil {
		return wrapStorage("delete "+userID, err)
	}
	e.log.Info("deleted", "user", userID)
	return nil
}

// Users는 등록된 사용자 ID를 사전순으로 반환한다.
func (e *Engine) Users(ctx context.Context) ([]string, error) {
	ids, err := e.store.List(ctx)
	if err != nil {
		return nil, wrapStorage("list", err)
	}
	return ids, nil
}

// EnrollFrom은 src에서 설정된 길이만큼 녹음을 받아 등록한다.
// 아카이브가 설정돼 있으면 녹음을 파일로 남긴다.
func (e *Engine) EnrollFrom(ctx context.Context, userID string, src capture.Source) error {
	if userID == "" {
		return errors.Wrap(ErrInvalidInput, "user id is empty")
	}
	w, err := src.Capture(ctx, e.cfg.Duration, e.cfg.SampleRate)
	if err != nil {
		return errors.Wrap(err, "capture enrollment audio")
	}
	if e.archive != nil {
		if path, err := e.archive.SaveEnrollment(userID, w); err != nil {
			e.log.Warn("archive enrollment failed", "user", userID, "error", err)
		} else {
			e.log.Debug("archived enrollment", "user", userID, "path", path)
		}
	}
	return e.Enroll(ctx, userID, w)
}

// AuthenticateFrom은 설정된 임계값으로 AuthenticateFromWithThreshold를 호출한다.
func (e *Engine) AuthenticateFrom(ctx context.Context, userID string, src capture.Source) (Result, error) {
	return e.AuthenticateFromWithThreshold(ctx, userID, src, e.cfg.Threshold)
}

// AuthenticateFromWithThreshold는 src에서 녹음을 받아 threshold로 인증한다.
// 등록되지 않은 사용자면 녹음하지 않는다.
func (e *Engine) AuthenticateFromWithThreshold(ctx context.Context, userID string, src capture.Source, threshold float64) (Result, error) {
	if _, err := e.Signature(ctx, userID); err != nil {
		return Result{}, err
	}
	w, err := src.Capture(ctx, e.cfg.Duration, e.cfg.SampleRate)
	if err != nil {
		return Result{}, errors.Wrap(err, "capture probe audio")
	}
	if e.archive != nil {
		if path, err := e.archive.SaveProbe(w); err != nil {
			e.log.Warn("archive probe failed", "user", userID, "error", err)
		} else {
			e.log.Debug("archived probe", "user", userID, "path", path)
		}
	}
	return e.AuthenticateWithThreshold(ctx, userID, w, threshold)
}
