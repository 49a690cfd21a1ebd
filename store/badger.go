package store

import (
	"context"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

const badgerKeyPrefix = "voiceprint:"

// Badger는 BadgerDB v4에 레코드를 저장하는 Store다.
// 키는 "voiceprint:<user>" 형식이다.
type Badger struct {
	db *badger.DB
}

var _ Store = (*Badger)(nil)

// BadgerOptions는 Badger 저장소 설정이다.
type BadgerOptions struct {
	// Dir은 데이터 디렉터리다. InMemory가 아니면 필수다.
	Dir string
	// InMemory는 디스크에 기록하지 않는 모드로 연다.
	InMemory bool
	// Logger가 nil이면 slog.Default()로 경고 이상만 남긴다.
	Logger *slog.Logger
}

// NewBadger는 BadgerDB를 열어 Store를 만든다.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: badger directory is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{log: log.With("component", "badger")})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, errors.Wrap(err, "store: open badger")
	}
	return &Badger{db: db}, nil
}

func badgerKey(userID string) []byte {
	return []byte(badgerKeyPrefix + userID)
}

func (b *Badger) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkUserID(rec.UserID); err != nil {
		return err
	}
	val, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(rec.UserID), val)
	})
	return errors.Wrapf(err, "store: put %q", rec.UserID)
}

func (b *Badger) Get(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if userID == "" {
		return Record{}, ErrNotFound
	}
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(userID))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "store: get %q", userID)
	}
	return decodeRecord(userID, val)
}

func (b *Badger) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if userID == "" {
		return nil
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(userID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return errors.Wrapf(err, "store: delete %q", userID)
}

func (b *Badger) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(badgerKeyPrefix)
	ids := []string{}
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "store: list")
	}
	return ids, nil
}

func (b *Badger) Close() error {
	return errors.Wrap(b.db.Close(), "store: close badger")
}

// badgerLogger는 badger 로그를 slog로 보낸다. info/debug는 debug 레벨로 낮춘다.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) { l.log.Error(fmt.Sprintf(f, v...)) }
func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(f, v...))
}
func (l badgerLogger) Infof(f string, v ...interface{})  { l.log.Debug(fmt.Sprintf(f, v...)) }
func (l badgerLogger) Debugf(f string, v ...interface{}) { l.log.Debug(fmt.Sprintf(f, v...)) }
