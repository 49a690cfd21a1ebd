package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// enrollment은 enrollments 테이블의 한 행이다.
type enrollment struct {
	UserID  string `gorm:"primaryKey;type:text"`
	Payload []byte `gorm:"not null"`
}

func (enrollment) TableName() string { return "enrollments" }

// SQLite는 gorm과 순수 Go SQLite 드라이버로 레코드를 저장하는 Store다.
type SQLite struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite는 path의 SQLite 파일을 열고 스키마를 맞춘다. 상위 디렉터리가 없으면 만든다.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "store: create sqlite directory")
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "store: open sqlite")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "store: get sql.DB from gorm")
	}
	// SQLite는 쓰기가 직렬화되므로 연결 하나로 충분하다.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&enrollment{}); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "store: migrate sqlite schema")
	}
	return &SQLite{db: db, sqlDB: sqlDB}, nil
}

func (s *SQLite) Put(ctx context.Context, rec Record) error {
	if err := checkUserID(rec.UserID); err != nil {
		return err
	}
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	row := enrollment{UserID: rec.UserID, Payload: b}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload"}),
	}).Create(&row).Error
	return errors.Wrapf(err, "store: put %q", rec.UserID)
}

func (s *SQLite) Get(ctx context.Context, userID string) (Record, error) {
	var row enrollment
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "store: get %q", userID)
	}
	return decodeRecord(userID, row.Payload)
}

func (s *SQLite) Delete(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&enrollment{}).Error
	return errors.Wrapf(err, "store: delete %q", userID)
}

func (s *SQLite) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&enrollment{}).Order("user_id").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "store: list")
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return errors.Wrap(s.sqlDB.Close(), "store: close sqlite")
}
