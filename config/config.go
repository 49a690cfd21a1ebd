// Package config는 voiceauth 명령의 YAML 설정을 읽는다.
package config

import (
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/zrma/go-voiceprint/store"
	"github.com/zrma/go-voiceprint/voiceauth"
)

// Config는 설정 파일 최상위 구조다.
//
//	engine:
//	  sample_rate: 16000
//	  duration: 3s
//	  n_mfcc: 13
//	  threshold: 0.85
//	store:
//	  driver: sqlite
//	  path: templates/voiceprint.sqlite3
//	archive:
//	  dir: templates
//	log:
//	  level: info
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Store   StoreConfig   `yaml:"store"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

type EngineConfig struct {
	SampleRate int           `yaml:"sample_rate"`
	Duration   time.Duration `yaml:"duration"`
	NumMFCC    int           `yaml:"n_mfcc"`
	Threshold  float64       `yaml:"threshold"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// ArchiveConfig.Dir이 비어 있으면 녹음을 남기지 않는다.
type ArchiveConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default는 설정 파일 없이 쓰는 기본값이다.
func Default() *Config {
	d := voiceauth.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			SampleRate: d.SampleRate,
			Duration:   d.Duration,
			NumMFCC:    d.NumMFCC,
			Threshold:  d.Threshold,
		},
		Store: StoreConfig{
			Driver: store.DriverSQLite,
			Path:   "templates/voiceprint.sqlite3",
		},
		Archive: ArchiveConfig{Dir: "templates"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load는 path의 YAML 파일을 읽어 검증된 Config를 반환한다.
// path가 비어 있으면 Default를 반환한다.
func Load(path string) (cfg *Config, err error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: open %q", path)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	cfg, err = LoadFromReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config: parse %q", path)
	}
	return cfg, nil
}

// LoadFromReader는 r의 YAML을 기본값 위에 덮어쓰고 검증한다. 모르는 키는 오류다.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "config: decode yaml")
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate는 모든 위반 사항을 모아 하나의 오류로 반환한다.
func Validate(cfg *Config) error {
	var err error
	if cfg.Engine.SampleRate <= 0 {
		err = multierr.Append(err, errors.Errorf("engine.sample_rate must be positive, got %d", cfg.Engine.SampleRate))
	}
	if cfg.Engine.Duration <= 0 {
		err = multierr.Append(err, errors.Errorf("engine.duration must be positive, got %v", cfg.Engine.Duration))
	}
	if cfg.Engine.NumMFCC <= 0 {
		err = multierr.Append(err, errors.Errorf("engine.n_mfcc must be positive, got %d", cfg.Engine.NumMFCC))
	}
	if math.IsNaN(cfg.Engine.Threshold) || math.IsInf(cfg.Engine.Threshold, 0) {
		err = multierr.Append(err, errors.Errorf("engine.threshold must be finite, got %v", cfg.Engine.Threshold))
	}

	switch strings.ToLower(cfg.Store.Driver) {
	case store.DriverMemory:
	case store.DriverBadger, store.DriverSQLite:
		if cfg.Store.Path == "" {
			err = multierr.Append(err, errors.Errorf("store.path is required for driver %q", cfg.Store.Driver))
		}
	default:
		err = multierr.Append(err, errors.Errorf("store.driver %q is invalid; valid values: memory, badger, sqlite", cfg.Store.Driver))
	}

	if _, ok := parseLevel(cfg.Log.Level); !ok {
		err = multierr.Append(err, errors.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	return err
}

// EngineOptions는 엔진 설정을 voiceauth 옵션으로 바꾼다.
func (c *Config) EngineOptions() []voiceauth.Option {
	return []voiceauth.Option{
		voiceauth.WithConfig(voiceauth.Config{
			SampleRate: c.Engine.SampleRate,
			Duration:   c.Engine.Duration,
			NumMFCC:    c.Engine.NumMFCC,
			Threshold:  c.Engine.Threshold,
		}),
	}
}

// SlogLevel은 log.level을 slog 레벨로 바꾼다. 비어 있거나 모르는 값은 info다.
func (c LogConfig) SlogLevel() slog.Level {
	level, _ := parseLevel(c.Level)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
