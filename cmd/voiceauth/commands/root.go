// Package commands는 voiceauth CLI의 cobra 명령을 정의한다.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/zrma/go-voiceprint/capture"
	"github.com/zrma/go-voiceprint/config"
	"github.com/zrma/go-voiceprint/store"
	"github.com/zrma/go-voiceprint/voiceauth"
)

type rootFlags struct {
	configPath string
	verbose    bool
}

// Execute는 os.Args로 루트 명령을 실행한다.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "voiceauth",
		Short: "Speaker enrollment and verification from WAV recordings",
		Long: `Enroll a user's voice from a short recording and later verify
that a new recording comes from the same speaker.

Examples:
  voiceauth enroll alice --wav alice.wav
  voiceauth authenticate alice --wav probe.wav --threshold 0.9
  voiceauth interactive`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newEnrollCmd(flags),
		newAuthenticateCmd(flags),
		newListCmd(flags),
		newDeleteCmd(flags),
		newInteractiveCmd(flags),
	)
	return cmd
}

// app은 한 명령 실행 동안 쓰는 엔진과 저장소다.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  store.Store
	engine *voiceauth.Engine
}

func openApp(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.SlogLevel()
	if flags.verbose {
		level = slog.LevelDebug
	}
	log := newLogger(cmd.ErrOrStderr(), level)

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", cfg.Store.Driver)
	}

	opts := append(cfg.EngineOptions(), voiceauth.WithLogger(log))
	if cfg.Archive.Dir != "" {
		opts = append(opts, voiceauth.WithArchive(capture.NewArchive(cfg.Archive.Dir, cfg.Engine.SampleRate)))
	}
	engine, err := voiceauth.New(st, opts...)
	if err != nil {
		return nil, multierr.Append(err, st.Close())
	}

	log.Debug("store opened", "driver", cfg.Store.Driver, "path", cfg.Store.Path)
	return &app{cfg: cfg, log: log, store: st, engine: engine}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// withApp은 app을 열어 fn을 실행하고 닫는다.
func withApp(cmd *cobra.Command, flags *rootFlags, fn func(*app) error) (err error) {
	a, err := openApp(cmd, flags)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, a.Close())
	}()
	return fn(a)
}
