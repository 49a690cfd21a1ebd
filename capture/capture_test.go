package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zrma/go-voiceprint/mfcc"
	"github.com/zrma/go-voiceprint/voiceprint"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i%200)/200 - 0.5
	}
	return out
}

func TestFileSource_Capture(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	path := filepath.Join(t.TempDir(), "in.wav")
	require.NoError(t, mfcc.WriteWavMono(path, ramp(8_000), 8_000))

	w, err := FileSource{Path: path}.Capture(context.Background(), 0, 16_000)
	require.NoError(t, err)
	assert.Equal(t, 8_000, w.SampleRate)
	assert.Len(t, w.Samples, 8_000)
	assert.InDeltaSlice(t, ramp(8_000), w.Samples, 1.0/16_384)
}

func TestFileSource_TruncatesToDuration(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	path := filepath.Join(t.TempDir(), "in.wav")
	require.NoError(t, mfcc.WriteWavMono(path, ramp(16_000), 16_000))

	w, err := FileSource{Path: path}.Capture(context.Background(), 250*time.Millisecond, 16_000)
	require.NoError(t, err)
	assert.Len(t, w.Samples, 4_000)

	w, err = FileSource{Path: path}.Capture(context.Background(), 3*time.Second, 16_000)
	require.NoError(t, err)
	assert.Len(t, w.Samples, 16_000)
}

func TestFileSource_Errors(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	dir := t.TempDir()
	_, err := FileSource{Path: filepath.Join(dir, "missing.wav")}.Capture(context.Background(), time.Second, 16_000)
	assert.ErrorIs(t, err, os.ErrNotExist)

	notWav := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(notWav, []byte("hello, this is not audio"), 0o644))
	_, err = FileSource{Path: notWav}.Capture(context.Background(), time.Second, 16_000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RIFF")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileSource{Path: notWav}.Capture(ctx, time.Second, 16_000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchive_SavesNamedRecordings(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	dir := filepath.Join(t.TempDir(), "templates")
	a := NewArchive(dir, 16_000)
	a.newID = func() string { return "fixed" }

	w := voiceprint.Waveform{Samples: ramp(1_600)}
	path, err := a.SaveEnrollment("alice", w)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "alice_enroll_fixed.wav"), path)

	samples, rate, err := mfcc.ReadWavMono(path)
	require.NoError(t, err)
	assert.Equal(t, 16_000, rate)
	assert.Len(t, samples, 1_600)

	path, err = a.SaveProbe(voiceprint.Waveform{Samples: ramp(800), SampleRate: 8_000})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "probe_fixed.wav"), path)
	_, rate, err = mfcc.ReadWavMono(path)
	require.NoError(t, err)
	assert.Equal(t, 8_000, rate)
}

func TestArchive_SanitizesUserID(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	dir := t.TempDir()
	a := NewArchive(dir, 16_000)
	path, err := a.SaveEnrollment("../evil", voiceprint.Waveform{Samples: ramp(10)})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Contains(t, filepath.Base(path), ".._evil_enroll_")
}

func TestSanitize_ReplacesSeparators(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	assert.Equal(t, "a_b_c_d", sanitize("a/b\\c\x00d"))
	assert.Equal(t, "alice", sanitize("alice"))
}
