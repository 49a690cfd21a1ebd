package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zrma/go-voiceprint/voiceprint"
)

type storeFactory func(t *testing.T) Store

func newTestBadger(t *testing.T) Store {
	t.Helper()
	s, err := NewBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "db", "voiceprint.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func newTestMemory(t *testing.T) Store {
	t.Helper()
	t.Cleanup(func() { goleak.VerifyNone(t) })
	return NewMemory()
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range map[string]storeFactory{
		"memory": newTestMemory,
		"badger": newTestBadger,
		"sqlite": newTestSQLite,
	} {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func sampleRecord(userID string) Record {
	return Record{
		UserID:    userID,
		Signature: voiceprint.Signature{-312.25, 41.5, 1e-17, -0.1, math.Pi, 187.3125},
		UpdatedAt: time.Date(2026, 10, 19, 9, 30, 0, 123456789, time.UTC),
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		want := sampleRecord("alice")
		require.NoError(t, s.Put(ctx, want))

		got, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, want.UserID, got.UserID)
		assert.Equal(t, want.Signature, got.Signature)
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated at %v != %v", want.UpdatedAt, got.UpdatedAt)
	})
}

func TestStore_GetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.Get(context.Background(), "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_PutOverwrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first := sampleRecord("dave")
		require.NoError(t, s.Put(ctx, first))

		second := sampleRecord("dave")
		second.Signature = voiceprint.Signature{1, 2, 3, 4, 5, 6}
		second.UpdatedAt = first.UpdatedAt.Add(time.Minute)
		require.NoError(t, s.Put(ctx, second))

		got, err := s.Get(ctx, "dave")
		require.NoError(t, err)
		assert.Equal(t, second.Signature, got.Signature)
		assert.True(t, second.UpdatedAt.Equal(got.UpdatedAt))

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"dave"}, ids)
	})
}

func TestStore_UserIDsAreCaseSensitive(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, sampleRecord("Bob")))

		_, err := s.Get(ctx, "bob")
		assert.ErrorIs(t, err, ErrNotFound)

		lower := sampleRecord("bob")
		lower.Signature = voiceprint.Signature{9, 9, 9}
		require.NoError(t, s.Put(ctx, lower))

		upper, err := s.Get(ctx, "Bob")
		require.NoError(t, err)
		assert.Equal(t, sampleRecord("Bob").Signature, upper.Signature)
	})
}

func TestStore_ListAndDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, ids)
		assert.Empty(t, ids)

		for _, id := range []string{"carol", "alice", "bob"} {
			require.NoError(t, s.Put(ctx, sampleRecord(id)))
		}
		ids, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "carol"}, ids)

		require.NoError(t, s.Delete(ctx, "bob"))
		require.NoError(t, s.Delete(ctx, "bob"))
		_, err = s.Get(ctx, "bob")
		assert.ErrorIs(t, err, ErrNotFound)

		ids, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "carol"}, ids)
	})
}

func TestStore_RejectsEmptyUserID(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		err := s.Put(context.Background(), sampleRecord(""))
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voiceprint.sqlite3")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, sampleRecord("erin")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, reopened.Close()) })

	got, err := reopened.Get(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord("erin").Signature, got.Signature)
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadger(BadgerOptions{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, sampleRecord("frank")))
	require.NoError(t, s.Close())

	reopened, err := NewBadger(BadgerOptions{Dir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, reopened.Close()) })

	got, err := reopened.Get(ctx, "frank")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord("frank").Signature, got.Signature)
}

func TestNewBadger_RequiresDir(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	_, err := NewBadger(BadgerOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory is required")
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, tt := range []struct {
		driver string
		path   string
	}{
		{DriverMemory, ""},
		{"SQLite", filepath.Join(dir, "open.sqlite3")},
		{DriverBadger, filepath.Join(dir, "badger")},
	} {
		s, err := Open(tt.driver, tt.path)
		require.NoError(t, err, tt.driver)
		require.NoError(t, s.Close())
	}

	_, err := Open("postgres", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestMemory_CanceledContext(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemory()
	assert.ErrorIs(t, s.Put(ctx, sampleRecord("x")), context.Canceled)
	_, err := s.Get(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
