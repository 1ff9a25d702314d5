package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/ticketsim/internal/vocab"
)

func TestWatcher_FiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stop_words: [alpha]\n"), 0600))

	var calls atomic.Int32
	w, err := New(path, func() { calls.Add(1) })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(path, []byte("stop_words: [beta]\n"), 0600))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_ReloadsVocabularyStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("subject_heads: [widget]\n"), 0600))

	store, err := vocab.NewStore(path)
	require.NoError(t, err)
	require.True(t, store.Tables().IsSubjectHead("widget"))

	w, err := New(path, func() { _ = store.Reload() })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("subject_heads: [gadget]\n"), 0600))

	assert.Eventually(t, func() bool {
		return store.Tables().IsSubjectHead("gadget")
	}, 3*time.Second, 10*time.Millisecond)
	assert.False(t, store.Tables().IsSubjectHead("widget"))
}

func TestWatcher_StartMissingDirectory(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "vocab.yaml"), nil)
	require.NoError(t, err)
	assert.Error(t, w.Start())
}

func TestWatcher_StopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	w, err := New(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
