package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "pipeline.yml")
	ignored := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(watched, []byte("steps: []"), 0644))

	var calls int64
	stop := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- Watch(func() []string {
			atomic.AddInt64(&calls, 1)
			return []string{watched}
		}, stop)
	}()
	assert.Eventually(t, func() bool { return atomic.LoadInt64(&calls) == 1 }, time.Second, 10*time.Millisecond)
	// Give the watcher a moment to get going before changing anything.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(ignored, []byte("nothing to see here"), 0644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	require.NoError(t, os.WriteFile(watched, []byte("steps: [wait]"), 0644))
	assert.Eventually(t, func() bool { return atomic.LoadInt64(&calls) >= 2 }, 5*time.Second, 10*time.Millisecond)

	close(stop)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch didn't return after being stopped")
	}
}

func TestAddFileDeduplicatesDirs(t *testing.T) {
	dir := t.TempDir()
	files := map[string]struct{}{}
	dirs := map[string]struct{}{}
	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()
	addFile(w, filepath.Join(dir, "a"), files, dirs)
	addFile(w, filepath.Join(dir, "b"), files, dirs)
	addFile(w, filepath.Join(dir, "missing", "c"), files, dirs)
	assert.Equal(t, 3, len(files))
	assert.Equal(t, map[string]struct{}{dir: {}}, dirs)
}
