package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcher_ReportsWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	domainFile := filepath.Join(dir, "sales.yaml")
	otherFile := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(domainFile, []byte("types: []\n"), 0o644))
	require.NoError(t, os.WriteFile(otherFile, []byte("notes"), 0o644))

	var mu sync.Mutex
	var batches [][]string
	watcher, err := NewFileWatcher([]string{domainFile}, func(files []string) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, files)
	}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(otherFile, []byte("more notes"), 0o644))
	require.NoError(t, os.WriteFile(domainFile, []byte("types: []\nmixins: []\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, batch := range batches {
		assert.Equal(t, []string{domainFile}, batch)
	}
}

func TestFileWatcher_NoFiles(t *testing.T) {
	_, err := NewFileWatcher(nil, func([]string) {})
	assert.EqualError(t, err, "no files to watch")
}

func TestFileWatcher_StopTwice(t *testing.T) {
	watcher, err := NewFileWatcher([]string{filepath.Join(t.TempDir(), "domain.yaml")}, func([]string) {})
	require.NoError(t, err)
	require.NoError(t, watcher.Start())

	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop())
}

func TestDebouncer(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string

	debouncer := NewDebouncer(50 * time.Millisecond)
	debouncer.SetCallback(func(files []string) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, files)
	})

	debouncer.Add("b.yaml")
	debouncer.Add("a.yaml")
	debouncer.Add("b.yaml")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, batches[0])
	mu.Unlock()
}

func TestDebouncer_StopDiscardsPending(t *testing.T) {
	called := make(chan struct{}, 1)
	debouncer := NewDebouncer(20 * time.Millisecond)
	debouncer.SetCallback(func([]string) { called <- struct{}{} })

	debouncer.Add("a.yaml")
	debouncer.Stop()
	debouncer.Add("b.yaml")

	select {
	case <-called:
		t.Fatal("callback ran after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}
