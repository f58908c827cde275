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

func TestFileWatcher_Start(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "rules.json")
	require.NoError(t, os.WriteFile(testFile, []byte(`{"rules":[]}`), 0644))

	var mu sync.Mutex
	var changes [][]string

	watcher, err := NewFileWatcher(Options{Dirs: []string{tmpDir}, Debounce: 20 * time.Millisecond}, func(files []string) error {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, files)
		return nil
	})
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, watcher.Start())

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(testFile, []byte(`{"rules":[{"from":"a","to":"b"}]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("ignored"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, batch := range changes {
		for _, f := range batch {
			assert.Equal(t, testFile, f)
		}
	}
}

func TestFileWatcher_StartMissingDir(t *testing.T) {
	watcher, err := NewFileWatcher(Options{Dirs: []string{filepath.Join(t.TempDir(), "nope")}}, func([]string) error { return nil })
	require.NoError(t, err)
	defer watcher.Stop()

	assert.ErrorContains(t, watcher.Start(), "failed to watch directory")
}

func TestDebouncer_Add(t *testing.T) {
	var mu sync.Mutex
	var files []string

	debouncer := NewDebouncer(50 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		mu.Lock()
		defer mu.Unlock()
		files = f
	})

	debouncer.Add("b.json")
	debouncer.Add("a.json")
	debouncer.Add("b.json")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return files != nil
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a.json", "b.json"}, files)
}

func TestDebouncer_MultipleFlushes(t *testing.T) {
	var mu sync.Mutex
	var callCount int

	debouncer := NewDebouncer(30 * time.Millisecond)
	debouncer.SetCallback(func(f []string) {
		mu.Lock()
		defer mu.Unlock()
		callCount++
	})

	debouncer.Add("file1.json")
	time.Sleep(80 * time.Millisecond)
	debouncer.Add("file2.json")
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if callCount != 2 {
		t.Errorf("Expected 2 callback calls, got %d", callCount)
	}
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	called := make(chan struct{}, 1)
	debouncer := NewDebouncer(20 * time.Millisecond)
	debouncer.SetCallback(func([]string) { called <- struct{}{} })

	debouncer.Add("rules.json")
	debouncer.Stop()
	debouncer.Add("later.json")

	select {
	case <-called:
		t.Fatal("callback ran after Stop")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestFileWatcher_ShouldIgnore(t *testing.T) {
	watcher := &FileWatcher{
		ignored: []string{"*.swp", "package.json"},
	}

	tests := []struct {
		path     string
		expected bool
	}{
		{"rules.json", false},
		{"rules.json.swp", true},
		{"dir/package.json", true},
		{".reshape-format.yml", true},
		{"fragments/common.yaml", false},
	}

	for _, tt := range tests {
		if got := watcher.shouldIgnore(tt.path); got != tt.expected {
			t.Errorf("shouldIgnore(%q) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}

func TestFileWatcher_MatchesPattern(t *testing.T) {
	tests := []struct {
		patterns []string
		path     string
		expected bool
	}{
		{DefaultPatterns, "rules.json", true},
		{DefaultPatterns, "dir/rules.yml", true},
		{DefaultPatterns, "main.go", false},
		{[]string{"orders-*.json"}, "orders-v2.json", true},
		{[]string{}, "anything.txt", true},
	}

	for _, tt := range tests {
		watcher := &FileWatcher{patterns: tt.patterns}
		if got := watcher.matchesPattern(tt.path); got != tt.expected {
			t.Errorf("matchesPattern(%v, %q) = %v, expected %v", tt.patterns, tt.path, got, tt.expected)
		}
	}
}

func TestFileWatcher_Stop(t *testing.T) {
	watcher, err := NewFileWatcher(Options{Dirs: []string{t.TempDir()}}, func(files []string) error { return nil })
	require.NoError(t, err)
	require.NoError(t, watcher.Start())

	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop())
}

func BenchmarkDebouncer_Add(b *testing.B) {
	debouncer := NewDebouncer(100 * time.Millisecond)
	debouncer.SetCallback(func(files []string) {})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		debouncer.Add("rules.json")
	}
}
