// Package watch re-checks conversion rule files as they change on disk
package watch

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultPatterns match the rule document extensions
var DefaultPatterns = []string{"*.json", "*.yaml", "*.yml"}

// DefaultDebounce is how long the watcher waits for a burst of writes to settle
const DefaultDebounce = 100 * time.Millisecond

// Options configures a FileWatcher
type Options struct {
	// Dirs are watched non-recursively; empty means the current directory
	Dirs     []string
	Patterns []string
	Ignored  []string
	Debounce time.Duration
	Logger   *zap.Logger
}

// FileWatcher monitors file system changes and triggers callbacks
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	dirs      []string
	patterns  []string
	ignored   []string
	onChange  func([]string) error
	log       *zap.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewFileWatcher creates a new file watcher instance
func NewFileWatcher(opts Options, onChange func([]string) error) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Patterns == nil {
		opts.Patterns = DefaultPatterns
	}
	if len(opts.Dirs) == 0 {
		opts.Dirs = []string{"."}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	fw := &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(opts.Debounce),
		dirs:      opts.Dirs,
		patterns:  opts.Patterns,
		ignored:   opts.Ignored,
		onChange:  onChange,
		log:       opts.Logger,
		stopChan:  make(chan struct{}),
	}

	fw.debouncer.SetCallback(func(files []string) {
		if err := fw.onChange(files); err != nil {
			fw.log.Warn("error handling file changes", zap.Strings("files", files), zap.Error(err))
		}
	})

	return fw, nil
}

// Start begins watching the file system
func (fw *FileWatcher) Start() error {
	for _, dir := range fw.dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		fw.log.Debug("watching directory", zap.String("dir", dir))
	}

	fw.wg.Add(1)
	go fw.watch()

	return nil
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	select {
	case <-fw.stopChan:
		return nil
	default:
		close(fw.stopChan)
	}

	fw.wg.Wait()
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

// watch is the main event loop
func (fw *FileWatcher) watch() {
	defer fw.wg.Done()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.shouldIgnore(event.Name) {
				continue
			}
			// Editors that save by rename surface as Create
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if fw.matchesPattern(event.Name) {
					fw.log.Debug("file changed", zap.String("file", event.Name))
					fw.debouncer.Add(event.Name)
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn("watch error", zap.Error(err))

		case <-fw.stopChan:
			return
		}
	}
}

// shouldIgnore checks if a file path should be ignored
func (fw *FileWatcher) shouldIgnore(path string) bool {
	baseName := filepath.Base(path)
	if strings.HasPrefix(baseName, ".") {
		return true
	}
	for _, pattern := range fw.ignored {
		if matched, _ := filepath.Match(pattern, baseName); matched {
			return true
		}
	}
	return false
}

// matchesPattern checks if a file matches any of the watch patterns
func (fw *FileWatcher) matchesPattern(path string) bool {
	if len(fw.patterns) == 0 {
		return true
	}
	for _, pattern := range fw.patterns {
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}

// Debouncer collects file changes and triggers callbacks after a delay
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

// Add adds a file to the debouncer
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	d.files[file] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush hands the accumulated files, sorted, to the callback
func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.files) == 0 || d.stopped {
		d.mutex.Unlock()
		return
	}
	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	d.files = make(map[string]struct{})
	callback := d.callback
	d.mutex.Unlock()

	sort.Strings(files)
	if callback != nil {
		callback(files)
	}
}

// SetCallback sets the callback function
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop stops the debouncer; pending files are dropped
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
}
