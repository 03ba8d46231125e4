package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/user/tally/internal/model"
)

// NotifyFunc is called when a table file changes on disk.
type NotifyFunc func(key model.TableKey)

// LogFunc is called to log messages.
type LogFunc func(format string, args ...interface{})

// Watcher monitors the data directory for CSV table changes made by
// other processes and reports them per table key. Debouncing is the
// caller's concern; every relevant write event is forwarded.
type Watcher struct {
	dataDir  string
	notifyFn NotifyFunc
	logFn    LogFunc

	watcher   *fsnotify.Watcher
	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates a file watcher over the data directory.
// notifyFn receives the key of each changed table; logFn can be nil.
func NewWatcher(dataDir string, notifyFn NotifyFunc, logFn LogFunc) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logFn == nil {
		logFn = func(format string, args ...interface{}) {}
	}

	return &Watcher{
		dataDir:  dataDir,
		notifyFn: notifyFn,
		logFn:    logFn,
		watcher:  fsWatcher,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start() error {
	// Watch the data dir itself so new module directories are picked up.
	if err := w.addWatchIfExists(w.dataDir); err != nil {
		w.logFn("Warning: could not watch data directory %s: %v", w.dataDir, err)
	}

	if err := w.watchExistingModules(); err != nil {
		w.logFn("Warning: could not watch module directories: %v", err)
	}

	go w.processEvents()

	return nil
}

// Close stops the watcher and waits for event processing to finish.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.stopChan)
		w.watcher.Close()
		<-w.doneChan
	})
}

// watchExistingModules adds watches for all module directories.
func (w *Watcher) watchExistingModules() error {
	entries, err := os.ReadDir(w.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		moduleDir := filepath.Join(w.dataDir, entry.Name())
		if err := w.watcher.Add(moduleDir); err != nil {
			w.logFn("Warning: could not watch module directory %s: %v", moduleDir, err)
		} else {
			w.logFn("Watching module directory: %s", moduleDir)
		}
	}

	return nil
}

// addWatchIfExists adds a watch for a directory if it exists.
func (w *Watcher) addWatchIfExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return w.watcher.Add(path)
}

// processEvents handles filesystem events.
func (w *Watcher) processEvents() {
	defer close(w.doneChan)

	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logFn("Watch error: %v", err)
		}
	}
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	filename := filepath.Base(path)
	parentDir := filepath.Dir(path)

	// A new directory directly under the data dir is a new module.
	if event.Has(fsnotify.Create) && parentDir == w.dataDir {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() && !strings.HasPrefix(filename, ".") {
			if err := w.watcher.Add(path); err != nil {
				w.logFn("Warning: could not watch new module directory %s: %v", path, err)
			} else {
				w.logFn("Watching new module directory: %s", path)
			}
			return
		}
	}

	// Only live table files count; temp files from atomic writes and
	// hidden files are noise.
	if !strings.HasSuffix(filename, ".csv") || strings.HasPrefix(filename, ".") {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	key, ok := w.tableKey(path)
	if !ok {
		return
	}

	w.logFn("File change detected: %s", key)
	w.notifyFn(key)
}

// tableKey maps an absolute file path back to its table key.
// Returns false for paths outside a module directory.
func (w *Watcher) tableKey(path string) (model.TableKey, bool) {
	relPath, err := filepath.Rel(w.dataDir, path)
	if err != nil {
		return model.TableKey{}, false
	}

	parts := strings.Split(relPath, string(filepath.Separator))
	if len(parts) != 2 || strings.HasPrefix(parts[0], ".") {
		return model.TableKey{}, false
	}

	return model.TableKey{Module: parts[0], File: parts[1]}, true
}

// ModuleCount returns the number of module directories being watched.
func (w *Watcher) ModuleCount() int {
	entries, err := os.ReadDir(w.dataDir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			count++
		}
	}
	return count
}
