package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads configuration when a config file changes on disk and
// notifies subscribers with the freshly loaded Config.
type Watcher struct {
	mu       sync.Mutex
	onChange []func(*Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewWatcher starts watching the user config file and, if present, the
// project config file. Callers register callbacks with OnChange before
// edits are expected; callbacks run on the watcher goroutine.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		done:    make(chan struct{}),
	}

	// Watch directories rather than files: editors replace files on save,
	// which drops a file-level watch.
	dirs := map[string]struct{}{
		filepath.Dir(GetUserConfigPath()): {},
	}
	if project := GetProjectConfigPath(); project != "" {
		dirs[filepath.Dir(project)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}

	go w.loop()
	return w, nil
}

// OnChange registers a callback invoked with the reloaded Config after
// every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isConfigFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load()
			if err != nil {
				// Half-written file mid-save; next event retries.
				continue
			}
			w.mu.Lock()
			callbacks := make([]func(*Config), len(w.onChange))
			copy(callbacks, w.onChange)
			w.mu.Unlock()
			for _, fn := range callbacks {
				fn(cfg)
			}
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	return base == "config.yaml" || base == ".weft.yaml"
}

// Close stops the watcher.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}
