package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk and delivers
// the fresh Config to the callback.
type Watcher struct {
	path        string
	onReload    func(*Config)
	stop        chan struct{}
	lastModTime time.Time
}

// NewWatcher watches path for changes. onReload runs on the watcher
// goroutine with each successfully reloaded config.
func NewWatcher(path string, onReload func(*Config)) *Watcher {
	w := &Watcher{
		path:     path,
		onReload: onReload,
		stop:     make(chan struct{}),
	}
	if stat, err := os.Stat(path); err == nil {
		w.lastModTime = stat.ModTime()
	}
	return w
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.watch()
}

// Stop ends the watch loop.
func (w *Watcher) Stop() {
	close(w.stop)
}

func (w *Watcher) watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Error creating config watcher: %v", err)
		return
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors that write via rename
	// replace the inode and would silently detach a file-level watch.
	configDir := filepath.Dir(w.path)
	if err := watcher.Add(configDir); err != nil {
		log.Printf("Error watching config directory: %v", err)
		return
	}

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			stat, err := os.Stat(w.path)
			if err != nil {
				continue
			}

			if stat.ModTime().After(w.lastModTime) {
				w.lastModTime = stat.ModTime()

				// Give the editor a moment to finish writing.
				time.Sleep(100 * time.Millisecond)

				cfg, err := LoadFrom(w.path)
				if err != nil {
					log.Printf("Error reloading config: %v", err)
					continue
				}
				w.onReload(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config watcher error: %v", err)
		}
	}
}
