package deck

import (
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// watchDebounce absorbs the burst of write events editors produce when
// saving, so a reload happens once per save.
const watchDebounce = 100 * time.Millisecond

// Watcher reloads a deck file when it changes on disk. The containing
// directory is watched rather than the file itself, which keeps editors that
// replace the file on save (write to temp, rename over) visible.
type Watcher struct {
	path string
	fsw  *fsnotify.Watcher
	fn   func(*Deck, error)
	done chan struct{}
}

// Watch starts watching the deck at path and calls fn with each reload
// result. Callbacks fire on the watcher's goroutine.
func Watch(path string, fn func(*Deck, error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	log.Debug("watching deck", "dir", dir, "file", path)

	w := &Watcher{
		path: path,
		fsw:  fsw,
		fn:   fn,
		done: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("deck changed", "file", event.Name, "event", event.Op)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, w.reload)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Debug("deck watch error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}
	d, err := LoadFile(w.path)
	if err != nil {
		log.Debug("deck reload failed", "file", w.path, "error", err)
	}
	w.fn(d, err)
}
