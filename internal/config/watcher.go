package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce coalesces the burst of filesystem events an editor save
// produces into one reload.
const debounce = 200 * time.Millisecond

// Watcher reloads the configuration file when it changes and hands the
// result to a callback. Only hot-reloadable settings (poll cadence, log
// level) should be applied from the callback; queue capacity and kind
// are fixed at startup.
type Watcher struct {
	w    *fsnotify.Watcher
	path string
	log  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Watch starts watching path and invokes onChange with the freshly
// loaded configuration after each modification. The callback runs on
// the watcher goroutine.
func Watch(path string, log *slog.Logger, onChange func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors typically replace the file, which
	// would drop a watch on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		w:    fw,
		path: filepath.Clean(path),
		log:  log,
		done: make(chan struct{}),
	}
	go w.run(onChange)
	return w, nil
}

func (w *Watcher) run(onChange func(Config)) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config reload failed", "path", w.path, "error", err)
				continue
			}
			w.log.Debug("config reloaded", "path", w.path)
			onChange(cfg)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.w.Close()
	})
	return err
}
