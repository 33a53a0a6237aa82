package files

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcher collects fsnotify events for indexed directories and, once the
// file system has been quiet for the settle delay, reconciles the touched
// paths against the index.
type watcher struct {
	src    *Source
	fsw    *fsnotify.Watcher
	settle time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func newWatcher(src *Source, settle time.Duration) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &watcher{
		src:     src,
		fsw:     fsw,
		settle:  settle,
		pending: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}, nil
}

// add starts watching dir. Failures such as inotify limits are logged at
// debug level and otherwise ignored.
func (w *watcher) add(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		w.src.logger.Debug("files_watch_add_failed", slog.String("dir", dir), slog.String("error", err.Error()))
	}
}

func (w *watcher) start() {
	w.started = true
	go w.loop()
}

func (w *watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.queue(ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.src.logger.Warn("files_watch_error", slog.String("error", err.Error()))
		}
	}
}

// queue records a touched path and (re)arms the settle timer.
func (w *watcher) queue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, w.flush)
}

func (w *watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 || w.ctx.Err() != nil {
		return
	}
	// Parents sort before children so a new directory is walked once.
	sort.Strings(paths)
	w.src.reconcile(w.ctx, paths)
}

func (w *watcher) stop() {
	w.cancel()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
	if !w.started {
		return
	}
	select {
	case <-w.done:
	case <-time.After(time.Second):
	}
}
