package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before callbacks run.
// Editors often emit several events for one save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher watches files for changes. Directories are watched rather than
// files so that rename-into-place saves are seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu        sync.Mutex
	files     map[string][]func(string) // cleaned path -> callbacks
	callbacks []func(string)            // called for every watched file
	timers    map[string]*pending
	done      chan struct{}
	stopOnce  sync.Once
}

type pending struct {
	timer *time.Timer
	gen   uint64
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithDebounce sets the quiet period before callbacks run.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		files:    make(map[string][]func(string)),
		timers:   make(map[string]*pending),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts watching path. Callbacks given here run only for path;
// callbacks registered with OnChange run for every watched file.
func (w *Watcher) Watch(path string, callbacks ...func(string)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error("failed to watch directory", "path", dir, "error", err)
		return err
	}

	w.mu.Lock()
	w.files[abs] = append(w.files[abs], callbacks...)
	w.mu.Unlock()

	w.logger.Debug("watching file for changes", "dir", dir, "file", filepath.Base(abs))
	return nil
}

// OnChange registers a callback for every watched file. It receives the
// changed file's absolute path.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start processes events until Stop is called.
func (w *Watcher) Start() {
	w.logger.Info("file watcher started")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule(event.Name, event.Op)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync runs Start in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher. Pending debounced callbacks are dropped.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for p, t := range w.timers {
			t.timer.Stop()
			delete(w.timers, p)
		}
		w.mu.Unlock()
		if err = w.watcher.Close(); err != nil {
			w.logger.Error("failed to close watcher", "error", err)
			return
		}
		w.logger.Info("file watcher stopped")
	})
	return err
}

func (w *Watcher) schedule(name string, op fsnotify.Op) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; !ok {
		return
	}
	w.logger.Debug("watched file changed", "file", abs, "op", op.String())

	var gen uint64
	if p, ok := w.timers[abs]; ok {
		p.timer.Stop()
		gen = p.gen + 1
	}
	w.timers[abs] = &pending{
		timer: time.AfterFunc(w.debounce, func() { w.fire(abs, gen) }),
		gen:   gen,
	}
}

func (w *Watcher) fire(path string, gen uint64) {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	p, ok := w.timers[path]
	if !ok || p.gen != gen {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	cbs := append([]func(string){}, w.files[path]...)
	cbs = append(cbs, w.callbacks...)
	w.mu.Unlock()

	for _, cb := range cbs {
		cb(path)
	}
}
