// Package watcher keeps an issue graph file under observation and replans
// when it changes. Notifications come from fsnotify on the parent directory;
// when that is unavailable, or BPLAN_FORCE_POLL is set, the file is polled.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/beadplan/pkg/debug"
)

// DefaultPollInterval is how often a polling watcher stats the file.
const DefaultPollInterval = 2 * time.Second

// EnvForcePoll forces polling mode when set to a true value.
const EnvForcePoll = "BPLAN_FORCE_POLL"

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets how long the file must stay quiet before a
// change is reported.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the stat interval used in polling mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithOnChange registers a callback run on every reported change.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// WithOnError registers a callback for removal, permission and
// notification errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll skips fsnotify entirely.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) { w.forcePoll = force }
}

// snapshot is the part of a file's state that counts as a change.
type snapshot struct {
	exists bool
	mtime  time.Time
	size   int64
}

func takeSnapshot(path string) (snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot{}, nil
		}
		return snapshot{}, err
	}
	return snapshot{exists: true, mtime: info.ModTime(), size: info.Size()}, nil
}

func (s snapshot) differs(prev snapshot) bool {
	return s.exists != prev.exists || s.size != prev.size || s.mtime.After(prev.mtime)
}

// Watcher reports changes to a single file.
type Watcher struct {
	path      string
	debounce  time.Duration
	interval  time.Duration
	forcePoll bool
	onChange  func()
	onError   func(error)

	mu        sync.Mutex
	running   bool
	polling   bool
	stop      context.CancelFunc
	notifier  *fsnotify.Watcher
	debouncer *Debouncer
	last      snapshot
	changes   chan struct{}
}

// NewWatcher returns a stopped watcher for path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounceDuration,
		interval: DefaultPollInterval,
		onChange: func() {},
		onError:  func(error) {},
		changes:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounce)
	return w, nil
}

// Start begins watching in the background. Cancelling ctx ends the
// background work; Stop also releases the fsnotify handle.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrAlreadyStarted
	}

	snap, err := takeSnapshot(w.path)
	if err != nil {
		if os.IsPermission(err) {
			return ErrPermission
		}
		return err
	}
	w.last = snap

	ctx, w.stop = context.WithCancel(ctx)
	w.polling = w.forcePoll || envBool(EnvForcePoll)
	if !w.polling {
		n, err := openNotifier(filepath.Dir(w.path))
		if err != nil {
			debug.Log("watcher: fsnotify unavailable for %s: %v", w.path, err)
			w.polling = true
		} else {
			w.notifier = n
			go w.consume(ctx, n)
		}
	}
	if w.polling {
		debug.Log("watcher: polling %s every %s", w.path, w.interval)
		go w.poll(ctx)
	}
	w.running = true
	return nil
}

// Run starts the watcher and calls reload once, then again after every
// change, until ctx is cancelled. n counts previous reloads. The watcher is
// stopped on return.
func (w *Watcher) Run(ctx context.Context, reload func(n int)) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	reload(0)
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-w.changes:
			reload(n)
		}
	}
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.stop()
	if w.notifier != nil {
		w.notifier.Close()
		w.notifier = nil
	}
	w.debouncer.Cancel()
	w.running = false
}

// IsPolling reports whether the watcher fell back to (or was forced into)
// polling.
func (w *Watcher) IsPolling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

func (w *Watcher) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Changed receives once per debounced change. Pending notifications
// coalesce.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changes
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// openNotifier watches dir rather than the file so rename-over saves are
// still seen.
func openNotifier(dir string) (*fsnotify.Watcher, error) {
	n, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := n.Add(dir); err != nil {
		n.Close()
		return nil, err
	}
	return n, nil
}

func (w *Watcher) consume(ctx context.Context, n *fsnotify.Watcher) {
	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Remove) {
				w.onError(ErrFileRemoved)
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.debouncer.Trigger(w.fire)
			}
		case err, ok := <-n.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, err := takeSnapshot(w.path)
		if err != nil {
			if os.IsPermission(err) {
				err = ErrPermission
			}
			w.onError(err)
			continue
		}

		w.mu.Lock()
		prev := w.last
		w.last = snap
		w.mu.Unlock()

		switch {
		case prev.exists && !snap.exists:
			w.onError(ErrFileRemoved)
		case snap.differs(prev):
			w.debouncer.Trigger(w.fire)
		}
	}
}

// fire delivers a debounced change unless the watcher was stopped first.
func (w *Watcher) fire() {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}
	w.onChange()
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
