// Package watch reports palette files that change under a directory tree.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// Filter
// ///////////////////////////////////////////////

// Filter selects files by slash-separated path relative to the watched root.
type Filter struct {
	Include []string
	Ignore  []string
}

// Match reports whether rel matches an include pattern and no ignore pattern.
// An empty include list matches everything.
func (f Filter) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	if f.Ignored(rel) {
		return false
	}
	if len(f.Include) == 0 {
		return true
	}
	return anyMatch(f.Include, rel)
}

// Ignored reports whether rel matches an ignore pattern.
func (f Filter) Ignored(rel string) bool {
	return anyMatch(f.Ignore, filepath.ToSlash(rel))
}

func anyMatch(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Options configures a [Watcher].
type Options struct {
	Filter Filter
	// PollInterval is the scan period when fsnotify is unavailable.
	// Zero means two seconds.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Watcher monitors a directory tree with fsnotify and falls back to
// mod-time polling. Changes are coalesced: paths accumulate until the
// consumer drains them.
type Watcher struct {
	root   string
	filter Filter
	log    *slog.Logger

	// signal is buffered to 1 so back-to-back changes coalesce.
	signal chan struct{}
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	pending map[string]struct{}

	fsw          *fsnotify.Watcher
	polling      atomic.Bool
	pollInterval time.Duration
}

// New starts watching root.
func New(root string, opts Options) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", root)
	}

	w := &Watcher{
		root:         root,
		filter:       opts.Filter,
		log:          opts.Logger,
		signal:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pending:      make(map[string]struct{}),
		pollInterval: opts.PollInterval,
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 2 * time.Second
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.startPolling()
		return w, nil
	}
	w.fsw = fsw
	if err := w.addTree(root); err != nil {
		w.log.Info("cannot watch directory, falling back to polling", "path", root, "error", err)
		fsw.Close()
		w.fsw = nil
		w.startPolling()
		return w, nil
	}

	go w.watch()
	return w, nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string { return w.root }

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool { return w.polling.Load() }

// Events receives a signal when at least one matching path is pending.
func (w *Watcher) Events() <-chan struct{} { return w.signal }

// Drain returns and clears the pending paths in sorted order.
func (w *Watcher) Drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.pending))
	for p := range w.pending {
		out = append(out, p)
	}
	clear(w.pending)
	slices.Sort(out)
	return out
}

// Next blocks until paths change, ctx is done, or the watcher is closed.
func (w *Watcher) Next(ctx context.Context) ([]string, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-w.done:
			return nil, fs.ErrClosed
		case <-w.signal:
			if paths := w.Drain(); len(paths) > 0 {
				return paths, nil
			}
		}
	}
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if fsw := w.fsw; fsw != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
	})
	return err
}

// notify records path when it passes the filter and signals the consumer.
func (w *Watcher) notify(path string) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || !w.filter.Match(rel) {
		return
	}
	w.mu.Lock()
	w.pending[path] = struct{}{}
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// skipDir reports whether a directory below root is excluded from watching.
func (w *Watcher) skipDir(path string) bool {
	if path == w.root {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	return err == nil && w.filter.Ignored(rel)
}

// addTree registers dir and every non-ignored subdirectory with fsnotify.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ///////////////////////////////////////////////
// fsnotify
// ///////////////////////////////////////////////

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.log.Warn("cannot watch new directory", "path", event.Name, "error", err)
					}
					w.notifyTree(event.Name)
					continue
				}
			}
			w.notify(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Info("fsnotify error, switching to polling", "error", err)
			w.fsw.Close()
			w.startPolling()
			return
		}
	}
}

// notifyTree reports the files already present in a newly created directory,
// which may have been written before the directory was watched.
func (w *Watcher) notifyTree(dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if w.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		w.notify(path)
		return nil
	})
}

// ///////////////////////////////////////////////
// Polling
// ///////////////////////////////////////////////

func (w *Watcher) startPolling() {
	w.polling.Store(true)
	go w.poll()
}

// poll scans the tree every interval and reports files whose modification
// time advanced or that appeared since the previous scan.
func (w *Watcher) poll() {
	seen := w.scan()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			now := w.scan()
			for path, mod := range now {
				if prev, ok := seen[path]; !ok || mod.After(prev) {
					w.notify(path)
				}
			}
			seen = now
		}
	}
}

// scan returns the modification time of every matching file under root.
func (w *Watcher) scan() map[string]time.Time {
	mods := make(map[string]time.Time)
	filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if w.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil || !w.filter.Match(rel) {
			return nil
		}
		if info, err := d.Info(); err == nil {
			mods[path] = info.ModTime()
		}
		return nil
	})
	return mods
}
