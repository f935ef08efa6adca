package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
	"github.com/Aman-CERP/pathindex/internal/scanner"
)

// FSWatcher implements Watcher on fsnotify. Every subscription owns its
// own fsnotify.Watcher so that Unwatch releases its inotify descriptors.
type FSWatcher struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[Handle]*subscription
	next   Handle
	closed bool
}

var _ Watcher = (*FSWatcher)(nil)

// NewFSWatcher creates an FSWatcher. A nil logger uses slog.Default().
func NewFSWatcher(logger *slog.Logger) *FSWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSWatcher{
		logger: logger,
		subs:   make(map[Handle]*subscription),
	}
}

// Watch starts a subscription rooted at path.
func (w *FSWatcher) Watch(path string, opts Options, cb Callback) (Handle, error) {
	if cb == nil {
		return 0, pierrors.ValidationError("watch callback is required", nil)
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return 0, pierrors.New(pierrors.ErrCodeInvalidFolder, "cannot resolve folder path", err).
			WithDetail("path", path)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return 0, pierrors.New(pierrors.ErrCodeInvalidFolder, "folder does not exist or is not a directory", err).
			WithDetail("path", root)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, pierrors.New(pierrors.ErrCodeWatchStartFailed, "watcher is closed", nil)
	}
	w.next++
	id := w.next
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return 0, pierrors.New(pierrors.ErrCodeWatchStartFailed, "create fsnotify watcher", err)
	}

	opts = opts.WithDefaults()
	s := &subscription{
		id:        id,
		root:      root,
		opts:      opts,
		ignored:   make(map[string]bool, len(opts.IgnoredNames)),
		cb:        cb,
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce, w.logger),
		dirs:      make(map[string]bool),
		done:      make(chan struct{}),
		logger:    w.logger.With(slog.String("root", root)),
	}
	for _, name := range opts.IgnoredNames {
		s.ignored[name] = true
	}

	s.wg.Add(2)
	go s.loop()
	go s.forward(func() { _ = w.Unwatch(id) })

	if err := s.addTree(root, !opts.IgnoreInitial); err != nil {
		_ = s.stop()
		return 0, pierrors.New(pierrors.ErrCodeWatchStartFailed, "watch folder", err).
			WithDetail("path", root)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		_ = s.stop()
		return 0, pierrors.New(pierrors.ErrCodeWatchStartFailed, "watcher is closed", nil)
	}
	w.subs[id] = s
	w.mu.Unlock()

	w.logger.Debug("watch_started",
		slog.String("root", root),
		slog.Int("dirs", s.dirCount()))
	return id, nil
}

// Unwatch ends the subscription h.
func (w *FSWatcher) Unwatch(h Handle) error {
	w.mu.Lock()
	s, ok := w.subs[h]
	delete(w.subs, h)
	w.mu.Unlock()

	if !ok {
		return nil
	}
	return s.stop()
}

// Close ends every subscription.
func (w *FSWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	subs := w.subs
	w.subs = make(map[Handle]*subscription)
	w.mu.Unlock()

	var firstErr error
	for _, s := range subs {
		if err := s.stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Active returns the number of live subscriptions.
func (w *FSWatcher) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

type subscription struct {
	id        Handle
	root      string
	opts      Options
	ignored   map[string]bool
	cb        Callback
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger

	mu   sync.Mutex
	dirs map[string]bool

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func (s *subscription) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// forward hands debounced batches to the callback. onceDone runs after the
// first batch of a non-persistent subscription.
func (s *subscription) forward(onceDone func()) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case batch, ok := <-s.debouncer.Output():
			if !ok {
				return
			}
			for _, ev := range batch {
				s.cb(ev)
			}
			if !s.opts.Persistent {
				go onceDone()
				return
			}
		}
	}
}

func (s *subscription) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if s.ignoredPath(path) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Lstat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if s.withinDepth(path) {
				if err := s.addTree(path, true); err != nil {
					s.logger.Warn("watch_add_failed",
						slog.String("path", path),
						slog.String("error", err.Error()))
				}
			}
			return
		}
		if info.Mode().IsRegular() {
			s.debouncer.Add(Event{Type: EventAdd, Path: path})
		}
	case ev.Has(fsnotify.Write):
		s.debouncer.Add(Event{Type: EventChange, Path: path})
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		s.debouncer.Add(Event{Type: EventUnlink, Path: path, IsDir: s.forgetDir(path)})
	}
}

// addTree watches dir and every non-ignored directory below it within the
// depth bound. With emitFiles, regular files found are reported as adds;
// this covers files created in a new directory before its watch existed.
func (s *subscription) addTree(dir string, emitFiles bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if path != dir && scanner.IsIgnoredName(d.Name(), s.ignored) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if !s.withinDepth(path) {
				return filepath.SkipDir
			}
			if err := s.fsw.Add(path); err != nil {
				if path == dir {
					return fmt.Errorf("add %s: %w", path, err)
				}
				s.logger.Warn("watch_add_failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return filepath.SkipDir
			}
			s.mu.Lock()
			s.dirs[path] = true
			s.mu.Unlock()
			return nil
		}

		if emitFiles && d.Type().IsRegular() {
			s.debouncer.Add(Event{Type: EventAdd, Path: path})
		}
		return nil
	})
}

// forgetDir drops path and its descendants from the watched set and reports
// whether path was a watched directory. A directory moved out of the root
// keeps its inotify watch, so the watches are removed as well.
func (s *subscription) forgetDir(path string) bool {
	s.mu.Lock()
	if !s.dirs[path] {
		s.mu.Unlock()
		return false
	}
	var gone []string
	prefix := path + string(filepath.Separator)
	for d := range s.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(s.dirs, d)
			gone = append(gone, d)
		}
	}
	s.mu.Unlock()

	for _, d := range gone {
		// Fails for directories already deleted; nothing to undo then.
		_ = s.fsw.Remove(d)
	}
	return true
}

func (s *subscription) dirCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirs)
}

// withinDepth reports whether dir is at most opts.Depth levels below root.
func (s *subscription) withinDepth(dir string) bool {
	if s.opts.Depth < 0 {
		return true
	}
	rel, err := filepath.Rel(s.root, dir)
	if err != nil || rel == "." {
		return err == nil
	}
	return strings.Count(rel, string(filepath.Separator))+1 <= s.opts.Depth
}

// ignoredPath reports whether any segment of path below root is ignored.
func (s *subscription) ignoredPath(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return true
	}
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if scanner.IsIgnoredName(seg, s.ignored) {
			return true
		}
	}
	return false
}

func (s *subscription) stop() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.fsw.Close()
		s.debouncer.Stop()
		s.wg.Wait()
	})
	return err
}
