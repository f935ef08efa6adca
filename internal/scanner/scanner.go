package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
)

// gitignoreCacheSize bounds the number of parsed .gitignore files kept
// between scans.
const gitignoreCacheSize = 1000

// Options configures an FSScanner.
type Options struct {
	// IgnoredNames are file or directory names that are never indexed.
	// Names starting with "." are always ignored.
	IgnoredNames []string

	// RespectGitignore enables .gitignore parsing.
	RespectGitignore bool

	// Workers is the number of concurrent directory readers (0 = NumCPU).
	Workers int
}

// cachedIgnore is a parsed .gitignore plus the mtime it was parsed at.
// gi is nil when the directory has no .gitignore.
type cachedIgnore struct {
	gi      *ignore.GitIgnore
	modTime time.Time
}

// FSScanner walks the local filesystem.
type FSScanner struct {
	opts    Options
	ignored map[string]bool
	cache   *lru.Cache[string, cachedIgnore]

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

var _ Scanner = (*FSScanner)(nil)

// New creates an FSScanner.
func New(opts Options) (*FSScanner, error) {
	cache, err := lru.New[string, cachedIgnore](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	ignored := make(map[string]bool, len(opts.IgnoredNames))
	for _, n := range opts.IgnoredNames {
		ignored[n] = true
	}

	return &FSScanner{
		opts:    opts,
		ignored: ignored,
		cache:   cache,
		cancels: make(map[string]context.CancelFunc),
	}, nil
}

// IsIgnoredName reports whether a single path element is never indexed.
func IsIgnoredName(name string, ignored map[string]bool) bool {
	return strings.HasPrefix(name, ".") || ignored[name]
}

// Cancel implements Scanner.
func (s *FSScanner) Cancel(operationID string) {
	s.mu.Lock()
	cancel, ok := s.cancels[operationID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// dirMatcher is a .gitignore scoped to the directory that holds it.
type dirMatcher struct {
	base string
	gi   *ignore.GitIgnore
}

// walk holds the state of one Scan call.
type walk struct {
	s        *FSScanner
	root     string
	progress ProgressFunc

	mu          sync.Mutex
	files       []FileDescriptor
	dirs        int
	skipped     int
	lastEmitted time.Time
}

// Scan implements Scanner.
func (s *FSScanner) Scan(ctx context.Context, folderPath, operationID string, progress ProgressFunc) ([]FileDescriptor, error) {
	root, err := filepath.Abs(folderPath)
	if err != nil {
		return nil, pierrors.New(pierrors.ErrCodeInvalidFolder, "invalid folder path", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, pierrors.New(pierrors.ErrCodeInvalidFolder,
			fmt.Sprintf("folder not accessible: %s", root), err)
	}
	if !info.IsDir() {
		return nil, pierrors.New(pierrors.ErrCodeInvalidFolder,
			fmt.Sprintf("not a directory: %s", root), nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if operationID != "" {
		s.mu.Lock()
		s.cancels[operationID] = cancel
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, operationID)
			s.mu.Unlock()
		}()
	}

	w := &walk{s: s, root: root, progress: progress}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	g.Go(func() error {
		return w.dir(gctx, g, root, nil)
	})
	err = g.Wait()

	if ctx.Err() != nil {
		slog.Debug("scan_aborted", slog.String("folder", root), slog.String("operation_id", operationID))
		return nil, ErrAborted
	}
	if err != nil {
		return nil, pierrors.New(pierrors.ErrCodeScanFailed, err.Error(), err).WithDetail("folder", root)
	}

	sort.Slice(w.files, func(i, j int) bool { return w.files[i].Path < w.files[j].Path })
	w.finish()

	slog.Debug("scan_complete",
		slog.String("folder", root),
		slog.Int("files", len(w.files)),
		slog.Int("directories", w.dirs),
		slog.Int("skipped", w.skipped),
		slog.Duration("duration", time.Since(start)))
	return w.files, nil
}

// dir reads one directory and fans out into its subdirectories, running
// them inline when every worker slot is busy.
func (w *walk) dir(ctx context.Context, g *errgroup.Group, path string, matchers []dirMatcher) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if path == w.root {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		// Unreadable subdirectories are skipped, not fatal.
		w.count(0, 1)
		return nil
	}

	if w.s.opts.RespectGitignore {
		if gi := w.s.gitignoreFor(path); gi != nil {
			matchers = append(matchers[:len(matchers):len(matchers)], dirMatcher{base: path, gi: gi})
		}
	}

	var found []FileDescriptor
	skipped := 0
	for _, e := range entries {
		name := e.Name()
		full := filepath.Join(path, name)

		if IsIgnoredName(name, w.s.ignored) || e.Type()&fs.ModeSymlink != 0 ||
			gitignored(matchers, full, e.IsDir()) {
			skipped++
			continue
		}

		if e.IsDir() {
			sub := full
			fn := func() error { return w.dir(ctx, g, sub, matchers) }
			if !g.TryGo(fn) {
				if err := fn(); err != nil {
					return err
				}
			}
			continue
		}
		if !e.Type().IsRegular() {
			skipped++
			continue
		}

		info, err := e.Info()
		if err != nil {
			skipped++
			continue
		}
		rel, _ := filepath.Rel(w.root, full)
		found = append(found, FileDescriptor{
			Name:         name,
			Path:         full,
			RelativePath: filepath.ToSlash(rel),
			Size:         info.Size(),
			ModifiedAt:   info.ModTime(),
		})
	}

	w.mu.Lock()
	w.files = append(w.files, found...)
	w.mu.Unlock()
	w.count(1, skipped)
	w.report(path)
	return nil
}

func (w *walk) count(dirs, skipped int) {
	w.mu.Lock()
	w.dirs += dirs
	w.skipped += skipped
	w.mu.Unlock()
}

// report emits progress at most every 50ms.
func (w *walk) report(current string) {
	if w.progress == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.lastEmitted) < 50*time.Millisecond {
		return
	}
	w.lastEmitted = time.Now()
	w.progress(Progress{
		Phase:              "scanning",
		Current:            len(w.files),
		CurrentFile:        current,
		DirectoriesScanned: w.dirs,
		Skipped:            w.skipped,
	})
}

// finish sends the final progress with a known total.
func (w *walk) finish() {
	if w.progress == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	total := len(w.files)
	w.progress(Progress{
		Phase:              "scanning",
		Current:            total,
		Total:              &total,
		DirectoriesScanned: w.dirs,
		Skipped:            w.skipped,
	})
}

func gitignored(matchers []dirMatcher, full string, isDir bool) bool {
	for i := len(matchers) - 1; i >= 0; i-- {
		m := matchers[i]
		rel, err := filepath.Rel(m.base, full)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if m.gi.MatchesPath(rel) || (isDir && m.gi.MatchesPath(rel+"/")) {
			return true
		}
	}
	return false
}

// gitignoreFor returns the parsed .gitignore of dir, reparsing when the
// file changed since it was cached.
func (s *FSScanner) gitignoreFor(dir string) *ignore.GitIgnore {
	path := filepath.Join(dir, ".gitignore")
	info, statErr := os.Stat(path)

	if cached, ok := s.cache.Get(dir); ok {
		if statErr != nil && cached.gi == nil {
			return nil
		}
		if statErr == nil && cached.gi != nil && info.ModTime().Equal(cached.modTime) {
			return cached.gi
		}
	}

	if statErr != nil {
		s.cache.Add(dir, cachedIgnore{})
		return nil
	}

	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		slog.Debug("gitignore_parse_failed", slog.String("path", path), slog.String("error", err.Error()))
		s.cache.Add(dir, cachedIgnore{})
		return nil
	}
	s.cache.Add(dir, cachedIgnore{gi: gi, modTime: info.ModTime()})
	return gi
}
