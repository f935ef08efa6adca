package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) add(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) has(typ EventType, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.events {
		if ev.Type == typ && ev.Path == path {
			return true
		}
	}
	return false
}

func (c *collector) hasDir(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.events {
		if ev.Type == EventUnlink && ev.IsDir && ev.Path == path {
			return true
		}
	}
	return false
}

func (c *collector) paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Path)
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func persistent() Options {
	return Options{Persistent: true, IgnoreInitial: true, Depth: 10, Debounce: 20 * time.Millisecond}
}

func startWatch(t *testing.T, root string, opts Options) (*FSWatcher, *collector, Handle) {
	t.Helper()
	w := NewFSWatcher(nil)
	t.Cleanup(func() { _ = w.Close() })
	c := &collector{}
	h, err := w.Watch(root, opts, c.add)
	require.NoError(t, err)
	return w, c, h
}

func TestFSWatcher_NewFile_EmitsAdd(t *testing.T) {
	// Given: a watched empty folder
	root := t.TempDir()
	_, c, _ := startWatch(t, root, persistent())

	// When: a file is created
	path := filepath.Join(root, "Config.ts")
	writeFile(t, path, "x")

	// Then: an add event with the absolute path arrives
	assert.Eventually(t, func() bool { return c.has(EventAdd, path) }, waitFor, tick)
}

func TestFSWatcher_RemovedFile_EmitsUnlink(t *testing.T) {
	// Given: a watched folder with an existing file
	root := t.TempDir()
	path := filepath.Join(root, "old.txt")
	writeFile(t, path, "x")
	_, c, _ := startWatch(t, root, persistent())

	// When: the file is removed
	require.NoError(t, os.Remove(path))

	// Then: unlink is reported
	assert.Eventually(t, func() bool { return c.has(EventUnlink, path) }, waitFor, tick)
}

func TestFSWatcher_MovedDirectory_EmitsDirUnlink(t *testing.T) {
	// Given: a watched folder with a populated subdirectory
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	writeFile(t, filepath.Join(sub, "moved.ts"), "x")
	_, c, _ := startWatch(t, root, persistent())

	// When: the subdirectory is moved out of the root
	require.NoError(t, os.Rename(sub, filepath.Join(t.TempDir(), "sub")))

	// Then: one directory unlink is reported for it
	assert.Eventually(t, func() bool { return c.hasDir(sub) }, waitFor, tick)
}

func TestFSWatcher_RenamedDirectory_UnlinksOldAndAddsNew(t *testing.T) {
	// Given: a watched folder with a populated subdirectory
	root := t.TempDir()
	oldDir := filepath.Join(root, "old")
	writeFile(t, filepath.Join(oldDir, "a.ts"), "x")
	_, c, _ := startWatch(t, root, persistent())

	// When: it is renamed inside the root
	newDir := filepath.Join(root, "new")
	require.NoError(t, os.Rename(oldDir, newDir))

	// Then: the old directory is unlinked and its file is added at the new place
	assert.Eventually(t, func() bool {
		return c.hasDir(oldDir) && c.has(EventAdd, filepath.Join(newDir, "a.ts"))
	}, waitFor, tick)
}

func TestFSWatcher_WrittenFile_EmitsChange(t *testing.T) {
	// Given: a watched folder with an existing file
	root := t.TempDir()
	path := filepath.Join(root, "notes.md")
	writeFile(t, path, "a")
	_, c, _ := startWatch(t, root, persistent())

	// When: the file is rewritten
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("more")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: change is reported
	assert.Eventually(t, func() bool { return c.has(EventChange, path) }, waitFor, tick)
}

func TestFSWatcher_NewDirectory_ReportsNestedFiles(t *testing.T) {
	// Given: a watched folder
	root := t.TempDir()
	_, c, _ := startWatch(t, root, persistent())

	// When: a directory with a file inside appears
	path := filepath.Join(root, "src", "deep", "main.go")
	writeFile(t, path, "package main")

	// Then: the nested file is reported as added
	assert.Eventually(t, func() bool { return c.has(EventAdd, path) }, waitFor, tick)
}

func TestFSWatcher_IgnoredNames_NotReported(t *testing.T) {
	// Given: a watched folder with node_modules ignored
	root := t.TempDir()
	opts := persistent()
	opts.IgnoredNames = []string{"node_modules"}
	_, c, _ := startWatch(t, root, opts)

	// When: ignored and hidden files appear, then a regular one
	writeFile(t, filepath.Join(root, "node_modules", "lib.js"), "x")
	writeFile(t, filepath.Join(root, ".hidden"), "x")
	visible := filepath.Join(root, "visible.js")
	writeFile(t, visible, "x")

	// Then: only the regular file is reported
	require.Eventually(t, func() bool { return c.has(EventAdd, visible) }, waitFor, tick)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{visible}, c.paths())
}

func TestFSWatcher_IgnoreInitialFalse_ReportsExistingFiles(t *testing.T) {
	// Given: a folder with existing files
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "sub", "b.txt")
	writeFile(t, a, "x")
	writeFile(t, b, "x")

	// When: watched without IgnoreInitial
	opts := persistent()
	opts.IgnoreInitial = false
	_, c, _ := startWatch(t, root, opts)

	// Then: both existing files are reported as added
	assert.Eventually(t, func() bool {
		return c.has(EventAdd, a) && c.has(EventAdd, b)
	}, waitFor, tick)
}

func TestFSWatcher_DepthZero_OnlyWatchesRoot(t *testing.T) {
	// Given: a folder with a subdirectory, watched at depth 0
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	opts := persistent()
	opts.Depth = 0
	_, c, _ := startWatch(t, root, opts)

	// When: files are created at both levels
	nested := filepath.Join(root, "sub", "nested.txt")
	top := filepath.Join(root, "top.txt")
	writeFile(t, nested, "x")
	writeFile(t, top, "x")

	// Then: only the root level file is reported
	require.Eventually(t, func() bool { return c.has(EventAdd, top) }, waitFor, tick)
	time.Sleep(100 * time.Millisecond)
	assert.False(t, c.has(EventAdd, nested))
}

func TestFSWatcher_Unwatch_StopsDelivery(t *testing.T) {
	// Given: an active subscription
	root := t.TempDir()
	w, c, h := startWatch(t, root, persistent())
	require.Equal(t, 1, w.Active())

	// When: it is removed and a file appears afterwards
	require.NoError(t, w.Unwatch(h))
	writeFile(t, filepath.Join(root, "late.txt"), "x")

	// Then: nothing is delivered and unknown handles are a no-op
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, c.paths())
	assert.Equal(t, 0, w.Active())
	assert.NoError(t, w.Unwatch(h))
}

func TestFSWatcher_NonPersistent_EndsAfterFirstBatch(t *testing.T) {
	// Given: a non-persistent subscription
	root := t.TempDir()
	opts := persistent()
	opts.Persistent = false
	w, c, _ := startWatch(t, root, opts)

	// When: a first batch is delivered
	first := filepath.Join(root, "first.txt")
	writeFile(t, first, "x")
	require.Eventually(t, func() bool { return c.has(EventAdd, first) }, waitFor, tick)

	// Then: the subscription is gone
	assert.Eventually(t, func() bool { return w.Active() == 0 }, waitFor, tick)
}

func TestFSWatcher_InvalidPath(t *testing.T) {
	// Given: a path that does not exist
	w := NewFSWatcher(nil)
	defer w.Close()

	// When: watching it
	_, err := w.Watch(filepath.Join(t.TempDir(), "missing"), persistent(), func(Event) {})

	// Then: an invalid folder error is returned
	require.Error(t, err)
	assert.True(t, pierrors.IsCode(err, pierrors.ErrCodeInvalidFolder))
}

func TestFSWatcher_Close_RejectsNewWatches(t *testing.T) {
	// Given: a closed watcher
	w := NewFSWatcher(nil)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	// When: watching again
	_, err := w.Watch(t.TempDir(), persistent(), func(Event) {})

	// Then: the watch fails to start
	assert.True(t, pierrors.IsCode(err, pierrors.ErrCodeWatchStartFailed))
}
