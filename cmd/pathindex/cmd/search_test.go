package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathindex/internal/store"
)

// indexedFolder attaches and indexes a folder holding names.
func indexedFolder(t *testing.T, project string, names ...string) string {
	t.Helper()
	dir := makeFolder(t, names...)
	_, err := run(t, "folder", "add", project, dir, "--index", "--no-tui")
	require.NoError(t, err)
	return dir
}

func TestSearchCmd_DiacriticsInsensitive(t *testing.T) {
	isolate(t)
	dir := indexedFolder(t, t.TempDir(), "Café.tsx", "other.go")

	// When: searching without the accent
	out, err := run(t, "search", "cafe")

	// Then: the accented file is found
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Café.tsx"), strings.TrimSpace(out))
}

func TestSearchCmd_JSONAndExtensions(t *testing.T) {
	isolate(t)
	indexedFolder(t, t.TempDir(), "logo.svg", "logo.png", "logo.txt")

	// When: searching with an extension filter as JSON
	out, err := run(t, "search", "logo", "--ext", "svg,png", "--json")

	// Then: only the requested extensions come back
	require.NoError(t, err)
	var entries []store.FileIndexEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Contains(t, []string{"svg", "png"}, strings.TrimPrefix(e.Extension, "."))
	}
}

func TestSearchCmd_ProjectScope(t *testing.T) {
	isolate(t)
	p1, p2 := t.TempDir(), t.TempDir()
	indexedFolder(t, p1, "shared.md")
	indexedFolder(t, p2, "shared.md")

	// When: searching one project
	out, err := run(t, "search", "shared", "--project", p1, "--json")

	// Then: only its folder contributes
	require.NoError(t, err)
	var entries []store.FileIndexEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 1)
}

func TestSearchCmd_NoMatches(t *testing.T) {
	isolate(t)

	// When: searching an empty index
	out, err := run(t, "search", "nothing")

	// Then: a friendly message is shown
	require.NoError(t, err)
	assert.Contains(t, out, "No files match")
}

func TestSearchCmd_LimitFlag(t *testing.T) {
	isolate(t)
	indexedFolder(t, t.TempDir(), "a1.txt", "a2.txt", "a3.txt")

	// When: limiting results
	out, err := run(t, "search", "a", "-n", "2")

	// Then: at most two paths print
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}
