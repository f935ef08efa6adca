package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathindex/internal/daemon"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// isolate points every path the CLI touches into a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("PATHINDEX_DB_PATH", filepath.Join(home, "index.db"))
	t.Setenv("PATHINDEX_SOCKET", filepath.Join(home, "d.sock"))
	t.Setenv("NO_COLOR", "1")
	return home
}

// run executes the root command and returns its combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// makeFolder creates a folder holding the named files.
func makeFolder(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		makeFile(t, filepath.Join(dir, n))
	}
	return dir
}

func makeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

// listFolders returns the attached folders through `folder list --json`.
func listFolders(t *testing.T) []store.ProjectFolder {
	t.Helper()
	out, err := run(t, "folder", "list", "--json")
	require.NoError(t, err)
	var folders []store.ProjectFolder
	require.NoError(t, json.Unmarshal([]byte(out), &folders))
	return folders
}

// fakeBackend serves a fixed folder list.
type fakeBackend struct {
	folders []store.ProjectFolder
}

func (b fakeBackend) AddFolder(context.Context, string, string) (*store.ProjectFolder, error) {
	return nil, nil
}

func (b fakeBackend) RemoveFolder(context.Context, string) error { return nil }

func (b fakeBackend) ListFolders(context.Context, string) ([]store.ProjectFolder, error) {
	return b.folders, nil
}

func (b fakeBackend) Search(context.Context, daemon.SearchParams) ([]store.FileIndexEntry, error) {
	return nil, nil
}
