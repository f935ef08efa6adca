package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalePID is above the usual pid_max, so no process owns it.
const stalePID = 4194304

func TestPIDFile_WriteReadRemove(t *testing.T) {
	// Given: a PID file in a directory that does not exist yet
	path := filepath.Join(t.TempDir(), "nested", "daemon.pid")
	pf := NewPIDFile(path)

	// When: the current PID is written
	require.NoError(t, pf.Write())

	// Then: it reads back and is reported as running
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, pf.IsRunning())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// When: it is removed twice
	require.NoError(t, pf.Remove())
	require.NoError(t, pf.Remove())

	// Then: reads report the missing file
	_, err = pf.Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)
	assert.False(t, pf.IsRunning())
}

func TestPIDFile_Read_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"trailing newline", "12345\n", 12345, false},
		{"garbage", "not-a-number", 0, true},
		{"empty", "", 0, true},
		{"negative", "-4", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "daemon.pid")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			pid, err := NewPIDFile(path).Read()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pid)
		})
	}
}

func TestPIDFile_RemoveStale(t *testing.T) {
	dir := t.TempDir()

	// A dead process's file is removed
	stale := NewPIDFile(filepath.Join(dir, "stale.pid"))
	require.NoError(t, os.WriteFile(stale.Path(), []byte(strconv.Itoa(stalePID)), 0o644))
	removed, err := stale.RemoveStale()
	require.NoError(t, err)
	assert.True(t, removed)

	// A live process's file is kept
	live := NewPIDFile(filepath.Join(dir, "live.pid"))
	require.NoError(t, live.Write())
	removed, err = live.RemoveStale()
	require.NoError(t, err)
	assert.False(t, removed)
	assert.True(t, live.IsRunning())

	// A missing file is fine
	removed, err = NewPIDFile(filepath.Join(dir, "none.pid")).RemoveStale()
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPIDFile_Signal(t *testing.T) {
	dir := t.TempDir()

	live := NewPIDFile(filepath.Join(dir, "live.pid"))
	require.NoError(t, live.Write())
	assert.NoError(t, live.Signal(syscall.Signal(0)))

	dead := NewPIDFile(filepath.Join(dir, "dead.pid"))
	require.NoError(t, os.WriteFile(dead.Path(), []byte(strconv.Itoa(stalePID)), 0o644))
	assert.Error(t, dead.Signal(syscall.Signal(0)))
}
