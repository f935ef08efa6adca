package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathindex/internal/ui"
)

func TestStatusCmd_LocalStore(t *testing.T) {
	isolate(t)
	indexedFolder(t, t.TempDir(), "a.txt", "b.txt")

	// When: asking for status without a daemon
	out, err := run(t, "status", "--json")

	// Then: counts come from the store and the daemon is stopped
	require.NoError(t, err)
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "stopped", info.Daemon)
	assert.Equal(t, 1, info.Folders)
	assert.Equal(t, 2, info.Entries)
	assert.Equal(t, 1, info.ByStatus["indexed"])
	assert.Positive(t, info.DatabaseSize)
	assert.NotNil(t, info.Operations)
}

func TestStatusCmd_Text(t *testing.T) {
	isolate(t)

	// When: rendering status for an empty index
	out, err := run(t, "status")

	// Then: the summary names the database and daemon state
	require.NoError(t, err)
	assert.Contains(t, out, "pathindex status")
	assert.Contains(t, out, "Database:")
	assert.Contains(t, out, "stopped")
}

func TestCancelCmd_RequiresDaemon(t *testing.T) {
	isolate(t)

	_, err := run(t, "cancel", "--all")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon is not running")
}

func TestServeCmd_StopWithoutDaemon(t *testing.T) {
	isolate(t)

	_, err := run(t, "serve", "--stop")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon is not running")
}

func TestDoctorCmd_JSON(t *testing.T) {
	isolate(t)
	indexedFolder(t, t.TempDir(), "a.txt")

	// When: running the system check
	out, err := run(t, "doctor", "--json")

	// Then: the attached folder is checked too
	require.NoError(t, err)
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEqual(t, "failed", report.Status)
	assert.Len(t, report.Checks, 5)
}
