package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
)

func TestLogsCmd_ShowsCommandLog(t *testing.T) {
	// Given: a command that logged to the default file
	isolate(t)
	_, err := run(t, "folder", "add", t.TempDir(), makeFolder(t, "a.txt"))
	require.NoError(t, err)

	// When: viewing logs at warn and info
	out, err := run(t, "logs", "-n", "100")
	require.NoError(t, err)
	warnOut, err := run(t, "logs", "--level", "warn")
	require.NoError(t, err)

	// Then: the folder event shows at info but not at warn
	assert.Contains(t, out, "cli_folder_added")
	assert.NotContains(t, warnOut, "cli_folder_added")
}

func TestLogsCmd_FileAndFilter(t *testing.T) {
	// Given: a custom log file
	isolate(t)
	path := filepath.Join(t.TempDir(), "other.log")
	lines := []string{
		`{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"scan_complete","folder_id":"f1"}`,
		`{"time":"2026-01-02T10:00:01Z","level":"ERROR","msg":"scan_failed","folder_id":"f2"}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	// When: filtering by pattern
	out, err := run(t, "logs", "--file", path, "--filter", "f2")

	// Then: only the matching entry is printed
	require.NoError(t, err)
	assert.Contains(t, out, "scan_failed folder_id=f2")
	assert.NotContains(t, out, "scan_complete")
}

func TestLogsCmd_Errors(t *testing.T) {
	isolate(t)

	_, err := run(t, "logs", "--file", filepath.Join(t.TempDir(), "missing.log"))
	assert.Equal(t, pierrors.ErrCodeInvalidInput, pierrors.GetCode(err))

	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err = run(t, "logs", "--file", path, "--filter", "([")
	assert.Equal(t, pierrors.ErrCodeInvalidInput, pierrors.GetCode(err))
}
