package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	isolate(t)

	// When: executing with --help
	out, err := run(t, "--help")

	// Then: usage lists the main commands
	require.NoError(t, err)
	for _, name := range []string{"folder", "index", "search", "serve", "mcp", "status"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCmd_HasPersistentFlags(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()

	// Then: global flags are available to every subcommand
	for _, name := range []string{"config", "debug", "no-color", "profile-cpu", "profile-mem", "profile-trace"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_CommandAnnotations(t *testing.T) {
	cmd := NewRootCmd()

	// When: looking up the long-running commands
	mcpCmd, _, err := cmd.Find([]string{"mcp"})
	require.NoError(t, err)
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	// Then: mcp keeps stdout clean and serve logs to stderr
	assert.Equal(t, "true", mcpCmd.Annotations[annotationStdio])
	assert.Equal(t, "true", serveCmd.Annotations[annotationForeground])
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	isolate(t)

	// When: --config names a file that does not exist
	_, err := run(t, "--config", "/nonexistent/pathindex.yaml", "status")

	// Then: the config error surfaces
	require.Error(t, err)
	assert.True(t, pierrors.IsCode(err, pierrors.ErrCodeConfigNotFound), err.Error())
}

func TestVersionCmd_Outputs(t *testing.T) {
	isolate(t)

	// When: printing the full and short version
	full, err := run(t, "version")
	require.NoError(t, err)
	short, err := run(t, "version", "--short")
	require.NoError(t, err)

	// Then: both name the version
	assert.Contains(t, full, "pathindex")
	assert.Contains(t, full, "commit")
	assert.NotEmpty(t, strings.TrimSpace(short))
	assert.NotContains(t, short, "commit")
}

func TestRootCmd_WritesProfiles(t *testing.T) {
	home := isolate(t)
	cpu := filepath.Join(home, "cpu.prof")
	mem := filepath.Join(home, "mem.prof")

	// When: a command runs with profiling flags
	_, err := run(t, "--profile-cpu", cpu, "--profile-mem", mem, "folder", "list")

	// Then: both profiles are written
	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, mem)
}
