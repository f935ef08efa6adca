package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status(t *testing.T) {
	tests := []struct {
		name string
		icon string
		msg  string
		want string
	}{
		{"with icon", ">", "Scanning", "> Scanning\n"},
		{"without icon", "", "detail", "  detail\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			New(buf).Status(tt.icon, tt.msg)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Levels_NoColorForBuffers(t *testing.T) {
	// Given: a writer on a non-terminal
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing each level
	w.Successf("added %d folder", 1)
	w.Warningf("daemon %s", "not running")
	w.Errorf("failed: %s", "boom")
	w.Hint("run pathindex index")

	// Then: icons are plain and no ANSI codes leak
	out := buf.String()
	assert.Contains(t, out, "✓ added 1 folder")
	assert.Contains(t, out, "! daemon not running")
	assert.Contains(t, out, "✗ failed: boom")
	assert.Contains(t, out, "  run pathindex index")
	assert.NotContains(t, out, "\x1b[")
}

func TestWriter_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	w := New(&bytes.Buffer{})

	assert.False(t, w.useColor)
}

func TestWriter_Table(t *testing.T) {
	// Given: folder rows
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: rendering a table
	w.Table([]string{"ID", "PATH"}, [][]string{
		{"0d6f1c2a", "/data/Café"},
		{"9b2e4411", "/data/docs"},
	})

	// Then: headers and cells appear on separate lines
	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "/data/Café")
	assert.Contains(t, out, "9b2e4411")
	assert.GreaterOrEqual(t, strings.Count(out, "\n"), 4)
}

func TestWriter_Newline(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Newline()
	assert.Equal(t, "\n", buf.String())
}
