package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/pathindex/internal/index"
)

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageScanning, "Scanning"},
		{StageIndexing, "Indexing"},
		{StageSaving, "Saving"},
		{StageComplete, "Complete"},
		{Stage(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stage.String())
		})
	}
}

func TestStage_Icon(t *testing.T) {
	assert.Equal(t, "SCAN", StageScanning.Icon())
	assert.Equal(t, "INDEX", StageIndexing.Icon())
	assert.Equal(t, "SAVE", StageSaving.Icon())
	assert.Equal(t, "DONE", StageComplete.Icon())
	assert.Equal(t, "???", Stage(-1).Icon())
}

func TestStageFromPhase(t *testing.T) {
	tests := []struct {
		phase index.Phase
		want  Stage
	}{
		{index.PhaseScanning, StageScanning},
		{index.PhaseIndexing, StageIndexing},
		{index.PhaseSaving, StageSaving},
		{index.PhaseComplete, StageComplete},
		{index.PhaseCancelled, StageComplete},
		{index.PhaseError, StageComplete},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			assert.Equal(t, tt.want, StageFromPhase(tt.phase))
		})
	}
}

func TestIsTTY_WithBuffer_ReturnsFalse(t *testing.T) {
	// Given: a bytes buffer
	buf := &bytes.Buffer{}

	// When/Then: it is not a terminal
	assert.False(t, IsTTY(buf))
}

func TestIsTTY_WithNil_ReturnsFalse(t *testing.T) {
	assert.False(t, IsTTY(nil))
}

func TestNewConfig_WithOptions(t *testing.T) {
	// Given: options
	buf := &bytes.Buffer{}

	// When: building a config
	cfg := NewConfig(buf, WithForcePlain(true), WithNoColor(true), WithTitle("/work/app"))

	// Then: every option is applied
	assert.Same(t, buf, cfg.Output)
	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "/work/app", cfg.Title)
}

func TestNewRenderer_ForcePlain_ReturnsPlainRenderer(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}, WithForcePlain(true)))

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewRenderer_NonTTY_ReturnsPlainRenderer(t *testing.T) {
	// Given: a pipe-like writer
	r := NewRenderer(NewConfig(&bytes.Buffer{}))

	// Then: plain output is chosen
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestDetectCI(t *testing.T) {
	// Given: CI set in the environment
	t.Setenv("CI", "true")

	// Then: CI is detected
	assert.True(t, DetectCI())
}
