package main

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai/thinkchat/internal/gate"
	"github.com/ai/thinkchat/internal/ollama"
)

func TestModelRows_ThinkingFirst(t *testing.T) {
	models := []ollama.ModelInfo{
		{Name: "llama3:8b", Size: 4 << 30},
		{Name: "qwen3:0.6b", Size: 500 << 20},
		{Model: "deepseek-r1:8b", Name: "ignored"},
	}

	rows := modelRows(models, gate.New())

	require.Len(t, rows, 3)
	assert.Equal(t, "deepseek-r1:8b", rows[0].Name)
	assert.True(t, rows[0].Thinking)
	assert.Equal(t, "qwen3:0.6b", rows[1].Name)
	assert.True(t, rows[1].Thinking)
	assert.Equal(t, "llama3:8b", rows[2].Name)
	assert.False(t, rows[2].Thinking)
}

func TestPrintModels(t *testing.T) {
	var buf bytes.Buffer
	printModels(&buf, []modelRow{
		{Name: "qwen3:0.6b", Size: 500 << 20, Thinking: true},
		{Name: "llama3:8b", Size: 4 << 30},
	}, "qwen3:0.6b")

	out := ansi.Strip(buf.String())
	assert.Contains(t, out, "💭 qwen3:0.6b")
	assert.Contains(t, out, "500.0 MB")
	assert.Contains(t, out, "4.0 GB")
	assert.Contains(t, out, "(default)")

	buf.Reset()
	printModels(&buf, nil, "")
	assert.Contains(t, buf.String(), "No models installed")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.0 KB", formatSize(1024))
	assert.Equal(t, "1.5 MB", formatSize(3<<19))
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("THINKCHAT_MODEL", "")

	t.Cleanup(func() { noValidate = false; configFile = "" })
	require.NoError(t, rootCmd.ParseFlags([]string{"--model", "deepseek-r1:8b", "--no-validate", "--refresh-rate", "0"}))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "deepseek-r1:8b", cfg.Model)
	assert.False(t, cfg.ValidateModel)
	assert.Zero(t, cfg.RefreshRate)
}
