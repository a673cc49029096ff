package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config dir at a temp dir and clears the
// environment variables Load looks at.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	for _, k := range []string{
		"OLLAMA_HOST", "OLLAMA_API_KEY", "OLLAMA_MODEL",
		"THINKCHAT_HOST", "THINKCHAT_API_KEY", "THINKCHAT_MODEL",
		"THINKCHAT_REFRESH_RATE", "THINKCHAT_LOG_LEVEL", "THINKCHAT_THINKING_FAMILIES",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "qwen3:0.6b", cfg.Model)
	assert.Empty(t, cfg.Host)
	assert.Equal(t, []string{"deepseek-r1", "qwen3"}, cfg.ThinkingFamilies)
	assert.True(t, cfg.ValidateModel)
	assert.Equal(t, float64(8), cfg.RefreshRate)
	assert.False(t, cfg.TUI)
	assert.False(t, cfg.Transcript.Enabled)
	assert.Equal(t, filepath.Join(dir, AppName, "transcripts"), cfg.Transcript.Dir)
	assert.Equal(t, filepath.Join(dir, AppName, "logs", "thinkchat.log"), cfg.Log.File)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFileInConfigDir(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, AppName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, AppName, "config.yaml"), []byte(`
model: deepseek-r1:8b
refresh_rate: 10
thinking_families: [deepseek-r1, qwq]
transcript:
  enabled: true
log:
  level: debug
  format: text
`), 0644))

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "deepseek-r1:8b", cfg.Model)
	assert.Equal(t, float64(10), cfg.RefreshRate)
	assert.Equal(t, []string{"deepseek-r1", "qwq"}, cfg.ThinkingFamilies)
	assert.True(t, cfg.Transcript.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := Load(New(), filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("OLLAMA_MODEL", "qwen3:8b")
	t.Setenv("THINKCHAT_LOG_LEVEL", "warn")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", cfg.Host)
	assert.Equal(t, "qwen3:8b", cfg.Model)
	assert.Equal(t, "warn", cfg.Log.Level)

	t.Setenv("THINKCHAT_MODEL", "deepseek-r1:1.5b")
	cfg, err = Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "deepseek-r1:1.5b", cfg.Model, "own prefix wins over OLLAMA_MODEL")
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	isolate(t)
	t.Setenv("OLLAMA_MODEL", "qwen3:8b")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("model", "", "")
	fs.Float64("refresh-rate", 8, "")
	fs.Bool("no-validate", false, "")

	v := New()
	require.NoError(t, BindFlags(v, fs, map[string]string{
		"model":        "model",
		"refresh_rate": "refresh-rate",
	}))
	require.NoError(t, fs.Parse([]string{"--model", "deepseek-r1:8b"}))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "deepseek-r1:8b", cfg.Model)
	assert.Equal(t, float64(8), cfg.RefreshRate, "unset flag keeps the default")

	assert.Error(t, BindFlags(New(), fs, map[string]string{"tui": "tui"}))
}

func TestValidate(t *testing.T) {
	valid := Config{Model: "qwen3:0.6b", Log: LogConfig{Level: "info", Format: "json"}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty model", func(c *Config) { c.Model = "" }},
		{"negative refresh rate", func(c *Config) { c.RefreshRate = -1 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestExpandHome(t *testing.T) {
	home := isolate(t)
	assert.Equal(t, filepath.Join(home, "logs"), expandHome("~/logs"))
	assert.Equal(t, "/abs", expandHome("/abs"))
}
