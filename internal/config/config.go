// Package config loads thinkchat settings from defaults, an optional YAML
// file, the environment and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AppName names the config directory and env prefix.
const AppName = "thinkchat"

// Config is the resolved configuration.
type Config struct {
	Model            string           `mapstructure:"model"`
	Host             string           `mapstructure:"host"`    // empty: local default or cloud when api_key is set
	APIKey           string           `mapstructure:"api_key"` // Ollama cloud key
	SystemPrompt     string           `mapstructure:"system_prompt"`
	ThinkingFamilies []string         `mapstructure:"thinking_families"`
	ValidateModel    bool             `mapstructure:"validate_model"`
	RefreshRate      float64          `mapstructure:"refresh_rate"` // redraws per second, 0 for every delta
	TUI              bool             `mapstructure:"tui"`
	HistoryFile      string           `mapstructure:"history_file"`
	Transcript       TranscriptConfig `mapstructure:"transcript"`
	Log              LogConfig        `mapstructure:"log"`
}

// TranscriptConfig controls the JSONL transcript.
type TranscriptConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// LogConfig controls the diagnostic log file.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or text
	File   string `mapstructure:"file"`
}

// GetConfigDir returns <user config dir>/thinkchat.
func GetConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()

	configDir, err := GetConfigDir()
	if err != nil {
		configDir = "." + AppName
	}

	v.SetDefault("model", "qwen3:0.6b")
	v.SetDefault("host", "")
	v.SetDefault("api_key", "")
	v.SetDefault("system_prompt", "")
	v.SetDefault("thinking_families", []string{"deepseek-r1", "qwen3"})
	v.SetDefault("validate_model", true)
	v.SetDefault("refresh_rate", 8)
	v.SetDefault("tui", false)
	v.SetDefault("history_file", filepath.Join(configDir, "history"))
	v.SetDefault("transcript.enabled", false)
	v.SetDefault("transcript.dir", filepath.Join(configDir, "transcripts"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", filepath.Join(configDir, "logs", AppName+".log"))

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Ollama's own variables are honoured after ours.
	_ = v.BindEnv("host", "THINKCHAT_HOST", "OLLAMA_HOST")
	_ = v.BindEnv("api_key", "THINKCHAT_API_KEY", "OLLAMA_API_KEY")
	_ = v.BindEnv("model", "THINKCHAT_MODEL", "OLLAMA_MODEL")

	return v
}

// BindFlags binds config keys to flags. Only flags set on the command line
// override lower layers.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q for key %q", name, key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file and unmarshals the result. If configFile is
// empty, config.yaml is looked up in the config directory and the working
// directory; a missing file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.HistoryFile = expandHome(cfg.HistoryFile)
	cfg.Transcript.Dir = expandHome(cfg.Transcript.Dir)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("model must not be empty")
	}
	if c.RefreshRate < 0 {
		return fmt.Errorf("refresh_rate must not be negative, got %v", c.RefreshRate)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
