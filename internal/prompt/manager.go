// Package prompt builds the system prompt from a builtin base, an optional
// user file and per-session instructions.
package prompt

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// BasePrompt is the builtin system prompt.
const BasePrompt = "You are a helpful assistant that thinks through answers."

// Layer represents an instruction layer priority
type Layer int

const (
	LayerBase    Layer = iota // Compiled into binary
	LayerUser                 // From <config dir>/<app>/system.md
	LayerSession              // From --system or the system_prompt setting
)

func (l Layer) String() string {
	switch l {
	case LayerBase:
		return "base"
	case LayerUser:
		return "user"
	case LayerSession:
		return "session"
	default:
		return "unknown"
	}
}

// LayerInfo contains metadata about an instruction layer
type LayerInfo struct {
	Layer   Layer
	Content string
	Source  string // file path, "builtin" or "session"
	Enabled bool
}

// Manager manages instruction layers and builds the effective system prompt
type Manager struct {
	appName   string
	configDir string

	basePrompt    string
	userPrompt    string
	userSource    string
	sessionPrompt string

	mu sync.RWMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfigDir overrides the user configuration directory.
func WithConfigDir(dir string) Option {
	return func(m *Manager) { m.configDir = dir }
}

// WithBasePrompt replaces the builtin base prompt.
func WithBasePrompt(p string) Option {
	return func(m *Manager) { m.basePrompt = p }
}

// NewManager creates a new prompt manager and loads the user layer.
func NewManager(appName string, opts ...Option) *Manager {
	m := &Manager{appName: appName, basePrompt: BasePrompt}
	if dir, err := os.UserConfigDir(); err == nil {
		m.configDir = dir
	}
	for _, opt := range opts {
		opt(m)
	}

	m.loadUserInstructions()
	return m
}

// loadUserInstructions loads instructions from user config
func (m *Manager) loadUserInstructions() {
	path := m.UserConfigPath()
	if path == "" {
		return
	}
	if content, err := os.ReadFile(path); err == nil {
		if text := strings.TrimSpace(string(content)); text != "" {
			m.userPrompt = text
			m.userSource = path
		}
	}
}

// UserConfigPath returns the path to the user instructions file
func (m *Manager) UserConfigPath() string {
	if m.configDir == "" {
		return ""
	}
	return filepath.Join(m.configDir, m.appName, "system.md")
}

// GetEffectivePrompt joins the enabled layers, lowest priority first.
func (m *Manager) GetEffectivePrompt() string {
	var parts []string
	for _, l := range m.GetLayers() {
		if l.Enabled {
			parts = append(parts, l.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// GetEffectivePromptRedacted returns the prompt with secrets redacted for display
func (m *Manager) GetEffectivePromptRedacted() string {
	return RedactSecrets(m.GetEffectivePrompt())
}

// GetLayers returns information about all instruction layers
func (m *Manager) GetLayers() []LayerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return []LayerInfo{
		{Layer: LayerBase, Content: m.basePrompt, Source: "builtin", Enabled: m.basePrompt != ""},
		{Layer: LayerUser, Content: m.userPrompt, Source: m.userSource, Enabled: m.userPrompt != ""},
		{Layer: LayerSession, Content: m.sessionPrompt, Source: "session", Enabled: m.sessionPrompt != ""},
	}
}

// SetSessionInstructions sets the session-level instructions
func (m *Manager) SetSessionInstructions(instructions string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionPrompt = strings.TrimSpace(instructions)
}

// Secret redaction patterns
var secretPatterns = []*regexp.Regexp{
	// API keys (generic patterns)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)[=:]\s*["']?([A-Za-z0-9_\-]{20,})["']?`),
	regexp.MustCompile(`(?i)(secret[_-]?key|secretkey)[=:]\s*["']?([A-Za-z0-9_\-]{20,})["']?`),
	regexp.MustCompile(`(?i)(access[_-]?token|accesstoken)[=:]\s*["']?([A-Za-z0-9_\-]{20,})["']?`),
	regexp.MustCompile(`(?i)(auth[_-]?token|authtoken)[=:]\s*["']?([A-Za-z0-9_\-]{20,})["']?`),
	regexp.MustCompile(`(?i)(bearer)\s+([A-Za-z0-9_\-\.]{20,})`),

	// Specific service patterns
	regexp.MustCompile(`sk-[A-Za-z0-9]{32,}`),                       // OpenAI
	regexp.MustCompile(`sk-ant-[A-Za-z0-9\-]{32,}`),                 // Anthropic
	regexp.MustCompile(`ghp_[A-Za-z0-9]{36,}`),                      // GitHub PAT
	regexp.MustCompile(`gho_[A-Za-z0-9]{36,}`),                      // GitHub OAuth
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`),              // GitHub fine-grained PAT
	regexp.MustCompile(`xoxb-[A-Za-z0-9\-]+`),                       // Slack bot token
	regexp.MustCompile(`xoxp-[A-Za-z0-9\-]+`),                       // Slack user token
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),                          // AWS Access Key
	regexp.MustCompile(`(?i)aws[_-]?secret[_-]?access[_-]?key[=:]\s*["']?([A-Za-z0-9/+=]{40})["']?`),

	// Generic long secrets
	regexp.MustCompile(`(?i)(password|passwd|pwd)[=:]\s*["']?([^\s"']{8,})["']?`),
	regexp.MustCompile(`(?i)(private[_-]?key)[=:]\s*["']?([A-Za-z0-9_\-/+=]{20,})["']?`),
}

// RedactSecrets replaces potential secrets with [REDACTED]
func RedactSecrets(content string) string {
	result := content
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			// Keep the key name but redact the value
			parts := pattern.FindStringSubmatch(match)
			if len(parts) > 1 {
				// Find where the secret value starts
				idx := strings.Index(match, parts[len(parts)-1])
				if idx > 0 {
					return match[:idx] + "[REDACTED]"
				}
			}
			return "[REDACTED]"
		})
	}
	return result
}
