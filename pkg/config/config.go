// Package config provides configuration loading, validation, and secret
// management for the seat-change report service. It handles YAML config files
// with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Completion provider constants.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// Default model per provider.
const (
	DefaultOpenAIModel    = "gpt-4.1-mini"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOllamaModel    = "llama3.1"
	DefaultGeminiModel    = "gemini-2.0-flash"
)

// Defaults applied when fields are omitted from the config file.
const (
	DefaultListenAddr        = ":8080"
	DefaultDatabasePath      = "seatdesk.db"
	DefaultReportsDir        = "reports"
	DefaultMaxHistory        = 20
	DefaultMaxContextTokens  = 8000
	DefaultMaxReplyTokens    = 1024
	DefaultTemperature       = float32(0.2)
	DefaultGenerationTimeout = 5 * time.Minute
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CompletionConfig selects and tunes the completion-service provider.
type CompletionConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Host        string  `yaml:"host"` // Ollama only
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// ChatConfig bounds the conversation history fed back to the completion service.
type ChatConfig struct {
	MaxHistoryMessages int `yaml:"max_history_messages"`
	MaxContextTokens   int `yaml:"max_context_tokens"`
}

// GenerationConfig bounds report generation.
type GenerationConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	ReportsDir string        `yaml:"reports_dir"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	PrometheusURL string `yaml:"prometheus_url"` // optional, for the query service
}

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Completion CompletionConfig `yaml:"completion"`
	Chat       ChatConfig       `yaml:"chat"`
	Generation GenerationConfig `yaml:"generation"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvVars replaces ${VAR} references with environment values.
// Unset variables substitute to the empty string.
func substituteEnvVars(raw []byte) []byte {
	return envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads, substitutes, and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(substituteEnvVars(raw), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a config populated with defaults and no provider credentials.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Completion.Provider == "" {
		c.Completion.Provider = ProviderOpenAI
	}
	if c.Completion.Model == "" {
		c.Completion.Model = defaultModelFor(c.Completion.Provider)
	}
	if c.Completion.MaxTokens <= 0 {
		c.Completion.MaxTokens = DefaultMaxReplyTokens
	}
	if c.Completion.Temperature <= 0 {
		c.Completion.Temperature = DefaultTemperature
	}
	if c.Chat.MaxHistoryMessages <= 0 {
		c.Chat.MaxHistoryMessages = DefaultMaxHistory
	}
	if c.Chat.MaxContextTokens <= 0 {
		c.Chat.MaxContextTokens = DefaultMaxContextTokens
	}
	if c.Generation.Timeout <= 0 {
		c.Generation.Timeout = DefaultGenerationTimeout
	}
	if c.Generation.ReportsDir == "" {
		c.Generation.ReportsDir = DefaultReportsDir
	}
}

func defaultModelFor(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return DefaultAnthropicModel
	case ProviderOllama:
		return DefaultOllamaModel
	case ProviderGemini:
		return DefaultGeminiModel
	default:
		return DefaultOpenAIModel
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Completion.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("unknown completion provider %q", c.Completion.Provider)
	}
	if c.Completion.Model == "" {
		return fmt.Errorf("completion model cannot be empty")
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2.0 {
		return fmt.Errorf("completion temperature must be between 0.0 and 2.0")
	}
	if c.Generation.Timeout < time.Second {
		return fmt.Errorf("generation timeout must be at least 1s")
	}
	return nil
}

// ResolveAPIKey returns the provider API key using standard precedence:
// explicit config value, decrypted secrets file, then environment variable.
func (c *Config) ResolveAPIKey() (string, error) {
	if c.Completion.APIKey != "" {
		return c.Completion.APIKey, nil
	}
	if c.Completion.Provider == ProviderOllama {
		return "", nil // local provider, no key needed
	}

	name := apiKeyName(c.Completion.Provider)
	key, err := GetSecret(name)
	if err != nil {
		return "", fmt.Errorf("no API key configured for provider %s: %w", c.Completion.Provider, err)
	}
	return key, nil
}

func apiKeyName(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
