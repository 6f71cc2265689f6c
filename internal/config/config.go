package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for Orchestra. It is loaded
// from ~/.orchestra/config.yaml and can be overridden by environment
// variables.
type Config struct {
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Memory       MemoryConfig       `mapstructure:"memory" yaml:"memory"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig contains configuration for chat backends.
type LLMConfig struct {
	// DefaultProvider specifies which provider to use by default ("ollama", "anthropic").
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Providers maps provider names to their specific configuration.
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderOrder returns the configured provider names with the default
// provider first and the rest sorted. Provider registration order decides
// first-available fallback, so it must not depend on map iteration.
func (c LLMConfig) ProviderOrder() []string {
	rest := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		if name != c.DefaultProvider {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	var names []string
	if _, ok := c.Providers[c.DefaultProvider]; ok {
		names = append(names, c.DefaultProvider)
	}
	return append(names, rest...)
}

// ProviderConfig contains configuration for a specific chat backend.
type ProviderConfig struct {
	// Endpoint is the API endpoint URL (primarily used for Ollama).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// APIKey is the authentication key for the provider.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Model is the specific model to use with this provider.
	Model string `mapstructure:"model" yaml:"model,omitempty"`
	// MaxTokens caps response length.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	// Temperature controls sampling randomness.
	Temperature float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
	// TimeoutSec is the request timeout in seconds.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec,omitempty"`
}

// MemoryConfig contains configuration for the file-based memory store.
type MemoryConfig struct {
	// BaseDir is the root of the memory tree.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// CacheTTL is how long profile and recent-conversation caches stay fresh.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	// RetentionDays is the age past which cleanup removes conversation
	// records (0 = keep forever).
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days"`
}

// OrchestratorConfig contains routing configuration.
type OrchestratorConfig struct {
	// Default is the orchestrator used when neither the profile nor the
	// analyzer picks one ("simple", "memory", "control").
	Default string `mapstructure:"default" yaml:"default"`
	// PreferredProvider is the high-capability backend used for complex
	// tasks.
	PreferredProvider string `mapstructure:"preferred_provider" yaml:"preferred_provider"`
	// HistoryLimit bounds the in-session working history.
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the log file.
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	orchestraDir := filepath.Join(homeDir, ".orchestra")

	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "ollama",
			Providers: map[string]ProviderConfig{
				"ollama": {
					Endpoint: "http://127.0.0.1:11434",
					Model:    "llama3",
				},
				"anthropic": {
					Model: "claude-3-5-sonnet-20241022",
				},
			},
		},
		Memory: MemoryConfig{
			BaseDir:       filepath.Join(orchestraDir, "memory"),
			CacheTTL:      5 * time.Minute,
			RetentionDays: 0,
		},
		Orchestrator: OrchestratorConfig{
			Default:           "simple",
			PreferredProvider: "anthropic",
			HistoryLimit:      20,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(orchestraDir, "logs", "orchestra.log"),
		},
	}
}

// Load reads configuration from the default location
// (~/.orchestra/config.yaml) and merges with environment variables. If no
// config file exists, it creates one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".orchestra", "config.yaml")
	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file path and merges
// with environment variables. If the file doesn't exist, it creates one
// with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: ORCHESTRA_LLM_DEFAULT_PROVIDER
	v.SetEnvPrefix("ORCHESTRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Memory.BaseDir = expandPath(cfg.Memory.BaseDir)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return &cfg, nil
}

// Save writes the current configuration to the default config file
// location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return c.SaveToPath(filepath.Join(homeDir, ".orchestra", "config.yaml"))
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// EnsureDirectories creates all directories Orchestra needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Memory.BaseDir,
		filepath.Dir(c.Logging.File),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider cannot be empty")
	}
	if _, exists := c.LLM.Providers[c.LLM.DefaultProvider]; !exists {
		return fmt.Errorf("default provider '%s' not found in providers map", c.LLM.DefaultProvider)
	}

	validOrchestrators := map[string]bool{"simple": true, "memory": true, "control": true}
	if !validOrchestrators[c.Orchestrator.Default] {
		return fmt.Errorf("invalid orchestrator '%s', must be one of: simple, memory, control", c.Orchestrator.Default)
	}

	if c.Orchestrator.HistoryLimit < 1 {
		return fmt.Errorf("orchestrator.history_limit must be at least 1")
	}

	if c.Memory.BaseDir == "" {
		return fmt.Errorf("memory.base_dir cannot be empty")
	}
	if c.Memory.RetentionDays < 0 {
		return fmt.Errorf("memory.retention_days cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file. Uses
// gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
