// Package llm provides chat backend implementations for Orchestra.
// Supports Ollama (local) and Anthropic Claude.
package llm

import (
	"context"
	"io"
	"net/http"
	"time"
)

// MaxErrorBodySize limits how much of an error response body is read (1MB).
const MaxErrorBodySize = 1 * 1024 * 1024

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Message represents a conversation message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatOptions tune a single chat call. Zero values fall back to the
// provider's configured defaults.
type ChatOptions struct {
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// TokenUsage counts tokens consumed by a chat call.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int {
	return u.Input + u.Output
}

// ChatResponse contains the backend's reply.
type ChatResponse struct {
	Content      string        `json:"content"`
	Model        string        `json:"model"`
	Usage        TokenUsage    `json:"usage"`
	CostEstimate float64       `json:"cost_estimate"`
	Duration     time.Duration `json:"duration"`
}

// ModelInfo describes a provider's default model.
type ModelInfo struct {
	Name            string  `json:"name"`
	Provider        string  `json:"provider"`
	MaxTokens       int     `json:"max_tokens"`
	CostPer1KTokens float64 `json:"cost_per_1k_tokens"`
}

// Provider defines the interface for chat backends.
type Provider interface {
	// Chat sends the conversation and returns the reply.
	Chat(ctx context.Context, msgs []Message, opts *ChatOptions) (*ChatResponse, error)

	// ModelInfo describes the provider's default model.
	ModelInfo() ModelInfo

	// Available returns true if the provider is configured and reachable.
	Available() bool

	// Models lists the models the provider can serve.
	Models() []string
}

// ProviderConfig contains configuration for a chat backend.
type ProviderConfig struct {
	// Name identifies the provider (ollama, anthropic).
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey for authentication.
	APIKey string

	// Model is the default model to use.
	Model string

	// MaxTokens default for responses.
	MaxTokens int

	// Temperature default.
	Temperature float64

	// Timeout for API calls.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for a provider.
func DefaultConfig(name string) *ProviderConfig {
	switch name {
	case "ollama":
		return &ProviderConfig{
			Name:        "ollama",
			Endpoint:    "http://127.0.0.1:11434",
			Model:       "llama3",
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
		}
	case "anthropic":
		return &ProviderConfig{
			Name:        "anthropic",
			Endpoint:    "https://api.anthropic.com",
			Model:       "claude-3-5-sonnet-20241022",
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
		}
	default:
		return &ProviderConfig{
			Name:        name,
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
		}
	}
}

// baseProvider provides common functionality for HTTP-based backends.
type baseProvider struct {
	config *ProviderConfig
	client *http.Client
}

// newBaseProvider creates a base provider with defaults applied.
func newBaseProvider(cfg *ProviderConfig, providerName string) baseProvider {
	if cfg == nil {
		cfg = DefaultConfig(providerName)
	}

	defaults := DefaultConfig(providerName)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.Name = providerName

	return baseProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}
