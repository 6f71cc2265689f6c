package llm

import (
	"fmt"
	"os"
)

// apiKeyEnvVars maps provider names to their conventional environment
// variables, used when the config leaves the key empty.
var apiKeyEnvVars = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
}

// New creates a provider by name. When cfg is nil or carries no API key,
// the key is taken from the provider's conventional environment variable.
func New(name string, cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig(name)
	}
	if cfg.APIKey == "" {
		if envVar, ok := apiKeyEnvVars[name]; ok {
			cfg.APIKey = os.Getenv(envVar)
		}
	}

	switch name {
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
