package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrMissingAPIKey is returned when a provider that requires authentication
// is constructed without a key.
var ErrMissingAPIKey = errors.New("api key not configured")

// anthropicCostPer1K maps model prefixes to a blended USD cost per 1K
// tokens, used for rough budget reporting.
var anthropicCostPer1K = map[string]float64{
	"claude-3-5-sonnet": 0.009,
	"claude-3-5-haiku":  0.0024,
	"claude-3-opus":     0.045,
}

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	baseProvider
}

// NewAnthropicProvider creates a new Anthropic provider. The API key is
// required up front so a misconfigured backend fails at startup rather than
// on the first request.
func NewAnthropicProvider(cfg *ProviderConfig) (*AnthropicProvider, error) {
	base := newBaseProvider(cfg, "anthropic")
	if base.config.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	return &AnthropicProvider{baseProvider: base}, nil
}

// ModelInfo describes the configured Claude model.
func (p *AnthropicProvider) ModelInfo() ModelInfo {
	return ModelInfo{
		Name:            p.config.Model,
		Provider:        "anthropic",
		MaxTokens:       p.config.MaxTokens,
		CostPer1KTokens: costForModel(p.config.Model),
	}
}

// Available reports whether the provider is configured. The Anthropic API
// has no cheap health endpoint, so a present key counts as available.
func (p *AnthropicProvider) Available() bool {
	return p.config.APIKey != ""
}

// Models lists the Claude models this adapter knows how to bill for,
// with the configured model first.
func (p *AnthropicProvider) Models() []string {
	models := []string{p.config.Model}
	for _, m := range []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
	} {
		if m != p.config.Model {
			models = append(models, m)
		}
	}
	return models
}

// Chat sends a chat request to the Anthropic messages API. System messages
// are split out into the top-level system field, which the API requires.
func (p *AnthropicProvider) Chat(ctx context.Context, msgs []Message, opts *ChatOptions) (*ChatResponse, error) {
	start := time.Now()
	if opts == nil {
		opts = &ChatOptions{}
	}

	anthropicReq := anthropicChatRequest{
		Model: opts.Model,
	}
	if anthropicReq.Model == "" {
		anthropicReq.Model = p.config.Model
	}

	for _, msg := range msgs {
		if msg.Role == "system" {
			if anthropicReq.System != "" {
				anthropicReq.System += "\n\n"
			}
			anthropicReq.System += msg.Content
			continue
		}
		anthropicReq.Messages = append(anthropicReq.Messages, anthropicMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	anthropicReq.MaxTokens = opts.MaxTokens
	if anthropicReq.MaxTokens == 0 {
		anthropicReq.MaxTokens = p.config.MaxTokens
	}
	anthropicReq.Temperature = opts.Temperature
	if anthropicReq.Temperature == 0 {
		anthropicReq.Temperature = p.config.Temperature
	}

	body, err := json.Marshal(anthropicReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.config.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var anthropicResp anthropicChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var content string
	for _, block := range anthropicResp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	usage := TokenUsage{
		Input:  anthropicResp.Usage.InputTokens,
		Output: anthropicResp.Usage.OutputTokens,
	}

	return &ChatResponse{
		Content:      content,
		Model:        anthropicResp.Model,
		Usage:        usage,
		CostEstimate: float64(usage.Total()) / 1000 * costForModel(anthropicResp.Model),
		Duration:     time.Since(start),
	}, nil
}

// costForModel resolves the per-1K-token rate by longest prefix match.
func costForModel(model string) float64 {
	for prefix, rate := range anthropicCostPer1K {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return rate
		}
	}
	return anthropicCostPer1K["claude-3-5-sonnet"]
}

// Anthropic API types
type anthropicChatRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicChatResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
