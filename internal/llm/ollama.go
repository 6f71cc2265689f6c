package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaProvider implements the Provider interface for a local Ollama server.
type OllamaProvider struct {
	baseProvider
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg *ProviderConfig) *OllamaProvider {
	return &OllamaProvider{
		baseProvider: newBaseProvider(cfg, "ollama"),
	}
}

// ModelInfo describes the configured Ollama model. Local inference is free.
func (p *OllamaProvider) ModelInfo() ModelInfo {
	return ModelInfo{
		Name:            p.config.Model,
		Provider:        "ollama",
		MaxTokens:       p.config.MaxTokens,
		CostPer1KTokens: 0,
	}
}

// Available checks if Ollama is running and has at least one model.
// An Ollama endpoint with 0 models is not useful as a backend.
func (p *OllamaProvider) Available() bool {
	return len(p.Models()) > 0
}

// Models lists the models installed on the Ollama server.
func (p *OllamaProvider) Models() []string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names
}

// Chat sends a non-streaming chat request to Ollama.
func (p *OllamaProvider) Chat(ctx context.Context, msgs []Message, opts *ChatOptions) (*ChatResponse, error) {
	start := time.Now()
	if opts == nil {
		opts = &ChatOptions{}
	}

	ollamaReq := ollamaChatRequest{
		Model:  opts.Model,
		Stream: false,
	}
	if ollamaReq.Model == "" {
		ollamaReq.Model = p.config.Model
	}

	for _, msg := range msgs {
		ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	ollamaReq.Options.Temperature = opts.Temperature
	if ollamaReq.Options.Temperature == 0 {
		ollamaReq.Options.Temperature = p.config.Temperature
	}
	ollamaReq.Options.NumPredict = opts.MaxTokens
	if ollamaReq.Options.NumPredict == 0 {
		ollamaReq.Options.NumPredict = p.config.MaxTokens
	}

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &ChatResponse{
		Content: ollamaResp.Message.Content,
		Model:   ollamaResp.Model,
		Usage: TokenUsage{
			Input:  ollamaResp.PromptEvalCount,
			Output: ollamaResp.EvalCount,
		},
		CostEstimate: 0,
		Duration:     time.Since(start),
	}, nil
}

// Ollama API types
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}
