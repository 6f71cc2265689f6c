package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a canned backend for registry and orchestrator tests.
type stubProvider struct {
	name      string
	available bool
	reply     string
}

func (s *stubProvider) Chat(ctx context.Context, msgs []Message, opts *ChatOptions) (*ChatResponse, error) {
	return &ChatResponse{Content: s.reply, Model: s.name + "-model"}, nil
}

func (s *stubProvider) ModelInfo() ModelInfo {
	return ModelInfo{Name: s.name + "-model", Provider: s.name}
}

func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Models() []string { return []string{s.name + "-model"} }

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("ollama", &stubProvider{name: "ollama"}))
	require.NoError(t, r.Register("anthropic", &stubProvider{name: "anthropic"}))

	assert.Equal(t, []string{"ollama", "anthropic"}, r.Names())

	_, ok := r.Get("ollama")
	assert.True(t, ok)
	_, ok = r.Get("gemini")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("ollama", &stubProvider{name: "ollama"}))
	assert.Error(t, r.Register("ollama", &stubProvider{name: "ollama"}))
}

func TestRegistryFirstAvailable(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("ollama", &stubProvider{name: "ollama", available: false}))
	require.NoError(t, r.Register("anthropic", &stubProvider{name: "anthropic", available: true}))

	name, p, err := r.FirstAvailable()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", name)
	assert.Equal(t, "anthropic", p.ModelInfo().Provider)
}

func TestRegistryFirstAvailable_NoneAvailable(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("ollama", &stubProvider{name: "ollama"}))

	_, _, err := r.FirstAvailable()
	require.Error(t, err)
}
