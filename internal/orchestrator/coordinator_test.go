package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/orchestra/internal/llm"
	"github.com/normanking/orchestra/internal/memory"
	"github.com/normanking/orchestra/internal/router"
)

// fakeProvider is a canned chat backend for orchestrator tests.
type fakeProvider struct {
	name      string
	reply     string
	available bool
	models    []string
	chatErr   error

	gotMessages []llm.Message
}

func (f *fakeProvider) Chat(ctx context.Context, msgs []llm.Message, opts *llm.ChatOptions) (*llm.ChatResponse, error) {
	f.gotMessages = msgs
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &llm.ChatResponse{
		Content: f.reply,
		Model:   f.name + "-model",
		Usage:   llm.TokenUsage{Input: 10, Output: 5},
	}, nil
}

func (f *fakeProvider) ModelInfo() llm.ModelInfo {
	return llm.ModelInfo{Name: f.name + "-model", Provider: f.name}
}

func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Models() []string { return f.models }

func newProviderRegistry(t *testing.T, providers map[string]*fakeProvider, order ...string) *llm.Registry {
	t.Helper()
	r := llm.NewRegistry()
	for _, name := range order {
		require.NoError(t, r.Register(name, providers[name]))
	}
	return r
}

func testSessionContext(t router.OrchestratorType) *SessionContext {
	return NewSessionContext(memory.DefaultProfile(), t)
}

func analysisFor(c router.TaskComplexity, capabilities ...string) *router.TaskAnalysis {
	return &router.TaskAnalysis{
		Complexity:              c,
		EstimatedTime:           10 * time.Second,
		RecommendedOrchestrator: router.NewAnalyzer().Recommend(c),
		RequiredCapabilities:    capabilities,
		Confidence:              0.8,
		Reasoning:               "test analysis",
	}
}

func TestSelectOptimalProvider_ComplexPrefersHighCapability(t *testing.T) {
	registry := newProviderRegistry(t, map[string]*fakeProvider{
		"ollama":    {name: "ollama", available: true},
		"anthropic": {name: "anthropic", available: true},
	}, "ollama", "anthropic")

	c := NewCoordinator(registry)

	name, _, err := c.SelectOptimalProvider(analysisFor(router.ComplexityComplex))
	require.NoError(t, err)
	assert.Equal(t, "anthropic", name)
}

func TestSelectOptimalProvider_ComplexFallsBackWhenPreferredDown(t *testing.T) {
	registry := newProviderRegistry(t, map[string]*fakeProvider{
		"ollama":    {name: "ollama", available: true},
		"anthropic": {name: "anthropic", available: false},
	}, "ollama", "anthropic")

	c := NewCoordinator(registry)

	name, _, err := c.SelectOptimalProvider(analysisFor(router.ComplexityComplex))
	require.NoError(t, err)
	assert.Equal(t, "ollama", name)
}

func TestSelectOptimalProvider_CodeGenerationPrefersCodeModel(t *testing.T) {
	registry := newProviderRegistry(t, map[string]*fakeProvider{
		"anthropic": {name: "anthropic", available: true},
		"ollama":    {name: "ollama", available: true, models: []string{"llama3", "codellama:13b"}},
	}, "anthropic", "ollama")

	c := NewCoordinator(registry)

	analysis := analysisFor(router.ComplexityModerate, router.CapabilityCodeGeneration)
	name, _, err := c.SelectOptimalProvider(analysis)
	require.NoError(t, err)
	assert.Equal(t, "ollama", name)
}

func TestSelectOptimalProvider_DefaultFirstAvailable(t *testing.T) {
	registry := newProviderRegistry(t, map[string]*fakeProvider{
		"ollama":    {name: "ollama", available: false},
		"anthropic": {name: "anthropic", available: true},
	}, "ollama", "anthropic")

	c := NewCoordinator(registry)

	name, _, err := c.SelectOptimalProvider(analysisFor(router.ComplexitySimple))
	require.NoError(t, err)
	assert.Equal(t, "anthropic", name)
}

func TestSelectOptimalProvider_NoneAvailable(t *testing.T) {
	registry := newProviderRegistry(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: false},
	}, "ollama")

	c := NewCoordinator(registry)

	_, _, err := c.SelectOptimalProvider(analysisFor(router.ComplexitySimple))
	require.Error(t, err)
}

func TestCoordinateProcessing(t *testing.T) {
	provider := &fakeProvider{name: "ollama", available: true, reply: "the answer"}
	registry := newProviderRegistry(t, map[string]*fakeProvider{"ollama": provider}, "ollama")

	c := NewCoordinator(registry)
	sctx := testSessionContext(router.OrchestratorSimple)
	sctx.RecordTurn("earlier question", "earlier answer")

	resp, err := c.CoordinateProcessing(context.Background(), "follow-up question", sctx, analysisFor(router.ComplexitySimple))
	require.NoError(t, err)

	assert.Equal(t, "the answer", resp.Content)
	assert.Equal(t, []string{"ollama"}, resp.UsedProviders)
	assert.Equal(t, 15, resp.TokenUsage["total"])
	assert.Equal(t, "simple", resp.Metadata["complexity"])

	// system message, one history turn (2 messages), then the input.
	require.Len(t, provider.gotMessages, 4)
	assert.Equal(t, "system", provider.gotMessages[0].Role)
	assert.Equal(t, "earlier question", provider.gotMessages[1].Content)
	assert.Equal(t, "follow-up question", provider.gotMessages[3].Content)

	status := c.MonitorProcessing(sctx.SessionID)
	assert.Equal(t, "completed", status["status"])
}

func TestCoordinateProcessing_ComplexAppendsFollowUp(t *testing.T) {
	provider := &fakeProvider{name: "anthropic", available: true, reply: "a plan"}
	registry := newProviderRegistry(t, map[string]*fakeProvider{"anthropic": provider}, "anthropic")

	c := NewCoordinator(registry)
	sctx := testSessionContext(router.OrchestratorControl)

	resp, err := c.CoordinateProcessing(context.Background(), "design a system", sctx, analysisFor(router.ComplexityComplex))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Content, "a plan"))
	assert.True(t, strings.HasSuffix(resp.Content, complexFollowUp))
}

func TestCoordinateProcessing_BriefStyleHint(t *testing.T) {
	long := strings.Repeat("word ", 150)
	provider := &fakeProvider{name: "ollama", available: true, reply: long}
	registry := newProviderRegistry(t, map[string]*fakeProvider{"ollama": provider}, "ollama")

	c := NewCoordinator(registry)
	sctx := testSessionContext(router.OrchestratorSimple)
	sctx.Profile.InteractionStyle = memory.StyleBrief

	resp, err := c.CoordinateProcessing(context.Background(), "explain", sctx, analysisFor(router.ComplexitySimple))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.Content, briefHint))
}

func TestCoordinateProcessing_MemoriesInPrompt(t *testing.T) {
	provider := &fakeProvider{name: "ollama", available: true, reply: "ok"}
	registry := newProviderRegistry(t, map[string]*fakeProvider{"ollama": provider}, "ollama")

	c := NewCoordinator(registry)
	sctx := testSessionContext(router.OrchestratorSimple)
	sctx.RelevantMemories = []memory.MemoryItem{
		{Content: "uses FastAPI at work"},
		{Content: "prefers table-driven tests"},
		{Content: "a third memory that must not appear"},
	}

	_, err := c.CoordinateProcessing(context.Background(), "question", sctx, analysisFor(router.ComplexitySimple))
	require.NoError(t, err)

	var memoryMsg string
	for _, msg := range provider.gotMessages {
		if msg.Role == "system" && strings.HasPrefix(msg.Content, "Relevant memories: ") {
			memoryMsg = msg.Content
		}
	}
	require.NotEmpty(t, memoryMsg)
	assert.Contains(t, memoryMsg, "uses FastAPI at work | prefers table-driven tests")
	assert.NotContains(t, memoryMsg, "third memory")
}

func TestCoordinateProcessing_ChatFailureMarksFailed(t *testing.T) {
	provider := &fakeProvider{name: "ollama", available: true, chatErr: errors.New("connection refused")}
	registry := newProviderRegistry(t, map[string]*fakeProvider{"ollama": provider}, "ollama")

	c := NewCoordinator(registry)
	sctx := testSessionContext(router.OrchestratorSimple)

	_, err := c.CoordinateProcessing(context.Background(), "question", sctx, analysisFor(router.ComplexitySimple))
	require.Error(t, err)

	status := c.MonitorProcessing(sctx.SessionID)
	assert.Equal(t, "failed", status["status"])
}

func TestMonitorProcessing_UnknownSession(t *testing.T) {
	c := NewCoordinator(llm.NewRegistry())
	status := c.MonitorProcessing("no-such-session")
	assert.Equal(t, "not_found", status["status"])
}

func TestMonitorProcessing_ProgressClamped(t *testing.T) {
	c := NewCoordinator(llm.NewRegistry())

	analysis := analysisFor(router.ComplexitySimple)
	analysis.EstimatedTime = time.Nanosecond
	c.startMonitoring("s1", analysis, "ollama")

	status := c.MonitorProcessing("s1")
	assert.Equal(t, 1.0, status["progress"])
	assert.Equal(t, "processing", status["status"])
}
