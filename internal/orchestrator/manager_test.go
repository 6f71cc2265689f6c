package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/orchestra/internal/memory"
	"github.com/normanking/orchestra/internal/router"
)

func TestSessionContext_RecordTurnBoundsHistory(t *testing.T) {
	sctx := testSessionContext(router.OrchestratorSimple)

	for i := 0; i < DefaultHistoryLimit+5; i++ {
		sctx.RecordTurn(fmt.Sprintf("question %d", i), "answer")
	}

	assert.Len(t, sctx.History, DefaultHistoryLimit)
	assert.Equal(t, DefaultHistoryLimit+5, sctx.TotalInteractions)
	// Oldest turns fall off the front.
	assert.Equal(t, "question 5", sctx.History[0].UserMessage)
}

func TestSessionContext_SwitchOrchestrator(t *testing.T) {
	sctx := testSessionContext(router.OrchestratorSimple)
	sctx.RecordTurn("q", "a")

	sctx.SwitchOrchestrator(router.OrchestratorMemory)

	assert.Equal(t, router.OrchestratorMemory, sctx.CurrentOrchestrator)
	// The switch is metadata only: history survives.
	assert.Len(t, sctx.History, 1)
}

func newTestManager(t *testing.T, providers map[string]*fakeProvider, order ...string) (*Manager, *memory.Store) {
	t.Helper()
	store, searcher := newTestStore(t)
	registry := newProviderRegistry(t, providers, order...)
	analyzer := router.NewAnalyzer()
	coordinator := NewCoordinator(registry)

	variants := NewRegistry(Deps{
		Providers:       registry,
		Store:           store,
		Searcher:        searcher,
		Analyzer:        analyzer,
		Coordinator:     coordinator,
		DefaultProvider: "ollama",
	})

	return NewManager(store, searcher, analyzer, variants), store
}

func TestManager_CreateSessionDefaults(t *testing.T) {
	m, _ := newTestManager(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true, reply: "ok"},
	}, "ollama")

	sctx, err := m.CreateSession("")
	require.NoError(t, err)

	assert.NotEmpty(t, sctx.SessionID)
	assert.Equal(t, router.OrchestratorSimple, sctx.CurrentOrchestrator)

	got, ok := m.GetSession(sctx.SessionID)
	assert.True(t, ok)
	assert.Same(t, sctx, got)
	assert.Len(t, m.ActiveSessions(), 1)
}

func TestManager_CreateSessionConfiguredDefault(t *testing.T) {
	store, searcher := newTestStore(t)
	registry := newProviderRegistry(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true, reply: "ok"},
	}, "ollama")
	analyzer := router.NewAnalyzer()

	variants := NewRegistry(Deps{
		Providers:       registry,
		Store:           store,
		Searcher:        searcher,
		Analyzer:        analyzer,
		Coordinator:     NewCoordinator(registry),
		DefaultProvider: "ollama",
	})
	m := NewManager(store, searcher, analyzer, variants,
		WithDefaultOrchestrator(router.OrchestratorMemory))

	sctx, err := m.CreateSession("")
	require.NoError(t, err)
	assert.Equal(t, router.OrchestratorMemory, sctx.CurrentOrchestrator)
}

func TestManager_CreateSessionAppliesHistoryLimit(t *testing.T) {
	store, searcher := newTestStore(t)
	registry := newProviderRegistry(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true, reply: "ok"},
	}, "ollama")
	analyzer := router.NewAnalyzer()

	variants := NewRegistry(Deps{
		Providers:       registry,
		Store:           store,
		Searcher:        searcher,
		Analyzer:        analyzer,
		Coordinator:     NewCoordinator(registry),
		DefaultProvider: "ollama",
	})
	m := NewManager(store, searcher, analyzer, variants, WithHistoryLimit(3))

	sctx, err := m.CreateSession("")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		sctx.RecordTurn(fmt.Sprintf("question %d", i), "answer")
	}
	assert.Len(t, sctx.History, 3)
	assert.Equal(t, "question 2", sctx.History[0].UserMessage)
}

func TestManager_CreateSessionHonorsProfilePreference(t *testing.T) {
	m, store := newTestManager(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true, reply: "ok"},
	}, "ollama")

	profile := memory.DefaultProfile()
	profile.PreferredOrchestrator = "memory"
	require.NoError(t, store.SaveUserProfile(profile))

	sctx, err := m.CreateSession("")
	require.NoError(t, err)
	assert.Equal(t, router.OrchestratorMemory, sctx.CurrentOrchestrator)
}

func TestManager_CreateSessionRejectsInvalidType(t *testing.T) {
	m, _ := newTestManager(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true},
	}, "ollama")

	_, err := m.CreateSession(router.OrchestratorType("swarm"))
	require.Error(t, err)
}

func TestManager_HandleRequestRoutesByAnalysis(t *testing.T) {
	m, _ := newTestManager(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true, reply: "direct answer"},
	}, "ollama")

	sctx, err := m.CreateSession(router.OrchestratorSimple)
	require.NoError(t, err)

	resp, err := m.HandleRequest(context.Background(), sctx.SessionID, "왜 그런가요?")
	require.NoError(t, err)

	assert.False(t, resp.IsError())
	assert.Equal(t, router.OrchestratorSimple, resp.Type)
	require.NotNil(t, resp.TaskAnalysis)
	assert.Equal(t, router.ComplexitySimple, resp.TaskAnalysis.Complexity)

	// The turn lands in the working history.
	assert.Equal(t, 1, sctx.TotalInteractions)
	assert.Equal(t, "왜 그런가요?", sctx.History[0].UserMessage)
}

func TestManager_HandleRequestSwitchesVariant(t *testing.T) {
	m, _ := newTestManager(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true, reply: "memory answer"},
	}, "ollama")

	sctx, err := m.CreateSession(router.OrchestratorSimple)
	require.NoError(t, err)

	// Implementation vocabulary classifies moderate, which recommends the
	// memory variant.
	resp, err := m.HandleRequest(context.Background(), sctx.SessionID, "이 함수 오류 수정 방법 자세히 설명 부탁드립니다")
	require.NoError(t, err)

	assert.Equal(t, router.OrchestratorMemory, resp.Type)
	assert.Equal(t, router.OrchestratorMemory, sctx.CurrentOrchestrator)
}

func TestManager_HandleRequestHonorsPreference(t *testing.T) {
	m, store := newTestManager(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true, reply: "remembered"},
	}, "ollama")

	profile := memory.DefaultProfile()
	profile.PreferredOrchestrator = "memory"
	require.NoError(t, store.SaveUserProfile(profile))

	sctx, err := m.CreateSession(router.OrchestratorSimple)
	require.NoError(t, err)

	resp, err := m.HandleRequest(context.Background(), sctx.SessionID, "왜 그런가요?")
	require.NoError(t, err)
	assert.Equal(t, router.OrchestratorMemory, resp.Type)
}

func TestManager_PreferredVariantFallsBackWhenUnsuitable(t *testing.T) {
	m, store := newTestManager(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true, reply: "ok"},
	}, "ollama")

	// Control cannot handle simple tasks, so the recommendation wins.
	profile := memory.DefaultProfile()
	profile.PreferredOrchestrator = "control"
	require.NoError(t, store.SaveUserProfile(profile))

	sctx, err := m.CreateSession(router.OrchestratorSimple)
	require.NoError(t, err)

	resp, err := m.HandleRequest(context.Background(), sctx.SessionID, "왜 그런가요?")
	require.NoError(t, err)
	assert.Equal(t, router.OrchestratorSimple, resp.Type)
}

func TestManager_HandleRequestUnknownSession(t *testing.T) {
	m, _ := newTestManager(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true},
	}, "ollama")

	_, err := m.HandleRequest(context.Background(), "missing", "question")
	require.Error(t, err)
}

func TestManager_CloseSessionPersistsTranscript(t *testing.T) {
	m, store := newTestManager(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true, reply: "the answer"},
	}, "ollama")

	sctx, err := m.CreateSession(router.OrchestratorSimple)
	require.NoError(t, err)

	_, err = m.HandleRequest(context.Background(), sctx.SessionID, "왜 그런가요?")
	require.NoError(t, err)

	require.NoError(t, m.CloseSession(sctx.SessionID))
	assert.Empty(t, m.ActiveSessions())

	conv, err := store.LoadConversation(sctx.SessionID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.Len(t, conv.Turns, 1)
	assert.Equal(t, "왜 그런가요?", conv.Turns[0].UserMessage)
	assert.NotNil(t, conv.EndTime)
	assert.NotEmpty(t, conv.Title)
}

func TestManager_CloseEmptySessionPersistsNothing(t *testing.T) {
	m, store := newTestManager(t, map[string]*fakeProvider{
		"ollama": {name: "ollama", available: true},
	}, "ollama")

	sctx, err := m.CreateSession(router.OrchestratorSimple)
	require.NoError(t, err)
	require.NoError(t, m.CloseSession(sctx.SessionID))

	conv, err := store.LoadConversation(sctx.SessionID)
	require.NoError(t, err)
	assert.Nil(t, conv)

	assert.Error(t, m.CloseSession(sctx.SessionID), "second close should fail")
}
