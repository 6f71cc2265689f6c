package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/orchestra/internal/memory"
	"github.com/normanking/orchestra/internal/router"
)

// relevantMemoryLimit caps how many memories the manager attaches to the
// session context before each dispatch.
const relevantMemoryLimit = 2

// managedSession pairs the working context with its durable transcript and
// the currently active variant.
type managedSession struct {
	// mu serializes requests: one in-flight request per session.
	mu sync.Mutex

	sctx         *SessionContext
	conversation *memory.Conversation
	orch         Orchestrator
}

// Manager owns live sessions and the full request pipeline: analysis,
// variant selection, dispatch, and transcript recording.
type Manager struct {
	store    *memory.Store
	searcher *memory.Searcher
	analyzer *router.Analyzer
	registry *Registry

	defaultType  router.OrchestratorType
	historyLimit int

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithDefaultOrchestrator sets the variant used when neither the caller
// nor the profile picks one.
func WithDefaultOrchestrator(t router.OrchestratorType) ManagerOption {
	return func(m *Manager) {
		if t.IsValid() {
			m.defaultType = t
		}
	}
}

// WithHistoryLimit bounds each session's working history.
func WithHistoryLimit(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// NewManager creates a session manager.
func NewManager(store *memory.Store, searcher *memory.Searcher, analyzer *router.Analyzer, registry *Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:        store,
		searcher:     searcher,
		analyzer:     analyzer,
		registry:     registry,
		defaultType:  router.OrchestratorSimple,
		historyLimit: DefaultHistoryLimit,
		sessions:     make(map[string]*managedSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSession starts a new session. An empty orchestrator type falls
// back to the profile preference, then to the configured default.
func (m *Manager) CreateSession(orchestratorType router.OrchestratorType) (*SessionContext, error) {
	profile := m.store.LoadUserProfile()

	t := orchestratorType
	if t == "" {
		t = m.defaultType
		if p := router.OrchestratorType(profile.PreferredOrchestrator); p.IsValid() {
			t = p
		}
	}
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid orchestrator type %q", t)
	}

	orch, err := m.registry.Create(t)
	if err != nil {
		return nil, err
	}

	sctx := NewSessionContext(profile, t)
	sctx.historyLimit = m.historyLimit
	conv := memory.NewConversation(sctx.SessionID, "", t.String())

	m.mu.Lock()
	m.sessions[sctx.SessionID] = &managedSession{
		sctx:         sctx,
		conversation: conv,
		orch:         orch,
	}
	m.mu.Unlock()

	log.Info().
		Str("session_id", sctx.SessionID).
		Str("orchestrator", t.String()).
		Msg("session created")
	return sctx, nil
}

// GetSession returns the context for a live session.
func (m *Manager) GetSession(sessionID string) (*SessionContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return s.sctx, true
}

// ActiveSessions lists the contexts of all live sessions.
func (m *Manager) ActiveSessions() []*SessionContext {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*SessionContext, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.sctx)
	}
	return out
}

// CloseSession ends a session, persisting its transcript when it saw any
// turns.
func (m *Manager) CloseSession(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown session %q", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.conversation.Turns) == 0 {
		return nil
	}

	now := time.Now()
	s.conversation.EndTime = &now
	if s.conversation.Title == "" {
		s.conversation.Title = s.conversation.Summary()
	}
	if err := m.store.SaveConversation(s.conversation); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// HandleRequest runs one user input through the pipeline. Requests within
// a session are serialized; different sessions proceed concurrently.
func (m *Manager) HandleRequest(ctx context.Context, sessionID, input string) (*OrchestratorResponse, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown session %q", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	analysis := m.analyzer.Analyze(input)

	if err := m.retarget(s, analysis); err != nil {
		return nil, err
	}

	s.sctx.RelevantMemories = m.searcher.SearchMemories(input, nil, relevantMemoryLimit).Items

	resp := s.orch.ProcessRequest(ctx, input, s.sctx)
	if resp.TaskAnalysis == nil {
		resp.TaskAnalysis = analysis
	}

	s.sctx.RecordTurn(input, resp.Content)
	s.conversation.AddTurn(input, resp.Content, map[string]any{
		"orchestrator": s.orch.Type().String(),
		"complexity":   analysis.Complexity.String(),
	})
	s.conversation.TaskComplexity = analysis.Complexity.String()

	return resp, nil
}

// retarget switches the session's variant when the profile preference or
// the analyzer recommendation points elsewhere. A target that cannot
// handle the analyzed task falls back to the recommendation.
func (m *Manager) retarget(s *managedSession, analysis *router.TaskAnalysis) error {
	target := analysis.RecommendedOrchestrator
	if p := router.OrchestratorType(s.sctx.Profile.PreferredOrchestrator); p.IsValid() {
		target = p
	}

	candidate, err := m.registry.Create(target)
	if err != nil {
		return err
	}
	if !candidate.CanHandle(analysis) {
		target = analysis.RecommendedOrchestrator
		if candidate, err = m.registry.Create(target); err != nil {
			return err
		}
	}

	if target == s.orch.Type() {
		return nil
	}

	log.Debug().
		Str("session_id", s.sctx.SessionID).
		Str("from", s.orch.Type().String()).
		Str("to", target.String()).
		Msg("switching orchestrator")

	s.orch = candidate
	s.sctx.SwitchOrchestrator(target)
	return nil
}
