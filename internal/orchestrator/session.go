package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/normanking/orchestra/internal/memory"
	"github.com/normanking/orchestra/internal/router"
)

// DefaultHistoryLimit bounds the in-session working history. The full
// transcript lives in the persisted Conversation; the session context only
// keeps what prompt building needs.
const DefaultHistoryLimit = 20

// SessionContext is the per-session working state handed to orchestrators.
// It has a single writer (the session's request loop), so fields are
// mutated without locking.
type SessionContext struct {
	SessionID           string                    `json:"session_id"`
	Profile             *memory.UserProfile       `json:"user_profile"`
	CurrentOrchestrator router.OrchestratorType   `json:"current_orchestrator"`
	History             []memory.ConversationTurn `json:"conversation_history"`
	RelevantMemories    []memory.MemoryItem       `json:"relevant_memories,omitempty"`
	StartTime           time.Time                 `json:"start_time"`
	LastActivity        time.Time                 `json:"last_activity"`
	TotalInteractions   int                       `json:"total_interactions"`

	historyLimit int
}

// NewSessionContext creates a session context with a fresh session id.
func NewSessionContext(profile *memory.UserProfile, orchestratorType router.OrchestratorType) *SessionContext {
	now := time.Now()
	return &SessionContext{
		SessionID:           uuid.NewString(),
		Profile:             profile,
		CurrentOrchestrator: orchestratorType,
		History:             []memory.ConversationTurn{},
		StartTime:           now,
		LastActivity:        now,
		historyLimit:        DefaultHistoryLimit,
	}
}

// RecordTurn appends an exchange to the working history, dropping the
// oldest turns past the history limit.
func (s *SessionContext) RecordTurn(userMsg, assistantMsg string) {
	s.History = append(s.History, memory.ConversationTurn{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Timestamp:        time.Now(),
	})
	if len(s.History) > s.historyLimit {
		s.History = s.History[len(s.History)-s.historyLimit:]
	}
	s.LastActivity = time.Now()
	s.TotalInteractions++
}

// SwitchOrchestrator retargets the session. This is a pure metadata update;
// history and memories carry over untouched.
func (s *SessionContext) SwitchOrchestrator(t router.OrchestratorType) {
	s.CurrentOrchestrator = t
	s.LastActivity = time.Now()
}

// RecentHistory returns up to n most recent turns.
func (s *SessionContext) RecentHistory(n int) []memory.ConversationTurn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if len(s.History) > n {
		return s.History[len(s.History)-n:]
	}
	return s.History
}
