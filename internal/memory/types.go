// Package memory implements Orchestra's long-term memory: durable JSON
// storage for conversations, discrete memory items, and the user profile,
// plus lexical relevance search over all of it.
package memory

import (
	"time"
)

// MemoryType categorizes a stored memory item.
type MemoryType string

const (
	// TypeConversation is a remembered question/answer exchange.
	TypeConversation MemoryType = "conversation"
	// TypeNote is a free-form note worth keeping.
	TypeNote MemoryType = "note"
	// TypePattern is a recurring pattern observed across sessions.
	TypePattern MemoryType = "pattern"
	// TypeProjectContext is shared project background.
	TypeProjectContext MemoryType = "project_context"
	// TypeUserProfile is profile-derived information.
	TypeUserProfile MemoryType = "user_profile"
	// TypeSimpleTask records a simple-tier task outcome.
	TypeSimpleTask MemoryType = "simple_task"
	// TypeComplexTask records a complex-tier task outcome.
	TypeComplexTask MemoryType = "complex_task"
)

// AllMemoryTypes returns every valid memory type.
func AllMemoryTypes() []MemoryType {
	return []MemoryType{
		TypeConversation,
		TypeNote,
		TypePattern,
		TypeProjectContext,
		TypeUserProfile,
		TypeSimpleTask,
		TypeComplexTask,
	}
}

// IsValid reports whether t is a known memory type.
func (t MemoryType) IsValid() bool {
	for _, valid := range AllMemoryTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// ConversationTurn is one user/assistant exchange. Turns are immutable once
// appended to a conversation.
type ConversationTurn struct {
	UserMessage      string         `json:"user_message"`
	AssistantMessage string         `json:"assistant_message"`
	Timestamp        time.Time      `json:"timestamp"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Conversation is a full session transcript. It is owned by the Store and
// mutated only by appending turns during a live session; it is persisted as
// a whole, never turn by turn.
type Conversation struct {
	SessionID        string             `json:"session_id"`
	Turns            []ConversationTurn `json:"turns"`
	StartTime        time.Time          `json:"start_time"`
	EndTime          *time.Time         `json:"end_time,omitempty"`
	Title            string             `json:"title,omitempty"`
	OrchestratorType string             `json:"orchestrator_type,omitempty"`
	TaskComplexity   string             `json:"task_complexity,omitempty"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
}

// NewConversation creates an empty conversation for a session.
func NewConversation(sessionID, title, orchestratorType string) *Conversation {
	return &Conversation{
		SessionID:        sessionID,
		Turns:            []ConversationTurn{},
		StartTime:        time.Now(),
		Title:            title,
		OrchestratorType: orchestratorType,
		Metadata:         map[string]any{},
	}
}

// AddTurn appends a new exchange to the conversation.
func (c *Conversation) AddTurn(userMsg, assistantMsg string, metadata map[string]any) {
	c.Turns = append(c.Turns, ConversationTurn{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Timestamp:        time.Now(),
		Metadata:         metadata,
	})
}

// Summary returns a short description of the conversation, derived from the
// first user message.
func (c *Conversation) Summary() string {
	if len(c.Turns) == 0 {
		return "empty conversation"
	}
	first := []rune(c.Turns[0].UserMessage)
	if len(first) > 50 {
		return string(first[:50]) + "..."
	}
	return string(first)
}

// MemoryItem is a discrete, independently retrievable unit of long-term
// memory. Items are immutable after creation; RelevanceScore is transient
// and recomputed on every search pass, it is never a durable ranking.
type MemoryItem struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Type           MemoryType     `json:"memory_type"`
	Timestamp      time.Time      `json:"timestamp"`
	RelevanceScore float64        `json:"-"`
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewMemoryItem creates a memory item with a fresh ULID. ULIDs sort by
// creation time, which keeps the on-disk note listing chronological.
func NewMemoryItem(content string, memType MemoryType, tags []string) *MemoryItem {
	return &MemoryItem{
		ID:        newItemID(),
		Content:   content,
		Type:      memType,
		Timestamp: time.Now(),
		Tags:      tags,
		Metadata:  map[string]any{},
	}
}

// InteractionStyle values accepted on a user profile.
const (
	StyleBrief    = "brief"
	StyleDetailed = "detailed"
	StyleBalanced = "balanced"
)

// UserProfile is the singleton per-installation profile. It is loaded
// lazily, cached with a TTL, and invalidated on save.
type UserProfile struct {
	Name                  string         `json:"name"`
	CodingStyle           string         `json:"coding_style"`
	PreferredLanguages    []string       `json:"preferred_languages"`
	IDE                   string         `json:"ide"`
	CommonPatterns        []string       `json:"common_patterns,omitempty"`
	PreferredOrchestrator string         `json:"preferred_orchestrator,omitempty"`
	InteractionStyle      string         `json:"interaction_style"`
	Metadata              map[string]any `json:"metadata,omitempty"`
}

// DefaultProfile returns the profile used before the user customizes one.
func DefaultProfile() *UserProfile {
	return &UserProfile{
		Name:               "user",
		CodingStyle:        "clean code",
		PreferredLanguages: []string{"Go"},
		IDE:                "vscode",
		InteractionStyle:   StyleBalanced,
	}
}

// SearchResult holds the outcome of one relevance search. It is transient:
// produced per query and never persisted.
type SearchResult struct {
	Items      []MemoryItem  `json:"items"`
	Query      string        `json:"query"`
	TotalFound int           `json:"total_found"`
	SearchTime time.Duration `json:"search_time"`
	Strategy   string        `json:"search_strategy"`
}
