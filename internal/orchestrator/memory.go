package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/orchestra/internal/llm"
	"github.com/normanking/orchestra/internal/memory"
	"github.com/normanking/orchestra/internal/router"
)

// Memory variant limits.
const (
	memoryHistoryTurns      = 4
	memorySearchLimit       = 5
	memoryConversationLimit = 2
	memoryTopK              = 3
	memoryItemSummaryRunes  = 150

	// conversationMatchScore ranks a matched past conversation against
	// keyword-scored items when the two result sets are merged.
	conversationMatchScore = 0.8

	// substantialInputRunes gates persistence: short smalltalk is not
	// worth a long-term memory entry.
	substantialInputRunes = 20
)

// substantialKeywords force persistence regardless of input length.
var substantialKeywords = []string{"프로젝트", "문제", "에러", "구현", "설계"}

// tagKeywords maps technology mentions to canonical tags. Iterated in
// order so extracted tag lists are deterministic.
var tagKeywords = []struct {
	keyword string
	tag     string
}{
	{"python", "python"},
	{"javascript", "javascript"},
	{"java", "java"},
	{"fastapi", "fastapi"},
	{"django", "django"},
	{"flask", "flask"},
	{"react", "react"},
	{"vue", "vue"},
	{"angular", "angular"},
	{"데이터베이스", "database"},
	{"db", "database"},
	{"sql", "sql"},
	{"api", "api"},
	{"rest", "rest"},
	{"graphql", "graphql"},
}

// Task-type tag triggers.
var (
	troubleshootingWords = []string{"에러", "error", "오류", "문제"}
	developmentWords     = []string{"구현", "implement", "개발", "만들기"}
	designWords          = []string{"설계", "design", "아키텍처"}
)

// MemoryOrchestrator answers with long-term context: it searches stored
// memories before the chat call and persists substantial exchanges after.
type MemoryOrchestrator struct {
	providers       *llm.Registry
	store           *memory.Store
	searcher        *memory.Searcher
	defaultProvider string
}

// NewMemoryOrchestrator creates the memory-enhanced variant.
func NewMemoryOrchestrator(providers *llm.Registry, store *memory.Store, searcher *memory.Searcher, defaultProvider string) *MemoryOrchestrator {
	return &MemoryOrchestrator{
		providers:       providers,
		store:           store,
		searcher:        searcher,
		defaultProvider: defaultProvider,
	}
}

// Type identifies the variant.
func (o *MemoryOrchestrator) Type() router.OrchestratorType {
	return router.OrchestratorMemory
}

// Capabilities lists what the variant supports.
func (o *MemoryOrchestrator) Capabilities() []string {
	return []string{
		router.CapabilityMemorySearch,
		CapabilityContextContinuity,
		CapabilityPersonalAdaptation,
		CapabilityConversationHistory,
		CapabilityPatternRecognition,
	}
}

// CanHandle always reports true.
func (o *MemoryOrchestrator) CanHandle(analysis *router.TaskAnalysis) bool {
	return true
}

// ProcessRequest searches for relevant memories, answers with them in
// context, and saves the exchange when it is substantial.
func (o *MemoryOrchestrator) ProcessRequest(ctx context.Context, input string, sctx *SessionContext) *OrchestratorResponse {
	start := time.Now()

	if !validContext(sctx) {
		return errorResponse(o.Type(), "invalid session context")
	}

	memories := o.searchRelevantMemories(input)

	name, provider, err := o.selectProvider()
	if err != nil {
		return errorResponse(o.Type(), "no available provider")
	}

	messages := o.buildMessages(input, sctx, memories)

	chatResp, err := provider.Chat(ctx, messages, nil)
	if err != nil {
		return errorResponse(o.Type(), err.Error())
	}

	saved := o.saveNewMemory(input, chatResp.Content, sctx)

	return &OrchestratorResponse{
		Content:        chatResp.Content,
		Type:           o.Type(),
		ProcessingTime: time.Since(start),
		TokenUsage:     tokenUsageMap(chatResp.Usage),
		UsedProviders:  []string{name},
		Metadata: map[string]any{
			"mode":                    "memory_enhanced",
			"relevant_memories_count": len(memories),
			"memory_types_used":       memoryTypesUsed(memories),
			"new_memory_saved":        saved,
		},
	}
}

// searchRelevantMemories blends keyword-scored items with the closing
// turns of matching past conversations, then keeps the top entries.
func (o *MemoryOrchestrator) searchRelevantMemories(input string) []memory.MemoryItem {
	result := o.searcher.SearchMemories(input, []memory.MemoryType{
		memory.TypeConversation, memory.TypeNote, memory.TypePattern,
	}, memorySearchLimit)

	memories := result.Items

	for _, conv := range o.searcher.SearchConversations(input, memoryConversationLimit) {
		if len(conv.Turns) == 0 {
			continue
		}
		last := conv.Turns[len(conv.Turns)-1]
		memories = append(memories, memory.MemoryItem{
			Content:        fmt.Sprintf("Previous conversation: %s -> %s", last.UserMessage, last.AssistantMessage),
			Type:           memory.TypeConversation,
			Timestamp:      last.Timestamp,
			RelevanceScore: conversationMatchScore,
			Metadata: map[string]any{
				"conversation_id": conv.SessionID,
				"title":           conv.Title,
			},
		})
	}

	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].RelevanceScore > memories[j].RelevanceScore
	})
	if len(memories) > memoryTopK {
		memories = memories[:memoryTopK]
	}
	return memories
}

// selectProvider tries the configured default, then the usual cloud and
// local fallbacks, then anything available.
func (o *MemoryOrchestrator) selectProvider() (string, llm.Provider, error) {
	for _, name := range []string{o.defaultProvider, "anthropic", "ollama"} {
		if p, ok := o.providers.Get(name); ok && p.Available() {
			return name, p, nil
		}
	}
	return o.providers.FirstAvailable()
}

func (o *MemoryOrchestrator) buildMessages(input string, sctx *SessionContext, memories []memory.MemoryItem) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: o.buildSystemMessage(sctx, memories)}}

	for _, turn := range sctx.RecentHistory(memoryHistoryTurns) {
		messages = append(messages,
			llm.Message{Role: "user", Content: turn.UserMessage},
			llm.Message{Role: "assistant", Content: turn.AssistantMessage},
		)
	}

	return append(messages, llm.Message{Role: "user", Content: input})
}

func (o *MemoryOrchestrator) buildSystemMessage(sctx *SessionContext, memories []memory.MemoryItem) string {
	profile := sctx.Profile
	parts := []string{
		fmt.Sprintf("You are %s's personal AI assistant.", profile.Name),
		fmt.Sprintf("User info: %s, preferred languages: %s",
			profile.CodingStyle, strings.Join(profile.PreferredLanguages, ", ")),
	}

	if len(memories) > 0 {
		parts = append(parts, "\nRelevant memories:")
		for i, m := range memories {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, truncateRunes(m.Content, memoryItemSummaryRunes)))
		}
	}

	parts = append(parts, "\nUse these memories to keep the conversation continuous.")
	return strings.Join(parts, "\n")
}

// saveNewMemory persists the exchange when the input is substantial.
// Persistence failures are logged, never surfaced: losing one memory entry
// must not fail the user's turn.
func (o *MemoryOrchestrator) saveNewMemory(input, reply string, sctx *SessionContext) bool {
	if !isSubstantial(input) {
		return false
	}

	item := memory.NewMemoryItem(
		fmt.Sprintf("Q: %s\nA: %s", input, reply),
		memory.TypeConversation,
		extractTags(input),
	)
	item.Metadata["session_id"] = sctx.SessionID
	item.Metadata["orchestrator"] = o.Type().String()
	item.Metadata["user_id"] = sctx.Profile.Name

	if err := o.store.SaveMemoryItem(item); err != nil {
		log.Warn().Err(err).Str("session_id", sctx.SessionID).Msg("failed to save memory item")
		return false
	}
	return true
}

func isSubstantial(input string) bool {
	if runeLen(input) > substantialInputRunes {
		return true
	}
	lower := strings.ToLower(input)
	for _, kw := range substantialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractTags derives tags from technology mentions and task-type words.
func extractTags(text string) []string {
	lower := strings.ToLower(text)

	var tags []string
	seen := make(map[string]bool)
	add := func(tag string) {
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	for _, tk := range tagKeywords {
		if strings.Contains(lower, tk.keyword) {
			add(tk.tag)
		}
	}

	if containsAny(lower, troubleshootingWords) {
		add("troubleshooting")
	}
	if containsAny(lower, developmentWords) {
		add("development")
	}
	if containsAny(lower, designWords) {
		add("design")
	}

	return tags
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// memoryTypesUsed returns the distinct memory types in first-seen order.
func memoryTypesUsed(memories []memory.MemoryItem) []string {
	var types []string
	seen := make(map[memory.MemoryType]bool)
	for _, m := range memories {
		if !seen[m.Type] {
			seen[m.Type] = true
			types = append(types, string(m.Type))
		}
	}
	return types
}
