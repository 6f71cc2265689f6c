package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/normanking/orchestra/internal/llm"
	"github.com/normanking/orchestra/internal/router"
)

// simpleHistoryTurns is the small working window the simple variant keeps.
const simpleHistoryTurns = 2

// SimpleOrchestrator answers directly with minimal context. It is the
// default path for short questions and the fallback for everything else.
type SimpleOrchestrator struct {
	providers       *llm.Registry
	defaultProvider string
}

// NewSimpleOrchestrator creates the direct-answer variant.
func NewSimpleOrchestrator(providers *llm.Registry, defaultProvider string) *SimpleOrchestrator {
	return &SimpleOrchestrator{
		providers:       providers,
		defaultProvider: defaultProvider,
	}
}

// Type identifies the variant.
func (o *SimpleOrchestrator) Type() router.OrchestratorType {
	return router.OrchestratorSimple
}

// Capabilities lists what the variant supports.
func (o *SimpleOrchestrator) Capabilities() []string {
	return []string{router.CapabilityBasicChat, CapabilityQuickResponse, CapabilitySimpleQA}
}

// CanHandle always reports true: the simple variant is the universal
// fallback.
func (o *SimpleOrchestrator) CanHandle(analysis *router.TaskAnalysis) bool {
	return true
}

// ProcessRequest answers with the default provider and a two-turn window.
func (o *SimpleOrchestrator) ProcessRequest(ctx context.Context, input string, sctx *SessionContext) *OrchestratorResponse {
	start := time.Now()

	if !validContext(sctx) {
		return errorResponse(o.Type(), "invalid session context")
	}

	name := o.defaultProvider
	provider, ok := o.providers.Get(name)
	if !ok || !provider.Available() {
		var err error
		name, provider, err = o.providers.FirstAvailable()
		if err != nil {
			return errorResponse(o.Type(), "no available provider")
		}
	}

	messages := o.buildMessages(input, sctx)

	chatResp, err := provider.Chat(ctx, messages, nil)
	if err != nil {
		return errorResponse(o.Type(), err.Error())
	}

	return &OrchestratorResponse{
		Content:        chatResp.Content,
		Type:           o.Type(),
		ProcessingTime: time.Since(start),
		TokenUsage:     tokenUsageMap(chatResp.Usage),
		UsedProviders:  []string{name},
		Metadata: map[string]any{
			"mode":     "simple",
			"provider": name,
			"model":    provider.ModelInfo().Name,
		},
	}
}

func (o *SimpleOrchestrator) buildMessages(input string, sctx *SessionContext) []llm.Message {
	system := fmt.Sprintf(
		"You are %s's AI assistant.\nCoding style: %s\nPreferred languages: %s\nGive concise, helpful answers.",
		sctx.Profile.Name,
		sctx.Profile.CodingStyle,
		strings.Join(sctx.Profile.PreferredLanguages, ", "),
	)

	messages := []llm.Message{{Role: "system", Content: system}}
	for _, turn := range sctx.RecentHistory(simpleHistoryTurns) {
		messages = append(messages,
			llm.Message{Role: "user", Content: turn.UserMessage},
			llm.Message{Role: "assistant", Content: turn.AssistantMessage},
		)
	}
	return append(messages, llm.Message{Role: "user", Content: input})
}
