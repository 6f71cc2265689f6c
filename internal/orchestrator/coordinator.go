package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/orchestra/internal/llm"
	"github.com/normanking/orchestra/internal/memory"
	"github.com/normanking/orchestra/internal/router"
)

// Processing session states tracked by the coordinator.
const (
	processingStatusProcessing = "processing"
	processingStatusCompleted  = "completed"
	processingStatusFailed     = "failed"
	processingStatusNotFound   = "not_found"
)

// Message-building limits.
const (
	coordinatorHistoryTurns = 3
	memoryContextLimit      = 2
	memorySummaryRunes      = 100
	briefResponseRunes      = 500
)

// Fixed post-processing additions.
const (
	briefHint                = "\n\nAsk for a shorter version if you would like a more compact explanation."
	complexFollowUp          = "\n\nLet me know which part you want to dig into or which step to take next."
	defaultPreferredProvider = "anthropic"
)

// processingInfo tracks one in-flight request for progress reporting.
type processingInfo struct {
	status        string
	startTime     time.Time
	endTime       time.Time
	estimatedTime time.Duration
	provider      string
	complexity    string
}

// Coordinator selects a provider for a request, builds the contextual
// prompt, and tracks per-session processing state.
type Coordinator struct {
	providers *llm.Registry
	preferred string

	mu       sync.Mutex
	sessions map[string]*processingInfo
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPreferredProvider sets the provider used for complex tasks.
func WithPreferredProvider(name string) CoordinatorOption {
	return func(c *Coordinator) {
		c.preferred = name
	}
}

// NewCoordinator creates a coordinator over a provider registry.
func NewCoordinator(providers *llm.Registry, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		providers: providers,
		preferred: defaultPreferredProvider,
		sessions:  make(map[string]*processingInfo),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CoordinateProcessing runs one request end to end: provider selection,
// prompt construction, the chat call, and post-processing.
func (c *Coordinator) CoordinateProcessing(ctx context.Context, input string, sctx *SessionContext, analysis *router.TaskAnalysis) (*OrchestratorResponse, error) {
	start := time.Now()

	name, provider, err := c.SelectOptimalProvider(analysis)
	if err != nil {
		return nil, err
	}

	c.startMonitoring(sctx.SessionID, analysis, name)

	messages := c.buildContextMessages(input, sctx, analysis)

	chatResp, err := provider.Chat(ctx, messages, nil)
	if err != nil {
		c.completeMonitoring(sctx.SessionID, false)
		return nil, fmt.Errorf("coordinate processing: %w", err)
	}

	content := postProcessResponse(chatResp.Content, analysis, sctx.Profile)
	elapsed := time.Since(start)

	resp := &OrchestratorResponse{
		Content:        content,
		Type:           analysis.RecommendedOrchestrator,
		ProcessingTime: elapsed,
		TokenUsage:     tokenUsageMap(chatResp.Usage),
		TaskAnalysis:   analysis,
		UsedProviders:  []string{name},
		Metadata: map[string]any{
			"provider_info": provider.ModelInfo().Name,
			"complexity":    analysis.Complexity.String(),
			"estimated_vs_actual_time": map[string]any{
				"estimated": analysis.EstimatedTime,
				"actual":    elapsed,
			},
		},
	}

	c.completeMonitoring(sctx.SessionID, true)
	return resp, nil
}

// SelectOptimalProvider picks a backend for the analyzed task. Complex
// tasks go to the preferred high-capability provider when available; code
// generation prefers a provider serving a code-specialized model; anything
// else takes the first available provider in registration order.
func (c *Coordinator) SelectOptimalProvider(analysis *router.TaskAnalysis) (string, llm.Provider, error) {
	if analysis.Complexity == router.ComplexityComplex {
		if p, ok := c.providers.Get(c.preferred); ok && p.Available() {
			return c.preferred, p, nil
		}
	}

	if hasCapability(analysis.RequiredCapabilities, router.CapabilityCodeGeneration) {
		for _, name := range c.providers.Names() {
			p, ok := c.providers.Get(name)
			if !ok || !p.Available() {
				continue
			}
			if hasCodeModel(p.Models()) {
				return name, p, nil
			}
		}
	}

	return c.providers.FirstAvailable()
}

// MonitorProcessing reports the state of a session's in-flight request.
func (c *Coordinator) MonitorProcessing(sessionID string) map[string]any {
	c.mu.Lock()
	info, ok := c.sessions[sessionID]
	c.mu.Unlock()

	if !ok {
		return map[string]any{"status": processingStatusNotFound}
	}

	elapsed := time.Since(info.startTime)
	progress := 1.0
	if info.estimatedTime > 0 {
		progress = float64(elapsed) / float64(info.estimatedTime)
		if progress > 1.0 {
			progress = 1.0
		}
	}

	return map[string]any{
		"status":         info.status,
		"elapsed_time":   elapsed,
		"estimated_time": info.estimatedTime,
		"progress":       progress,
		"provider":       info.provider,
		"complexity":     info.complexity,
	}
}

func (c *Coordinator) startMonitoring(sessionID string, analysis *router.TaskAnalysis, providerName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = &processingInfo{
		status:        processingStatusProcessing,
		startTime:     time.Now(),
		estimatedTime: analysis.EstimatedTime,
		provider:      providerName,
		complexity:    analysis.Complexity.String(),
	}
}

func (c *Coordinator) completeMonitoring(sessionID string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	info.endTime = time.Now()
	if success {
		info.status = processingStatusCompleted
	} else {
		info.status = processingStatusFailed
		log.Warn().Str("session_id", sessionID).Msg("request processing failed")
	}
}

// buildContextMessages assembles the prompt: a profile-and-complexity
// system message, recent history, relevant memories, then the input.
func (c *Coordinator) buildContextMessages(input string, sctx *SessionContext, analysis *router.TaskAnalysis) []llm.Message {
	var messages []llm.Message

	if system := buildSystemMessage(sctx.Profile, analysis); system != "" {
		messages = append(messages, llm.Message{Role: "system", Content: system})
	}

	for _, turn := range sctx.RecentHistory(coordinatorHistoryTurns) {
		messages = append(messages,
			llm.Message{Role: "user", Content: turn.UserMessage},
			llm.Message{Role: "assistant", Content: turn.AssistantMessage},
		)
	}

	if memCtx := buildMemoryContext(sctx.RelevantMemories); memCtx != "" {
		messages = append(messages, llm.Message{Role: "system", Content: "Relevant memories: " + memCtx})
	}

	messages = append(messages, llm.Message{Role: "user", Content: input})
	return messages
}

// buildSystemMessage phrases the assistant role from the profile and the
// task complexity.
func buildSystemMessage(profile *memory.UserProfile, analysis *router.TaskAnalysis) string {
	parts := []string{
		"You are the user's personal AI assistant.",
		fmt.Sprintf("User info: %s, %s, preferred languages: %s",
			profile.Name, profile.CodingStyle, strings.Join(profile.PreferredLanguages, ", ")),
	}

	switch analysis.Complexity {
	case router.ComplexityComplex:
		parts = append(parts, "This is a complex task, so approach it systematically and step by step.")
	case router.ComplexityModerate:
		parts = append(parts, "This task has moderate complexity, so offer a practical solution.")
	default:
		parts = append(parts, "This is a simple question, so answer clearly and concisely.")
	}

	switch profile.InteractionStyle {
	case memory.StyleBrief:
		parts = append(parts, "The user prefers brief answers.")
	case memory.StyleDetailed:
		parts = append(parts, "The user prefers detailed explanations.")
	}

	return strings.Join(parts, " ")
}

// buildMemoryContext summarizes up to two memories into one line.
func buildMemoryContext(memories []memory.MemoryItem) string {
	if len(memories) == 0 {
		return ""
	}
	if len(memories) > memoryContextLimit {
		memories = memories[:memoryContextLimit]
	}

	summaries := make([]string, 0, len(memories))
	for _, m := range memories {
		summaries = append(summaries, truncateRunes(m.Content, memorySummaryRunes))
	}
	return strings.Join(summaries, " | ")
}

// postProcessResponse applies style and complexity adjustments to the raw
// model output.
func postProcessResponse(content string, analysis *router.TaskAnalysis, profile *memory.UserProfile) string {
	if profile.InteractionStyle == memory.StyleBrief && runeLen(content) > briefResponseRunes {
		content += briefHint
	}
	if analysis.Complexity == router.ComplexityComplex {
		content += complexFollowUp
	}
	return content
}

func hasCapability(capabilities []string, want string) bool {
	for _, c := range capabilities {
		if c == want {
			return true
		}
	}
	return false
}

// hasCodeModel reports whether any model name looks code-specialized.
func hasCodeModel(models []string) bool {
	for _, m := range models {
		lower := strings.ToLower(m)
		if strings.Contains(lower, "codellama") || strings.Contains(lower, "coder") {
			return true
		}
	}
	return false
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
