package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/normanking/orchestra/internal/llm"
	"github.com/normanking/orchestra/internal/router"
)

// Control variant limits.
const (
	controlHistoryTurns = 3

	// detailedResponseRunes gates the step-list addendum: a short answer
	// does not need a progress checklist bolted on.
	detailedResponseRunes = 200
)

const controlSupportLine = "\n\nTell me which step you want detailed guidance on."

// Decomposition templates keyed by the kind of work detected in the input.
var (
	designSteps = []string{
		"Requirements analysis",
		"Architecture design",
		"Detailed design",
		"Implementation plan",
	}
	projectSteps = []string{
		"Project planning",
		"Tech stack selection",
		"Staged development",
		"Testing and deployment",
	}
	implementSteps = []string{
		"Requirements review",
		"Design and structuring",
		"Step-by-step implementation",
		"Testing and verification",
	}
	genericSteps = []string{
		"Problem analysis",
		"Solution exploration",
		"Staged execution",
	}
)

// ControlOrchestrator re-analyzes each request and steers it by
// complexity: complex tasks get decomposition and a high-capability
// provider, moderate tasks delegate to the coordinator, simple tasks get a
// single annotated turn.
type ControlOrchestrator struct {
	providers   *llm.Registry
	analyzer    *router.Analyzer
	coordinator *Coordinator
	preferred   string
}

// NewControlOrchestrator creates the control variant.
func NewControlOrchestrator(providers *llm.Registry, analyzer *router.Analyzer, coordinator *Coordinator, preferred string) *ControlOrchestrator {
	if preferred == "" {
		preferred = defaultPreferredProvider
	}
	return &ControlOrchestrator{
		providers:   providers,
		analyzer:    analyzer,
		coordinator: coordinator,
		preferred:   preferred,
	}
}

// Type identifies the variant.
func (o *ControlOrchestrator) Type() router.OrchestratorType {
	return router.OrchestratorControl
}

// Capabilities lists what the variant supports.
func (o *ControlOrchestrator) Capabilities() []string {
	return []string{
		CapabilityTaskAnalysis,
		CapabilityComplexityAssessment,
		CapabilityWorkflowManagement,
		router.CapabilityMultiStepProcessing,
		CapabilityProviderOptimization,
		router.CapabilityQualityAssurance,
	}
}

// CanHandle accepts moderate and complex tasks only; simple questions do
// not need control overhead.
func (o *ControlOrchestrator) CanHandle(analysis *router.TaskAnalysis) bool {
	return analysis.Complexity == router.ComplexityModerate ||
		analysis.Complexity == router.ComplexityComplex
}

// ProcessRequest analyzes the input and dispatches by complexity.
func (o *ControlOrchestrator) ProcessRequest(ctx context.Context, input string, sctx *SessionContext) *OrchestratorResponse {
	if !validContext(sctx) {
		return errorResponse(o.Type(), "invalid session context")
	}

	analysis := o.analyzer.Analyze(input)

	switch analysis.Complexity {
	case router.ComplexityComplex:
		return o.handleComplexTask(ctx, input, sctx, analysis)
	case router.ComplexityModerate:
		resp, err := o.coordinator.CoordinateProcessing(ctx, input, sctx, analysis)
		if err != nil {
			return errorResponse(o.Type(), err.Error())
		}
		resp.Type = o.Type()
		return resp
	default:
		return o.handleSimpleTask(ctx, input, sctx, analysis)
	}
}

func (o *ControlOrchestrator) handleComplexTask(ctx context.Context, input string, sctx *SessionContext, analysis *router.TaskAnalysis) *OrchestratorResponse {
	start := time.Now()

	steps := decomposeTask(input)

	name, provider, err := o.selectAdvancedProvider()
	if err != nil {
		return errorResponse(o.Type(), "no high-capability provider available")
	}

	messages := o.buildControlMessages(input, sctx, analysis, steps)

	chatResp, err := provider.Chat(ctx, messages, nil)
	if err != nil {
		return errorResponse(o.Type(), err.Error())
	}

	elapsed := time.Since(start)

	return &OrchestratorResponse{
		Content:        enhanceComplexResponse(chatResp.Content, steps),
		Type:           o.Type(),
		ProcessingTime: elapsed,
		TokenUsage:     tokenUsageMap(chatResp.Usage),
		TaskAnalysis:   analysis,
		UsedProviders:  []string{name},
		Metadata: map[string]any{
			"mode":             "complex_control",
			"complexity":       analysis.Complexity.String(),
			"decomposed_steps": len(steps),
			"reasoning":        analysis.Reasoning,
			"estimated_vs_actual": map[string]any{
				"estimated": analysis.EstimatedTime,
				"actual":    elapsed,
			},
		},
	}
}

func (o *ControlOrchestrator) handleSimpleTask(ctx context.Context, input string, sctx *SessionContext, analysis *router.TaskAnalysis) *OrchestratorResponse {
	start := time.Now()

	name, provider, err := o.providers.FirstAvailable()
	if err != nil {
		return errorResponse(o.Type(), "no available provider")
	}

	system := fmt.Sprintf(
		"You are an efficient AI assistant.\nUser: %s\nThis request was analyzed as a simple task: %s\nGive a concise, accurate answer.",
		sctx.Profile.Name, analysis.Reasoning,
	)
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: input},
	}

	chatResp, err := provider.Chat(ctx, messages, nil)
	if err != nil {
		return errorResponse(o.Type(), err.Error())
	}

	return &OrchestratorResponse{
		Content:        chatResp.Content,
		Type:           o.Type(),
		ProcessingTime: time.Since(start),
		TokenUsage:     tokenUsageMap(chatResp.Usage),
		TaskAnalysis:   analysis,
		UsedProviders:  []string{name},
		Metadata: map[string]any{
			"mode":             "simple_control",
			"analysis_applied": true,
		},
	}
}

// selectAdvancedProvider prefers the high-capability backend, falling back
// to anything available.
func (o *ControlOrchestrator) selectAdvancedProvider() (string, llm.Provider, error) {
	if p, ok := o.providers.Get(o.preferred); ok && p.Available() {
		return o.preferred, p, nil
	}
	return o.providers.FirstAvailable()
}

func (o *ControlOrchestrator) buildControlMessages(input string, sctx *SessionContext, analysis *router.TaskAnalysis, steps []string) []llm.Message {
	var stepLines strings.Builder
	for i, step := range steps {
		fmt.Fprintf(&stepLines, "%d. %s\n", i+1, step)
	}

	system := fmt.Sprintf(`You are a professional AI control assistant.
User: %s (%s)

Task analysis:
- Complexity: %s
- Estimated processing time: %.1fs
- Required capabilities: %s

Step-by-step approach:
%s
Give a systematic, professional answer.`,
		sctx.Profile.Name,
		sctx.Profile.CodingStyle,
		analysis.Complexity,
		analysis.EstimatedTime.Seconds(),
		strings.Join(analysis.RequiredCapabilities, ", "),
		stepLines.String(),
	)

	messages := []llm.Message{{Role: "system", Content: system}}
	for _, turn := range sctx.RecentHistory(controlHistoryTurns) {
		messages = append(messages,
			llm.Message{Role: "user", Content: turn.UserMessage},
			llm.Message{Role: "assistant", Content: turn.AssistantMessage},
		)
	}
	return append(messages, llm.Message{Role: "user", Content: input})
}

// decomposeTask picks a step template by the kind of work mentioned.
func decomposeTask(input string) []string {
	lower := strings.ToLower(input)

	switch {
	case containsAny(lower, designWords):
		return designSteps
	case containsAny(lower, []string{"프로젝트", "project"}):
		return projectSteps
	case containsAny(lower, []string{"구현", "implement", "개발"}):
		return implementSteps
	default:
		return genericSteps
	}
}

// enhanceComplexResponse appends the step checklist to sufficiently
// detailed answers, plus the standing support line.
func enhanceComplexResponse(content string, steps []string) string {
	if len(steps) > 0 && runeLen(content) > detailedResponseRunes {
		var b strings.Builder
		b.WriteString(content)
		b.WriteString("\n\nRecommended steps:\n")
		for i, step := range steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		content = b.String()
	}
	return content + controlSupportLine
}
