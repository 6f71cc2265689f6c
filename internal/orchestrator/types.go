// Package orchestrator routes user requests through one of three
// processing variants: simple (direct answer), memory (long-term context),
// and control (task decomposition and provider steering).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/normanking/orchestra/internal/llm"
	"github.com/normanking/orchestra/internal/router"
)

// OrchestratorResponse is the unified result of processing one request,
// regardless of which variant produced it.
type OrchestratorResponse struct {
	Content        string                  `json:"content"`
	Type           router.OrchestratorType `json:"orchestrator_type"`
	ProcessingTime time.Duration           `json:"processing_time"`
	TokenUsage     map[string]int          `json:"token_usage,omitempty"`
	TaskAnalysis   *router.TaskAnalysis    `json:"task_analysis,omitempty"`
	UsedProviders  []string                `json:"used_providers,omitempty"`
	Metadata       map[string]any          `json:"metadata,omitempty"`
}

// IsError reports whether the response carries an error marker instead of
// a real answer.
func (r *OrchestratorResponse) IsError() bool {
	if r == nil || r.Metadata == nil {
		return true
	}
	failed, _ := r.Metadata["error"].(bool)
	return failed
}

// Orchestrator is the variant interface. ProcessRequest never returns a Go
// error: failures become error responses so a session survives a bad turn.
type Orchestrator interface {
	// Type identifies the variant.
	Type() router.OrchestratorType

	// ProcessRequest handles one user input within a session.
	ProcessRequest(ctx context.Context, input string, sctx *SessionContext) *OrchestratorResponse

	// Capabilities lists what the variant supports.
	Capabilities() []string

	// CanHandle reports whether the variant accepts a task of the analyzed
	// complexity.
	CanHandle(analysis *router.TaskAnalysis) bool
}

// Variant capability names beyond those the analyzer derives.
const (
	CapabilityQuickResponse        = "quick_response"
	CapabilitySimpleQA             = "simple_qa"
	CapabilityContextContinuity    = "context_continuity"
	CapabilityPersonalAdaptation   = "personal_adaptation"
	CapabilityConversationHistory  = "conversation_history"
	CapabilityPatternRecognition   = "pattern_recognition"
	CapabilityTaskAnalysis         = "task_analysis"
	CapabilityComplexityAssessment = "complexity_assessment"
	CapabilityWorkflowManagement   = "workflow_management"
	CapabilityProviderOptimization = "provider_optimization"
)

// errorResponse wraps a failure so the caller still receives a renderable
// response. Metadata carries the machine-readable marker.
func errorResponse(t router.OrchestratorType, errMsg string) *OrchestratorResponse {
	return &OrchestratorResponse{
		Content: fmt.Sprintf("Sorry, the request could not be processed: %s", errMsg),
		Type:    t,
		Metadata: map[string]any{
			"error":         true,
			"error_message": errMsg,
		},
	}
}

// tokenUsageMap flattens provider token accounting into response metadata
// form.
func tokenUsageMap(u llm.TokenUsage) map[string]int {
	return map[string]int{
		"input":  u.Input,
		"output": u.Output,
		"total":  u.Total(),
	}
}

// validContext reports whether a session context is usable for processing.
func validContext(sctx *SessionContext) bool {
	return sctx != nil && sctx.SessionID != "" && sctx.Profile != nil
}
