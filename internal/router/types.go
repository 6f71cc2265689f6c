// Package router classifies incoming requests by task complexity and
// recommends which orchestrator variant should handle them. Classification
// is lexical and deterministic: keyword sets plus a handful of shape
// heuristics, no model calls.
package router

import (
	"time"
)

// TaskComplexity is the three-way classification of a request.
type TaskComplexity string

const (
	// ComplexitySimple covers short questions and lookups.
	ComplexitySimple TaskComplexity = "simple"
	// ComplexityModerate covers implementation and debugging work.
	ComplexityModerate TaskComplexity = "moderate"
	// ComplexityComplex covers architecture, planning, and multi-step work.
	ComplexityComplex TaskComplexity = "complex"
)

// AllComplexities returns every valid complexity tier.
func AllComplexities() []TaskComplexity {
	return []TaskComplexity{ComplexitySimple, ComplexityModerate, ComplexityComplex}
}

// String returns the string representation of a complexity tier.
func (c TaskComplexity) String() string {
	return string(c)
}

// IsValid reports whether c is a known tier.
func (c TaskComplexity) IsValid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return true
	}
	return false
}

// OrchestratorType identifies a request-handling strategy.
type OrchestratorType string

const (
	// OrchestratorSimple ignores stored memory and answers directly.
	OrchestratorSimple OrchestratorType = "simple"
	// OrchestratorMemory builds context from long-term memory.
	OrchestratorMemory OrchestratorType = "memory"
	// OrchestratorControl analyzes and decomposes complex work.
	OrchestratorControl OrchestratorType = "control"
)

// AllOrchestratorTypes returns every variant type registered by default.
func AllOrchestratorTypes() []OrchestratorType {
	return []OrchestratorType{OrchestratorSimple, OrchestratorMemory, OrchestratorControl}
}

// String returns the string representation of an orchestrator type.
func (o OrchestratorType) String() string {
	return string(o)
}

// IsValid reports whether o is a known variant type.
func (o OrchestratorType) IsValid() bool {
	switch o {
	case OrchestratorSimple, OrchestratorMemory, OrchestratorControl:
		return true
	}
	return false
}

// Capability names produced by the analyzer.
const (
	CapabilityBasicChat           = "basic_chat"
	CapabilityMemorySearch        = "memory_search"
	CapabilityCodeGeneration      = "code_generation"
	CapabilityPlanning            = "planning"
	CapabilityReasoning           = "reasoning"
	CapabilityResearch            = "research"
	CapabilityMultiStepProcessing = "multi_step_processing"
	CapabilityQualityAssurance    = "quality_assurance"
	CapabilityContextAwareness    = "context_awareness"
)

// TaskAnalysis is the analyzer's verdict for one request. It is transient,
// produced once per request.
type TaskAnalysis struct {
	Complexity              TaskComplexity   `json:"complexity"`
	EstimatedTime           time.Duration    `json:"estimated_time"`
	RecommendedOrchestrator OrchestratorType `json:"recommended_orchestrator"`
	RequiredCapabilities    []string         `json:"required_capabilities"`
	Confidence              float64          `json:"confidence"`
	Reasoning               string           `json:"reasoning"`
}
