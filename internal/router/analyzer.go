package router

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Base processing-time estimates per complexity tier.
const (
	baseTimeSimple   = 5 * time.Second
	baseTimeModerate = 15 * time.Second
	baseTimeComplex  = 45 * time.Second

	// lengthFactorDivisor and lengthFactorCap scale the base estimate by
	// input length: factor = min(len/50, 2.0).
	lengthFactorDivisor = 50.0
	lengthFactorCap     = 2.0

	// Shape heuristics: long inputs lean complex, short ones lean simple.
	longInputRunes  = 100
	shortInputRunes = 20

	// analyzerConfidence is fixed: the heuristic always produces a
	// best-effort classification, ambiguity is not an error.
	analyzerConfidence = 0.8
)

// Keyword sets cover the Korean and English vocabulary seen in requests.
// Matching is substring-based over the lowercased input, so an English stem
// matches its inflections.
var (
	complexKeywords = []string{
		// architecture and design
		"아키텍처", "설계", "구조", "시스템", "architecture", "design", "system",
		"마이크로서비스", "microservice", "패턴", "pattern",
		// project-scale work
		"프로젝트", "project", "전체적", "종합적", "전반적",
		"계획", "plan", "전략", "strategy",
		// heavyweight technical work
		"최적화", "optimization", "성능", "performance", "스케일링", "scaling",
		"보안", "security", "배포", "deployment", "인프라", "infrastructure",
		// multi-step work
		"단계별", "step by step", "순서대로", "절차", "과정", "workflow",
		"통합", "integration", "연동", "연결",
	}

	moderateKeywords = []string{
		// implementation
		"구현", "implement", "개발", "develop", "코딩", "coding",
		"함수", "function", "클래스", "class", "모듈", "module",
		// concrete features
		"api", "데이터베이스", "database", "웹", "web", "서버", "server",
		"클라이언트", "client", "인터페이스", "interface",
		// problem solving
		"해결", "solve", "수정", "fix", "디버깅", "debug", "오류", "error",
	}

	simpleKeywords = []string{
		// plain questions
		"뭐", "what", "어떻게", "how", "왜", "why", "언제", "when",
		"설명", "explain", "알려줘", "tell me", "가르쳐", "teach",
		// small asks
		"예시", "example", "샘플", "sample", "보여줘", "show me",
		"찾아줘", "find", "검색", "search",
	}

	// commandPhrases mark imperative requests ("do X for me").
	commandPhrases = []string{"해줘", "만들어", "구현해", "설계해", "만들어줘"}
)

// Capability keyword categories, matched against the lowercased input.
// Iterated in fixed order so the produced capability list is deterministic.
var capabilityCategories = []struct {
	capability string
	keywords   []string
}{
	{CapabilityMemorySearch, []string{"기억", "이전", "지난번", "전에", "했던"}},
	{CapabilityCodeGeneration, []string{"코드", "프로그램", "함수", "클래스", "구현"}},
	{CapabilityPlanning, []string{"계획", "단계", "절차", "순서", "과정"}},
	{CapabilityReasoning, []string{"왜", "이유", "원인", "분석", "판단"}},
	{CapabilityResearch, []string{"조사", "검색", "찾아", "알아봐", "정보"}},
}

// Analyzer is the heuristic task analyzer.
type Analyzer struct{}

// NewAnalyzer creates a task analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze classifies the input and bundles the full verdict: complexity,
// recommended orchestrator, time estimate, required capabilities, and a
// human-readable reasoning string.
func (a *Analyzer) Analyze(input string) *TaskAnalysis {
	complexity := a.ClassifyComplexity(input)
	orchestrator := a.Recommend(complexity)

	analysis := &TaskAnalysis{
		Complexity:              complexity,
		EstimatedTime:           a.EstimateProcessingTime(complexity, input),
		RecommendedOrchestrator: orchestrator,
		RequiredCapabilities:    a.RequiredCapabilities(input, complexity),
		Confidence:              analyzerConfidence,
		Reasoning:               buildReasoning(complexity, orchestrator),
	}

	log.Debug().
		Str("complexity", complexity.String()).
		Str("orchestrator", orchestrator.String()).
		Dur("estimated_time", analysis.EstimatedTime).
		Msg("task analyzed")
	return analysis
}

// countHits counts how many keywords occur in the input.
func countHits(input string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(input, kw) {
			hits++
		}
	}
	return hits
}

// ClassifyComplexity scores the input against the three keyword sets and
// applies shape heuristics. Ties resolve toward the higher tier: complex
// wins when its count reaches the maximum of the other two, then moderate
// over simple. Downstream routing depends on this asymmetry; do not
// "balance" it.
func (a *Analyzer) ClassifyComplexity(input string) TaskComplexity {
	lower := strings.ToLower(input)

	complexScore := countHits(lower, complexKeywords)
	moderateScore := countHits(lower, moderateKeywords)
	simpleScore := countHits(lower, simpleKeywords)

	length := utf8.RuneCountInString(input)
	if length > longInputRunes {
		complexScore++
	} else if length < shortInputRunes {
		simpleScore++
	}

	if strings.HasSuffix(strings.TrimSpace(input), "?") {
		simpleScore++
	}

	for _, phrase := range commandPhrases {
		if strings.Contains(input, phrase) {
			if complexScore > 0 {
				complexScore++
			} else {
				moderateScore++
			}
			break
		}
	}

	switch {
	case complexScore >= moderateScore && complexScore >= simpleScore:
		return ComplexityComplex
	case moderateScore >= simpleScore:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

// Recommend maps a complexity tier to an orchestrator variant. The mapping
// is fixed: complex work goes to control, moderate work benefits from
// memory, simple questions take the direct path.
func (a *Analyzer) Recommend(complexity TaskComplexity) OrchestratorType {
	switch complexity {
	case ComplexityComplex:
		return OrchestratorControl
	case ComplexityModerate:
		return OrchestratorMemory
	default:
		return OrchestratorSimple
	}
}

// EstimateProcessingTime returns the complexity-indexed base time scaled by
// input length, capped at twice the base.
func (a *Analyzer) EstimateProcessingTime(complexity TaskComplexity, input string) time.Duration {
	var base time.Duration
	switch complexity {
	case ComplexityComplex:
		base = baseTimeComplex
	case ComplexityModerate:
		base = baseTimeModerate
	default:
		base = baseTimeSimple
	}

	factor := float64(utf8.RuneCountInString(input)) / lengthFactorDivisor
	if factor > lengthFactorCap {
		factor = lengthFactorCap
	}
	return time.Duration(float64(base) * factor)
}

// RequiredCapabilities lists what the request needs: the base chat
// capability, one capability per matched keyword category, and extra
// capabilities for the higher tiers. The order is deterministic.
func (a *Analyzer) RequiredCapabilities(input string, complexity TaskComplexity) []string {
	lower := strings.ToLower(input)
	capabilities := []string{CapabilityBasicChat}

	for _, category := range capabilityCategories {
		for _, kw := range category.keywords {
			if strings.Contains(lower, kw) {
				capabilities = append(capabilities, category.capability)
				break
			}
		}
	}

	switch complexity {
	case ComplexityComplex:
		capabilities = append(capabilities, CapabilityMultiStepProcessing, CapabilityQualityAssurance)
	case ComplexityModerate:
		capabilities = append(capabilities, CapabilityContextAwareness)
	}

	return capabilities
}

// buildReasoning concatenates the complexity rationale and the
// orchestrator-choice rationale.
func buildReasoning(complexity TaskComplexity, orchestrator OrchestratorType) string {
	var reasons []string

	switch complexity {
	case ComplexityComplex:
		reasons = append(reasons, "architecture/design keywords detected, classified as complex")
	case ComplexityModerate:
		reasons = append(reasons, "implementation keywords detected, classified as moderate")
	default:
		reasons = append(reasons, "question form or small request, classified as simple")
	}

	switch orchestrator {
	case OrchestratorControl:
		reasons = append(reasons, "control orchestrator recommended for complex work")
	case OrchestratorMemory:
		reasons = append(reasons, "memory orchestrator recommended to bring in stored context")
	default:
		reasons = append(reasons, "simple orchestrator recommended for a direct answer")
	}

	return strings.Join(reasons, "; ")
}
