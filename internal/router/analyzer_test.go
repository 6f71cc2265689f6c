package router

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyComplexity_KeywordDominance(t *testing.T) {
	a := NewAnalyzer()

	tests := []struct {
		name  string
		input string
		want  TaskComplexity
	}{
		{
			name:  "two complex keywords, nothing else",
			input: "마이크로서비스 아키텍처 검토 부탁합니다",
			want:  ComplexityComplex,
		},
		{
			name:  "implementation request",
			input: "이 함수 구현 좀 부탁, 오류 나는 부분 수정 포함해서 자세하게 부탁합니다",
			want:  ComplexityModerate,
		},
		{
			name:  "short question",
			input: "왜 이 에러가 발생하나요?",
			want:  ComplexitySimple,
		},
		{
			name:  "english architecture prompt",
			input: "please design the deployment architecture and integration strategy for our platform services",
			want:  ComplexityComplex,
		},
		{
			name:  "english debug prompt",
			input: "fix the database error in the server interface code please and thanks",
			want:  ComplexityModerate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ClassifyComplexity(tt.input))
		})
	}
}

func TestClassifyComplexity_TieFavorsComplex(t *testing.T) {
	a := NewAnalyzer()

	// One complex keyword and one moderate keyword, long enough to avoid
	// the short-input bonus: the tie resolves upward.
	input := "시스템 컴포넌트의 함수 호출 흐름을 검토하고 정리해서 문서로 남기고 싶습니다"
	assert.Equal(t, ComplexityComplex, a.ClassifyComplexity(input))
}

func TestClassifyComplexity_LongInputLeansComplex(t *testing.T) {
	a := NewAnalyzer()

	// No keywords at all, but more than 100 characters.
	input := strings.Repeat("가나다라마바사아자차 ", 11)
	assert.Equal(t, ComplexityComplex, a.ClassifyComplexity(input))
}

func TestClassifyComplexity_CommandPhraseBoosts(t *testing.T) {
	a := NewAnalyzer()

	// Imperative with an existing complex hit boosts complex.
	assert.Equal(t, ComplexityComplex, a.ClassifyComplexity("결제 시스템 설계해줘"))
	// Imperative alone lands in moderate.
	assert.Equal(t, ComplexityModerate, a.ClassifyComplexity("로그인 폼 만들어줘 지금 바로 부탁해요"))
}

func TestRecommend_FixedMapping(t *testing.T) {
	a := NewAnalyzer()

	assert.Equal(t, OrchestratorControl, a.Recommend(ComplexityComplex))
	assert.Equal(t, OrchestratorMemory, a.Recommend(ComplexityModerate))
	assert.Equal(t, OrchestratorSimple, a.Recommend(ComplexitySimple))
}

func TestEstimateProcessingTime(t *testing.T) {
	a := NewAnalyzer()

	// 50 runes exactly: factor 1.0.
	fifty := strings.Repeat("a", 50)
	assert.Equal(t, 15*time.Second, a.EstimateProcessingTime(ComplexityModerate, fifty))

	// Factor is capped at 2.0 no matter how long the input gets.
	long := strings.Repeat("a", 500)
	assert.Equal(t, 90*time.Second, a.EstimateProcessingTime(ComplexityComplex, long))

	// 25 runes: factor 0.5.
	half := strings.Repeat("a", 25)
	assert.Equal(t, 2500*time.Millisecond, a.EstimateProcessingTime(ComplexitySimple, half))
}

func TestRequiredCapabilities(t *testing.T) {
	a := NewAnalyzer()

	caps := a.RequiredCapabilities("이전에 했던 코드 구현 계획 알려줘", ComplexityComplex)
	assert.Contains(t, caps, CapabilityBasicChat)
	assert.Contains(t, caps, CapabilityMemorySearch)
	assert.Contains(t, caps, CapabilityCodeGeneration)
	assert.Contains(t, caps, CapabilityPlanning)
	assert.Contains(t, caps, CapabilityMultiStepProcessing)
	assert.Contains(t, caps, CapabilityQualityAssurance)

	// Moderate adds context awareness instead.
	caps = a.RequiredCapabilities("짧은 질문", ComplexityModerate)
	assert.Equal(t, []string{CapabilityBasicChat, CapabilityContextAwareness}, caps)

	// Simple stays at the base capability.
	caps = a.RequiredCapabilities("짧은 질문", ComplexitySimple)
	assert.Equal(t, []string{CapabilityBasicChat}, caps)

	// Deterministic order across calls.
	first := a.RequiredCapabilities("이전 코드 계획 왜 검색", ComplexityComplex)
	second := a.RequiredCapabilities("이전 코드 계획 왜 검색", ComplexityComplex)
	assert.Equal(t, first, second)
}

func TestAnalyze_KoreanScenarios(t *testing.T) {
	a := NewAnalyzer()

	// Short question with a simple-indicator keyword.
	analysis := a.Analyze("왜 이 에러가 발생하나요?")
	assert.Equal(t, ComplexitySimple, analysis.Complexity)
	assert.Equal(t, OrchestratorSimple, analysis.RecommendedOrchestrator)
	assert.Equal(t, 0.8, analysis.Confidence)
	assert.NotEmpty(t, analysis.Reasoning)

	// Architecture design request with complex-indicator keywords.
	input := "마이크로서비스 아키텍처 설계"
	analysis = a.Analyze(input)
	assert.Equal(t, ComplexityComplex, analysis.Complexity)
	assert.Equal(t, OrchestratorControl, analysis.RecommendedOrchestrator)

	// estimated_time = 45s × min(len/50, 2.0)
	factor := float64(len([]rune(input))) / 50.0
	want := time.Duration(float64(45*time.Second) * factor)
	assert.Equal(t, want, analysis.EstimatedTime)
}

func TestAnalyze_ReasoningMentionsBothChoices(t *testing.T) {
	a := NewAnalyzer()

	analysis := a.Analyze("시스템 아키텍처 설계 부탁합니다")
	assert.Contains(t, analysis.Reasoning, "complex")
	assert.Contains(t, analysis.Reasoning, "control")
	assert.Contains(t, analysis.Reasoning, "; ")
}

func TestTaskComplexity_Validation(t *testing.T) {
	assert.True(t, ComplexitySimple.IsValid())
	assert.True(t, ComplexityComplex.IsValid())
	assert.False(t, TaskComplexity("epic").IsValid())
	assert.Equal(t, "moderate", ComplexityModerate.String())
}

func TestOrchestratorType_Validation(t *testing.T) {
	for _, o := range AllOrchestratorTypes() {
		assert.True(t, o.IsValid())
	}
	assert.False(t, OrchestratorType("swarm").IsValid())
}
