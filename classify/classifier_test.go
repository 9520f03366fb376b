package classify

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillpath/agent/llm"
)

func TestClassifyLearningQuery(t *testing.T) {
	result := Classify("I want to learn machine learning")

	assert.Equal(t, TypeLearning, result.Type)
	assert.GreaterOrEqual(t, result.Confidence, 0.8)
	assert.Contains(t, result.MatchedKeywords, "learn")
	assert.NotEmpty(t, result.MatchedPhrases)
}

func TestClassifyGeneralQuery(t *testing.T) {
	result := Classify("What is the capital of France?")

	assert.Equal(t, TypeGeneral, result.Type)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Empty(t, result.MatchedKeywords)
	assert.Zero(t, result.LearningScore)
}

func TestClassifyMixedQuery(t *testing.T) {
	// Several keywords, no phrase, no pattern: score lands in the mixed band.
	result := Classify("Is this training a useful skill for my certification?")

	assert.Equal(t, TypeMixed, result.Type)
	assert.Len(t, result.MatchedKeywords, 3)
	assert.InDelta(t, 0.3, result.Confidence, 1e-9)
}

func TestClassifySingleKeywordDiscounted(t *testing.T) {
	result := Classify("What does the course cost?")

	assert.Equal(t, TypeMixed, result.Type)
	assert.InDelta(t, 0.1, result.LearningScore, 1e-9)
	assert.InDelta(t, 0.08, result.Confidence, 1e-9)
}

func TestClassifyPhraseForcesLearning(t *testing.T) {
	// A single phrase match routes to learning even below the score gate.
	result := Classify("teach me Go")

	assert.Equal(t, TypeLearning, result.Type)
	assert.Contains(t, result.MatchedPhrases, "teach me")
}

func TestClassifyDeterministic(t *testing.T) {
	queries := []string{
		"I want to learn machine learning",
		"What is the capital of France?",
		"best courses for data engineering",
		"",
	}
	for _, query := range queries {
		first := Classify(query)
		second := Classify(query)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("classification of %q is not deterministic: %+v vs %+v", query, first, second)
		}
	}
}

func TestClassifyConfidenceBounds(t *testing.T) {
	queries := []string{
		"learn learning course tutorial study teach training skill beginner",
		"i want to learn how to learn a learning path with a study plan",
		"nothing relevant here",
	}
	for _, query := range queries {
		result := Classify(query)
		assert.GreaterOrEqual(t, result.Confidence, 0.0, "query %q", query)
		assert.LessOrEqual(t, result.Confidence, 1.0, "query %q", query)
		assert.LessOrEqual(t, result.LearningScore, 1.0, "query %q", query)
	}
}

type scriptedLLM struct {
	reply string
	err   error
	calls int
}

var _ llm.Client = (*scriptedLLM)(nil)

func (s *scriptedLLM) Generate(_ context.Context, _ []llm.Message) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestWithAdvisorAgreementRaisesConfidence(t *testing.T) {
	client := &scriptedLLM{reply: "learning"}

	// Heuristic alone gives learning at 0.6 for this query.
	result, err := WithAdvisor(context.Background(), client, "teach me Go")
	require.NoError(t, err)

	assert.Equal(t, TypeLearning, result.Type)
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
	assert.Equal(t, 1, client.calls)
}

func TestWithAdvisorDisagreementOverrides(t *testing.T) {
	client := &scriptedLLM{reply: "General.\nThe query asks a factual question."}

	result, err := WithAdvisor(context.Background(), client, "teach me Go")
	require.NoError(t, err)

	assert.Equal(t, TypeGeneral, result.Type)
	assert.Equal(t, 0.7, result.Confidence)
}

func TestWithAdvisorMalformedReplyKeepsHeuristic(t *testing.T) {
	client := &scriptedLLM{reply: "I think this might be about learning, hard to say"}

	heuristic := Classify("teach me Go")
	result, err := WithAdvisor(context.Background(), client, "teach me Go")
	require.NoError(t, err)

	assert.Equal(t, heuristic, result)
}

func TestWithAdvisorProviderFailureReturnsHeuristic(t *testing.T) {
	client := &scriptedLLM{err: fmt.Errorf("provider unreachable")}

	heuristic := Classify("teach me Go")
	result, err := WithAdvisor(context.Background(), client, "teach me Go")

	require.Error(t, err)
	assert.Equal(t, heuristic, result)
}

func TestWithAdvisorNilClient(t *testing.T) {
	result, err := WithAdvisor(context.Background(), nil, "teach me Go")
	require.NoError(t, err)
	assert.Equal(t, Classify("teach me Go"), result)
}
