package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, StrategyHybrid, cfg.Strategy)
	assert.Equal(t, 5, cfg.MaxToolCalls)
	assert.Equal(t, 0.6, cfg.ConfidenceThreshold)
	assert.True(t, cfg.FallbackToRAG)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 0.5, cfg.MinScore)
	assert.Equal(t, 8000, cfg.MaxContextLength)
	assert.Equal(t, 60*time.Second, cfg.ProviderTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AGENT_STRATEGY", StrategyLLMDriven)
	t.Setenv("MAX_TOOL_CALLS", "3")
	t.Setenv("RETRIEVAL_MIN_SCORE", "0.7")
	t.Setenv("PROVIDER_TIMEOUT", "90s")
	t.Setenv("FALLBACK_TO_RAG", "false")

	cfg := Load()

	assert.Equal(t, StrategyLLMDriven, cfg.Strategy)
	assert.Equal(t, 3, cfg.MaxToolCalls)
	assert.Equal(t, 0.7, cfg.MinScore)
	assert.Equal(t, 90*time.Second, cfg.ProviderTimeout)
	assert.False(t, cfg.FallbackToRAG)
}

func TestLoadUnparseableOverridesFallBack(t *testing.T) {
	t.Setenv("MAX_TOOL_CALLS", "many")
	t.Setenv("PROVIDER_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 5, cfg.MaxToolCalls)
	assert.Equal(t, 60*time.Second, cfg.ProviderTimeout)
}

func TestValidate(t *testing.T) {
	base := Load()
	require.NoError(t, base.Validate())

	openAIWithoutKey := base
	openAIWithoutKey.LLM.Provider = ProviderOpenAI
	openAIWithoutKey.OpenAIAPIKey = ""
	assert.Error(t, openAIWithoutKey.Validate())

	openAIWithKey := openAIWithoutKey
	openAIWithKey.OpenAIAPIKey = "sk-test"
	assert.NoError(t, openAIWithKey.Validate())

	unknownProvider := base
	unknownProvider.LLM.Provider = "bedrock"
	assert.Error(t, unknownProvider.Validate())

	unknownStrategy := base
	unknownStrategy.Strategy = "adaptive"
	assert.Error(t, unknownStrategy.Validate())
}
