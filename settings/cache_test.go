package settings

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	loads  atomic.Int64
	values map[string]string
	err    error
}

var _ Loader = (*countingLoader)(nil)

func (l *countingLoader) Load(context.Context) (map[string]string, error) {
	l.loads.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.values, nil
}

func defaults() Settings {
	return Settings{
		Strategy:            "hybrid",
		MaxToolCalls:        5,
		ConfidenceThreshold: 0.6,
		FallbackToRAG:       true,
		TopK:                5,
		MinScore:            0.5,
		MaxContextLength:    8000,
	}
}

func TestCacheLoadsOnce(t *testing.T) {
	loader := &countingLoader{values: map[string]string{"top_k": "9"}}
	cache := NewCache(loader, defaults())

	for i := 0; i < 3; i++ {
		got, err := cache.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 9, got.TopK)
	}
	assert.Equal(t, int64(1), loader.loads.Load())
}

func TestCacheConcurrentGetsSingleFlight(t *testing.T) {
	loader := &countingLoader{values: map[string]string{"strategy": "llm_driven"}}
	cache := NewCache(loader, defaults())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "llm_driven", got.Strategy)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), loader.loads.Load())
}

func TestCacheLoadFailureReturnsDefaultsAndRetries(t *testing.T) {
	loader := &countingLoader{err: fmt.Errorf("database unavailable")}
	cache := NewCache(loader, defaults())

	got, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.Equal(t, defaults(), got)

	// The failure must not poison the cache: the next call loads again.
	loader.err = nil
	loader.values = map[string]string{"max_tool_calls": "2"}

	got, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got.MaxToolCalls)
	assert.Equal(t, int64(2), loader.loads.Load())
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	loader := &countingLoader{values: map[string]string{"min_score": "0.7"}}
	cache := NewCache(loader, defaults())

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	loader.values = map[string]string{"min_score": "0.9"}
	cache.Invalidate()

	got, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.MinScore)
	assert.Equal(t, int64(2), loader.loads.Load())
}

func TestCacheNilLoaderUsesDefaults(t *testing.T) {
	cache := NewCache(nil, defaults())

	got, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaults(), got)
}

func TestApplyOverrides(t *testing.T) {
	got := applyOverrides(defaults(), map[string]string{
		"strategy":             "classification_based",
		"max_tool_calls":       "3",
		"confidence_threshold": "0.75",
		"fallback_to_rag":      "false",
		"system_prompt":        "custom prompt",
		"unknown_key":          "ignored",
	})

	assert.Equal(t, "classification_based", got.Strategy)
	assert.Equal(t, 3, got.MaxToolCalls)
	assert.Equal(t, 0.75, got.ConfidenceThreshold)
	assert.False(t, got.FallbackToRAG)
	assert.Equal(t, "custom prompt", got.SystemPrompt)
	assert.Equal(t, 5, got.TopK)
}

func TestApplyOverridesUnparseableValuesIgnored(t *testing.T) {
	got := applyOverrides(defaults(), map[string]string{
		"max_tool_calls": "many",
		"min_score":      "high",
	})

	assert.Equal(t, defaults(), got)
}
