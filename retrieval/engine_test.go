package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

type stubVectorStore struct {
	chunks []Chunk
	err    error
}

var _ VectorStore = (*stubVectorStore)(nil)

func (s *stubVectorStore) SimilarChunks(_ context.Context, _ []float32, _ int, _ float64) ([]Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out, nil
}

type stubGraphStore struct {
	related map[string][]Chunk
	err     error
}

var _ GraphStore = (*stubGraphStore)(nil)

func (s *stubGraphStore) RelatedChunks(_ context.Context, chunkID string, _ int) ([]Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.related[chunkID], nil
}

func chunk(id string, score float64, content string) Chunk {
	return Chunk{
		ID:         id,
		DocumentID: "doc-" + id,
		Title:      "Title " + id,
		URL:        "https://docs.example/" + id,
		Content:    content,
		Score:      score,
	}
}

func newTestEngine(vectors VectorStore, graph GraphStore, maxContextLength int) *Engine {
	return NewEngine(vectors, graph, &stubEmbedder{}, maxContextLength, nil)
}

func TestRetrieveRanksAndAssembles(t *testing.T) {
	store := &stubVectorStore{chunks: []Chunk{
		chunk("low", 0.55, "low text"),
		chunk("high", 0.95, "high text"),
		chunk("mid", 0.80, "mid text"),
	}}
	engine := newTestEngine(store, nil, 8000)

	got, err := engine.Retrieve(context.Background(), "how does indexing work", 5, 0.5)
	require.NoError(t, err)

	require.Equal(t, 3, got.NumChunks)
	assert.Equal(t, "high", got.Chunks[0].ID)
	assert.Equal(t, "mid", got.Chunks[1].ID)
	assert.Equal(t, "low", got.Chunks[2].ID)

	// Headers appear in rank order with 1-based numbering.
	assert.True(t, strings.HasPrefix(got.ContextText, "[1] Title high"))
	assert.Contains(t, got.ContextText, "[2] Title mid")
	assert.Contains(t, got.ContextText, "[3] Title low")
}

func TestRetrieveEmptySearchIsNotAnError(t *testing.T) {
	engine := newTestEngine(&stubVectorStore{}, nil, 8000)

	got, err := engine.Retrieve(context.Background(), "anything", 5, 0.5)
	require.NoError(t, err)

	assert.Zero(t, got.NumChunks)
	assert.Zero(t, got.NumSources)
	assert.Empty(t, got.ContextText)
}

func TestRetrieveEmptyQueryRejected(t *testing.T) {
	engine := newTestEngine(&stubVectorStore{}, nil, 8000)

	_, err := engine.Retrieve(context.Background(), "   ", 5, 0.5)
	assert.Error(t, err)
}

func TestRetrieveExpansionDiscountsAndDeduplicates(t *testing.T) {
	seed := chunk("seed", 0.9, "seed text")
	neighbor := chunk("neighbor", 0, "neighbor text")
	duplicate := chunk("seed", 0, "same id as the seed")

	store := &stubVectorStore{chunks: []Chunk{seed}}
	graph := &stubGraphStore{related: map[string][]Chunk{
		"seed": {neighbor, duplicate},
	}}
	engine := newTestEngine(store, graph, 8000)

	got, err := engine.Retrieve(context.Background(), "question", 5, 0.5)
	require.NoError(t, err)

	require.Equal(t, 2, got.NumChunks)
	assert.Equal(t, "seed", got.Chunks[0].ID)
	assert.Equal(t, "neighbor", got.Chunks[1].ID)
	assert.InDelta(t, 0.9*0.8, got.Chunks[1].Score, 1e-9)
}

func TestRetrieveGraphFailureDegradesToSimilarityOnly(t *testing.T) {
	store := &stubVectorStore{chunks: []Chunk{chunk("a", 0.9, "text a")}}
	graph := &stubGraphStore{err: fmt.Errorf("neo4j unavailable")}
	engine := newTestEngine(store, graph, 8000)

	got, err := engine.Retrieve(context.Background(), "question", 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NumChunks)
}

func TestRetrieveBudgetNeverExceeded(t *testing.T) {
	store := &stubVectorStore{chunks: []Chunk{
		chunk("a", 0.9, strings.Repeat("a", 40)),
		chunk("b", 0.8, strings.Repeat("b", 40)),
		chunk("c", 0.7, strings.Repeat("c", 40)),
	}}
	engine := newTestEngine(store, nil, 100)

	got, err := engine.Retrieve(context.Background(), "question", 5, 0.5)
	require.NoError(t, err)

	// Two chunks fit; the third would push the total past the limit, and a
	// lower-scored chunk never displaces a higher-scored one.
	require.Equal(t, 2, got.NumChunks)
	total := 0
	for _, c := range got.Chunks {
		total += len(c.Content)
	}
	assert.LessOrEqual(t, total, 100)
	assert.Equal(t, "a", got.Chunks[0].ID)
	assert.Equal(t, "b", got.Chunks[1].ID)
}

func TestRetrieveSourcesDeduplicatedByURL(t *testing.T) {
	first := chunk("a", 0.95, "first chunk")
	second := chunk("b", 0.90, "second chunk")
	second.URL = first.URL

	store := &stubVectorStore{chunks: []Chunk{first, second}}
	engine := newTestEngine(store, nil, 8000)

	got, err := engine.Retrieve(context.Background(), "question", 5, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 2, got.NumChunks)
	require.Equal(t, 1, got.NumSources)
	// First occurrence wins, carrying the higher score.
	assert.InDelta(t, 0.95, got.Sources[0].Score, 1e-9)
}

func TestRetrieveMinScoreFiltersAfterExpansion(t *testing.T) {
	store := &stubVectorStore{chunks: []Chunk{chunk("seed", 0.55, "seed text")}}
	graph := &stubGraphStore{related: map[string][]Chunk{
		// Inherited score 0.55*0.8 = 0.44 falls below the floor.
		"seed": {chunk("weak", 0, "weak text")},
	}}
	engine := newTestEngine(store, graph, 8000)

	got, err := engine.Retrieve(context.Background(), "question", 5, 0.5)
	require.NoError(t, err)

	require.Equal(t, 1, got.NumChunks)
	assert.Equal(t, "seed", got.Chunks[0].ID)
}

func TestRetrieveEmbedFailure(t *testing.T) {
	engine := NewEngine(&stubVectorStore{}, nil, &stubEmbedder{err: fmt.Errorf("model not loaded")}, 8000, nil)

	_, err := engine.Retrieve(context.Background(), "question", 5, 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
}
