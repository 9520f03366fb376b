package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/skillpath/agent/embeddings"
)

const (
	defaultTopK = 5
	maxTopK     = 20

	// Chunks pulled in through graph expansion inherit a discounted score
	// from the chunk that surfaced them.
	expansionPenalty = 0.8

	// Only the strongest similarity hits are worth expanding.
	expansionSeeds = 3
)

type Engine struct {
	vectors          VectorStore
	graph            GraphStore
	embedder         embeddings.Embedder
	maxContextLength int
	logger           *zap.Logger
}

func NewEngine(vectors VectorStore, graph GraphStore, embedder embeddings.Embedder, maxContextLength int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxContextLength <= 0 {
		maxContextLength = 8000
	}

	return &Engine{
		vectors:          vectors,
		graph:            graph,
		embedder:         embedder,
		maxContextLength: maxContextLength,
		logger:           logger,
	}
}

// Retrieve embeds the query, similarity-searches the chunk store, expands the
// strongest hits through the document graph, and assembles a ranked, budgeted
// context. An empty search result is a valid empty context, not an error.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int, minScore float64) (RetrievedContext, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return RetrievedContext{}, fmt.Errorf("query cannot be empty")
	}
	if e.embedder == nil {
		return RetrievedContext{}, fmt.Errorf("embedder is not configured")
	}
	if e.vectors == nil {
		return RetrievedContext{}, fmt.Errorf("vector store is not configured")
	}

	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return RetrievedContext{}, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return RetrievedContext{}, fmt.Errorf("embedder returned no vectors")
	}

	chunks, err := e.vectors.SimilarChunks(ctx, vectors[0], topK, minScore)
	if err != nil {
		return RetrievedContext{}, fmt.Errorf("vector search: %w", err)
	}

	if len(chunks) == 0 {
		e.logger.Debug("similarity search returned no chunks", zap.String("query", query))
		return RetrievedContext{}, nil
	}

	chunks = e.expand(ctx, chunks, topK)
	chunks = rank(chunks, minScore)
	chunks = e.budget(chunks)

	return assemble(chunks), nil
}

// expand fetches graph-related chunks for the top few hits. Expansion is
// best-effort: a graph failure degrades to the similarity results alone.
func (e *Engine) expand(ctx context.Context, chunks []Chunk, limit int) []Chunk {
	if e.graph == nil {
		return chunks
	}

	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		seen[chunk.ID] = struct{}{}
	}

	seeds := len(chunks)
	if seeds > expansionSeeds {
		seeds = expansionSeeds
	}

	expanded := chunks
	for i := 0; i < seeds; i++ {
		parent := chunks[i]
		related, err := e.graph.RelatedChunks(ctx, parent.ID, limit)
		if err != nil {
			e.logger.Warn("graph expansion failed", zap.String("chunk", parent.ID), zap.Error(err))
			continue
		}
		for _, rel := range related {
			if _, ok := seen[rel.ID]; ok {
				continue
			}
			seen[rel.ID] = struct{}{}
			rel.Score = parent.Score * expansionPenalty
			expanded = append(expanded, rel)
		}
	}

	return expanded
}

func rank(chunks []Chunk, minScore float64) []Chunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	ranked := chunks[:0]
	for _, chunk := range chunks {
		if chunk.Score < minScore {
			continue
		}
		ranked = append(ranked, chunk)
	}
	return ranked
}

// budget walks the ranked list in score order, including chunks greedily
// until the next one would push the cumulative text length past the limit.
func (e *Engine) budget(chunks []Chunk) []Chunk {
	total := 0
	for i, chunk := range chunks {
		if total+len(chunk.Content) > e.maxContextLength {
			return chunks[:i]
		}
		total += len(chunk.Content)
	}
	return chunks
}

func assemble(chunks []Chunk) RetrievedContext {
	var sb strings.Builder
	seenURLs := make(map[string]struct{}, len(chunks))
	sources := make([]Source, 0, len(chunks))

	for i, chunk := range chunks {
		sb.WriteString(fmt.Sprintf("[%d] %s (%s) score=%.2f\n", i+1, chunk.Title, chunk.URL, chunk.Score))
		sb.WriteString(chunk.Content)
		sb.WriteString("\n\n")

		key := chunk.URL
		if key == "" {
			key = chunk.DocumentID
		}
		if _, ok := seenURLs[key]; ok {
			continue
		}
		seenURLs[key] = struct{}{}
		// Chunks arrive score-sorted, so the first occurrence carries the
		// highest score for its URL.
		sources = append(sources, Source{
			URL:   chunk.URL,
			Title: chunk.Title,
			Label: chunk.SourceLabel,
			Score: chunk.Score,
		})
	}

	return RetrievedContext{
		Chunks:      chunks,
		Sources:     sources,
		ContextText: strings.TrimSpace(sb.String()),
		NumChunks:   len(chunks),
		NumSources:  len(sources),
	}
}
