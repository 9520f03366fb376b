package tools

import (
	"context"

	"github.com/skillpath/agent/retrieval"
)

const KnowledgeSearchName = "knowledge_search"

// KnowledgeSearch delegates to the retrieval engine so the model can pull
// context chunks on demand.
type KnowledgeSearch struct {
	engine   *retrieval.Engine
	minScore float64
}

func NewKnowledgeSearch(engine *retrieval.Engine, minScore float64) *KnowledgeSearch {
	return &KnowledgeSearch{engine: engine, minScore: minScore}
}

func (t *KnowledgeSearch) Name() string { return KnowledgeSearchName }

func (t *KnowledgeSearch) Description() string {
	return "Search the knowledge base for passages relevant to a question. Use for factual questions about the indexed documentation."
}

func (t *KnowledgeSearch) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The question or topic to search for",
			},
			"top_k": map[string]any{
				"type":        "integer",
				"description": "Maximum number of chunks to retrieve (1-20)",
			},
		},
		"required": []string{"query"},
	}
}

type chunkRecord struct {
	Title   string  `json:"title"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

func (t *KnowledgeSearch) Execute(ctx context.Context, rawArgs string) Result {
	args := ParseKnowledgeSearchArgs(rawArgs)

	retrieved, err := t.engine.Retrieve(ctx, args.Query, args.TopK, t.minScore)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	chunks := make([]chunkRecord, 0, len(retrieved.Chunks))
	for _, chunk := range retrieved.Chunks {
		chunks = append(chunks, chunkRecord{
			Title:   chunk.Title,
			URL:     chunk.URL,
			Score:   chunk.Score,
			Content: chunk.Content,
		})
	}

	return Result{Success: true, Data: map[string]any{
		"chunks":      chunks,
		"num_chunks":  retrieved.NumChunks,
		"num_sources": retrieved.NumSources,
	}}
}

var _ Tool = (*KnowledgeSearch)(nil)
