// Package retrieval turns a question into a ranked, budgeted set of context
// chunks and a deduplicated source list.
package retrieval

// Chunk is one scored, attributable unit of retrieved text.
type Chunk struct {
	ID          string
	DocumentID  string
	Index       int
	Title       string
	URL         string
	SourceLabel string
	Content     string
	Score       float64
}

// Source identifies one document behind the retrieved chunks, deduplicated
// by URL.
type Source struct {
	URL   string
	Title string
	Label string
	Score float64
}

// RetrievedContext is the assembled result of one retrieval call. It is not
// mutated after Retrieve returns.
type RetrievedContext struct {
	Chunks      []Chunk
	Sources     []Source
	ContextText string
	NumChunks   int
	NumSources  int
}
