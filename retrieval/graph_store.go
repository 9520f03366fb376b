package retrieval

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphStore looks up chunks topologically related to a given chunk: siblings
// within the same parent document, nearest by ordinal distance first.
type GraphStore interface {
	RelatedChunks(ctx context.Context, chunkID string, limit int) ([]Chunk, error)
}

type Neo4jGraphStore struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraphStore(driver neo4j.DriverWithContext) *Neo4jGraphStore {
	return &Neo4jGraphStore{driver: driver}
}

func (s *Neo4jGraphStore) RelatedChunks(ctx context.Context, chunkID string, limit int) ([]Chunk, error) {
	if s.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if chunkID == "" {
		return nil, fmt.Errorf("chunk id is empty")
	}
	if limit <= 0 {
		limit = 5
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (d:Document)-[:HAS_CHUNK]->(origin:Chunk {id: $id})
		MATCH (d)-[:HAS_CHUNK]->(related:Chunk)
		WHERE related.id <> origin.id
		RETURN related.id AS id,
		       d.id AS documentId,
		       related.index AS index,
		       d.title AS title,
		       coalesce(d.url, '') AS url,
		       coalesce(d.sourceLabel, '') AS sourceLabel,
		       related.text AS content
		ORDER BY abs(related.index - origin.index)
		LIMIT $limit
	`, map[string]any{"id": chunkID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("run neo4j related chunks query: %w", err)
	}

	chunks := make([]Chunk, 0, limit)
	for result.Next(ctx) {
		record := result.Record()
		chunk := Chunk{
			ID:          stringValue(record, "id"),
			DocumentID:  stringValue(record, "documentId"),
			Index:       intValue(record, "index"),
			Title:       stringValue(record, "title"),
			URL:         stringValue(record, "url"),
			SourceLabel: stringValue(record, "sourceLabel"),
			Content:     stringValue(record, "content"),
		}
		if chunk.ID == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j related chunks result error: %w", err)
	}

	return chunks, nil
}

func stringValue(record *neo4j.Record, key string) string {
	value, _ := record.Get(key)
	s, _ := value.(string)
	return s
}

func intValue(record *neo4j.Record, key string) int {
	value, _ := record.Get(key)
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

var _ GraphStore = (*Neo4jGraphStore)(nil)
