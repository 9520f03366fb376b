package ingestion

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphDocument mirrors one ingested document in the chunk-adjacency graph.
type GraphDocument struct {
	ID          string
	Path        string
	URL         string
	Title       string
	SourceLabel string
	SHA         string
	Chunks      []GraphChunk
}

type GraphChunk struct {
	ID    string
	Index int
	Text  string
}

// SyncDocument writes the document node, its chunk nodes with HAS_CHUNK
// edges, and NEXT_CHUNK edges chaining chunks in ordinal order.
func SyncDocument(ctx context.Context, driver neo4j.DriverWithContext, doc GraphDocument) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (d:Document {id: $id})
			SET d.path = $path,
			    d.url = $url,
			    d.title = $title,
			    d.sourceLabel = $sourceLabel,
			    d.sha256 = $sha
		`, map[string]any{
			"id":          doc.ID,
			"path":        doc.Path,
			"url":         doc.URL,
			"title":       doc.Title,
			"sourceLabel": doc.SourceLabel,
			"sha":         doc.SHA,
		}); err != nil {
			return nil, fmt.Errorf("merge document node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[:HAS_CHUNK]->(c:Chunk)
			DETACH DELETE c
		`, map[string]any{"id": doc.ID}); err != nil {
			return nil, fmt.Errorf("clear existing chunk nodes: %w", err)
		}

		for _, chunk := range doc.Chunks {
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {id: $docID})
				MERGE (c:Chunk {id: $chunkID})
				SET c.index = $index,
				    c.text = $text
				MERGE (d)-[:HAS_CHUNK]->(c)
			`, map[string]any{
				"docID":   doc.ID,
				"chunkID": chunk.ID,
				"index":   chunk.Index,
				"text":    chunk.Text,
			}); err != nil {
				return nil, fmt.Errorf("merge chunk node %d: %w", chunk.Index, err)
			}
		}

		for i := 1; i < len(doc.Chunks); i++ {
			if _, err := tx.Run(ctx, `
				MATCH (prev:Chunk {id: $prevID}), (next:Chunk {id: $nextID})
				MERGE (prev)-[:NEXT_CHUNK]->(next)
			`, map[string]any{
				"prevID": doc.Chunks[i-1].ID,
				"nextID": doc.Chunks[i].ID,
			}); err != nil {
				return nil, fmt.Errorf("chain chunk %d: %w", i, err)
			}
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("sync document graph: %w", err)
	}

	return nil
}

// PurgeGraph removes every document and chunk node.
func PurgeGraph(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	queries := []string{
		"MATCH (d:Document) DETACH DELETE d",
		"MATCH (c:Chunk) DETACH DELETE c",
	}

	for _, query := range queries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}

	return nil
}
