package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/skillpath/agent/database"
	"github.com/skillpath/agent/embeddings"
)

type Service struct {
	pool      *pgxpool.Pool
	driver    neo4j.DriverWithContext
	embedder  embeddings.Embedder
	logger    *zap.Logger
	dimension int
}

func NewService(pool *pgxpool.Pool, driver neo4j.DriverWithContext, embedder embeddings.Embedder, logger *zap.Logger, dimension int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		pool:      pool,
		driver:    driver,
		embedder:  embedder,
		logger:    logger,
		dimension: dimension,
	}
}

// IngestDirectory walks dir and ingests every supported document. Course
// catalog CSV files are loaded into the courses table; markdown and PDF
// files become chunks. Per-file failures are logged and skipped.
func (s *Service) IngestDirectory(ctx context.Context, dir string) error {
	if s.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}
	if err := database.EnsureSchema(ctx, s.pool, s.dimension); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("data directory: %w", err)
	}

	entries := make([]string, 0)
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if DetectFormat(path) != FormatUnknown {
			entries = append(entries, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk data directory: %w", err)
	}

	if len(entries) == 0 {
		s.logger.Info("no ingestible files found", zap.String("dir", dir))
		return nil
	}

	for _, path := range entries {
		var err error
		if DetectFormat(path) == FormatCSV {
			err = s.LoadCoursesCSV(ctx, path)
		} else {
			err = s.ingestFile(ctx, dir, path)
		}
		if err != nil {
			s.logger.Error("ingest failed", zap.String("path", path), zap.Error(err))
		}
	}

	return nil
}

func (s *Service) ingestFile(ctx context.Context, root, path string) (err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	relPath, relErr := filepath.Rel(root, path)
	if relErr != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)

	title, chunks, err := ParseDocument(path, data)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if len(chunks) == 0 {
		s.logger.Debug("skip empty document", zap.String("path", path))
		return nil
	}

	hash := sha256.Sum256(data)
	hashHex := hex.EncodeToString(hash[:])

	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	url := "doc://" + relPath
	sourceLabel := "knowledge-base"

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	docID, changed, err := upsertDocument(ctx, tx, relPath, url, title, sourceLabel, hashHex)
	if err != nil {
		return err
	}

	graphChunks := make([]GraphChunk, 0, len(chunks))

	if changed {
		if _, err = tx.Exec(ctx, "DELETE FROM rag_chunks WHERE document_id = $1", docID); err != nil {
			return fmt.Errorf("clear existing chunks: %w", err)
		}

		for idx, text := range chunks {
			chunkID := uuid.New()
			graphChunks = append(graphChunks, GraphChunk{
				ID:    chunkID.String(),
				Index: idx,
				Text:  text,
			})

			vec := pgvector.NewVector(vectors[idx])
			if _, err = tx.Exec(ctx, `
				INSERT INTO rag_chunks (id, document_id, chunk_index, content, embedding, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			`, chunkID, docID, idx, text, vec); err != nil {
				return fmt.Errorf("insert chunk %d: %w", idx, err)
			}
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return fmt.Errorf("commit transaction: %w", commitErr)
	}

	if len(graphChunks) == 0 {
		s.logger.Debug("no updates required", zap.String("path", relPath))
		return nil
	}

	if s.driver != nil {
		doc := GraphDocument{
			ID:          docID.String(),
			Path:        relPath,
			URL:         url,
			Title:       title,
			SourceLabel: sourceLabel,
			SHA:         hashHex,
			Chunks:      graphChunks,
		}
		if err := SyncDocument(ctx, s.driver, doc); err != nil {
			return fmt.Errorf("sync knowledge graph: %w", err)
		}
	}

	s.logger.Info("ingested document", zap.String("path", relPath), zap.Int("chunks", len(graphChunks)))
	return nil
}

func upsertDocument(ctx context.Context, tx pgx.Tx, path, url, title, sourceLabel, sha string) (uuid.UUID, bool, error) {
	var (
		docID        uuid.UUID
		existingHash string
	)

	err := tx.QueryRow(ctx, "SELECT id, sha256 FROM rag_documents WHERE source_path = $1", path).Scan(&docID, &existingHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			newID := uuid.New()
			_, execErr := tx.Exec(ctx, `
				INSERT INTO rag_documents (id, source_path, url, title, source_label, sha256, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			`, newID, path, url, title, sourceLabel, sha)
			if execErr != nil {
				return uuid.Nil, false, fmt.Errorf("insert document: %w", execErr)
			}
			return newID, true, nil
		}
		return uuid.Nil, false, fmt.Errorf("query document: %w", err)
	}

	if existingHash == sha {
		return docID, false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE rag_documents
		SET url = $2,
		    title = $3,
		    source_label = $4,
		    sha256 = $5,
		    updated_at = NOW()
		WHERE id = $1
	`, docID, url, title, sourceLabel, sha); err != nil {
		return uuid.Nil, false, fmt.Errorf("update document: %w", err)
	}

	return docID, true, nil
}

// Clear removes all ingested data from Postgres and Neo4j.
func (s *Service) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE rag_chunks, rag_documents"); err != nil {
		return fmt.Errorf("truncate chunk tables: %w", err)
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE courses"); err != nil {
		return fmt.Errorf("truncate courses: %w", err)
	}
	if s.driver != nil {
		if err := PurgeGraph(ctx, s.driver); err != nil {
			return fmt.Errorf("purge graph: %w", err)
		}
	}
	return nil
}
