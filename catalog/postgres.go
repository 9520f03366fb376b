package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/skillpath/agent/embeddings"
)

const keywordFallbackScore = 0.5

type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	logger   *zap.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, embedder embeddings.Embedder, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		pool:     pool,
		embedder: embedder,
		logger:   nopLogger(logger),
	}
}

// Search ranks courses by vector similarity when an embedder is available,
// degrading to a keyword match when it is not or when embedding fails.
func (s *PostgresStore) Search(ctx context.Context, query string, filters Filters, limit int) ([]Course, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 5
	}

	if s.embedder != nil {
		vectors, err := s.embedder.Embed(ctx, []string{query})
		if err == nil && len(vectors) > 0 {
			return s.vectorSearch(ctx, vectors[0], filters, limit)
		}
		if err != nil {
			s.logger.Warn("course embedding failed, using keyword search", zap.Error(err))
		}
	}

	return s.keywordSearch(ctx, query, filters, limit)
}

func (s *PostgresStore) vectorSearch(ctx context.Context, embedding []float32, filters Filters, limit int) ([]Course, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, title, COALESCE(description, ''), COALESCE(category, ''),
               COALESCE(level, ''), COALESCE(url, ''),
               (embedding <-> $1::vector) AS distance
        FROM courses
        WHERE embedding IS NOT NULL
          AND ($2 = '' OR category ILIKE $2)
          AND ($3 = '' OR level ILIKE $3)
        ORDER BY embedding <-> $1::vector
        LIMIT $4
    `, pgvector.NewVector(embedding), filters.Category, filters.Level, limit)
	if err != nil {
		return nil, fmt.Errorf("query courses by vector: %w", err)
	}
	defer rows.Close()

	courses := make([]Course, 0, limit)
	for rows.Next() {
		var course Course
		var distance float64
		if err := rows.Scan(&course.ID, &course.Title, &course.Description, &course.Category, &course.Level, &course.URL, &distance); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		course.Score = 1 / (1 + distance)
		courses = append(courses, course)
	}

	return courses, rows.Err()
}

func (s *PostgresStore) keywordSearch(ctx context.Context, query string, filters Filters, limit int) ([]Course, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, title, COALESCE(description, ''), COALESCE(category, ''),
               COALESCE(level, ''), COALESCE(url, '')
        FROM courses
        WHERE (title ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
          AND ($2 = '' OR category ILIKE $2)
          AND ($3 = '' OR level ILIKE $3)
        ORDER BY title
        LIMIT $4
    `, query, filters.Category, filters.Level, limit)
	if err != nil {
		return nil, fmt.Errorf("query courses by keyword: %w", err)
	}
	defer rows.Close()

	courses := make([]Course, 0, limit)
	for rows.Next() {
		var course Course
		if err := rows.Scan(&course.ID, &course.Title, &course.Description, &course.Category, &course.Level, &course.URL); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		course.Score = keywordFallbackScore
		courses = append(courses, course)
	}

	return courses, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
