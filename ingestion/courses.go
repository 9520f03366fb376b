package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// LoadCoursesCSV loads a course catalog file into the courses table. The
// expected header is title,description,category,level,url; extra columns are
// ignored. Each course is embedded over its title and description.
func (s *Service) LoadCoursesCSV(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open course file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("parse course csv: %w", err)
	}
	if len(records) < 2 {
		s.logger.Info("course file has no rows", zap.String("path", path))
		return nil
	}

	columns := indexColumns(records[0])
	if _, ok := columns["title"]; !ok {
		return fmt.Errorf("course csv missing title column")
	}

	loaded := 0
	for _, row := range records[1:] {
		title := field(row, columns, "title")
		if title == "" {
			continue
		}
		description := field(row, columns, "description")
		category := field(row, columns, "category")
		level := field(row, columns, "level")
		url := field(row, columns, "url")

		vectors, err := s.embedder.Embed(ctx, []string{title + "\n" + description})
		if err != nil {
			return fmt.Errorf("embed course %q: %w", title, err)
		}
		if len(vectors) == 0 {
			return fmt.Errorf("embedder returned no vectors for course %q", title)
		}

		if _, err := s.pool.Exec(ctx, `
			INSERT INTO courses (id, title, description, category, level, url, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		`, uuid.New(), title, description, category, level, url, pgvector.NewVector(vectors[0])); err != nil {
			return fmt.Errorf("insert course %q: %w", title, err)
		}
		loaded++
	}

	s.logger.Info("loaded courses", zap.String("path", path), zap.Int("count", loaded))
	return nil
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return columns
}

func field(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
