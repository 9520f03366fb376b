// Package catalog provides keyword and vector lookup over the course catalog.
package catalog

import (
	"context"

	"go.uber.org/zap"
)

// Course is one catalog record returned from a search, ranked by Score.
type Course struct {
	ID          string
	Title       string
	Description string
	Category    string
	Level       string
	URL         string
	Score       float64
}

type Filters struct {
	Category string
	Level    string
}

type Store interface {
	Search(ctx context.Context, query string, filters Filters, limit int) ([]Course, error)
}

func nopLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
