package tools

import (
	"context"

	"github.com/skillpath/agent/catalog"
)

const CourseSearchName = "course_search"

// CourseSearch exposes the course catalog to the model.
type CourseSearch struct {
	store catalog.Store
}

func NewCourseSearch(store catalog.Store) *CourseSearch {
	return &CourseSearch{store: store}
}

func (t *CourseSearch) Name() string { return CourseSearchName }

func (t *CourseSearch) Description() string {
	return "Search the course catalog for relevant courses. Use when the user asks about learning something, courses, or training."
}

func (t *CourseSearch) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What the user wants to learn",
			},
			"category": map[string]any{
				"type":        "string",
				"description": "Optional category filter",
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Optional level filter: beginner, intermediate, advanced",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of courses to return (1-20)",
			},
		},
		"required": []string{"query"},
	}
}

type courseRecord struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Level       string  `json:"level,omitempty"`
	URL         string  `json:"url,omitempty"`
	Score       float64 `json:"score"`
}

func (t *CourseSearch) Execute(ctx context.Context, rawArgs string) Result {
	args := ParseCourseSearchArgs(rawArgs)

	courses, err := t.store.Search(ctx, args.Query, catalog.Filters{
		Category: args.Category,
		Level:    args.Level,
	}, args.Limit)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	records := make([]courseRecord, 0, len(courses))
	for _, course := range courses {
		records = append(records, courseRecord{
			Title:       course.Title,
			Description: course.Description,
			Category:    course.Category,
			Level:       course.Level,
			URL:         course.URL,
			Score:       course.Score,
		})
	}

	return Result{Success: true, Data: map[string]any{
		"courses": records,
		"count":   len(records),
	}}
}

var _ Tool = (*CourseSearch)(nil)
