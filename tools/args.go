package tools

import "encoding/json"

// Per-tool argument variants. Arguments arrive as raw JSON from the model;
// each variant is parsed and validated at the boundary, and malformed JSON
// degrades to the zero variant rather than aborting the run.

type CourseSearchArgs struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Level    string `json:"level"`
	Limit    int    `json:"limit"`
}

func ParseCourseSearchArgs(raw string) CourseSearchArgs {
	var args CourseSearchArgs
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			args = CourseSearchArgs{}
		}
	}
	if args.Limit <= 0 || args.Limit > 20 {
		args.Limit = 5
	}
	return args
}

type KnowledgeSearchArgs struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func ParseKnowledgeSearchArgs(raw string) KnowledgeSearchArgs {
	var args KnowledgeSearchArgs
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			args = KnowledgeSearchArgs{}
		}
	}
	if args.TopK <= 0 || args.TopK > 20 {
		args.TopK = 5
	}
	return args
}
