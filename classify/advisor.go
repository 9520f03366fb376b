package classify

import (
	"context"
	"strings"

	"github.com/skillpath/agent/llm"
)

const advisorPrompt = "Classify the intent of the user query below. Reply with exactly one word: learning, general, or mixed.\n\nQuery: "

// WithAdvisor runs the heuristic classifier and then asks the completion
// provider for a second opinion. Agreement raises confidence by 0.1 (capped
// at 1); disagreement overrides the type with confidence fixed at 0.7. Any
// provider failure or malformed reply leaves the heuristic result untouched;
// the error is returned so the caller can log it.
func WithAdvisor(ctx context.Context, client llm.Client, query string) (Result, error) {
	heuristic := Classify(query)
	if client == nil {
		return heuristic, nil
	}

	reply, err := client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You classify user queries for a learning assistant."},
		{Role: llm.RoleUser, Content: advisorPrompt + query},
	})
	if err != nil {
		return heuristic, err
	}

	advised, ok := parseAdvisorReply(reply)
	if !ok {
		return heuristic, nil
	}

	if advised == heuristic.Type {
		heuristic.Confidence = clamp(heuristic.Confidence + 0.1)
		return heuristic, nil
	}

	heuristic.Type = advised
	heuristic.Confidence = 0.7
	heuristic.Reasoning += "; advisor override"
	return heuristic, nil
}

func parseAdvisorReply(reply string) (Type, bool) {
	token := strings.ToLower(strings.TrimSpace(reply))
	if idx := strings.IndexAny(token, " \t\n.,:;"); idx >= 0 {
		token = token[:idx]
	}

	switch Type(token) {
	case TypeLearning, TypeGeneral, TypeMixed:
		return Type(token), true
	default:
		return "", false
	}
}
