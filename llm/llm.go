// Package llm abstracts the completion providers: plain generation,
// incremental streaming, and tool-aware generation where the model may
// request named tool invocations.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/skillpath/agent/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a structured request from the model to invoke a named tool.
// Arguments holds the raw JSON exactly as the provider returned it; parsing
// and validation happen at the orchestrator boundary.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one entry in a conversation transcript. ToolCalls is set only on
// assistant messages; ToolCallID and Name only on tool messages.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolSpec describes one callable tool to the provider. Parameters is a JSON
// schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// StreamClient is implemented by providers that can deliver the completion
// as incremental text fragments. The callback is invoked once per fragment
// in arrival order; returning an error stops the stream.
type StreamClient interface {
	GenerateStream(ctx context.Context, messages []Message, fn func(string) error) error
}

// ToolClient is implemented by providers that support tool calling. The
// returned message carries either content, tool call requests, or both.
type ToolClient interface {
	GenerateWithTools(ctx context.Context, messages []Message, tools []ToolSpec) (Message, error)
}

type Options struct {
	Provider string
	Model    string
	Timeout  time.Duration

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		Timeout:       cfg.ProviderTimeout,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
