// Package agent runs the bounded tool-calling loop: the model is repeatedly
// offered the tool catalog, requested invocations are executed and fed back
// into the transcript, and a final synthesis call produces the answer.
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/skillpath/agent/llm"
	"github.com/skillpath/agent/stream"
	"github.com/skillpath/agent/tools"
)

const defaultSystemPrompt = "You are a learning assistant. You may call the available tools to look up courses or search the knowledge base before answering. Call tools only when they would improve the answer. When you have enough information, answer directly."

const synthesisInstruction = "Using the tool results above, give the final answer to the original question. Do not mention the tools themselves."

// Provider is the completion capability the orchestrator needs: plain
// generation for synthesis and tool-aware generation for the decision loop.
// Streaming synthesis is used when the provider also implements
// llm.StreamClient.
type Provider interface {
	llm.Client
	llm.ToolClient
}

// Metadata describes the tool activity of one run.
type Metadata struct {
	ToolCallsMade int
	ToolsUsed     []string
	Successes     map[string]int
	Failures      map[string]int
}

type RunResult struct {
	Answer   string
	Metadata Metadata
}

type Options struct {
	Registry     *tools.Registry
	MaxToolCalls int
	SystemPrompt string
	SessionID    string
	// Emit receives stream events when set; synthesis is then streamed
	// through the tag-splitting parser when the provider supports it.
	Emit func(stream.Event) error
}

type Orchestrator struct {
	provider Provider
	logger   *zap.Logger
}

func NewOrchestrator(provider Provider, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{provider: provider, logger: logger}
}

// Run executes up to opts.MaxToolCalls decision round trips, then one
// synthesis call. Failing tools never abort the run; their error text is fed
// back to the model.
func (o *Orchestrator) Run(ctx context.Context, query string, opts Options) (RunResult, error) {
	if o.provider == nil {
		return RunResult{}, fmt.Errorf("provider is not configured")
	}
	if opts.Registry == nil {
		opts.Registry = tools.NewRegistry()
	}
	if opts.MaxToolCalls <= 0 {
		opts.MaxToolCalls = 5
	}

	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	transcript := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: query},
	}

	meta := Metadata{
		Successes: make(map[string]int),
		Failures:  make(map[string]int),
	}
	specs := opts.Registry.Specs()

	for round := 0; round < opts.MaxToolCalls; round++ {
		decision, err := o.provider.GenerateWithTools(ctx, transcript, specs)
		if err != nil {
			return RunResult{}, fmt.Errorf("tool decision round %d: %w", round+1, err)
		}

		if len(decision.ToolCalls) == 0 {
			break
		}

		for _, call := range decision.ToolCalls {
			result := o.executeCall(ctx, opts, call, &meta)

			transcript = append(transcript,
				llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}},
				llm.Message{
					Role:       llm.RoleTool,
					ToolCallID: call.ID,
					Name:       call.Name,
					Content:    result.Format(),
				},
			)
		}
	}

	transcript = append(transcript, llm.Message{Role: llm.RoleUser, Content: synthesisInstruction})

	answer, err := o.synthesize(ctx, transcript, opts.Emit)
	if err != nil {
		return RunResult{}, err
	}

	return RunResult{Answer: answer, Metadata: meta}, nil
}

// executeCall runs one requested invocation, converting every failure mode
// (unknown tool, panic, execution error) into a failed result.
func (o *Orchestrator) executeCall(ctx context.Context, opts Options, call llm.ToolCall, meta *Metadata) (result tools.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("tool panicked", zap.String("tool", call.Name), zap.Any("panic", r))
			result = tools.Result{Success: false, Error: fmt.Sprintf("tool %s panicked: %v", call.Name, r)}
			o.record(opts, call, result, meta)
		}
	}()

	tool, ok := opts.Registry.Lookup(call.Name)
	if !ok {
		result = tools.Result{Success: false, Error: fmt.Sprintf("unknown tool: %s", call.Name)}
		o.record(opts, call, result, meta)
		return result
	}

	if opts.Emit != nil {
		if err := opts.Emit(stream.Event{Kind: stream.KindToolStart, Tool: call.Name}); err != nil {
			o.logger.Warn("emit tool_start failed", zap.Error(err))
		}
	}

	result = tool.Execute(ctx, call.Arguments)
	o.record(opts, call, result, meta)
	return result
}

func (o *Orchestrator) record(opts Options, call llm.ToolCall, result tools.Result, meta *Metadata) {
	meta.ToolCallsMade++
	if !contains(meta.ToolsUsed, call.Name) {
		meta.ToolsUsed = append(meta.ToolsUsed, call.Name)
	}
	if result.Success {
		meta.Successes[call.Name]++
	} else {
		meta.Failures[call.Name]++
		o.logger.Warn("tool call failed",
			zap.String("tool", call.Name),
			zap.String("error", result.Error))
	}

	if opts.Emit != nil {
		if err := opts.Emit(stream.Event{Kind: stream.KindToolResult, Tool: call.Name, Payload: result}); err != nil {
			o.logger.Warn("emit tool_result failed", zap.Error(err))
		}
	}
}

// synthesize issues the final completion. With an emit callback and a
// streaming provider, fragments pass through the tag-splitting parser so
// thinking spans never reach the response channel.
func (o *Orchestrator) synthesize(ctx context.Context, transcript []llm.Message, emit func(stream.Event) error) (string, error) {
	if emit != nil {
		if streamer, ok := o.provider.(llm.StreamClient); ok {
			var responseText strings.Builder
			parser := stream.NewParser(func(ev stream.Event) error {
				if ev.Kind == stream.KindResponse {
					responseText.WriteString(ev.Content)
				}
				return emit(ev)
			})

			if err := streamer.GenerateStream(ctx, transcript, parser.Feed); err != nil {
				return "", fmt.Errorf("stream synthesis: %w", err)
			}
			if err := parser.Close(); err != nil {
				return "", err
			}

			return stream.StripThinking(responseText.String()), nil
		}
	}

	generated, err := o.provider.Generate(ctx, transcript)
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}

	answer := stream.StripThinking(generated)
	if emit != nil && answer != "" {
		if err := emit(stream.Event{Kind: stream.KindResponse, Content: answer}); err != nil {
			return "", err
		}
	}
	return answer, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
