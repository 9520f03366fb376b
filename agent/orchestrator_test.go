package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillpath/agent/llm"
	"github.com/skillpath/agent/stream"
	"github.com/skillpath/agent/tools"
)

// scriptedProvider replays a fixed sequence of tool decisions, then answers
// the synthesis call with a canned completion.
type scriptedProvider struct {
	decisions   []llm.Message
	answer      string
	rounds      int
	transcripts [][]llm.Message
}

var _ Provider = (*scriptedProvider)(nil)

func (p *scriptedProvider) GenerateWithTools(_ context.Context, messages []llm.Message, _ []llm.ToolSpec) (llm.Message, error) {
	p.transcripts = append(p.transcripts, append([]llm.Message(nil), messages...))
	if p.rounds < len(p.decisions) {
		decision := p.decisions[p.rounds]
		p.rounds++
		return decision, nil
	}
	p.rounds++
	return llm.Message{Role: llm.RoleAssistant, Content: "no more tools"}, nil
}

func (p *scriptedProvider) Generate(_ context.Context, _ []llm.Message) (string, error) {
	return p.answer, nil
}

type fakeTool struct {
	name    string
	result  tools.Result
	panics  bool
	gotArgs []string
}

var _ tools.Tool = (*fakeTool)(nil)

func (f *fakeTool) Name() string               { return f.name }
func (f *fakeTool) Description() string        { return "test tool" }
func (f *fakeTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (f *fakeTool) Execute(_ context.Context, rawArgs string) tools.Result {
	f.gotArgs = append(f.gotArgs, rawArgs)
	if f.panics {
		panic("tool exploded")
	}
	return f.result
}

func decision(calls ...llm.ToolCall) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}
}

func TestRunNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{answer: "direct answer"}
	o := NewOrchestrator(provider, nil)

	result, err := o.Run(context.Background(), "question", Options{})
	require.NoError(t, err)

	assert.Equal(t, "direct answer", result.Answer)
	assert.Zero(t, result.Metadata.ToolCallsMade)
	assert.Equal(t, 1, provider.rounds)
}

func TestRunExecutesRequestedTools(t *testing.T) {
	search := &fakeTool{name: "course_search", result: tools.Result{Success: true, Data: "found"}}
	provider := &scriptedProvider{
		decisions: []llm.Message{
			decision(llm.ToolCall{ID: "c1", Name: "course_search", Arguments: `{"query":"go"}`}),
		},
		answer: "synthesized",
	}
	o := NewOrchestrator(provider, nil)

	result, err := o.Run(context.Background(), "question", Options{
		Registry: tools.NewRegistry(search),
	})
	require.NoError(t, err)

	assert.Equal(t, "synthesized", result.Answer)
	assert.Equal(t, 1, result.Metadata.ToolCallsMade)
	assert.Equal(t, []string{"course_search"}, result.Metadata.ToolsUsed)
	assert.Equal(t, 1, result.Metadata.Successes["course_search"])
	assert.Equal(t, []string{`{"query":"go"}`}, search.gotArgs)
}

// The tool results must reach the next decision as paired assistant/tool
// messages in invocation order.
func TestRunTranscriptPairsAssistantAndToolMessages(t *testing.T) {
	search := &fakeTool{name: "knowledge_search", result: tools.Result{Success: true}}
	provider := &scriptedProvider{
		decisions: []llm.Message{
			decision(llm.ToolCall{ID: "k1", Name: "knowledge_search", Arguments: `{}`}),
		},
		answer: "done",
	}
	o := NewOrchestrator(provider, nil)

	_, err := o.Run(context.Background(), "question", Options{
		Registry: tools.NewRegistry(search),
	})
	require.NoError(t, err)

	require.Len(t, provider.transcripts, 2)
	second := provider.transcripts[1]
	require.Len(t, second, 4) // system, user, assistant(tool_calls), tool

	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	require.Len(t, second[2].ToolCalls, 1)
	assert.Equal(t, "knowledge_search", second[2].ToolCalls[0].Name)

	assert.Equal(t, llm.RoleTool, second[3].Role)
	assert.Equal(t, "k1", second[3].ToolCallID)
	assert.Equal(t, "knowledge_search", second[3].Name)
	assert.Contains(t, second[3].Content, `"success":true`)
}

func TestRunBoundedByMaxToolCalls(t *testing.T) {
	search := &fakeTool{name: "course_search", result: tools.Result{Success: true}}

	// The model keeps asking for tools forever; the loop must stop anyway.
	decisions := make([]llm.Message, 10)
	for i := range decisions {
		decisions[i] = decision(llm.ToolCall{ID: fmt.Sprintf("c%d", i), Name: "course_search", Arguments: `{}`})
	}
	provider := &scriptedProvider{decisions: decisions, answer: "bounded"}
	o := NewOrchestrator(provider, nil)

	result, err := o.Run(context.Background(), "question", Options{
		Registry:     tools.NewRegistry(search),
		MaxToolCalls: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Metadata.ToolCallsMade)
	assert.Equal(t, "bounded", result.Answer)
}

func TestRunFailingToolDoesNotAbort(t *testing.T) {
	failing := &fakeTool{name: "course_search", result: tools.Result{Success: false, Error: "catalog offline"}}
	provider := &scriptedProvider{
		decisions: []llm.Message{
			decision(llm.ToolCall{ID: "c1", Name: "course_search", Arguments: `{}`}),
		},
		answer: "answered anyway",
	}
	o := NewOrchestrator(provider, nil)

	result, err := o.Run(context.Background(), "question", Options{
		Registry: tools.NewRegistry(failing),
	})
	require.NoError(t, err)

	assert.Equal(t, "answered anyway", result.Answer)
	assert.Equal(t, 1, result.Metadata.Failures["course_search"])
	assert.Zero(t, result.Metadata.Successes["course_search"])
}

func TestRunPanickingToolRecorded(t *testing.T) {
	exploding := &fakeTool{name: "knowledge_search", panics: true}
	provider := &scriptedProvider{
		decisions: []llm.Message{
			decision(llm.ToolCall{ID: "k1", Name: "knowledge_search", Arguments: `{}`}),
		},
		answer: "survived",
	}
	o := NewOrchestrator(provider, nil)

	result, err := o.Run(context.Background(), "question", Options{
		Registry: tools.NewRegistry(exploding),
	})
	require.NoError(t, err)

	assert.Equal(t, "survived", result.Answer)
	assert.Equal(t, 1, result.Metadata.Failures["knowledge_search"])

	// The failure text reaches the next decision round.
	require.Len(t, provider.transcripts, 2)
	last := provider.transcripts[1]
	assert.Contains(t, last[len(last)-2].Content, "panicked")
}

func TestRunUnknownToolRecordedAsFailure(t *testing.T) {
	provider := &scriptedProvider{
		decisions: []llm.Message{
			decision(llm.ToolCall{ID: "x1", Name: "telemetry_export", Arguments: `{}`}),
		},
		answer: "ok",
	}
	o := NewOrchestrator(provider, nil)

	result, err := o.Run(context.Background(), "question", Options{
		Registry: tools.NewRegistry(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metadata.Failures["telemetry_export"])
}

func TestRunEmitsToolEvents(t *testing.T) {
	search := &fakeTool{name: "course_search", result: tools.Result{Success: true}}
	provider := &scriptedProvider{
		decisions: []llm.Message{
			decision(llm.ToolCall{ID: "c1", Name: "course_search", Arguments: `{}`}),
		},
		answer: "with events",
	}
	o := NewOrchestrator(provider, nil)

	var events []stream.Event
	_, err := o.Run(context.Background(), "question", Options{
		Registry: tools.NewRegistry(search),
		Emit:     func(ev stream.Event) error { events = append(events, ev); return nil },
	})
	require.NoError(t, err)

	kinds := make([]stream.EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []stream.EventKind{stream.KindToolStart, stream.KindToolResult, stream.KindResponse}, kinds)
	assert.Equal(t, "course_search", events[0].Tool)
}

func TestRunProviderErrorPropagates(t *testing.T) {
	o := NewOrchestrator(&failingProvider{}, nil)

	_, err := o.Run(context.Background(), "question", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool decision round 1")
}

type failingProvider struct{}

func (f *failingProvider) GenerateWithTools(context.Context, []llm.Message, []llm.ToolSpec) (llm.Message, error) {
	return llm.Message{}, fmt.Errorf("connection refused")
}

func (f *failingProvider) Generate(context.Context, []llm.Message) (string, error) {
	return "", fmt.Errorf("connection refused")
}
