package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ollamaClient struct {
	host   string
	model  string
	client *http.Client
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Tools    []ollamaTool        `json:"tools,omitempty"`
}

type ollamaChatMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaToolCall struct {
	Function ollamaCalledFunction `json:"function"`
}

type ollamaCalledFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error"`
}

func NewOllamaClient(opts Options) Client {
	host := strings.TrimRight(opts.OllamaHost, "/")
	if host == "" {
		host = "http://localhost:11434"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &ollamaClient{
		host:  host,
		model: opts.Model,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *ollamaClient) Generate(ctx context.Context, messages []Message) (string, error) {
	payload := ollamaChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   false,
	}

	parsed, err := c.call(ctx, payload)
	if err != nil {
		return "", err
	}

	return parsed.Message.Content, nil
}

func (c *ollamaClient) GenerateWithTools(ctx context.Context, messages []Message, tools []ToolSpec) (Message, error) {
	payload := ollamaChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   false,
		Tools:    toOllamaTools(tools),
	}

	parsed, err := c.call(ctx, payload)
	if err != nil {
		return Message{}, err
	}

	msg := Message{Role: RoleAssistant, Content: parsed.Message.Content}
	for _, call := range parsed.Message.ToolCalls {
		args := string(call.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		// Ollama does not mint call ids, so pair assistant and tool
		// messages with one of our own.
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        uuid.NewString(),
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	return msg, nil
}

func (c *ollamaClient) call(ctx context.Context, payload ollamaChatRequest) (ollamaChatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return ollamaChatResponse{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return ollamaChatResponse{}, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ollamaChatResponse{}, fmt.Errorf("call ollama chat API: %w", err)
	}
	defer resp.Body.Close()

	if err := checkOllamaStatus(resp); err != nil {
		return ollamaChatResponse{}, err
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ollamaChatResponse{}, fmt.Errorf("decode ollama response: %w", err)
	}

	if parsed.Error != "" {
		return ollamaChatResponse{}, fmt.Errorf("ollama chat error: %s", parsed.Error)
	}

	return parsed, nil
}

func (c *ollamaClient) GenerateStream(ctx context.Context, messages []Message, fn func(string) error) error {
	payload := ollamaChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ollama stream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ollama stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call ollama chat API: %w", err)
	}
	defer resp.Body.Close()

	if err := checkOllamaStatus(resp); err != nil {
		return err
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var chunk ollamaChatResponse
		if err := dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode ollama stream response: %w", err)
		}

		if chunk.Error != "" {
			return fmt.Errorf("ollama chat error: %s", chunk.Error)
		}

		if chunk.Message.Content != "" {
			if err := fn(chunk.Message.Content); err != nil {
				return err
			}
		}

		if chunk.Done {
			return nil
		}
	}
}

func checkOllamaStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("read ollama chat error body: %w", readErr)
	}
	if len(data) > 0 {
		return fmt.Errorf("ollama chat API error: %s", string(data))
	}
	return fmt.Errorf("ollama chat API returned status %s", resp.Status)
}

func toOllamaMessages(messages []Message) []ollamaChatMessage {
	if len(messages) == 0 {
		return nil
	}
	converted := make([]ollamaChatMessage, len(messages))
	for i, msg := range messages {
		out := ollamaChatMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			args := json.RawMessage(call.Arguments)
			if !json.Valid(args) {
				args = json.RawMessage("{}")
			}
			out.ToolCalls = append(out.ToolCalls, ollamaToolCall{
				Function: ollamaCalledFunction{
					Name:      call.Name,
					Arguments: args,
				},
			})
		}
		converted[i] = out
	}
	return converted
}

func toOllamaTools(tools []ToolSpec) []ollamaTool {
	if len(tools) == 0 {
		return nil
	}
	converted := make([]ollamaTool, len(tools))
	for i, tool := range tools {
		converted[i] = ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		}
	}
	return converted
}

var (
	_ Client       = (*ollamaClient)(nil)
	_ StreamClient = (*ollamaClient)(nil)
	_ ToolClient   = (*ollamaClient)(nil)
)
