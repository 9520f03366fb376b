package strategy

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skillpath/agent/catalog"
	"github.com/skillpath/agent/classify"
	"github.com/skillpath/agent/llm"
	"github.com/skillpath/agent/retrieval"
	"github.com/skillpath/agent/settings"
	"github.com/skillpath/agent/stream"
)

const ragSystemPrompt = "You are a helpful learning assistant. Use the supplied context to support your answer, citing source numbers in brackets (e.g., [1]) when you draw from it. If the context is missing or not useful, rely on your general knowledge and note any uncertainty. Always answer the question first."

// ragAnswer is the plain retrieve-then-generate path and the terminal
// fallback for every route. A retrieval failure degrades to a no-context
// answer rather than failing the request.
func (d *Dispatcher) ragAnswer(
	ctx context.Context,
	req Request,
	cfg settings.Settings,
	classification classify.Result,
	emit func(stream.Event) error,
) (Response, error) {
	var retrieved retrieval.RetrievedContext
	if d.engine != nil {
		result, err := d.engine.Retrieve(ctx, req.Question, req.TopK, cfg.MinScore)
		if err != nil {
			d.logger.Warn("retrieval failed, answering without context", zap.Error(err))
		} else {
			retrieved = result
		}
	}

	if retrieved.NumChunks == 0 {
		d.logger.Debug("no context available, answering from model knowledge alone")
	}

	d.emitEvent(emit, stream.Event{Kind: stream.KindContext, Payload: map[string]any{
		"num_chunks":  retrieved.NumChunks,
		"num_sources": retrieved.NumSources,
	}})

	prompt := formatUserPrompt(req.Question, retrieved.ContextText, nil)
	answer, err := d.generate(ctx, cfg, prompt, emit)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Answer:  answer,
		Sources: retrieved.Sources,
		Metadata: Metadata{
			QueryType:  string(classification.Type),
			Confidence: classification.Confidence,
			NumChunks:  retrieved.NumChunks,
			NumSources: retrieved.NumSources,
		},
	}, nil
}

// mixedAnswer serves queries with both learning and general intent: the
// course catalog and the knowledge base are fetched concurrently, neither
// result depending on the other, and merged into one prompt. A failing
// branch degrades to its empty result instead of failing the join.
func (d *Dispatcher) mixedAnswer(
	ctx context.Context,
	req Request,
	cfg settings.Settings,
	classification classify.Result,
	emit func(stream.Event) error,
) (Response, error) {
	var (
		courses   []catalog.Course
		retrieved retrieval.RetrievedContext
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if d.courses == nil {
			return nil
		}
		found, err := d.courses.Search(gctx, req.Question, catalog.Filters{}, req.TopK)
		if err != nil {
			d.logger.Warn("course search branch failed", zap.Error(err))
			return nil
		}
		courses = found
		return nil
	})
	g.Go(func() error {
		if d.engine == nil {
			return nil
		}
		result, err := d.engine.Retrieve(gctx, req.Question, req.TopK, cfg.MinScore)
		if err != nil {
			d.logger.Warn("knowledge branch failed", zap.Error(err))
			return nil
		}
		retrieved = result
		return nil
	})
	_ = g.Wait()

	d.emitEvent(emit, stream.Event{Kind: stream.KindContext, Payload: map[string]any{
		"num_chunks":  retrieved.NumChunks,
		"num_sources": retrieved.NumSources,
		"num_courses": len(courses),
	}})

	prompt := formatUserPrompt(req.Question, retrieved.ContextText, courses)
	answer, err := d.generate(ctx, cfg, prompt, emit)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Answer:  answer,
		Sources: retrieved.Sources,
		Metadata: Metadata{
			QueryType:  string(classification.Type),
			Confidence: classification.Confidence,
			NumChunks:  retrieved.NumChunks,
			NumSources: retrieved.NumSources,
		},
	}, nil
}

// generate runs the final completion, streaming through the tag-splitting
// parser when the caller wants events and the provider supports it.
func (d *Dispatcher) generate(ctx context.Context, cfg settings.Settings, prompt string, emit func(stream.Event) error) (string, error) {
	if d.llm == nil {
		return "", fmt.Errorf("llm client is not configured")
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = ragSystemPrompt
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}

	if emit != nil {
		if streamer, ok := d.llm.(llm.StreamClient); ok {
			var responseText strings.Builder
			parser := stream.NewParser(func(ev stream.Event) error {
				if ev.Kind == stream.KindResponse {
					responseText.WriteString(ev.Content)
				}
				return emit(ev)
			})

			if err := streamer.GenerateStream(ctx, messages, parser.Feed); err != nil {
				return "", fmt.Errorf("llm stream generate: %w", err)
			}
			if err := parser.Close(); err != nil {
				return "", err
			}
			return stream.StripThinking(responseText.String()), nil
		}
	}

	generated, err := d.llm.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("llm generate: %w", err)
	}

	answer := stream.StripThinking(generated)
	if emit != nil && answer != "" {
		if err := emit(stream.Event{Kind: stream.KindResponse, Content: answer}); err != nil {
			return "", err
		}
	}
	return answer, nil
}

func formatUserPrompt(question, contextText string, courses []catalog.Course) string {
	var sb strings.Builder
	sb.WriteString("Question:\n")
	sb.WriteString(question)

	if strings.TrimSpace(contextText) != "" {
		sb.WriteString("\n\nContext (may be incomplete):\n")
		sb.WriteString(contextText)
	}

	if len(courses) > 0 {
		sb.WriteString("\n\nRelevant courses:\n")
		for i, course := range courses {
			sb.WriteString(fmt.Sprintf("%d. %s", i+1, course.Title))
			if course.Level != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", course.Level))
			}
			if course.URL != "" {
				sb.WriteString(" - " + course.URL)
			}
			sb.WriteString("\n")
			if course.Description != "" {
				sb.WriteString("   " + course.Description + "\n")
			}
		}
	}

	sb.WriteString("\nProvide your answer in markdown. Begin with the direct answer. If you reference the context, cite the relevant source numbers.")
	return sb.String()
}
