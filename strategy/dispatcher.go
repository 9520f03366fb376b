// Package strategy selects a processing route per query: let the model drive
// tool use, follow the classifier, or blend both, always with a plain
// retrieve-then-generate fallback.
package strategy

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/skillpath/agent/agent"
	"github.com/skillpath/agent/catalog"
	"github.com/skillpath/agent/classify"
	"github.com/skillpath/agent/config"
	"github.com/skillpath/agent/llm"
	"github.com/skillpath/agent/retrieval"
	"github.com/skillpath/agent/settings"
	"github.com/skillpath/agent/stream"
	"github.com/skillpath/agent/tools"
)

// Request is the immutable per-query input.
type Request struct {
	Question         string
	SessionID        string
	TopK             int
	StrategyOverride string
}

type Metadata struct {
	QueryType     string   `json:"query_type"`
	Confidence    float64  `json:"confidence"`
	NumChunks     int      `json:"num_chunks"`
	NumSources    int      `json:"num_sources"`
	ToolCallsMade int      `json:"tool_calls_made,omitempty"`
	ToolsUsed     []string `json:"tools_used,omitempty"`
}

type Response struct {
	Answer   string
	Sources  []retrieval.Source
	Metadata Metadata
}

type Dispatcher struct {
	engine       *retrieval.Engine
	courses      catalog.Store
	orchestrator *agent.Orchestrator
	registry     *tools.Registry
	llm          llm.Client
	cache        *settings.Cache
	useAdvisor   bool
	logger       *zap.Logger
}

func NewDispatcher(
	engine *retrieval.Engine,
	courses catalog.Store,
	orchestrator *agent.Orchestrator,
	registry *tools.Registry,
	llmClient llm.Client,
	cache *settings.Cache,
	useAdvisor bool,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		engine:       engine,
		courses:      courses,
		orchestrator: orchestrator,
		registry:     registry,
		llm:          llmClient,
		cache:        cache,
		useAdvisor:   useAdvisor,
		logger:       logger,
	}
}

// Answer processes the query synchronously.
func (d *Dispatcher) Answer(ctx context.Context, req Request) (Response, error) {
	return d.answer(ctx, req, nil)
}

// AnswerStream processes the query while emitting events in causal order.
// The transport layer is responsible for the terminal done or error event.
func (d *Dispatcher) AnswerStream(ctx context.Context, req Request, emit func(stream.Event) error) (Response, error) {
	return d.answer(ctx, req, emit)
}

func (d *Dispatcher) answer(ctx context.Context, req Request, emit func(stream.Event) error) (Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Response{}, fmt.Errorf("question cannot be empty")
	}
	req.Question = question

	cfg, err := d.cache.Get(ctx)
	if err != nil {
		d.logger.Warn("settings load failed, using defaults", zap.Error(err))
	}
	if req.TopK <= 0 {
		req.TopK = cfg.TopK
	}

	classification := d.classify(ctx, question)
	d.emitEvent(emit, stream.Event{Kind: stream.KindClassification, Payload: map[string]any{
		"type":           string(classification.Type),
		"confidence":     classification.Confidence,
		"learning_score": classification.LearningScore,
	}})

	strat := cfg.Strategy
	if req.StrategyOverride != "" {
		strat = req.StrategyOverride
	}

	switch strat {
	case config.StrategyLLMDriven:
		return d.withFallback(ctx, req, cfg, classification, emit, func() (Response, error) {
			return d.llmDriven(ctx, req, cfg, classification, d.registry, emit)
		})
	case config.StrategyClassificationBased:
		return d.withFallback(ctx, req, cfg, classification, emit, func() (Response, error) {
			return d.classificationRoute(ctx, req, cfg, classification, emit)
		})
	case config.StrategyHybrid:
		if classification.Confidence >= cfg.ConfidenceThreshold {
			return d.withFallback(ctx, req, cfg, classification, emit, func() (Response, error) {
				return d.classificationRoute(ctx, req, cfg, classification, emit)
			})
		}
		// Low confidence: defer the decision to the model.
		return d.withFallback(ctx, req, cfg, classification, emit, func() (Response, error) {
			return d.llmDriven(ctx, req, cfg, classification, d.registry, emit)
		})
	default:
		d.logger.Warn("unknown strategy, using retrieval", zap.String("strategy", strat))
		return d.ragAnswer(ctx, req, cfg, classification, emit)
	}
}

func (d *Dispatcher) classify(ctx context.Context, question string) classify.Result {
	if d.useAdvisor && d.llm != nil {
		result, err := classify.WithAdvisor(ctx, d.llm, question)
		if err != nil {
			d.logger.Warn("classification advisor failed", zap.Error(err))
		}
		return result
	}
	return classify.Classify(question)
}

// withFallback wraps a route so any failure degrades to the plain
// retrieve-then-generate answer when fallback is enabled.
func (d *Dispatcher) withFallback(
	ctx context.Context,
	req Request,
	cfg settings.Settings,
	classification classify.Result,
	emit func(stream.Event) error,
	route func() (Response, error),
) (Response, error) {
	if !cfg.FallbackToRAG {
		return route()
	}
	return orElse(route, func() (Response, error) {
		return d.ragAnswer(ctx, req, cfg, classification, emit)
	}, func(err error) {
		d.logger.Warn("route failed, falling back to retrieval", zap.Error(err))
	})
}

func (d *Dispatcher) llmDriven(
	ctx context.Context,
	req Request,
	cfg settings.Settings,
	classification classify.Result,
	registry *tools.Registry,
	emit func(stream.Event) error,
) (Response, error) {
	if d.orchestrator == nil {
		return Response{}, fmt.Errorf("orchestrator is not configured")
	}

	run, err := d.orchestrator.Run(ctx, req.Question, agent.Options{
		Registry:     registry,
		MaxToolCalls: cfg.MaxToolCalls,
		SystemPrompt: cfg.SystemPrompt,
		SessionID:    req.SessionID,
		Emit:         emit,
	})
	if err != nil {
		return Response{}, err
	}

	return Response{
		Answer: run.Answer,
		Metadata: Metadata{
			QueryType:     string(classification.Type),
			Confidence:    classification.Confidence,
			ToolCallsMade: run.Metadata.ToolCallsMade,
			ToolsUsed:     run.Metadata.ToolsUsed,
		},
	}, nil
}

func (d *Dispatcher) classificationRoute(
	ctx context.Context,
	req Request,
	cfg settings.Settings,
	classification classify.Result,
	emit func(stream.Event) error,
) (Response, error) {
	switch {
	case classification.Type == classify.TypeLearning && classification.Confidence >= cfg.ConfidenceThreshold:
		learning := d.registry.Subset(tools.CourseSearchName, tools.KnowledgeSearchName)
		return d.llmDriven(ctx, req, cfg, classification, learning, emit)
	case classification.Type == classify.TypeMixed:
		return d.mixedAnswer(ctx, req, cfg, classification, emit)
	default:
		return d.ragAnswer(ctx, req, cfg, classification, emit)
	}
}

func (d *Dispatcher) emitEvent(emit func(stream.Event) error, ev stream.Event) {
	if emit == nil {
		return
	}
	if err := emit(ev); err != nil {
		d.logger.Warn("emit event failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}
