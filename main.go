package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/skillpath/agent/agent"
	"github.com/skillpath/agent/api"
	"github.com/skillpath/agent/catalog"
	"github.com/skillpath/agent/config"
	"github.com/skillpath/agent/database"
	"github.com/skillpath/agent/embeddings"
	"github.com/skillpath/agent/ingestion"
	"github.com/skillpath/agent/llm"
	"github.com/skillpath/agent/logging"
	"github.com/skillpath/agent/retrieval"
	"github.com/skillpath/agent/settings"
	"github.com/skillpath/agent/strategy"
	"github.com/skillpath/agent/tools"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	logger := logging.New(cfg.Production)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Error("unknown command", zap.String("command", os.Args[1]))
		printUsage()
		os.Exit(1)
	}
}

type deps struct {
	dispatcher *strategy.Dispatcher
	ingest     *ingestion.Service
	close      func(context.Context)
}

func buildDeps(ctx context.Context, cfg config.Config, logger *zap.Logger) (*deps, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}

	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("neo4j connection: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("llm setup: %w", err)
	}

	engine := retrieval.NewEngine(
		retrieval.NewPostgresVectorStore(pool),
		retrieval.NewNeo4jGraphStore(driver),
		embedder,
		cfg.MaxContextLength,
		logger,
	)

	courses := catalog.NewPostgresStore(pool, embedder, logger)

	registry := tools.NewRegistry(
		tools.NewCourseSearch(courses),
		tools.NewKnowledgeSearch(engine, cfg.MinScore),
	)

	var orchestrator *agent.Orchestrator
	if provider, ok := llmClient.(agent.Provider); ok {
		orchestrator = agent.NewOrchestrator(provider, logger)
	} else {
		logger.Warn("llm provider does not support tool calling; tool routes fall back to retrieval")
	}

	cache := settings.NewCache(settings.NewPostgresLoader(pool), settings.FromConfig(cfg))

	dispatcher := strategy.NewDispatcher(
		engine,
		courses,
		orchestrator,
		registry,
		llmClient,
		cache,
		cfg.ClassifierLLMAssist,
		logger,
	)

	ingestSvc := ingestion.NewService(pool, driver, embedder, logger, cfg.Embeddings.Dimension)

	return &deps{
		dispatcher: dispatcher,
		ingest:     ingestSvc,
		close: func(ctx context.Context) {
			pool.Close()
			if err := driver.Close(ctx); err != nil {
				logger.Warn("close neo4j driver", zap.Error(err))
			}
		},
	}, nil
}

func serveCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "address to listen on")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse serve flags", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("setup failed", zap.Error(err))
	}
	defer d.close(context.Background())

	server := &http.Server{
		Addr:    *addr,
		Handler: api.New(d.dispatcher, d.ingest, logger).Handler(),
	}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("listening", zap.String("addr", *addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("serve failed", zap.Error(err))
	}
}

func askCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question to ask the agent")
	topK := flags.Int("top-k", cfg.TopK, "number of context chunks to retrieve")
	strat := flags.String("strategy", "", "override the configured strategy")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse ask flags", zap.Error(err))
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatal("read question", zap.Error(err))
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("setup failed", zap.Error(err))
	}
	defer d.close(context.Background())

	resp, err := d.dispatcher.Answer(ctx, strategy.Request{
		Question:         *question,
		TopK:             *topK,
		StrategyOverride: *strat,
	})
	if err != nil {
		logger.Fatal("answer failed", zap.Error(err))
	}

	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, source := range resp.Sources {
			fmt.Printf("%d. %s (%s) score=%.2f\n", i+1, source.Title, source.URL, source.Score)
		}
	}
	if resp.Metadata.ToolCallsMade > 0 {
		fmt.Printf("\nTool calls: %d (%s)\n", resp.Metadata.ToolCallsMade, strings.Join(resp.Metadata.ToolsUsed, ", "))
	}
}

func ingestCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dataDir := flags.String("dir", cfg.DataDir, "path to directory containing documents")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse ingest flags", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("setup failed", zap.Error(err))
	}
	defer d.close(context.Background())

	logger.Info("ingesting documents",
		zap.String("dir", *dataDir),
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("model", cfg.Embeddings.Model))

	if err := d.ingest.IngestDirectory(ctx, *dataDir); err != nil {
		logger.Fatal("ingestion failed", zap.Error(err))
	}
}

func clearCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse clear flags", zap.Error(err))
	}

	if !*confirmed {
		fmt.Print("This will permanently delete ingested documents and courses. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatal("read confirmation", zap.Error(err))
			}
			fmt.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			fmt.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("setup failed", zap.Error(err))
	}
	defer d.close(context.Background())

	if err := d.ingest.Clear(ctx); err != nil {
		logger.Fatal("clear failed", zap.Error(err))
	}

	logger.Info("ingested data removed")
}

func printUsage() {
	fmt.Println("Usage: agent <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Run the HTTP API")
	fmt.Println("  ask      Ask a one-shot question")
	fmt.Println("  ingest   Ingest documents and course catalogs (use --dir to override)")
	fmt.Println("  clear    Remove ingested data")
}
