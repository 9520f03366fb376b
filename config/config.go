package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Processing strategies understood by the dispatcher.
const (
	StrategyLLMDriven           = "llm_driven"
	StrategyClassificationBased = "classification_based"
	StrategyHybrid              = "hybrid"
)

type LLMConfig struct {
	Provider string
	Model    string
}

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type Config struct {
	PostgresDSN string
	Neo4jURI    string
	Neo4jUser   string
	Neo4jPass   string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	LLM        LLMConfig
	Embeddings EmbeddingsConfig

	DataDir    string
	ListenAddr string

	Strategy            string
	MaxToolCalls        int
	ConfidenceThreshold float64
	FallbackToRAG       bool

	TopK             int
	MinScore         float64
	MaxContextLength int

	ProviderTimeout     time.Duration
	ClassifierLLMAssist bool

	Production bool
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/skillpath?sslmode=disable"),
		Neo4jURI:    getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:   getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:   getEnv("NEO4J_PASSWORD", "password"),

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOllama),
			Model:    getEnv("LLM_MODEL", "llama3.1:8b"),
		},
		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOllama),
			Model:     getEnv("EMBEDDINGS_MODEL", "nomic-embed-text"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 768),
		},

		DataDir:    getEnv("DATA_DIR", "./data"),
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		Strategy:            getEnv("AGENT_STRATEGY", StrategyHybrid),
		MaxToolCalls:        getEnvInt("MAX_TOOL_CALLS", 5),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.6),
		FallbackToRAG:       getEnvBool("FALLBACK_TO_RAG", true),

		TopK:             getEnvInt("RETRIEVAL_TOP_K", 5),
		MinScore:         getEnvFloat("RETRIEVAL_MIN_SCORE", 0.5),
		MaxContextLength: getEnvInt("MAX_CONTEXT_LENGTH", 8000),

		ProviderTimeout:     getEnvDuration("PROVIDER_TIMEOUT", 60*time.Second),
		ClassifierLLMAssist: getEnvBool("CLASSIFIER_LLM_ASSIST", false),

		Production: getEnvBool("PRODUCTION", false),
	}
}

// Validate reports configuration errors that must stop the process at
// startup. Missing provider credentials are the only fatal class; everything
// else has a usable default.
func (c Config) Validate() error {
	if c.LLM.Provider == ProviderOpenAI && c.OpenAIAPIKey == "" {
		return fmt.Errorf("llm provider %q selected but OPENAI_API_KEY not set", ProviderOpenAI)
	}
	if c.Embeddings.Provider == ProviderOpenAI && c.OpenAIAPIKey == "" {
		return fmt.Errorf("embeddings provider %q selected but OPENAI_API_KEY not set", ProviderOpenAI)
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}

	switch c.Strategy {
	case StrategyLLMDriven, StrategyClassificationBased, StrategyHybrid:
	default:
		return fmt.Errorf("unknown strategy: %s", c.Strategy)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
