// Package settings holds the process-wide, read-mostly agent configuration:
// strategy selection, thresholds, and prompt overrides, cached in front of a
// storage-backed loader.
package settings

import (
	"strconv"

	"github.com/skillpath/agent/config"
)

type Settings struct {
	Strategy            string
	MaxToolCalls        int
	ConfidenceThreshold float64
	FallbackToRAG       bool

	TopK             int
	MinScore         float64
	MaxContextLength int

	SystemPrompt string
}

// FromConfig derives the default settings from the environment config; the
// loader's key/value pairs override these per key.
func FromConfig(cfg config.Config) Settings {
	return Settings{
		Strategy:            cfg.Strategy,
		MaxToolCalls:        cfg.MaxToolCalls,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		FallbackToRAG:       cfg.FallbackToRAG,
		TopK:                cfg.TopK,
		MinScore:            cfg.MinScore,
		MaxContextLength:    cfg.MaxContextLength,
	}
}

func applyOverrides(base Settings, values map[string]string) Settings {
	for key, value := range values {
		switch key {
		case "strategy":
			base.Strategy = value
		case "max_tool_calls":
			if parsed, err := strconv.Atoi(value); err == nil {
				base.MaxToolCalls = parsed
			}
		case "confidence_threshold":
			if parsed, err := strconv.ParseFloat(value, 64); err == nil {
				base.ConfidenceThreshold = parsed
			}
		case "fallback_to_rag":
			if parsed, err := strconv.ParseBool(value); err == nil {
				base.FallbackToRAG = parsed
			}
		case "top_k":
			if parsed, err := strconv.Atoi(value); err == nil {
				base.TopK = parsed
			}
		case "min_score":
			if parsed, err := strconv.ParseFloat(value, 64); err == nil {
				base.MinScore = parsed
			}
		case "max_context_length":
			if parsed, err := strconv.Atoi(value); err == nil {
				base.MaxContextLength = parsed
			}
		case "system_prompt":
			base.SystemPrompt = value
		}
	}
	return base
}
