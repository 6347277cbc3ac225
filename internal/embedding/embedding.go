// Package embedding provides a pluggable abstraction over external
// vector-embedding services. Three backends are supported: Google Gemini,
// any OpenAI-compatible server (official or self-hosted, selected via base
// URL), and Cohere. Selection is credential-driven; running without any
// credentials is a valid state in which semantic search degrades to lexical
// search.
package embedding

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Provider generates fixed-dimension embedding vectors. The dimensionality
// is fixed for the lifetime of a provider configuration.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector length this provider produces.
	Dimension() int

	// Name returns the human-readable provider label used in logs.
	Name() string
}

// Config carries the credentials and overrides for all providers.
type Config struct {
	// Provider forces a specific backend ("gemini", "openai", "cohere").
	// The override only applies when its credential is present; otherwise
	// auto-detection runs as usual.
	Provider string

	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string // any server speaking the OpenAI embeddings contract

	CohereAPIKey string
	CohereModel  string
}

// candidate is one entry in the priority-ordered selection cascade.
type candidate struct {
	name      string
	available func(Config) bool
	build     func(Config) Provider
}

// candidates is evaluated in priority order: Gemini, then OpenAI-compatible,
// then Cohere. The first entry with a configured credential wins.
var candidates = []candidate{
	{
		name:      "gemini",
		available: func(c Config) bool { return c.GeminiAPIKey != "" },
		build:     func(c Config) Provider { return NewGemini(GeminiConfig{APIKey: c.GeminiAPIKey, Model: c.GeminiModel}) },
	},
	{
		name:      "openai",
		available: func(c Config) bool { return c.OpenAIAPIKey != "" },
		build: func(c Config) Provider {
			return NewOpenAI(OpenAIConfig{APIKey: c.OpenAIAPIKey, Model: c.OpenAIModel, BaseURL: c.OpenAIBaseURL})
		},
	},
	{
		name:      "cohere",
		available: func(c Config) bool { return c.CohereAPIKey != "" },
		build:     func(c Config) Provider { return NewCohere(CohereConfig{APIKey: c.CohereAPIKey, Model: c.CohereModel}) },
	},
}

// NewService selects and builds an embedding provider. An explicit override
// wins when its credential is present; otherwise providers are tried in
// priority order and the first with a credential is used. With no credentials
// anywhere it returns (nil, nil): not an error, just lexical-only mode.
func NewService(cfg Config) (Provider, error) {
	if cfg.Provider != "" {
		found := false
		for _, c := range candidates {
			if c.name != cfg.Provider {
				continue
			}
			found = true
			if c.available(cfg) {
				p := c.build(cfg)
				log.Info("embedding provider selected", "provider", p.Name(), "dimension", p.Dimension(), "reason", "explicit override")
				return p, nil
			}
			log.Warn("requested embedding provider has no credential, falling back to auto-detection", "provider", cfg.Provider)
		}
		if !found {
			return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
		}
	}

	for _, c := range candidates {
		if c.available(cfg) {
			p := c.build(cfg)
			log.Info("embedding provider selected", "provider", p.Name(), "dimension", p.Dimension(), "reason", "auto-detected")
			return p, nil
		}
	}

	log.Info("no embedding credentials configured, semantic search disabled")
	return nil, nil
}
