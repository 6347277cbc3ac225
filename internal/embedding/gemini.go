package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"
)

// GeminiConfig holds configuration for the Gemini embedding client.
type GeminiConfig struct {
	APIKey  string
	Model   string        // default: text-embedding-004
	BaseURL string        // default: https://generativelanguage.googleapis.com
	Timeout time.Duration // default: 30s
}

// Gemini implements Provider using the Google Generative Language API.
// The API has no batch embedding endpoint for this use, so EmbedBatch issues
// sequential single calls.
type Gemini struct {
	cfg     GeminiConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// geminiDimension is the fixed output dimensionality of text-embedding-004.
const geminiDimension = 768

// NewGemini creates a Gemini embedding client.
func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Gemini{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker("gemini-embeddings"),
	}
}

// Name returns the provider label.
func (g *Gemini) Name() string { return "gemini" }

// Dimension returns the vector length.
func (g *Gemini) Dimension() int { return geminiDimension }

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := execute(g.breaker, func() ([]float32, error) {
		return g.embed(ctx, text)
	})
	if err != nil {
		log.Error("embedding request failed", "provider", g.Name(), "error", err)
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds each text with a sequential single call. An error on any
// item aborts the batch.
func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := g.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (g *Gemini) embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := geminiEmbedRequest{
		Model:   "models/" + g.cfg.Model,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", g.cfg.BaseURL, g.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData geminiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respData.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned empty embedding")
	}
	return respData.Embedding.Values, nil
}

var _ Provider = (*Gemini)(nil)
