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

// CohereConfig holds configuration for the Cohere embedding client.
type CohereConfig struct {
	APIKey  string
	Model   string        // default: embed-english-v3.0
	BaseURL string        // default: https://api.cohere.com
	Timeout time.Duration // default: 30s
}

// Cohere implements Provider using the Cohere embed API.
type Cohere struct {
	cfg     CohereConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// cohereDimension is the output dimensionality of the v3 English models.
const cohereDimension = 1024

// NewCohere creates a Cohere embedding client.
func NewCohere(cfg CohereConfig) *Cohere {
	if cfg.Model == "" {
		cfg.Model = "embed-english-v3.0"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Cohere{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker("cohere-embeddings"),
	}
}

// Name returns the provider label.
func (c *Cohere) Name() string { return "cohere" }

// Dimension returns the vector length.
func (c *Cohere) Dimension() int { return cohereDimension }

type cohereEmbedRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates an embedding for a single text.
func (c *Cohere) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts with one native batch call. The embed API
// declares its embeddings array to be in input order, so position is the
// response's index.
func (c *Cohere) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := execute(c.breaker, func() ([][]float32, error) {
		return c.embedBatch(ctx, texts)
	})
	if err != nil {
		log.Error("embedding request failed", "provider", c.Name(), "error", err)
		return nil, err
	}
	return vectors, nil
}

func (c *Cohere) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := cohereEmbedRequest{
		Model:     c.cfg.Model,
		Texts:     texts,
		InputType: "search_document",
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cohere returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData cohereEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respData.Embeddings) != len(texts) {
		return nil, fmt.Errorf("cohere returned %d embeddings for %d inputs", len(respData.Embeddings), len(texts))
	}
	for i, e := range respData.Embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("cohere returned an empty embedding at index %d", i)
		}
	}
	return respData.Embeddings, nil
}

var _ Provider = (*Cohere)(nil)
