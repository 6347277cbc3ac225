package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceNoCredentials(t *testing.T) {
	p, err := NewService(Config{})
	require.NoError(t, err, "running without credentials is a valid state")
	assert.Nil(t, p)
}

func TestNewServicePriorityOrder(t *testing.T) {
	// Two credentials, no override: the fixed priority order picks Gemini.
	p, err := NewService(Config{GeminiAPIKey: "g", CohereAPIKey: "c"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "gemini", p.Name())

	// Without Gemini, OpenAI outranks Cohere.
	p, err = NewService(Config{OpenAIAPIKey: "o", CohereAPIKey: "c"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "openai", p.Name())
}

func TestNewServiceExplicitOverride(t *testing.T) {
	p, err := NewService(Config{Provider: "cohere", GeminiAPIKey: "g", CohereAPIKey: "c"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "cohere", p.Name())
}

func TestNewServiceOverrideWithoutCredentialFallsBack(t *testing.T) {
	// Override names a provider with no credential: auto-detection runs.
	p, err := NewService(Config{Provider: "cohere", OpenAIAPIKey: "o"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "openai", p.Name())
}

func TestNewServiceUnknownProvider(t *testing.T) {
	_, err := NewService(Config{Provider: "acme", OpenAIAPIKey: "o"})
	assert.Error(t, err)
}

func TestDimensions(t *testing.T) {
	assert.Equal(t, 768, NewGemini(GeminiConfig{APIKey: "k"}).Dimension())
	assert.Equal(t, 1536, NewOpenAI(OpenAIConfig{APIKey: "k"}).Dimension())
	assert.Equal(t, 3072, NewOpenAI(OpenAIConfig{APIKey: "k", Model: "text-embedding-3-large"}).Dimension())
	assert.Equal(t, 1024, NewCohere(CohereConfig{APIKey: "k"}).Dimension())
}

func TestOpenAIBatchResortsByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 2)

		// Deliberately out of submission order.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{2, 2}},
				{"index": 0, "embedding": []float32{1, 1}},
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAI(OpenAIConfig{APIKey: "key", BaseURL: srv.URL})
	vectors, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 1}, vectors[0], "results must be re-sorted by declared index")
	assert.Equal(t, []float32{2, 2}, vectors[1])
}

func TestOpenAIErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenAI(OpenAIConfig{APIKey: "key", BaseURL: srv.URL})
	_, err := client.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGeminiBatchIsSequentialSingles(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req geminiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Content.Parts, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{float32(calls), 0}},
		})
	}))
	defer srv.Close()

	client := NewGemini(GeminiConfig{APIKey: "key", BaseURL: srv.URL})
	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "gemini has no batch endpoint; each text is one call")
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{3, 0}, vectors[2])
}

func TestCohereBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embed", r.URL.Path)
		var req cohereEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "search_document", req.InputType)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 0}, {0, 1}},
		})
	}))
	defer srv.Close()

	client := NewCohere(CohereConfig{APIKey: "key", BaseURL: srv.URL})
	vectors, err := client.EmbedBatch(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 1}, vectors[1])
}

func TestCohereCountMismatchRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 0}},
		})
	}))
	defer srv.Close()

	client := NewCohere(CohereConfig{APIKey: "key", BaseURL: srv.URL})
	_, err := client.EmbedBatch(context.Background(), []string{"x", "y"})
	assert.Error(t, err)
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	fails := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fails++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewOpenAI(OpenAIConfig{APIKey: "key", BaseURL: srv.URL})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := client.Embed(ctx, "text")
		require.Error(t, err)
	}

	// Breaker is now open: the request is rejected without reaching the server.
	_, err := client.Embed(ctx, "text")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, fails)
}
