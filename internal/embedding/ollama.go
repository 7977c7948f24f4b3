package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rendis/intentd/pkg/schema"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOllamaModel    = "all-minilm"

	// all-minilm produces 384-dimensional vectors.
	defaultOllamaDimensions = 384
)

// OllamaConfig configures the Ollama embedding provider.
type OllamaConfig struct {
	Endpoint   string
	Model      string
	Dimensions int
	Timeout    time.Duration
	RetryMax   int
}

// OllamaProvider generates embeddings using a local Ollama server.
type OllamaProvider struct {
	endpoint string
	model    string
	dims     int
	client   *http.Client
}

// NewOllamaProvider creates a new Ollama embedding provider. Transient HTTP
// failures are retried with backoff.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultOllamaEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultOllamaDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &OllamaProvider{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		dims:     cfg.Dimensions,
		client:   rc.StandardClient(),
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, schema.NewError(schema.ErrCodeEmbedding, "cannot embed empty text")
	}
	if !utf8.ValidString(text) {
		return nil, schema.NewError(schema.ErrCodeEmbedding, "cannot embed invalid UTF-8 text")
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeEmbedding, "marshal request: %v", err).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeEmbedding, "create request: %v", err).WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeEmbedding, "ollama request failed: %v", err).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, schema.NewErrorf(schema.ErrCodeEmbedding,
			"ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeEmbedding, "decode response: %v", err).WithCause(err)
	}

	// A zero-length vector means the model silently rejected the input.
	if len(result.Embedding) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeEmbedding, "model %s returned no embedding", p.model)
	}
	if len(result.Embedding) != p.dims {
		return nil, schema.NewErrorf(schema.ErrCodeEmbedding,
			"model %s returned %d dimensions, expected %d", p.model, len(result.Embedding), p.dims)
	}

	return result.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts. Ollama has no native
// batch endpoint, so texts are embedded sequentially.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeEmbedding,
				"embed text %d of %d: %v", i+1, len(texts), err).WithCause(err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the dimensionality of produced embeddings.
func (p *OllamaProvider) Dimensions() int { return p.dims }

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string { return fmt.Sprintf("ollama:%s", p.model) }

var _ Provider = (*OllamaProvider)(nil)
