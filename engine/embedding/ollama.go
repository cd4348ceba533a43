package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of texts grouped per transport round.
const DefaultBatchSize = 32

// OllamaClient implements Provider against Ollama's HTTP embeddings API.
// Requests are throttled by a token-bucket limiter so corpus rebuilds don't
// saturate the backend.
type OllamaClient struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
	limiter *rate.Limiter
}

// NewOllamaClient creates an Ollama embedding client. dim must match the
// model's output dimension; rps <= 0 disables throttling.
func NewOllamaClient(baseURL, model string, dim int, rps float64) *OllamaClient {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		client:  &http.Client{},
		limiter: limiter,
	}
}

// Dimension implements Provider.
func (c *OllamaClient) Dimension() int { return c.dim }

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed implements Provider. The Ollama API embeds one prompt per call, so
// batchSize only bounds how many in-flight errors we accumulate context for;
// each text is still one throttled request.
func (c *OllamaClient) Embed(ctx context.Context, texts []string, batchSize int) ([][]float64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("embedding: ollama: %w", err)
			}
		}
		vec, err := c.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding: ollama [%d/%d]: %w", i+1, len(texts), err)
		}
		if len(vec) != c.dim {
			return nil, fmt.Errorf("embedding: ollama: model returned dimension %d, want %d", len(vec), c.dim)
		}
		out[i] = vec
	}
	return out, nil
}

func (c *OllamaClient) embedOne(ctx context.Context, text string) ([]float64, error) {
	body, _ := json.Marshal(ollamaEmbedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ollamaEmbedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return result.Embedding, nil
}
