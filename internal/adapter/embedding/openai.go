package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"perspective/internal/port"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	client    *http.Client
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Options configures an OpenAI-compatible embedder.
type Options struct {
	APIKeyEnv string
	Model     string
	BaseURL   string
	Dimension int // 0 derives the dimension from the model name
	Timeout   time.Duration
}

var providerURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"jina":     "https://api.jina.ai/v1",
	"ollama":   "http://localhost:11434/v1",
}

// New creates an embedder for a named provider. "mock" needs no network.
func New(provider string, opts Options) (port.Embedder, error) {
	if provider == "mock" {
		dim := opts.Dimension
		if dim <= 0 {
			dim = 64
		}
		return NewMockEmbedder(dim), nil
	}

	if opts.BaseURL == "" {
		url, ok := providerURLs[provider]
		if !ok {
			return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
		}
		opts.BaseURL = url
	}
	if provider == "ollama" {
		return NewOllamaEmbedder(opts)
	}
	return NewOpenAICompatibleEmbedder(opts)
}

// NewOllamaEmbedder creates an embedder for a local Ollama server. No API key is needed.
func NewOllamaEmbedder(opts Options) (*OpenAIEmbedder, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = providerURLs["ollama"]
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}

	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = 768
		switch opts.Model {
		case "mxbai-embed-large":
			dimension = 1024
		case "all-minilm":
			dimension = 384
		}
	}

	return &OpenAIEmbedder{
		apiKey:    "ollama",
		model:     opts.Model,
		baseURL:   opts.BaseURL,
		dimension: dimension,
		client:    &http.Client{Timeout: opts.Timeout},
	}, nil
}

// NewOpenAICompatibleEmbedder creates an embedder reading its API key from opts.APIKeyEnv.
func NewOpenAICompatibleEmbedder(opts Options) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(opts.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", opts.APIKeyEnv)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = DimensionForModel(opts.Model)
	}

	return &OpenAIEmbedder{
		apiKey:    apiKey,
		model:     opts.Model,
		baseURL:   opts.BaseURL,
		dimension: dimension,
		client:    &http.Client{Timeout: opts.Timeout},
	}, nil
}

// DimensionForModel returns the known output width of an embedding model.
func DimensionForModel(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "jina-embeddings-v3":
		return 1024
	case "jina-embeddings-v4":
		return 2048
	default:
		return 1536
	}
}

// Embed sends all texts in a single request.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{
		Input: texts,
		Model: e.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, preview(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", preview(body), err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("API response missing embedding for input %d", i)
		}
	}

	return embeddings, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
