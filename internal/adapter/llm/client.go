package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"perspective/internal/port"
)

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client

	mu    sync.Mutex
	stats Stats
}

// Stats tracks usage across calls.
type Stats struct {
	TotalCalls       int
	TotalInputChars  int
	TotalOutputChars int
}

// ChatMessage represents a message in the chat format
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is the request format for chat completions
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// ChatResponse is the response format from chat completions
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Provider configurations
var providers = map[string]struct {
	baseURL   string
	keyEnvVar string
}{
	"deepseek": {"https://api.deepseek.com/v1", "DEEPSEEK_API_KEY"},
	"openai":   {"https://api.openai.com/v1", "OPENAI_API_KEY"},
	"local":    {"http://localhost:11434/v1", ""},
}

// Options configures a Client.
type Options struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKeyEnv   string // overrides the provider's default key variable
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewClient creates a new LLM client for the specified provider
func NewClient(opts Options) (*Client, error) {
	p, ok := providers[opts.Provider]
	if !ok && opts.BaseURL == "" {
		return nil, fmt.Errorf("unknown provider: %s (set llm.base_url for custom endpoints)", opts.Provider)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = p.baseURL
	}

	keyEnv := opts.APIKeyEnv
	if keyEnv == "" {
		keyEnv = p.keyEnvVar
	}

	var apiKey string
	if keyEnv != "" && opts.Provider != "local" {
		apiKey = os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found. Set %s environment variable", keyEnv)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// Chat sends a chat completion request
func (c *Client) Chat(ctx context.Context, messages []ChatMessage, opts port.GenerateOptions) (string, error) {
	inputChars := 0
	for _, msg := range messages {
		inputChars += len(msg.Content)
	}

	req := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.JSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API returned status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	output := chatResp.Choices[0].Message.Content

	c.mu.Lock()
	c.stats.TotalCalls++
	c.stats.TotalInputChars += inputChars
	c.stats.TotalOutputChars += len(output)
	c.mu.Unlock()

	return output, nil
}

// GenerateWithSystem implements generation with system prompt
func (c *Client) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string, opts port.GenerateOptions) (string, error) {
	return c.Chat(ctx, []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, opts)
}

// ModelName returns the configured model.
func (c *Client) ModelName() string {
	return c.model
}

// Stats returns the current usage statistics
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
