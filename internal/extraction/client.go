package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meetscribe/backend/config"
)

// ChatRequest is one chat-completion call.
type ChatRequest struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatClient sends chat-completion requests to the extraction model.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// HTTPChatClient talks to an OpenAI-compatible chat completion endpoint.
type HTTPChatClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ ChatClient = (*HTTPChatClient)(nil)

// NewHTTPChatClient builds a client from configuration.
func NewHTTPChatClient(cfg config.LLMConfig) *HTTPChatClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPChatClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete posts the request and returns the first choice's content.
func (c *HTTPChatClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return "", fmt.Errorf("llm client misconfigured: endpoint and api key required")
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("llm error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty chat response")
	}
	return out.Choices[0].Message.Content, nil
}

// extractJSON finds the first complete JSON object in a model response,
// tolerating surrounding prose or markdown fences.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}
