package ark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reply-gateway/internal/domain"
)

const (
	DefaultEndpoint = "https://ark.cn-beijing.volces.com/api/v3/chat/completions"

	chatTemperature = 0.7
	chatMaxTokens   = 800
)

// chatRequest is the Ark chat completions request. Ark follows the OpenAI
// wire shape plus a thinking switch.
type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Thinking    *thinkingConfig      `json:"thinking,omitempty"`
}

type thinkingConfig struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// KeySource supplies the bearer token. *paramstore.Secret satisfies it.
type KeySource interface {
	Value(ctx context.Context) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("ark: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused client for the Ark chat completions endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	key        KeySource
}

type Option func(*Client)

// WithEndpoint sets the completions URL, or a base URL that completionsURL
// expands.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSpace(endpoint)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(key KeySource, opts ...Option) (*Client, error) {
	if key == nil {
		return nil, errors.New("ark: key source must not be nil")
	}
	c := &Client{
		endpoint: DefaultEndpoint,
		// No client timeout: the caller's context carries the latency budget.
		httpClient: &http.Client{},
		key:        key,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// completionsURL accepts either the full endpoint or an API base such as
// https://host/api/v3.
func completionsURL(endpoint string) string {
	base := strings.TrimRight(endpoint, "/")
	if base == "" {
		return DefaultEndpoint
	}
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	if model == "" {
		return "", errors.New("ark: model must not be empty")
	}

	apiKey, err := c.key.Value(ctx)
	if err != nil {
		return "", fmt.Errorf("ark: resolve api key: %w", err)
	}

	temperature := float64(chatTemperature)
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   chatMaxTokens,
		Thinking:    &thinkingConfig{Type: "disabled"},
	})
	if err != nil {
		return "", fmt.Errorf("ark: marshal request: %w", err)
	}

	url := completionsURL(c.endpoint)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("ark: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("ark: request failed: %w", err)
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("ark: decode response: %w: %w", domain.ErrMalformedCompletion, decErr)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("ark: no choices in response: %w", domain.ErrMalformedCompletion)
	}
	content := payload.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("ark: empty message content: %w", domain.ErrMalformedCompletion)
	}
	return content, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
