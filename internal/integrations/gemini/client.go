package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"reply-gateway/internal/domain"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 800
)

// KeySource supplies the API key. *paramstore.Secret satisfies it.
type KeySource interface {
	Value(ctx context.Context) (string, error)
}

// generator is the subset of genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// StatusError carries the HTTP status of a failed Gemini API call.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error       { return e.Err }
func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

// Client adapts the Gemini API to the gateway's chat interface. The
// underlying genai client is created on first use, once the key resolves.
type Client struct {
	key KeySource

	mu  sync.Mutex
	gen generator
}

func NewClient(key KeySource) (*Client, error) {
	if key == nil {
		return nil, errors.New("gemini: key source must not be nil")
	}
	return &Client{key: key}, nil
}

var newGenerator = func(ctx context.Context, apiKey string) (generator, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return c.Models, nil
}

// models returns the cached generator, creating it on first success. Key
// resolution runs outside the lock so each caller is bound by its own
// context; a failed attempt is not cached.
func (c *Client) models(ctx context.Context) (generator, error) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	if gen != nil {
		return gen, nil
	}

	apiKey, err := c.key.Value(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini: resolve api key: %w", err)
	}
	gen, err = newGenerator(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == nil {
		c.gen = gen
	}
	return c.gen, nil
}

func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	if model == "" {
		return "", errors.New("gemini: model must not be empty")
	}
	gen, err := c.models(ctx)
	if err != nil {
		return "", err
	}

	system, contents := toContents(messages)
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](defaultTemperature),
		MaxOutputTokens: defaultMaxTokens,
		ThinkingConfig:  &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := gen.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("gemini: generate content: %w", &StatusError{StatusCode: apiErr.Code, Err: err})
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("gemini: nil response: %w", domain.ErrMalformedCompletion)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: empty response text: %w", domain.ErrMalformedCompletion)
	}
	return text, nil
}

// toContents folds system messages into one instruction and maps the
// remaining turns onto Gemini roles.
func toContents(messages []domain.ChatMessage) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n"), contents
}
