package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/Alias1177/MatchPredictor/internal/provider"
	"github.com/Alias1177/MatchPredictor/models"
)

// DefaultBaseURL is the OpenRouter OpenAI-compatible endpoint
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Client wraps the OpenAI API client for OpenRouter providers
type Client struct {
	baseURL    string
	topP       float32
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*openai.Client

	logger zerolog.Logger
}

// ClientOptions holds options for creating a new OpenRouter client
type ClientOptions struct {
	BaseURL string
	Referer string
	Title   string
	Timeout time.Duration
	TopP    float32
}

// NewClient creates a new OpenRouter client
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.TopP == 0 {
		opts.TopP = 0.9
	}

	return &Client{
		baseURL: opts.BaseURL,
		topP:    opts.TopP,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &headerTransport{
				base:    http.DefaultTransport,
				referer: opts.Referer,
				title:   opts.Title,
			},
		},
		clients: make(map[string]*openai.Client),
		logger:  log.With().Str("component", "openrouter_client").Logger(),
	}
}

// Complete sends the prompt to the provider and returns the completion text
func (c *Client) Complete(ctx context.Context, p provider.Provider, system, user string) (string, error) {
	c.logger.Debug().Str("provider", p.Name).Str("model", p.Model).Int("prompt_len", len(user)).Msg("Sending prompt")

	resp, err := c.clientFor(p).CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: p.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: system,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: user,
				},
			},
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			TopP:        c.topP,
		},
	)

	if err != nil {
		c.logger.Error().Err(err).Str("provider", p.Name).Msg("OpenRouter API error")
		return "", classify(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Warn().Str("provider", p.Name).Msg("OpenRouter returned empty choices")
		return "", fmt.Errorf("%w: empty completion", models.ErrMalformedResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) clientFor(p provider.Provider) *openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.clients[p.APIKey]; ok {
		return cl
	}

	cfg := openai.DefaultConfig(p.APIKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient
	cl := openai.NewClientWithConfig(cfg)
	c.clients[p.APIKey] = cl
	return cl
}

// classify maps go-openai errors onto the error taxonomy
func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", models.ErrRateLimited, err)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", models.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", models.ErrTransport, err)
	}
}

// headerTransport adds the attribution headers OpenRouter asks for
type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(req)
}
