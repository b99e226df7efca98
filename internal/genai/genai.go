// Package genai provides GenAI-enhanced operations using OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoicesReturned is returned when the completion has no choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// DefaultModel is used for headline generation.
const DefaultModel = openai.ChatModelGPT4oMini

// DefaultHeadlineTimeout bounds a single headline request.
const DefaultHeadlineTimeout = 5 * time.Second

// maxHeadlineLen caps the generated headline; longer replies are cut.
const maxHeadlineLen = 120

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK's completion service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI ChatCompletion service.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	return &Client{chat: completionsAdapter{svc: &cli.Chat.Completions}, model: cfg.Model}, nil
}

// GeneratePrompt generates a response based on the provided system and user prompts.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

const headlineSystemPrompt = "You write one-line lead headlines for a home services contractor. " +
	"Reply with a single plain sentence under 15 words naming the job and the area. No quotes."

// Headliner summarizes a finished intake into a short lead headline.
type Headliner struct {
	client  *Client
	timeout time.Duration
}

// NewHeadliner wraps client. A nil client yields a Headliner that always
// returns an empty headline.
func NewHeadliner(client *Client) *Headliner {
	return &Headliner{client: client, timeout: DefaultHeadlineTimeout}
}

// Headline returns a headline for sub, or "" when generation fails.
func (h *Headliner) Headline(ctx context.Context, sub models.IntakeSubmission) string {
	if h == nil || h.client == nil {
		return ""
	}
	hctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	user := fmt.Sprintf("Job: %s\nAddress: %s\nTiming: %s", sub.JobDescription, sub.ServiceAddress, sub.Timing)
	out, err := h.client.GeneratePrompt(hctx, headlineSystemPrompt, user)
	if err != nil {
		slog.Warn("Headliner.Headline: generation failed", "callID", sub.CallID, "error", err)
		return ""
	}
	out = strings.Trim(out, "\"' \n")
	if len(out) > maxHeadlineLen {
		out = strings.TrimSpace(out[:maxHeadlineLen])
	}
	return out
}
