package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp openai.ChatCompletion
	err  error
	last openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.last = params
	return m.resp, m.err
}

func reply(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGeneratePrompt_Success(t *testing.T) {
	mock := &mockChatService{resp: reply("Hello World")}
	client := &Client{chat: mock, model: DefaultModel}
	out, err := client.GeneratePrompt(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if len(mock.last.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(mock.last.Messages))
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	mockResp := openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}
	client := &Client{chat: &mockChatService{resp: mockResp}}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil || cli.model != DefaultModel {
		t.Errorf("expected client with default model, got %+v", cli)
	}
}

func TestHeadline(t *testing.T) {
	sub := models.IntakeSubmission{CallID: "CA1", JobDescription: "leaking water heater", ServiceAddress: "45 Oak Street, Bowie 20715"}

	h := NewHeadliner(&Client{chat: &mockChatService{resp: reply("\"Water heater leak in Bowie\"")}})
	if got := h.Headline(context.Background(), sub); got != "Water heater leak in Bowie" {
		t.Errorf("unexpected headline %q", got)
	}

	h = NewHeadliner(&Client{chat: &mockChatService{err: errors.New("down")}})
	if got := h.Headline(context.Background(), sub); got != "" {
		t.Errorf("expected empty headline on failure, got %q", got)
	}

	long := strings.Repeat("x", 300)
	h = NewHeadliner(&Client{chat: &mockChatService{resp: reply(long)}})
	if got := h.Headline(context.Background(), sub); len(got) != maxHeadlineLen {
		t.Errorf("expected headline capped at %d, got %d", maxHeadlineLen, len(got))
	}

	var nilHeadliner *Headliner
	if got := nilHeadliner.Headline(context.Background(), sub); got != "" {
		t.Errorf("nil headliner should return empty, got %q", got)
	}
}
