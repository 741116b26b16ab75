package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Message is one turn in a chat-style completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds the completion service settings.
type Config struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

// Client talks to the completion service. Responses may arrive as a single
// JSON envelope or as newline-delimited partial chunks; both shapes carry
// the content under either `response` or `message.content`.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a completion service client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  client,
		logger:  logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// envelope covers both the generate shape (`response`) and the chat shape
// (`message.content`).
type envelope struct {
	Response string `json:"response"`
	Message  struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Generate issues a single-prompt completion with JSON output format and
// returns the aggregated content.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Format: "json",
		Stream: false,
	}
	return c.call(ctx, "/api/generate", body)
}

// Chat issues a conversational completion and returns the aggregated
// content.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	}
	return c.call(ctx, "/api/chat", body)
}

func (c *Client) call(ctx context.Context, path string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("completion request failed: %d %s - %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), string(raw))
	}

	content := aggregateContent(raw)
	c.logger.Debug("completion response received",
		zap.String("path", path),
		zap.Int("content_length", len(content)))
	return content, nil
}

// aggregateContent extracts the content from a response that is either one
// JSON envelope or a stream of line-separated envelopes whose partial
// contents must be concatenated.
func aggregateContent(raw []byte) string {
	var single envelope
	if err := json.Unmarshal(raw, &single); err == nil {
		if single.Message.Content != "" {
			return single.Message.Content
		}
		if single.Response != "" {
			return single.Response
		}
	}

	var full strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		var chunk envelope
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		if chunk.Response != "" {
			full.WriteString(chunk.Response)
		} else if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
		}
	}
	return strings.TrimSpace(full.String())
}
