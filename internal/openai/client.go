// Package openai implements gateway.Completer for the OpenAI chat
// completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/treinoia/treinoia/internal/gateway"
)

const defaultURL = "https://api.openai.com/v1/chat/completions"

// Client calls the chat completions endpoint. It sets no timeout of its own;
// the gateway bounds each call through the context.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewClient creates a new OpenAI client. An empty baseURL selects the
// public endpoint.
func NewClient(apiKey, model, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func (c *Client) Name() string {
	return "openai"
}

func (c *Client) Configured() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// chatMessage content is a plain string for text-only turns and a list of
// parts for multimodal ones.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Complete sends one completion request and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, in gateway.Completion) (string, error) {
	if !c.Configured() {
		return "", gateway.ConfigurationError{Provider: c.Name()}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    toMessages(in.Turns),
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &gateway.RemoteAPIError{
			Status:  resp.StatusCode,
			Message: errorMessage(respBody),
		}
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", gateway.ErrEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}

func toMessages(turns []gateway.Turn) []chatMessage {
	msgs := make([]chatMessage, 0, len(turns))
	for _, t := range turns {
		if len(t.Parts) == 1 && t.Parts[0].ImageURL == "" {
			msgs = append(msgs, chatMessage{Role: t.Role, Content: t.Parts[0].Text})
			continue
		}
		parts := make([]contentPart, 0, len(t.Parts))
		for _, p := range t.Parts {
			if p.ImageURL != "" {
				parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: p.ImageURL}})
			} else {
				parts = append(parts, contentPart{Type: "text", Text: p.Text})
			}
		}
		msgs = append(msgs, chatMessage{Role: t.Role, Content: parts})
	}
	return msgs
}

func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return truncate(strings.TrimSpace(string(body)), maxErrorBody)
}

const maxErrorBody = 200

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
