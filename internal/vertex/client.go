// Package vertex implements gateway.Completer on Vertex AI Gemini models.
package vertex

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/treinoia/treinoia/internal/config"
	"github.com/treinoia/treinoia/internal/gateway"
)

// Client wraps a genai client bound to one model.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient dials Vertex AI. Credentials come from the file in cfg when set,
// otherwise from the application default credentials.
func NewClient(ctx context.Context, cfg config.AIConfig) (*Client, error) {
	var opts []option.ClientOption
	if cfg.VertexCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.VertexCredentialsFile))
	}

	client, err := genai.NewClient(ctx, cfg.VertexProject, cfg.VertexLocation, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vertex client: %w", err)
	}
	return &Client{client: client, model: cfg.VertexModel}, nil
}

func (c *Client) Name() string {
	return "vertex"
}

func (c *Client) Configured() bool {
	return c.client != nil
}

func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Complete maps the turns onto a chat session: system turns become the
// system instruction, the last turn is sent and the rest form the history.
func (c *Client) Complete(ctx context.Context, in gateway.Completion) (string, error) {
	if !c.Configured() {
		return "", gateway.ConfigurationError{Provider: c.Name()}
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(float32(in.Temperature))
	if in.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(in.MaxTokens))
	}

	var (
		system  []genai.Part
		history []*genai.Content
	)
	for _, t := range in.Turns {
		parts, err := toParts(t.Parts)
		if err != nil {
			return "", &gateway.RemoteAPIError{Status: http.StatusBadRequest, Message: err.Error()}
		}
		switch t.Role {
		case "system":
			system = append(system, parts...)
		case "assistant":
			history = append(history, &genai.Content{Role: "model", Parts: parts})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: parts})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: system}
	}
	if len(history) == 0 {
		return "", &gateway.RemoteAPIError{Status: http.StatusBadRequest, Message: "no messages to send"}
	}

	session := model.StartChat()
	session.History = history[:len(history)-1]
	last := history[len(history)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", mapError(err)
	}
	return responseText(resp)
}

func toParts(in []gateway.Part) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(in))
	for _, p := range in {
		if p.ImageURL == "" {
			parts = append(parts, genai.Text(p.Text))
			continue
		}
		part, err := imagePart(p.ImageURL)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// imagePart inlines data URLs and passes remote URLs by reference.
func imagePart(ref string) (genai.Part, error) {
	if rest, ok := strings.CutPrefix(ref, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, errors.New("image data URL must be base64 encoded")
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding image data: %w", err)
		}
		mimeType := strings.TrimSuffix(meta, ";base64")
		return genai.Blob{MIMEType: mimeType, Data: data}, nil
	}

	mimeType := mime.TypeByExtension(path.Ext(ref))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	return genai.FileData{MIMEType: mimeType, FileURI: ref}, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", gateway.ErrEmptyCompletion
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", gateway.ErrEmptyCompletion
	}
	return b.String(), nil
}

// mapError turns gRPC statuses into remote errors; anything without a status
// is left for the gateway to treat as a transport failure.
func mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	code := httpStatus(st.Code())
	if code == 0 {
		return err
	}
	return &gateway.RemoteAPIError{Status: code, Message: st.Message()}
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return http.StatusBadGateway
	default:
		// Canceled and DeadlineExceeded are transport failures.
		return 0
	}
}
