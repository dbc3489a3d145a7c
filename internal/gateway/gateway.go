package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/treinoia/treinoia/internal/config"
	"github.com/treinoia/treinoia/internal/metrics"
)

// Options fixes the sampling parameters and call bounds. Callers cannot
// override them per request.
type Options struct {
	ChatMaxTokens    int
	ChatTemperature  float64
	PhotoMaxTokens   int
	PhotoTemperature float64
	Timeout          time.Duration
	RatePerSecond    float64
	RateBurst        int
}

func OptionsFromConfig(cfg config.AIConfig) Options {
	return Options{
		ChatMaxTokens:    cfg.ChatMaxTokens,
		ChatTemperature:  cfg.ChatTemp,
		PhotoMaxTokens:   cfg.PhotoMaxTokens,
		PhotoTemperature: cfg.PhotoTemp,
		Timeout:          cfg.Timeout,
		RatePerSecond:    cfg.RatePerSecond,
		RateBurst:        cfg.RateBurst,
	}
}

// Gateway sends validated requests to the completion API, one round trip
// per call, and normalizes the answer.
type Gateway struct {
	completer Completer
	limiter   *rate.Limiter
	opts      Options
}

func New(completer Completer, opts Options) *Gateway {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Gateway{
		completer: completer,
		limiter:   rate.NewLimiter(limit, burst),
		opts:      opts,
	}
}

// Complete runs one request. Failures are returned as ConfigurationError,
// *RemoteAPIError, *InvalidModelOutputError, *TransportError or
// *UnsupportedRequestKindError.
func (g *Gateway) Complete(ctx context.Context, req Request) (Response, error) {
	var (
		call  Completion
		parse func(string) (Response, error)
		kind  Kind
	)
	switch r := deref(req).(type) {
	case ChatRequest:
		kind = r.Kind()
		call = g.chatCompletion(r)
		parse = func(text string) (Response, error) {
			return ChatResponse{Message: text}, nil
		}
	case PhotoAnalysisRequest:
		kind = r.Kind()
		call = g.photoCompletion(r)
		parse = func(text string) (Response, error) {
			info, err := ExtractNutrition(text)
			if err != nil {
				slog.Error("gateway: unreadable model output", "kind", kind, "raw", text, "error", err)
				return nil, &InvalidModelOutputError{Raw: text, Reason: err}
			}
			return info, nil
		}
	default:
		return nil, &UnsupportedRequestKindError{Kind: fmt.Sprintf("%T", req)}
	}

	if g.completer == nil || !g.completer.Configured() {
		name := "ai"
		if g.completer != nil {
			name = g.completer.Name()
		}
		metrics.AIRequestsTotal.WithLabelValues(string(kind), "config_error").Inc()
		return nil, ConfigurationError{Provider: name}
	}

	text, err := g.call(ctx, kind, call)
	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(string(kind), Outcome(err)).Inc()
		return nil, err
	}

	resp, err := parse(text)
	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(string(kind), Outcome(err)).Inc()
		return nil, err
	}
	metrics.AIRequestsTotal.WithLabelValues(string(kind), "ok").Inc()
	return resp, nil
}

func (g *Gateway) call(ctx context.Context, kind Kind, c Completion) (string, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", &TransportError{Err: err}
	}

	start := time.Now()
	text, err := g.completer.Complete(ctx, c)
	metrics.AIRemoteDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err == nil {
		return text, nil
	}

	var remoteErr *RemoteAPIError
	var cfgErr ConfigurationError
	switch {
	case errors.As(err, &remoteErr):
		slog.Warn("gateway: remote API rejected call", "kind", kind, "status", remoteErr.Status, "message", remoteErr.Message)
		return "", remoteErr
	case errors.As(err, &cfgErr):
		return "", cfgErr
	case errors.Is(err, ErrEmptyCompletion):
		slog.Error("gateway: empty completion", "kind", kind)
		return "", &InvalidModelOutputError{Reason: err}
	default:
		slog.Error("gateway: transport failure", "kind", kind, "error", err)
		return "", &TransportError{Err: err}
	}
}

func (g *Gateway) chatCompletion(r ChatRequest) Completion {
	turns := make([]Turn, 0, len(r.Messages)+1)
	turns = append(turns, TextTurn("system", trainerPersona))
	for _, m := range r.Messages {
		turns = append(turns, TextTurn(m.Role, m.Content))
	}
	return Completion{
		Turns:       turns,
		Temperature: g.opts.ChatTemperature,
		MaxTokens:   g.opts.ChatMaxTokens,
	}
}

func (g *Gateway) photoCompletion(r PhotoAnalysisRequest) Completion {
	return Completion{
		Turns: []Turn{{
			Role: "user",
			Parts: []Part{
				{Text: foodAnalysisInstruction},
				{ImageURL: r.Image},
			},
		}},
		Temperature: g.opts.PhotoTemperature,
		MaxTokens:   g.opts.PhotoMaxTokens,
	}
}

func deref(req Request) Request {
	switch r := req.(type) {
	case *ChatRequest:
		if r != nil {
			return *r
		}
	case *PhotoAnalysisRequest:
		if r != nil {
			return *r
		}
	}
	return req
}

// Outcome labels err for metrics and usage events. A nil error is "ok".
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		remoteErr *RemoteAPIError
		outErr    *InvalidModelOutputError
		cfgErr    ConfigurationError
	)
	switch {
	case errors.As(err, &remoteErr):
		return "remote_error"
	case errors.As(err, &outErr):
		return "invalid_output"
	case errors.As(err, &cfgErr):
		return "config_error"
	default:
		return "transport_error"
	}
}
