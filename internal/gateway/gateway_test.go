package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter stands in for the remote completion API.
type fakeCompleter struct {
	mu         sync.Mutex
	configured bool
	text       string
	err        error
	delay      time.Duration
	calls      []Completion
}

func (f *fakeCompleter) Name() string     { return "fake" }
func (f *fakeCompleter) Configured() bool { return f.configured }

func (f *fakeCompleter) Complete(ctx context.Context, c Completion) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testOptions() Options {
	return Options{
		ChatMaxTokens:    1500,
		ChatTemperature:  0.8,
		PhotoMaxTokens:   1200,
		PhotoTemperature: 0.7,
		Timeout:          time.Second,
	}
}

func TestComplete_Chat(t *testing.T) {
	fc := &fakeCompleter{configured: true, text: "Aqui tens um treino de 20 minutos: ..."}
	gw := New(fc, testOptions())

	resp, err := gw.Complete(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "Cria um treino de 20 minutos"}},
	})
	require.NoError(t, err)

	chat, ok := resp.(ChatResponse)
	require.True(t, ok)
	assert.NotEmpty(t, chat.Message)
	assert.Equal(t, fc.text, chat.Message)

	require.Equal(t, 1, fc.callCount())
	call := fc.calls[0]
	assert.Equal(t, 0.8, call.Temperature)
	assert.Equal(t, 1500, call.MaxTokens)
	require.Len(t, call.Turns, 2)
	assert.Equal(t, "system", call.Turns[0].Role)
	assert.Equal(t, trainerPersona, call.Turns[0].Parts[0].Text)
	assert.Equal(t, TextTurn("user", "Cria um treino de 20 minutos"), call.Turns[1])
}

func TestComplete_ChatPersonaStaysFirst(t *testing.T) {
	fc := &fakeCompleter{configured: true, text: "ok"}
	gw := New(fc, testOptions())

	_, err := gw.Complete(context.Background(), ChatRequest{Messages: []Message{
		{Role: "system", Content: "Sê breve"},
		{Role: "user", Content: "Olá"},
		{Role: "assistant", Content: "Olá! Em que posso ajudar?"},
		{Role: "user", Content: "Plano de pernas"},
	}})
	require.NoError(t, err)

	turns := fc.calls[0].Turns
	require.Len(t, turns, 5)
	roles := make([]string, len(turns))
	for i, turn := range turns {
		roles[i] = turn.Role
	}
	assert.Equal(t, []string{"system", "system", "user", "assistant", "user"}, roles)
	assert.Equal(t, trainerPersona, turns[0].Parts[0].Text)
}

func TestComplete_Photo(t *testing.T) {
	fc := &fakeCompleter{configured: true, text: "```json\n" + saladJSON + "\n```"}
	gw := New(fc, testOptions())

	resp, err := gw.Complete(context.Background(), PhotoAnalysisRequest{Image: "data:image/jpeg;base64,AAAA"})
	require.NoError(t, err)

	info, ok := resp.(*NutritionInfo)
	require.True(t, ok)
	assert.Equal(t, "Salada", info.FoodName)
	assert.Equal(t, 120, info.Calories)

	call := fc.calls[0]
	assert.Equal(t, 0.7, call.Temperature)
	assert.Equal(t, 1200, call.MaxTokens)
	require.Len(t, call.Turns, 1)
	assert.Equal(t, "user", call.Turns[0].Role)
	assert.Equal(t, []Part{
		{Text: foodAnalysisInstruction},
		{ImageURL: "data:image/jpeg;base64,AAAA"},
	}, call.Turns[0].Parts)
}

func TestComplete_PhotoProseIsInvalidOutput(t *testing.T) {
	fc := &fakeCompleter{configured: true, text: "Não consigo ver comida nesta imagem."}
	gw := New(fc, testOptions())

	resp, err := gw.Complete(context.Background(), PhotoAnalysisRequest{Image: "https://x.test/a.jpg"})
	assert.Nil(t, resp)

	var outErr *InvalidModelOutputError
	require.True(t, errors.As(err, &outErr))
	assert.Equal(t, fc.text, outErr.Raw)
	assert.NotContains(t, err.Error(), fc.text)

	appErr := ToAppError(err)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Equal(t, "Não foi possível analisar a imagem. Tenta novamente.", appErr.Message)
}

func TestComplete_MissingCredentialMakesNoCall(t *testing.T) {
	fc := &fakeCompleter{configured: false, text: "nunca"}
	gw := New(fc, testOptions())

	for _, req := range []Request{
		ChatRequest{Messages: []Message{{Role: "user", Content: "Olá"}}},
		PhotoAnalysisRequest{Image: "https://x.test/a.jpg"},
	} {
		_, err := gw.Complete(context.Background(), req)

		var cfgErr ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, http.StatusInternalServerError, ToAppError(err).Code)
	}
	assert.Zero(t, fc.callCount())

	_, err := New(nil, testOptions()).Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "Olá"}}})
	assert.True(t, errors.As(err, new(ConfigurationError)))
}

func TestComplete_RemoteErrorForwardsStatus(t *testing.T) {
	fc := &fakeCompleter{configured: true, err: &RemoteAPIError{Status: http.StatusTooManyRequests, Message: "Rate limit reached"}}
	gw := New(fc, testOptions())

	_, err := gw.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "Olá"}}})

	var remoteErr *RemoteAPIError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusTooManyRequests, remoteErr.Status)
	assert.Equal(t, 1, fc.callCount(), "no retry")

	appErr := ToAppError(err)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Code)
	assert.Equal(t, "Erro ao comunicar com a IA: Rate limit reached", appErr.Message)
}

func TestComplete_TransportError(t *testing.T) {
	fc := &fakeCompleter{configured: true, err: errors.New("dial tcp: connection refused")}
	gw := New(fc, testOptions())

	_, err := gw.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "Olá"}}})

	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
	appErr := ToAppError(err)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Equal(t, "Erro interno do servidor", appErr.Message)
}

func TestComplete_TimeoutIsTransportError(t *testing.T) {
	fc := &fakeCompleter{configured: true, text: "tarde demais", delay: time.Second}
	opts := testOptions()
	opts.Timeout = 20 * time.Millisecond
	gw := New(fc, opts)

	start := time.Now()
	_, err := gw.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "Olá"}}})

	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestComplete_EmptyCompletion(t *testing.T) {
	fc := &fakeCompleter{configured: true, err: ErrEmptyCompletion}
	gw := New(fc, testOptions())

	_, err := gw.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "Olá"}}})
	assert.True(t, errors.As(err, new(*InvalidModelOutputError)))
}

func TestComplete_UnsupportedRequest(t *testing.T) {
	fc := &fakeCompleter{configured: true}
	gw := New(fc, testOptions())

	_, err := gw.Complete(context.Background(), nil)
	assert.True(t, errors.As(err, new(*UnsupportedRequestKindError)))
	assert.Zero(t, fc.callCount())
}

func TestComplete_AcceptsPointerRequests(t *testing.T) {
	fc := &fakeCompleter{configured: true, text: "ok"}
	gw := New(fc, testOptions())

	resp, err := gw.Complete(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "Olá"}}})
	require.NoError(t, err)
	assert.Equal(t, ChatResponse{Message: "ok"}, resp)
}

func TestComplete_RateLimiterHonorsContext(t *testing.T) {
	fc := &fakeCompleter{configured: true, text: "ok"}
	opts := testOptions()
	opts.RatePerSecond = 0.001
	opts.RateBurst = 1
	opts.Timeout = 50 * time.Millisecond
	gw := New(fc, opts)

	req := ChatRequest{Messages: []Message{{Role: "user", Content: "Olá"}}}
	_, err := gw.Complete(context.Background(), req)
	require.NoError(t, err)

	// The bucket is empty and refills far slower than the timeout.
	_, err = gw.Complete(context.Background(), req)
	assert.True(t, errors.As(err, new(*TransportError)))
	assert.Equal(t, 1, fc.callCount())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "remote_error", Outcome(&RemoteAPIError{Status: 500}))
	assert.Equal(t, "invalid_output", Outcome(&InvalidModelOutputError{}))
	assert.Equal(t, "config_error", Outcome(ConfigurationError{}))
	assert.Equal(t, "transport_error", Outcome(&TransportError{Err: errors.New("x")}))
}

func TestToAppError_RemoteStatusOutOfRange(t *testing.T) {
	appErr := ToAppError(&RemoteAPIError{Status: 200})
	assert.Equal(t, http.StatusBadGateway, appErr.Code)
	assert.Equal(t, "Erro ao comunicar com a IA: Erro desconhecido", appErr.Message)
}
