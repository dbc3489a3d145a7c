package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/treinoia/treinoia/internal/api"
)

// ErrEmptyCompletion is returned by a Completer when the remote answered
// successfully but produced no text.
var ErrEmptyCompletion = errors.New("remote returned no completion")

// ConfigurationError means the gateway has no usable remote credential.
// No remote call is attempted.
type ConfigurationError struct {
	Provider string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("%s: API credential not configured", e.Provider)
}

// RemoteAPIError is a non-success answer from the completion API.
type RemoteAPIError struct {
	Status  int
	Message string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote API error (status %d): %s", e.Status, e.Message)
}

// InvalidModelOutputError means the model text could not be read as the
// expected payload. Raw holds the text for logs only.
type InvalidModelOutputError struct {
	Raw    string
	Reason error
}

func (e *InvalidModelOutputError) Error() string {
	return fmt.Sprintf("invalid model output: %v", e.Reason)
}

func (e *InvalidModelOutputError) Unwrap() error {
	return e.Reason
}

// TransportError wraps network failures and timeouts.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnsupportedRequestKindError is returned by DecodeRequest for an unknown
// "type" discriminator.
type UnsupportedRequestKindError struct {
	Kind string
}

func (e *UnsupportedRequestKindError) Error() string {
	return fmt.Sprintf("unsupported request type %q", e.Kind)
}

// InvalidRequestError is a well-tagged request whose payload is unusable.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// ToAppError maps a gateway failure to the status and pt-PT message the
// client sees. Remote statuses are forwarded.
func ToAppError(err error) *api.AppError {
	var (
		cfgErr    ConfigurationError
		remoteErr *RemoteAPIError
		outErr    *InvalidModelOutputError
		kindErr   *UnsupportedRequestKindError
		reqErr    *InvalidRequestError
	)
	switch {
	case errors.As(err, &cfgErr):
		return api.NewError(http.StatusInternalServerError,
			"Chave da API de IA não configurada. Configura a variável OPENAI_API_KEY nas definições do servidor.")
	case errors.As(err, &remoteErr):
		status := remoteErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		msg := remoteErr.Message
		if msg == "" {
			msg = "Erro desconhecido"
		}
		return api.NewError(status, "Erro ao comunicar com a IA: "+msg)
	case errors.As(err, &outErr):
		return api.ErrInvalidModelOutput
	case errors.As(err, &kindErr):
		return api.ErrUnsupportedKind
	case errors.As(err, &reqErr):
		return api.NewValidationError(reqErr.Reason)
	default:
		return api.ErrInternalServer
	}
}
