package api

import (
	"errors"
	"net/http"
)

// AppError is the only error shape that reaches a client. Messages are
// user-facing and in European Portuguese.
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Message: "Pedido inválido"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Message: "Sessão inválida. Inicia sessão novamente."}
	ErrForbidden          = &AppError{Code: http.StatusForbidden, Message: "Acesso negado"}
	ErrNotFound           = &AppError{Code: http.StatusNotFound, Message: "Não encontrado"}
	ErrConflict           = &AppError{Code: http.StatusConflict, Message: "Conflito"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Message: "Erro interno do servidor"}
	ErrInvalidCredentials = &AppError{Code: http.StatusUnauthorized, Message: "Email ou palavra-passe incorretos"}
	ErrEmailAlreadyExists = &AppError{Code: http.StatusConflict, Message: "Este email já está registado"}
	ErrInvalidToken       = &AppError{Code: http.StatusUnauthorized, Message: "Sessão expirada. Inicia sessão novamente."}
	ErrAdminRequired      = &AppError{Code: http.StatusForbidden, Message: "Acesso reservado a administradores"}
	ErrValidation         = &AppError{Code: http.StatusBadRequest, Message: "Dados inválidos"}

	// ErrQuotaExceeded carries the upgrade prompt shown when a plan limit is hit.
	ErrQuotaExceeded      = &AppError{Code: http.StatusPaymentRequired, Message: "Atingiste o limite diário do teu plano. Faz upgrade para continuar."}
	ErrRateLimited        = &AppError{Code: http.StatusTooManyRequests, Message: "Demasiados pedidos. Aguarda um momento."}
	ErrUnsupportedKind    = &AppError{Code: http.StatusBadRequest, Message: "Tipo de pedido inválido"}
	ErrInvalidModelOutput = &AppError{Code: http.StatusInternalServerError, Message: "Não foi possível analisar a imagem. Tenta novamente."}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

// NewError builds an AppError with an arbitrary status, used when a remote
// status code is forwarded to the caller.
func NewError(code int, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONErrorMessage(w, appErr.Code, appErr.Message)
		return
	}
	JSONErrorMessage(w, http.StatusInternalServerError, ErrInternalServer.Message)
}
