package gateway

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind is the wire discriminator of a gateway request.
type Kind string

const (
	KindChat         Kind = "chat"
	KindFoodAnalysis Kind = "food-analysis"
)

// Request is either a ChatRequest or a PhotoAnalysisRequest.
type Request interface {
	Kind() Kind
	sealed()
}

// Message is one caller-supplied chat turn.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

type ChatRequest struct {
	Messages []Message `json:"messages" validate:"required,min=1,dive"`
}

func (ChatRequest) Kind() Kind { return KindChat }
func (ChatRequest) sealed()    {}

// PhotoAnalysisRequest carries a data URL or an http(s) URL of a meal photo.
type PhotoAnalysisRequest struct {
	Image string `json:"image" validate:"required,imageref"`
}

func (PhotoAnalysisRequest) Kind() Kind { return KindFoodAnalysis }
func (PhotoAnalysisRequest) sealed()    {}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("imageref", func(fl validator.FieldLevel) bool {
		return isImageRef(fl.Field().String())
	})
	return v
}

func isImageRef(s string) bool {
	if strings.HasPrefix(s, "data:image/") {
		return strings.Contains(s, ";base64,")
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DecodeRequest reads the tagged JSON body of POST /api/v1/ai.
func DecodeRequest(data []byte) (Request, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &InvalidRequestError{Reason: "Corpo do pedido inválido"}
	}

	var req Request
	switch Kind(envelope.Type) {
	case KindChat:
		var r ChatRequest
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, &InvalidRequestError{Reason: "Corpo do pedido inválido"}
		}
		req = r
	case KindFoodAnalysis:
		var r PhotoAnalysisRequest
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, &InvalidRequestError{Reason: "Corpo do pedido inválido"}
		}
		req = r
	default:
		return nil, &UnsupportedRequestKindError{Kind: envelope.Type}
	}

	if err := Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate checks a request's payload.
func Validate(req Request) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &InvalidRequestError{Reason: "Pedido inválido"}
	}
	switch verrs[0].Field() {
	case "Messages":
		return &InvalidRequestError{Reason: "É necessária pelo menos uma mensagem"}
	case "Role":
		return &InvalidRequestError{Reason: "Papel de mensagem inválido"}
	case "Content":
		return &InvalidRequestError{Reason: "A mensagem não pode estar vazia"}
	case "Image":
		return &InvalidRequestError{Reason: "Imagem inválida"}
	}
	return &InvalidRequestError{Reason: "Pedido inválido"}
}
