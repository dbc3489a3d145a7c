package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/treinoia/treinoia/internal/api"
	"github.com/treinoia/treinoia/internal/auth"
	inats "github.com/treinoia/treinoia/internal/nats"
	"github.com/treinoia/treinoia/internal/quota"
)

// maxBodyBytes bounds the request body; photos arrive inline as data URLs.
const maxBodyBytes = 12 << 20

// Reservation is a claimed unit of quota. *quota.Reservation implements it.
type Reservation interface {
	Commit(ctx context.Context)
	Release(ctx context.Context)
}

// ReserveFunc claims quota for one call before it is made.
type ReserveFunc func(ctx context.Context, userID uuid.UUID, kind quota.CounterKind) (Reservation, error)

// QuotaReserver adapts a quota service to a ReserveFunc.
func QuotaReserver(svc *quota.Service) ReserveFunc {
	return func(ctx context.Context, userID uuid.UUID, kind quota.CounterKind) (Reservation, error) {
		res, err := svc.Reserve(ctx, userID, kind)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
}

// Recorder keeps the history of successful calls.
type Recorder interface {
	RecordChat(ctx context.Context, userID uuid.UUID, messages []Message, reply string) error
	RecordAnalysis(ctx context.Context, userID uuid.UUID, info *NutritionInfo) error
}

type Handler struct {
	gw      *Gateway
	reserve ReserveFunc
	history Recorder
	events  inats.EventPublisher
}

// NewHandler wires the AI endpoint. history and events may be nil.
func NewHandler(gw *Gateway, reserve ReserveFunc, history Recorder, events inats.EventPublisher) *Handler {
	if events == nil {
		events = inats.NopPublisher{}
	}
	return &Handler{gw: gw, reserve: reserve, history: history, events: events}
}

// CounterKind maps a request kind to the quota counter it consumes.
func CounterKind(k Kind) quota.CounterKind {
	if k == KindFoodAnalysis {
		return quota.KindPhoto
	}
	return quota.KindChat
}

// Complete serves POST /api/v1/ai.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := auth.UserID(ctx)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("Corpo do pedido demasiado grande"))
		return
	}

	req, err := DecodeRequest(body)
	if err != nil {
		api.HandleError(w, ToAppError(err))
		return
	}
	kind := CounterKind(req.Kind())

	var res Reservation
	if h.reserve != nil {
		res, err = h.reserve(ctx, userID, kind)
		switch {
		case errors.Is(err, quota.ErrQuotaExceeded):
			api.HandleError(w, api.ErrQuotaExceeded)
			return
		case errors.Is(err, quota.ErrRateLimited):
			api.HandleError(w, api.ErrRateLimited)
			return
		case err != nil:
			slog.Error("reserving quota", "user_id", userID, "kind", kind, "error", err)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
	}

	start := time.Now()
	resp, err := h.gw.Complete(ctx, req)
	h.publishUsage(ctx, userID, kind, err, time.Since(start))

	if err != nil {
		if res != nil {
			res.Release(ctx)
		}
		api.HandleError(w, ToAppError(err))
		return
	}

	if res != nil {
		res.Commit(ctx)
	}
	h.record(ctx, userID, req, resp)

	api.JSONRaw(w, http.StatusOK, resp)
}

func (h *Handler) record(ctx context.Context, userID uuid.UUID, req Request, resp Response) {
	if h.history == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	var err error
	switch v := resp.(type) {
	case ChatResponse:
		if chat, ok := req.(ChatRequest); ok {
			err = h.history.RecordChat(ctx, userID, chat.Messages, v.Message)
		}
	case *NutritionInfo:
		err = h.history.RecordAnalysis(ctx, userID, v)
	}
	if err != nil {
		slog.Warn("recording history", "user_id", userID, "kind", resp.Kind(), "error", err)
	}
}

func (h *Handler) publishUsage(ctx context.Context, userID uuid.UUID, kind quota.CounterKind, callErr error, elapsed time.Duration) {
	event := inats.UsageEvent{
		UserID:     userID,
		Kind:       string(kind),
		Outcome:    Outcome(callErr),
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	var remoteErr *RemoteAPIError
	if errors.As(callErr, &remoteErr) {
		event.RemoteStatus = remoteErr.Status
	}
	if err := h.events.PublishUsageEvent(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn("publishing usage event", "error", err)
	}
}
