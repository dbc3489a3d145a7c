package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the envelope for every JSON body except the AI endpoint.
type Response struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PaginatedResponse wraps one page of a listing.
type PaginatedResponse struct {
	Data       any   `json:"data"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	HasMore    bool  `json:"has_more"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

// JSONRaw writes v as the whole body, without the data envelope. The AI
// endpoint uses it so clients see the flat payloads they expect.
func JSONRaw(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

func JSONMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Message: message})
}

func JSONPaginated(w http.ResponseWriter, status int, data any, totalCount int64, page, pageSize int) {
	writeJSON(w, status, PaginatedResponse{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64(page)*int64(pageSize) < totalCount,
	})
}

func JSONErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Error: message})
}

// writeJSON sends v with the given status. The header is already out when
// encoding fails, so the error is only logged.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing json response", "status", status, "error", err)
	}
}
