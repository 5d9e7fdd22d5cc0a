package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"docuchat/backend/internal/middleware"
	"docuchat/backend/internal/vectorstore"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Question is required", http.StatusBadRequest)
		return
	}

	answer, err := h.service.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		var unavailable *vectorstore.StoreUnavailableError
		switch {
		case errors.Is(err, ErrNoDocuments):
			h.writeError(r.Context(), w, "NO_DOCUMENTS", err.Error(), http.StatusConflict)
		case errors.As(err, &unavailable):
			h.writeError(r.Context(), w, "STORE_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
		default:
			slog.Error("query failed", "error", err)
			h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": answer}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
