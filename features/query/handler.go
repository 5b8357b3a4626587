package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"askdoc/internal/middleware"
	"askdoc/internal/retrieval"
	"askdoc/internal/synthesis"
)

// ApologyAnswer is shown when answer generation fails after the full retry
// budget; the underlying cause is logged, never surfaced.
const ApologyAnswer = "Sorry, I wasn't able to generate an answer right now. Please try again in a moment."

type AskService interface {
	Ask(ctx context.Context, ownerID, question string) (*retrieval.Answer, error)
}

type Handler struct {
	service AskService
}

func NewHandler(service AskService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.Owner(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "UNAUTHORIZED", "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "question is required", http.StatusBadRequest)
		return
	}

	answer, err := h.service.Ask(r.Context(), owner, req.Question)
	if err != nil {
		if errors.Is(err, synthesis.ErrExhausted) {
			slog.ErrorContext(r.Context(), "answer synthesis failed", "error", err)
			h.writeJSON(w, retrieval.Answer{Text: ApologyAnswer, Citations: []retrieval.Citation{}})
			return
		}
		slog.ErrorContext(r.Context(), "query failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, answer)
}

func (h *Handler) writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
