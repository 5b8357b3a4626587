package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"askdoc/internal/middleware"
)

type Uploader interface {
	Upload(ctx context.Context, path string, data []byte) error
}

type Handler struct {
	service       *Service
	storage       Uploader
	maxUploadSize int64
}

func NewHandler(service *Service, storage Uploader, maxUploadSizeMB int64) *Handler {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 50
	}
	return &Handler{service: service, storage: storage, maxUploadSize: maxUploadSizeMB << 20}
}

var allowedExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true,
	".json": true, ".pdf": true, ".docx": true,
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.Owner(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "UNAUTHORIZED", "authentication required", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !allowedExtensions[ext] {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Unsupported file type", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Failed to read file", http.StatusInternalServerError)
		return
	}

	path := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(header.Filename))
	if err := h.storage.Upload(r.Context(), path, data); err != nil {
		slog.ErrorContext(r.Context(), "failed to save upload", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Failed to save file", http.StatusInternalServerError)
		return
	}

	doc, err := h.service.Create(r.Context(), owner, header.Filename, path)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create document", "error", err, "name", header.Filename)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, map[string]interface{}{"data": doc})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.Owner(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "UNAUTHORIZED", "authentication required", http.StatusUnauthorized)
		return
	}

	docs, err := h.service.List(r.Context(), owner)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list documents", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	h.writeJSON(w, map[string]interface{}{"data": docs})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.Owner(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "UNAUTHORIZED", "authentication required", http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	detail, err := h.service.Get(r.Context(), owner, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "failed to get document", "error", err, "document_id", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]interface{}{"data": detail})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, err := middleware.Owner(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "UNAUTHORIZED", "authentication required", http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), owner, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete document", "error", err, "document_id", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
