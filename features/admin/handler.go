package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"docuchat/backend/internal/middleware"
	"docuchat/backend/internal/vectorstore"
)

type Recoverer interface {
	Recover(ctx context.Context) (*vectorstore.Handle, error)
}

type ReindexPublisher interface {
	PublishReindex(filename string) error
}

// DocumentCatalog is the relational catalog view the admin surface
// needs for stats and full reindexing.
type DocumentCatalog interface {
	Count(ctx context.Context) (int, error)
	Filenames(ctx context.Context) ([]string, error)
}

type ChatCounter interface {
	Count(ctx context.Context) (int, error)
}

// Handler exposes the maintenance surface over the vector index.
type Handler struct {
	embeddings *vectorstore.EmbeddingsManager
	handle     *vectorstore.Handle
	recoverer  Recoverer
	publisher  ReindexPublisher
	catalog    DocumentCatalog
	chats      ChatCounter
}

func NewHandler(embeddings *vectorstore.EmbeddingsManager, handle *vectorstore.Handle, recoverer Recoverer, publisher ReindexPublisher, catalog DocumentCatalog, chats ChatCounter) *Handler {
	return &Handler{
		embeddings: embeddings,
		handle:     handle,
		recoverer:  recoverer,
		publisher:  publisher,
		catalog:    catalog,
		chats:      chats,
	}
}

func (h *Handler) ListEmbeddings(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 50)
	filename := r.URL.Query().Get("filename")

	result, err := h.embeddings.Paginate(r.Context(), page, perPage, filename)
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	h.writeData(w, result)
}

func (h *Handler) ListEmbeddingDocuments(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 50)

	result, err := h.embeddings.PaginateDocuments(r.Context(), page, perPage)
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	h.writeData(w, result)
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.embeddings.ListDocuments(r.Context())
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	if docs == nil {
		docs = []vectorstore.DocumentSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) DeleteEmbedding(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.embeddings.DeleteByID(r.Context(), id); err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) DeleteDocumentEmbeddings(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	deleted, err := h.embeddings.DeleteByFilename(r.Context(), filename)
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	if !deleted {
		h.writeError(r.Context(), w, "NOT_FOUND", "No embeddings for that filename", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) ClearEmbeddings(w http.ResponseWriter, r *http.Request) {
	count, err := h.embeddings.ClearAll(r.Context())
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}
	h.writeData(w, map[string]int{"deleted": count})
}

func (h *Handler) CollectionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.embeddings.Info(r.Context())
	if err != nil {
		h.writeStoreError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data":  info,
		"state": h.handle.State().String(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Recover forces a fresh vector store initialization cycle.
func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	handle, err := h.recoverer.Recover(r.Context())
	if err != nil {
		slog.Error("vector store recovery failed", "error", err)
		h.writeError(r.Context(), w, "RECOVERY_FAILED", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeData(w, map[string]string{"state": handle.State().String()})
}

type StatsResponse struct {
	Documents   int    `json:"documents"`
	ChatEntries int    `json:"chat_entries"`
	Embeddings  int    `json:"embeddings"`
	VectorStore string `json:"vector_store"`
}

// Stats reports counts across the catalog, the chat history, and the
// vector index. An unavailable vector store zeroes the embedding count
// instead of failing the whole response.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docCount, err := h.catalog.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to count documents", http.StatusInternalServerError)
		return
	}
	chatCount, err := h.chats.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chat entries", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to count chat entries", http.StatusInternalServerError)
		return
	}

	stats := StatsResponse{
		Documents:   docCount,
		ChatEntries: chatCount,
		VectorStore: h.handle.State().String(),
	}
	if info, err := h.embeddings.Info(ctx); err == nil {
		stats.Embeddings = info.TotalEmbeddings
	} else {
		slog.WarnContext(ctx, "embedding count unavailable", "error", err)
	}

	h.writeData(w, stats)
}

// ReindexAll queues a rebuild for every document in the catalog.
func (h *Handler) ReindexAll(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		h.writeError(r.Context(), w, "NOT_CONFIGURED", "Reindex worker is not enabled", http.StatusServiceUnavailable)
		return
	}

	filenames, err := h.catalog.Filenames(r.Context())
	if err != nil {
		slog.Error("failed to list documents for reindex", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Failed to list documents", http.StatusInternalServerError)
		return
	}

	queued := 0
	for _, filename := range filenames {
		if err := h.publisher.PublishReindex(filename); err != nil {
			slog.Error("failed to queue reindex", "error", err, "filename", filename)
			continue
		}
		queued++
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resp := map[string]interface{}{"data": map[string]int{"queued": queued}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Reindex queues a rebuild of one document's embeddings.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if h.publisher == nil {
		h.writeError(r.Context(), w, "NOT_CONFIGURED", "Reindex worker is not enabled", http.StatusServiceUnavailable)
		return
	}
	if err := h.publisher.PublishReindex(filename); err != nil {
		slog.Error("failed to queue reindex", "error", err, "filename", filename)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Failed to queue reindex", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resp := map[string]interface{}{"data": map[string]string{"status": "queued", "filename": filename}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	var unavailable *vectorstore.StoreUnavailableError
	if errors.As(err, &unavailable) {
		h.writeError(ctx, w, "STORE_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
		return
	}
	slog.Error("admin operation failed", "error", err)
	h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
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
