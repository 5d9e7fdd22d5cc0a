package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"docuchat/backend/features/admin"
	"docuchat/backend/features/chat"
	"docuchat/backend/features/document"
	"docuchat/backend/features/query"
	"docuchat/backend/internal/config"
	"docuchat/backend/internal/middleware"
	"docuchat/backend/internal/retrieval"
	"docuchat/backend/internal/storage"
	"docuchat/backend/internal/vectorstore"
	"docuchat/backend/internal/worker"
)

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
	ReindexConsumer *worker.ReindexConsumer

	port int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	manager *vectorstore.Manager,
	embedder retrieval.Embedder,
	generator retrieval.Generator,
	searcher document.WebSearcher,
	publisher admin.ReindexPublisher,
) (*App, error) {
	handle := manager.Handle()

	fileStore, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("file store error: %w", err)
	}

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	orchestrator := retrieval.NewOrchestrator(embedder, generator, handle, queryLogger)
	embeddings := vectorstore.NewEmbeddingsManager(handle)

	// Feature: Document
	documentRepo := document.NewPostgresRepo(db)
	documentService := document.NewService(documentRepo, orchestrator, embeddings, fileStore, searcher, generator)
	documentHandler := document.NewHandler(documentService, cfg.MaxUploadSizeMB)

	// Feature: Chat
	chatRepo := chat.NewPostgresRepo(db)
	chatService := chat.NewService(chatRepo)
	chatHandler := chat.NewHandler(chatService)

	// Feature: Query
	queryService := query.NewService(orchestrator, &documentCatalogAdapter{service: documentService}, chatService, cfg.QueryTopK)
	queryHandler := query.NewHandler(queryService)

	// Feature: Admin
	adminHandler := admin.NewHandler(embeddings, handle, manager, publisher, documentRepo, chatRepo)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents/upload", middleware.CorrelationID(enableCORS(documentHandler.Upload)))
	mux.Handle("POST /documents/search", middleware.CorrelationID(enableCORS(documentHandler.CreateFromSearch)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(documentHandler.List)))
	mux.Handle("GET /documents/{filename}", middleware.CorrelationID(enableCORS(documentHandler.Get)))
	mux.Handle("PUT /documents/{filename}", middleware.CorrelationID(enableCORS(documentHandler.Update)))
	mux.Handle("DELETE /documents/{filename}", middleware.CorrelationID(enableCORS(documentHandler.Delete)))
	mux.Handle("POST /documents/{filename}/summarize", middleware.CorrelationID(enableCORS(documentHandler.Summarize)))

	mux.Handle("POST /query", middleware.CorrelationID(enableCORS(queryHandler.Ask)))

	mux.Handle("GET /chats", middleware.CorrelationID(enableCORS(chatHandler.List)))
	mux.Handle("PUT /chats/{id}/saved", middleware.CorrelationID(enableCORS(chatHandler.SetSaved)))
	mux.Handle("DELETE /chats/{id}", middleware.CorrelationID(enableCORS(chatHandler.Delete)))

	mux.Handle("GET /admin/embeddings", middleware.CorrelationID(enableCORS(adminHandler.ListEmbeddings)))
	mux.Handle("GET /admin/embeddings/documents", middleware.CorrelationID(enableCORS(adminHandler.ListEmbeddingDocuments)))
	mux.Handle("GET /admin/documents", middleware.CorrelationID(enableCORS(adminHandler.ListDocuments)))
	mux.Handle("DELETE /admin/embeddings/{id}", middleware.CorrelationID(enableCORS(adminHandler.DeleteEmbedding)))
	mux.Handle("DELETE /admin/embeddings", middleware.CorrelationID(enableCORS(adminHandler.ClearEmbeddings)))
	mux.Handle("DELETE /admin/documents/{filename}", middleware.CorrelationID(enableCORS(adminHandler.DeleteDocumentEmbeddings)))
	mux.Handle("GET /admin/collection", middleware.CorrelationID(enableCORS(adminHandler.CollectionInfo)))
	mux.Handle("GET /admin/stats", middleware.CorrelationID(enableCORS(adminHandler.Stats)))
	mux.Handle("POST /admin/recover", middleware.CorrelationID(enableCORS(adminHandler.Recover)))
	mux.Handle("POST /admin/reindex", middleware.CorrelationID(enableCORS(adminHandler.ReindexAll)))
	mux.Handle("POST /admin/reindex/{filename}", middleware.CorrelationID(enableCORS(adminHandler.Reindex)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","vector_store":%q}`, handle.State())
	})

	return &App{
		Handler:         mux,
		DocumentService: documentService,
		ReindexConsumer: worker.NewReindexConsumer(documentService),
		port:            cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Adapter for the query feature's catalog view.
type documentCatalogAdapter struct {
	service *document.Service
}

func (a *documentCatalogAdapter) List(ctx context.Context) ([]query.Document, error) {
	docs, err := a.service.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]query.Document, len(docs))
	for i, d := range docs {
		out[i] = query.Document{Filename: d.Filename}
	}
	return out, nil
}
