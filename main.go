package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"docuchat/backend/features/admin"
	"docuchat/backend/features/document"
	"docuchat/backend/internal/adapter/gemini"
	"docuchat/backend/internal/adapter/openai"
	"docuchat/backend/internal/adapter/perplexity"
	"docuchat/backend/internal/app"
	"docuchat/backend/internal/config"
	"docuchat/backend/internal/logger"
	"docuchat/backend/internal/retrieval"
	"docuchat/backend/internal/worker"
)

func main() {
	// Structured logger with correlation ids from request context.
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer deps.DB.Close()

	embedder, generator, err := buildLLM(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize llm adapters: %w", err)
	}

	var searcher document.WebSearcher
	if cfg.PerplexityAPIKey != "" {
		searcher = perplexity.NewClient(cfg.PerplexityAPIKey)
	}

	var publisher admin.ReindexPublisher
	if deps.Publisher != nil {
		publisher = deps.Publisher
	}

	application, err := app.New(cfg, deps.DB, deps.VectorManager, embedder, generator, searcher, publisher)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	if cfg.EnableReindexWorker {
		consumer, err := worker.Start(cfg.NSQLookupd, application.ReindexConsumer)
		if err != nil {
			slog.Error("failed to start reindex consumer", "error", err)
		} else {
			slog.Info("reindex consumer connected")
			defer consumer.Stop()
		}
	}

	if !cfg.EnableAPI {
		slog.Info("api disabled, running worker only")
		<-ctx.Done()
		return nil
	}

	return application.Run(ctx)
}

func buildLLM(ctx context.Context, cfg *config.Config) (retrieval.Embedder, retrieval.Generator, error) {
	if cfg.LLMProvider == "openai" {
		client := openai.NewClient(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatModel:      cfg.GenerationModel,
		})
		return client, client, nil
	}

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		return nil, nil, err
	}
	generator, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GenerationModel)
	if err != nil {
		return nil, nil, err
	}
	return embedder, generator, nil
}
