package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
	"unicode"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"docuchat/backend/internal/config"
	"docuchat/backend/internal/vectorstore"
	"docuchat/backend/internal/worker"
)

type Dependencies struct {
	DB            *sql.DB
	VectorManager *vectorstore.Manager
	Publisher     *worker.Publisher
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Database
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("migration up error: %w", err)
	}

	// Vector store manager. Initialization failures are not fatal here:
	// the handle stays Failed and can be recovered through the admin
	// surface without restarting the process.
	manager := newVectorManager(cfg)
	if _, err := manager.Initialize(ctx); err != nil {
		slog.Error("vector store unavailable after retries", "error", err)
	}

	// NSQ publisher for reindex requests.
	var publisher *worker.Publisher
	if cfg.EnableReindexWorker {
		publisher, err = worker.NewPublisher(cfg.NSQDHost)
		if err != nil {
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		createTopics(cfg.NSQDHost)
	}

	return &Dependencies{
		DB:            db,
		VectorManager: manager,
		Publisher:     publisher,
	}, nil
}

func newVectorManager(cfg *config.Config) *vectorstore.Manager {
	opts := []vectorstore.Option{
		vectorstore.WithMaxRetries(cfg.VectorInitRetries),
		vectorstore.WithInitialDelay(time.Duration(cfg.VectorInitDelaySeconds) * time.Second),
	}

	if cfg.VectorBackend == "weaviate" {
		className := classNameFor(cfg.CollectionName)
		open := func(ctx context.Context) (vectorstore.Client, error) {
			return vectorstore.OpenWeaviate(ctx, cfg.WeaviateHost, cfg.WeaviateScheme, className)
		}
		// Remote backend: no storage path, no filesystem recovery.
		return vectorstore.NewManager(open, "", opts...)
	}

	open := func(_ context.Context) (vectorstore.Client, error) {
		return vectorstore.OpenSQLite(cfg.VectorDBPath, cfg.CollectionName)
	}
	return vectorstore.NewManager(open, cfg.VectorDBPath, opts...)
}

// classNameFor maps a collection name onto a valid GraphQL class name,
// which must start with an upper-case letter.
func classNameFor(collection string) string {
	if collection == "" {
		return "Documents"
	}
	runes := []rune(collection)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// createTopics pre-creates the reindex topic so consumers querying
// lookupd do not 404 before the first publish.
func createTopics(nsqdHost string) {
	host, _, err := net.SplitHostPort(nsqdHost)
	if err != nil {
		host = nsqdHost
	}
	url := fmt.Sprintf("http://%s:4151/topic/create?topic=%s", host, worker.ReindexTopic)

	go func() {
		time.Sleep(2 * time.Second)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", worker.ReindexTopic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}()
}
