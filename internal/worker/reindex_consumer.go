package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"docuchat/backend/internal/middleware"
)

// Reindexer rebuilds a document's chunks from its stored raw content.
type Reindexer interface {
	Reindex(ctx context.Context, filename string) (int, error)
}

type ReindexConsumer struct {
	reindexer Reindexer
}

func NewReindexConsumer(r Reindexer) *ReindexConsumer {
	return &ReindexConsumer{reindexer: r}
}

func (h *ReindexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload ReindexPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry.
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.Filename == "" {
		slog.Error("poison pill: reindex request without filename")
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	reindexCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	count, err := h.reindexer.Reindex(reindexCtx, payload.Filename)
	if err != nil {
		slog.ErrorContext(ctx, "reindex failed", "error", err, "filename", payload.Filename)
		return err // Retry
	}

	slog.InfoContext(ctx, "document reindexed", "filename", payload.Filename, "chunks", count)
	return nil
}

// Start connects the consumer to NSQ via lookupd.
func Start(lookupd string, consumer *ReindexConsumer) (*nsq.Consumer, error) {
	c, err := nsq.NewConsumer(ReindexTopic, "docuchat", nsq.NewConfig())
	if err != nil {
		return nil, err
	}
	c.AddHandler(consumer)
	if err := c.ConnectToNSQLookupd(lookupd); err != nil {
		return nil, err
	}
	return c, nil
}
