package chat

import (
	"context"
	"log/slog"
)

type Repository interface {
	Save(ctx context.Context, e *Entry) error
	List(ctx context.Context, savedOnly bool, limit int) ([]Entry, error)
	SetSaved(ctx context.Context, id string, saved bool) error
	Delete(ctx context.Context, id string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends an answered question to the history. History write
// failures are logged but never fail the query that produced them.
func (s *Service) Record(ctx context.Context, question, answer string, sources []Source) *Entry {
	e := &Entry{Question: question, Answer: answer, Sources: sources}
	if err := s.repo.Save(ctx, e); err != nil {
		slog.WarnContext(ctx, "failed to record chat history", "error", err)
		return nil
	}
	return e
}

func (s *Service) List(ctx context.Context, savedOnly bool, limit int) ([]Entry, error) {
	return s.repo.List(ctx, savedOnly, limit)
}

func (s *Service) SetSaved(ctx context.Context, id string, saved bool) error {
	return s.repo.SetSaved(ctx, id, saved)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
