package query

import (
	"context"
	"errors"

	"docuchat/backend/features/chat"
	"docuchat/backend/internal/retrieval"
)

var ErrNoDocuments = errors.New("no documents have been indexed yet")

type Orchestrator interface {
	Query(ctx context.Context, question string, topK int) (*retrieval.QueryResult, error)
}

type DocumentCatalog interface {
	List(ctx context.Context) ([]Document, error)
}

// Document is the minimal catalog view this feature needs.
type Document struct {
	Filename string
}

type History interface {
	Record(ctx context.Context, question, answer string, sources []chat.Source) *chat.Entry
}

// Answer is a query result plus the id of its history entry.
type Answer struct {
	retrieval.QueryResult
	ChatID string `json:"chat_id,omitempty"`
}

type Service struct {
	orchestrator Orchestrator
	catalog      DocumentCatalog
	history      History
	defaultTopK  int
}

func NewService(o Orchestrator, c DocumentCatalog, h History, defaultTopK int) *Service {
	if defaultTopK <= 0 {
		defaultTopK = retrieval.DefaultTopK
	}
	return &Service{orchestrator: o, catalog: c, history: h, defaultTopK: defaultTopK}
}

// Ask answers a question and records it in the chat history. An empty
// catalog short-circuits before any model call.
func (s *Service) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	docs, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	if topK <= 0 {
		topK = s.defaultTopK
	}
	result, err := s.orchestrator.Query(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	answer := &Answer{QueryResult: *result}
	if s.history != nil {
		sources := make([]chat.Source, len(result.Sources))
		for i, src := range result.Sources {
			sources[i] = chat.Source{
				Filename:  src.Filename,
				LineStart: src.LineStart,
				LineEnd:   src.LineEnd,
				Relevance: src.Relevance,
			}
		}
		if entry := s.history.Record(ctx, question, result.Answer, sources); entry != nil {
			answer.ChatID = entry.ID
		}
	}
	return answer, nil
}
