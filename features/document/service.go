package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"docuchat/backend/internal/adapter/perplexity"
)

var (
	ErrDuplicate       = errors.New("document already exists")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyContent    = errors.New("document content is empty")
	validExtensions    = map[string]bool{".md": true, ".markdown": true, ".txt": true}
)

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Update(ctx context.Context, doc *Document) error
	SaveSummary(ctx context.Context, filename, summary string) error
	GetByFilename(ctx context.Context, filename string) (*Document, error)
	ExistsByFilename(ctx context.Context, filename string) (bool, error)
	List(ctx context.Context) ([]Document, error)
	DeleteByFilename(ctx context.Context, filename string) error
}

type Indexer interface {
	Index(ctx context.Context, filename, content string) (int, error)
}

type ChunkDeleter interface {
	DeleteByFilename(ctx context.Context, filename string) (bool, error)
}

type FileStore interface {
	Save(filename, content string) error
	Load(filename string) (string, error)
	Delete(filename string) error
}

type WebSearcher interface {
	Search(ctx context.Context, query string) (*perplexity.SearchResult, error)
}

// Summarizer produces a free-form completion for a prompt. The LLM
// adapters satisfy it.
type Summarizer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Service struct {
	repo       Repository
	indexer    Indexer
	chunks     ChunkDeleter
	files      FileStore
	searcher   WebSearcher
	summarizer Summarizer
}

func NewService(repo Repository, indexer Indexer, chunks ChunkDeleter, files FileStore, searcher WebSearcher, summarizer Summarizer) *Service {
	return &Service{repo: repo, indexer: indexer, chunks: chunks, files: files, searcher: searcher, summarizer: summarizer}
}

func validateFilename(filename string) error {
	if !validExtensions[strings.ToLower(filepath.Ext(filename))] {
		return ErrUnsupportedType
	}
	return nil
}

// Upload stores a new document: raw content first, then chunks, then
// the catalog row. A catalog failure rolls the other two back so no
// orphaned chunks survive.
func (s *Service) Upload(ctx context.Context, filename, title, content string) (*Document, error) {
	return s.create(ctx, filename, title, content, nil)
}

func (s *Service) create(ctx context.Context, filename, title, content string, citations []string) (*Document, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	exists, err := s.repo.ExistsByFilename(ctx, filename)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicate
	}

	if err := s.files.Save(filename, content); err != nil {
		return nil, fmt.Errorf("saving raw content: %w", err)
	}

	count, err := s.indexer.Index(ctx, filename, content)
	if err != nil {
		s.cleanupFile(filename)
		return nil, err
	}

	doc := &Document{
		Filename:   filename,
		Title:      title,
		ChunkCount: count,
		SizeBytes:  len(content),
		WordCount:  len(strings.Fields(content)),
		LineCount:  strings.Count(content, "\n") + 1,
		Citations:  citations,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		s.cleanupChunks(ctx, filename)
		s.cleanupFile(filename)
		return nil, fmt.Errorf("saving document record: %w", err)
	}

	slog.InfoContext(ctx, "document uploaded", "filename", filename, "chunks", count)
	return doc, nil
}

// Update replaces a document's content. Old chunks are removed before
// the new ones are written so the index never mixes versions.
func (s *Service) Update(ctx context.Context, filename, content string) (*Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	doc, err := s.repo.GetByFilename(ctx, filename)
	if err != nil {
		return nil, err
	}

	if _, err := s.chunks.DeleteByFilename(ctx, filename); err != nil {
		return nil, fmt.Errorf("removing old chunks: %w", err)
	}
	if err := s.files.Save(filename, content); err != nil {
		return nil, fmt.Errorf("saving raw content: %w", err)
	}

	count, err := s.indexer.Index(ctx, filename, content)
	if err != nil {
		return nil, err
	}

	doc.ChunkCount = count
	doc.SizeBytes = len(content)
	doc.WordCount = len(strings.Fields(content))
	doc.LineCount = strings.Count(content, "\n") + 1
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("updating document record: %w", err)
	}

	slog.InfoContext(ctx, "document updated", "filename", filename, "chunks", count)
	return doc, nil
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, filename string) (*Document, error) {
	return s.repo.GetByFilename(ctx, filename)
}

func (s *Service) Exists(ctx context.Context, filename string) (bool, error) {
	return s.repo.ExistsByFilename(ctx, filename)
}

// Content returns the raw stored text of a document.
func (s *Service) Content(ctx context.Context, filename string) (string, error) {
	if _, err := s.repo.GetByFilename(ctx, filename); err != nil {
		return "", err
	}
	return s.files.Load(filename)
}

// Delete removes the catalog row, the chunks, and the raw file.
func (s *Service) Delete(ctx context.Context, filename string) error {
	if err := s.repo.DeleteByFilename(ctx, filename); err != nil {
		return err
	}
	s.cleanupChunks(ctx, filename)
	s.cleanupFile(filename)
	slog.InfoContext(ctx, "document deleted", "filename", filename)
	return nil
}

// CreateFromSearch drafts a new document from a web search answer and
// indexes it like an upload, with the citation URLs appended.
func (s *Service) CreateFromSearch(ctx context.Context, topic, filename string) (*Document, error) {
	if s.searcher == nil {
		return nil, errors.New("web search is not configured")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("topic is required")
	}
	if filename == "" {
		filename = slugify(topic) + ".md"
	}

	result, err := s.searcher.Search(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", topic, result.Content)
	if len(result.Citations) > 0 {
		b.WriteString("\n## Sources\n")
		for _, c := range result.Citations {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	return s.create(ctx, filename, topic, b.String(), result.Citations)
}

// SummaryResult is the outcome of a summarization run. Saved is false
// when the summary was generated but could not be written back to the
// catalog.
type SummaryResult struct {
	Summary   string `json:"summary"`
	WordCount int    `json:"word_count"`
	LineCount int    `json:"line_count"`
	Saved     bool   `json:"summary_saved"`
}

// Summarize generates a summary with key points for a stored document
// and saves it on the catalog row. A failed write-back does not fail
// the request; the caller still gets the summary.
func (s *Service) Summarize(ctx context.Context, filename string) (*SummaryResult, error) {
	if s.summarizer == nil {
		return nil, errors.New("summarization is not configured")
	}
	if _, err := s.repo.GetByFilename(ctx, filename); err != nil {
		return nil, err
	}
	content, err := s.files.Load(filename)
	if err != nil {
		return nil, fmt.Errorf("loading raw content: %w", err)
	}

	summary, err := s.summarizer.Generate(ctx, summaryPrompt(content))
	if err != nil {
		return nil, fmt.Errorf("generating summary: %w", err)
	}

	result := &SummaryResult{
		Summary:   summary,
		WordCount: len(strings.Fields(content)),
		LineCount: strings.Count(content, "\n") + 1,
	}
	if err := s.repo.SaveSummary(ctx, filename, summary); err != nil {
		slog.WarnContext(ctx, "failed to save summary", "filename", filename, "error", err)
	} else {
		result.Saved = true
	}

	slog.InfoContext(ctx, "document summarized", "filename", filename, "saved", result.Saved)
	return result, nil
}

func summaryPrompt(content string) string {
	var b strings.Builder
	b.WriteString("You are a helpful document analyst.\n\n")
	b.WriteString("Provide a concise summary of the following document. Focus on the main points and key takeaways.\n\n")
	fmt.Fprintf(&b, "Document:\n%s\n\n", content)
	b.WriteString("Provide:\n")
	b.WriteString("1. A brief summary (2-3 sentences)\n")
	b.WriteString("2. Key points (3-5 bullet points)\n")
	b.WriteString("3. Main themes or topics\n")
	return b.String()
}

// Reindex rebuilds a document's chunks from its stored raw content.
func (s *Service) Reindex(ctx context.Context, filename string) (int, error) {
	doc, err := s.repo.GetByFilename(ctx, filename)
	if err != nil {
		return 0, err
	}
	content, err := s.files.Load(filename)
	if err != nil {
		return 0, fmt.Errorf("loading raw content: %w", err)
	}

	if _, err := s.chunks.DeleteByFilename(ctx, filename); err != nil {
		return 0, fmt.Errorf("removing old chunks: %w", err)
	}
	count, err := s.indexer.Index(ctx, filename, content)
	if err != nil {
		return 0, err
	}

	doc.ChunkCount = count
	doc.WordCount = len(strings.Fields(content))
	doc.LineCount = strings.Count(content, "\n") + 1
	if err := s.repo.Update(ctx, doc); err != nil {
		return 0, fmt.Errorf("updating document record: %w", err)
	}
	slog.InfoContext(ctx, "document reindexed", "filename", filename, "chunks", count)
	return count, nil
}

func (s *Service) cleanupChunks(ctx context.Context, filename string) {
	if _, err := s.chunks.DeleteByFilename(ctx, filename); err != nil {
		slog.WarnContext(ctx, "failed to clean up chunks", "filename", filename, "error", err)
	}
}

func (s *Service) cleanupFile(filename string) {
	if err := s.files.Delete(filename); err != nil {
		slog.Warn("failed to clean up raw file", "filename", filename, "error", err)
	}
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "document"
	}
	return slug
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
