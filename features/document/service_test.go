package document

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docuchat/backend/internal/adapter/perplexity"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Save(ctx context.Context, doc *Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockRepo) Update(ctx context.Context, doc *Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockRepo) GetByFilename(ctx context.Context, filename string) (*Document, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *mockRepo) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	args := m.Called(ctx, filename)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) List(ctx context.Context) ([]Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Document), args.Error(1)
}

func (m *mockRepo) DeleteByFilename(ctx context.Context, filename string) error {
	return m.Called(ctx, filename).Error(0)
}

func (m *mockRepo) SaveSummary(ctx context.Context, filename, summary string) error {
	return m.Called(ctx, filename, summary).Error(0)
}

type mockIndexer struct{ mock.Mock }

func (m *mockIndexer) Index(ctx context.Context, filename, content string) (int, error) {
	args := m.Called(ctx, filename, content)
	return args.Int(0), args.Error(1)
}

type mockChunks struct{ mock.Mock }

func (m *mockChunks) DeleteByFilename(ctx context.Context, filename string) (bool, error) {
	args := m.Called(ctx, filename)
	return args.Bool(0), args.Error(1)
}

type mockFiles struct{ mock.Mock }

func (m *mockFiles) Save(filename, content string) error {
	return m.Called(filename, content).Error(0)
}

func (m *mockFiles) Load(filename string) (string, error) {
	args := m.Called(filename)
	return args.String(0), args.Error(1)
}

func (m *mockFiles) Delete(filename string) error {
	return m.Called(filename).Error(0)
}

type mockSummarizer struct{ mock.Mock }

func (m *mockSummarizer) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type mockSearcher struct{ mock.Mock }

func (m *mockSearcher) Search(ctx context.Context, query string) (*perplexity.SearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.SearchResult), args.Error(1)
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("Happy Path", func(t *testing.T) {
		repo := &mockRepo{}
		indexer := &mockIndexer{}
		files := &mockFiles{}

		repo.On("ExistsByFilename", ctx, "notes.md").Return(false, nil)
		files.On("Save", "notes.md", "# Notes\ncontent").Return(nil)
		indexer.On("Index", ctx, "notes.md", "# Notes\ncontent").Return(3, nil)
		repo.On("Save", ctx, mock.MatchedBy(func(d *Document) bool {
			return d.Filename == "notes.md" && d.ChunkCount == 3 && d.Title == "Notes" &&
				d.WordCount == 3 && d.LineCount == 2
		})).Return(nil)

		svc := NewService(repo, indexer, &mockChunks{}, files, nil, nil)
		doc, err := svc.Upload(ctx, "notes.md", "Notes", "# Notes\ncontent")

		require.NoError(t, err)
		assert.Equal(t, 3, doc.ChunkCount)
		repo.AssertExpectations(t)
		files.AssertExpectations(t)
	})

	t.Run("Rejects Duplicate", func(t *testing.T) {
		repo := &mockRepo{}
		repo.On("ExistsByFilename", ctx, "notes.md").Return(true, nil)

		svc := NewService(repo, &mockIndexer{}, &mockChunks{}, &mockFiles{}, nil, nil)
		_, err := svc.Upload(ctx, "notes.md", "", "content")

		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("Rejects Unsupported Extension", func(t *testing.T) {
		svc := NewService(&mockRepo{}, &mockIndexer{}, &mockChunks{}, &mockFiles{}, nil, nil)
		_, err := svc.Upload(ctx, "binary.exe", "", "content")

		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("Rejects Empty Content", func(t *testing.T) {
		svc := NewService(&mockRepo{}, &mockIndexer{}, &mockChunks{}, &mockFiles{}, nil, nil)
		_, err := svc.Upload(ctx, "notes.md", "", "   \n ")

		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("Removes File When Indexing Fails", func(t *testing.T) {
		repo := &mockRepo{}
		indexer := &mockIndexer{}
		files := &mockFiles{}

		repo.On("ExistsByFilename", ctx, "notes.md").Return(false, nil)
		files.On("Save", "notes.md", "content").Return(nil)
		indexer.On("Index", ctx, "notes.md", "content").Return(0, errors.New("quota exceeded"))
		files.On("Delete", "notes.md").Return(nil)

		svc := NewService(repo, indexer, &mockChunks{}, files, nil, nil)
		_, err := svc.Upload(ctx, "notes.md", "", "content")

		require.Error(t, err)
		files.AssertCalled(t, "Delete", "notes.md")
	})

	t.Run("Rolls Back Chunks When Catalog Save Fails", func(t *testing.T) {
		repo := &mockRepo{}
		indexer := &mockIndexer{}
		chunks := &mockChunks{}
		files := &mockFiles{}

		repo.On("ExistsByFilename", ctx, "notes.md").Return(false, nil)
		files.On("Save", "notes.md", "content").Return(nil)
		indexer.On("Index", ctx, "notes.md", "content").Return(2, nil)
		repo.On("Save", ctx, mock.Anything).Return(errors.New("connection refused"))
		chunks.On("DeleteByFilename", ctx, "notes.md").Return(true, nil)
		files.On("Delete", "notes.md").Return(nil)

		svc := NewService(repo, indexer, chunks, files, nil, nil)
		_, err := svc.Upload(ctx, "notes.md", "", "content")

		require.Error(t, err)
		chunks.AssertCalled(t, "DeleteByFilename", ctx, "notes.md")
		files.AssertCalled(t, "Delete", "notes.md")
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("Replaces Chunks Before Reindexing", func(t *testing.T) {
		repo := &mockRepo{}
		indexer := &mockIndexer{}
		chunks := &mockChunks{}
		files := &mockFiles{}

		repo.On("GetByFilename", ctx, "notes.md").Return(&Document{ID: "1", Filename: "notes.md", ChunkCount: 5}, nil)
		chunks.On("DeleteByFilename", ctx, "notes.md").Return(true, nil)
		files.On("Save", "notes.md", "new content").Return(nil)
		indexer.On("Index", ctx, "notes.md", "new content").Return(2, nil)
		repo.On("Update", ctx, mock.MatchedBy(func(d *Document) bool {
			return d.ChunkCount == 2
		})).Return(nil)

		svc := NewService(repo, indexer, chunks, files, nil, nil)
		doc, err := svc.Update(ctx, "notes.md", "new content")

		require.NoError(t, err)
		assert.Equal(t, 2, doc.ChunkCount)
		chunks.AssertExpectations(t)
	})

	t.Run("Unknown Document", func(t *testing.T) {
		repo := &mockRepo{}
		repo.On("GetByFilename", ctx, "missing.md").Return(nil, sql.ErrNoRows)

		svc := NewService(repo, &mockIndexer{}, &mockChunks{}, &mockFiles{}, nil, nil)
		_, err := svc.Update(ctx, "missing.md", "content")

		assert.True(t, IsNotFound(err))
	})
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	repo := &mockRepo{}
	chunks := &mockChunks{}
	files := &mockFiles{}

	repo.On("DeleteByFilename", ctx, "notes.md").Return(nil)
	chunks.On("DeleteByFilename", ctx, "notes.md").Return(true, nil)
	files.On("Delete", "notes.md").Return(nil)

	svc := NewService(repo, &mockIndexer{}, chunks, files, nil, nil)
	require.NoError(t, svc.Delete(ctx, "notes.md"))

	chunks.AssertExpectations(t)
	files.AssertExpectations(t)
}

func TestCreateFromSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("Drafts Document With Citations", func(t *testing.T) {
		repo := &mockRepo{}
		indexer := &mockIndexer{}
		files := &mockFiles{}
		searcher := &mockSearcher{}

		searcher.On("Search", ctx, "Go garbage collector").Return(&perplexity.SearchResult{
			Content:   "The Go GC is a concurrent mark and sweep collector.",
			Citations: []string{"https://go.dev/doc/gc-guide"},
		}, nil)
		repo.On("ExistsByFilename", ctx, "go-garbage-collector.md").Return(false, nil)
		files.On("Save", "go-garbage-collector.md", mock.MatchedBy(func(content string) bool {
			return assert.Contains(t, content, "# Go garbage collector") &&
				assert.Contains(t, content, "## Sources") &&
				assert.Contains(t, content, "https://go.dev/doc/gc-guide")
		})).Return(nil)
		indexer.On("Index", ctx, "go-garbage-collector.md", mock.Anything).Return(1, nil)
		repo.On("Save", ctx, mock.MatchedBy(func(d *Document) bool {
			return len(d.Citations) == 1 && d.Citations[0] == "https://go.dev/doc/gc-guide"
		})).Return(nil)

		svc := NewService(repo, indexer, &mockChunks{}, files, searcher, nil)
		doc, err := svc.CreateFromSearch(ctx, "Go garbage collector", "")

		require.NoError(t, err)
		assert.Equal(t, []string{"https://go.dev/doc/gc-guide"}, doc.Citations)
		repo.AssertExpectations(t)
	})

	t.Run("Not Configured", func(t *testing.T) {
		svc := NewService(&mockRepo{}, &mockIndexer{}, &mockChunks{}, &mockFiles{}, nil, nil)
		_, err := svc.CreateFromSearch(ctx, "anything", "")

		assert.Error(t, err)
	})
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()

	t.Run("Generates And Saves", func(t *testing.T) {
		repo := &mockRepo{}
		files := &mockFiles{}
		summarizer := &mockSummarizer{}

		repo.On("GetByFilename", ctx, "notes.md").Return(&Document{ID: "1", Filename: "notes.md"}, nil)
		files.On("Load", "notes.md").Return("line one\nline two", nil)
		summarizer.On("Generate", ctx, mock.MatchedBy(func(prompt string) bool {
			return assert.Contains(t, prompt, "line one\nline two") &&
				assert.Contains(t, prompt, "Key points")
		})).Return("A short summary.", nil)
		repo.On("SaveSummary", ctx, "notes.md", "A short summary.").Return(nil)

		svc := NewService(repo, &mockIndexer{}, &mockChunks{}, files, nil, summarizer)
		result, err := svc.Summarize(ctx, "notes.md")

		require.NoError(t, err)
		assert.Equal(t, "A short summary.", result.Summary)
		assert.Equal(t, 4, result.WordCount)
		assert.Equal(t, 2, result.LineCount)
		assert.True(t, result.Saved)
		repo.AssertExpectations(t)
	})

	t.Run("Write Back Failure Still Returns Summary", func(t *testing.T) {
		repo := &mockRepo{}
		files := &mockFiles{}
		summarizer := &mockSummarizer{}

		repo.On("GetByFilename", ctx, "notes.md").Return(&Document{ID: "1", Filename: "notes.md"}, nil)
		files.On("Load", "notes.md").Return("content", nil)
		summarizer.On("Generate", ctx, mock.Anything).Return("A short summary.", nil)
		repo.On("SaveSummary", ctx, "notes.md", "A short summary.").Return(errors.New("db down"))

		svc := NewService(repo, &mockIndexer{}, &mockChunks{}, files, nil, summarizer)
		result, err := svc.Summarize(ctx, "notes.md")

		require.NoError(t, err)
		assert.Equal(t, "A short summary.", result.Summary)
		assert.False(t, result.Saved)
	})

	t.Run("Unknown Document", func(t *testing.T) {
		repo := &mockRepo{}
		repo.On("GetByFilename", ctx, "missing.md").Return(nil, sql.ErrNoRows)

		svc := NewService(repo, &mockIndexer{}, &mockChunks{}, &mockFiles{}, nil, &mockSummarizer{})
		_, err := svc.Summarize(ctx, "missing.md")

		assert.True(t, IsNotFound(err))
	})

	t.Run("Not Configured", func(t *testing.T) {
		svc := NewService(&mockRepo{}, &mockIndexer{}, &mockChunks{}, &mockFiles{}, nil, nil)
		_, err := svc.Summarize(ctx, "notes.md")

		assert.Error(t, err)
	})

	t.Run("Generation Failure", func(t *testing.T) {
		repo := &mockRepo{}
		files := &mockFiles{}
		summarizer := &mockSummarizer{}

		repo.On("GetByFilename", ctx, "notes.md").Return(&Document{ID: "1", Filename: "notes.md"}, nil)
		files.On("Load", "notes.md").Return("content", nil)
		summarizer.On("Generate", ctx, mock.Anything).Return("", errors.New("quota exceeded"))

		svc := NewService(repo, &mockIndexer{}, &mockChunks{}, files, nil, summarizer)
		_, err := svc.Summarize(ctx, "notes.md")

		assert.ErrorContains(t, err, "generating summary")
	})
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	repo := &mockRepo{}
	indexer := &mockIndexer{}
	chunks := &mockChunks{}
	files := &mockFiles{}

	repo.On("GetByFilename", ctx, "notes.md").Return(&Document{ID: "1", Filename: "notes.md"}, nil)
	files.On("Load", "notes.md").Return("stored content", nil)
	chunks.On("DeleteByFilename", ctx, "notes.md").Return(true, nil)
	indexer.On("Index", ctx, "notes.md", "stored content").Return(4, nil)
	repo.On("Update", ctx, mock.MatchedBy(func(d *Document) bool {
		return d.ChunkCount == 4
	})).Return(nil)

	svc := NewService(repo, indexer, chunks, files, nil, nil)
	count, err := svc.Reindex(ctx, "notes.md")

	require.NoError(t, err)
	assert.Equal(t, 4, count)
	repo.AssertExpectations(t)
}
