package vectorstore

import (
	"context"
	"log/slog"
	"sort"
)

// DocumentSummary is one indexed document, aggregated over its chunks.
type DocumentSummary struct {
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	UploadedAt string `json:"uploaded_at,omitempty"`
}

// Embedding is a stored chunk as exposed to the admin surface.
type Embedding struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Page is one page of embeddings plus pagination info.
type Page struct {
	Embeddings []Embedding `json:"embeddings"`
	Total      int         `json:"total"`
	PageNum    int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

// CollectionInfo describes the backing collection.
type CollectionInfo struct {
	Name            string `json:"collection_name"`
	TotalEmbeddings int    `json:"total_embeddings"`
}

const (
	defaultPerPage = 50
	maxPerPage     = 100
)

// EmbeddingsManager provides CRUD and paginated read access over the
// vector index. Every operation requires a Ready handle and fails with
// StoreUnavailableError otherwise.
type EmbeddingsManager struct {
	handle *Handle
}

func NewEmbeddingsManager(handle *Handle) *EmbeddingsManager {
	return &EmbeddingsManager{handle: handle}
}

// ListDocuments groups all indexed chunks by filename.
func (m *EmbeddingsManager) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	client, err := m.handle.Client()
	if err != nil {
		return nil, err
	}

	records, err := client.GetAll(ctx, 0, 0, "")
	if err != nil {
		return nil, err
	}

	byFilename := make(map[string]*DocumentSummary)
	var order []string
	for _, r := range records {
		filename := r.Metadata.Filename
		if filename == "" {
			filename = "unknown"
		}
		summary, ok := byFilename[filename]
		if !ok {
			summary = &DocumentSummary{Filename: filename, UploadedAt: r.Metadata.UploadedAt}
			byFilename[filename] = summary
			order = append(order, filename)
		}
		summary.ChunkCount++
	}

	summaries := make([]DocumentSummary, 0, len(order))
	for _, filename := range order {
		summaries = append(summaries, *byFilename[filename])
	}
	slog.DebugContext(ctx, "listed indexed documents", "count", len(summaries))
	return summaries, nil
}

// DeleteByFilename removes every chunk of the named document in one
// batch. It returns false when nothing matched, which is not an error.
// If the primary filtered path fails, the client's direct filter-delete
// path is attempted before surfacing the failure.
func (m *EmbeddingsManager) DeleteByFilename(ctx context.Context, filename string) (bool, error) {
	client, err := m.handle.Client()
	if err != nil {
		return false, err
	}

	records, err := client.GetAll(ctx, 0, 0, filename)
	if err == nil {
		if len(records) == 0 {
			slog.WarnContext(ctx, "no chunks found for filename", "filename", filename)
			return false, nil
		}
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
		if delErr := client.DeleteByIDs(ctx, ids); delErr == nil {
			slog.InfoContext(ctx, "deleted document chunks", "filename", filename, "count", len(ids))
			return true, nil
		} else {
			err = delErr
		}
	}

	slog.WarnContext(ctx, "filtered deletion failed, trying direct store path",
		"filename", filename, "error", err)

	ids, err2 := client.DeleteByFilter(ctx, "filename", filename)
	if err2 != nil {
		return false, err2
	}
	if len(ids) == 0 {
		return false, nil
	}
	slog.InfoContext(ctx, "deleted document chunks via direct path", "filename", filename, "count", len(ids))
	return true, nil
}

// DeleteByID removes a single chunk.
func (m *EmbeddingsManager) DeleteByID(ctx context.Context, id string) error {
	client, err := m.handle.Client()
	if err != nil {
		return err
	}
	return client.DeleteByIDs(ctx, []string{id})
}

// Paginate returns one page of embeddings in stable insertion order.
// page is 1-based; perPage is clamped to [1, 100].
func (m *EmbeddingsManager) Paginate(ctx context.Context, page, perPage int, filename string) (*Page, error) {
	client, err := m.handle.Client()
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	var total int
	if filename != "" {
		matched, err := client.GetAll(ctx, 0, 0, filename)
		if err != nil {
			return nil, err
		}
		total = len(matched)
	} else {
		if total, err = client.Count(ctx); err != nil {
			return nil, err
		}
	}

	offset := (page - 1) * perPage
	records, err := client.GetAll(ctx, perPage, offset, filename)
	if err != nil {
		return nil, err
	}

	embeddings := make([]Embedding, 0, len(records))
	for _, r := range records {
		embeddings = append(embeddings, Embedding{ID: r.ID, Content: r.Content, Metadata: r.Metadata})
	}

	return &Page{
		Embeddings: embeddings,
		Total:      total,
		PageNum:    page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// DocumentPage is one page of grouped documents with their embeddings.
type DocumentPage struct {
	Documents  []DocumentEmbeddings `json:"documents"`
	Total      int                  `json:"total"`
	PageNum    int                  `json:"page"`
	PerPage    int                  `json:"per_page"`
	TotalPages int                  `json:"total_pages"`
}

type DocumentEmbeddings struct {
	DocumentSummary
	Embeddings []Embedding `json:"embeddings"`
}

// PaginateDocuments groups all chunks by filename and paginates over
// the grouped documents. Grouping happens in memory; the store has no
// aggregation primitive.
func (m *EmbeddingsManager) PaginateDocuments(ctx context.Context, page, perPage int) (*DocumentPage, error) {
	client, err := m.handle.Client()
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	records, err := client.GetAll(ctx, 0, 0, "")
	if err != nil {
		return nil, err
	}

	byFilename := make(map[string]*DocumentEmbeddings)
	var order []string
	for _, r := range records {
		filename := r.Metadata.Filename
		if filename == "" {
			filename = "unknown"
		}
		doc, ok := byFilename[filename]
		if !ok {
			doc = &DocumentEmbeddings{
				DocumentSummary: DocumentSummary{Filename: filename, UploadedAt: r.Metadata.UploadedAt},
			}
			byFilename[filename] = doc
			order = append(order, filename)
		}
		doc.ChunkCount++
		doc.Embeddings = append(doc.Embeddings, Embedding{ID: r.ID, Content: r.Content, Metadata: r.Metadata})
	}
	sort.Strings(order)

	total := len(order)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	docs := make([]DocumentEmbeddings, 0, end-start)
	for _, filename := range order[start:end] {
		docs = append(docs, *byFilename[filename])
	}

	return &DocumentPage{
		Documents:  docs,
		Total:      total,
		PageNum:    page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// ClearAll deletes every embedding and reports how many were removed.
func (m *EmbeddingsManager) ClearAll(ctx context.Context) (int, error) {
	client, err := m.handle.Client()
	if err != nil {
		return 0, err
	}

	records, err := client.GetAll(ctx, 0, 0, "")
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if err := client.DeleteByIDs(ctx, ids); err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "cleared all embeddings", "count", len(ids))
	return len(ids), nil
}

// Info returns collection name and total embedding count.
func (m *EmbeddingsManager) Info(ctx context.Context) (*CollectionInfo, error) {
	client, err := m.handle.Client()
	if err != nil {
		return nil, err
	}

	count, err := client.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{Name: client.CollectionName(), TotalEmbeddings: count}, nil
}
