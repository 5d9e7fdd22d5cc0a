package vectorstore

import (
	"context"
)

// Metadata is the fixed per-chunk metadata record. Extra carries
// forward-compatible fields without loosening the schema.
type Metadata struct {
	Filename   string            `json:"filename"`
	ChunkIndex int               `json:"chunk_index"`
	LineStart  int               `json:"line_start"`
	LineEnd    int               `json:"line_end"`
	UploadedAt string            `json:"uploaded_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Record is a stored vector plus its content and metadata. The vector
// store owns records exclusively; nothing else keeps a copy once a
// record is written.
type Record struct {
	ID        string
	Embedding []float32
	Content   string
	Metadata  Metadata
}

// Match is a retrieved record with its raw distance. Distance units are
// backend-specific; only the ordering (lower = closer) is meaningful.
// HasDistance is false when the backend could not report one.
type Match struct {
	ID          string
	Content     string
	Metadata    Metadata
	Distance    float64
	HasDistance bool
}

// Client is the storage backend contract. Implementations must be safe
// for concurrent use within a single process and should return *Error
// with a meaningful Kind for initialization-class failures.
type Client interface {
	// Upsert writes records in one batch, replacing any with the same ID.
	Upsert(ctx context.Context, records []Record) error

	// Query returns the topK nearest records to the given vector,
	// closest first.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// DeleteByIDs removes records in one batch. Unknown IDs are ignored.
	DeleteByIDs(ctx context.Context, ids []string) error

	// DeleteByFilter removes all records whose metadata field equals
	// value, returning the IDs it removed. This is the direct store
	// path used as a deletion fallback.
	DeleteByFilter(ctx context.Context, field, value string) ([]string, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int, error)

	// GetAll returns records (without embeddings) in stable insertion
	// order. filterValue filters by metadata filename when non-empty.
	// limit <= 0 means no limit.
	GetAll(ctx context.Context, limit, offset int, filterValue string) ([]Record, error)

	// CollectionName returns the name of the backing collection.
	CollectionName() string

	// Close releases the underlying connection.
	Close() error
}
