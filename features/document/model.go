package document

import "time"

// Document is the catalog row for one indexed file. The raw content
// lives in the file store and the chunks live in the vector store; this
// row ties them together.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	SizeBytes  int       `json:"size_bytes"`
	WordCount  int       `json:"word_count"`
	LineCount  int       `json:"line_count"`
	Citations  []string  `json:"citations,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
