package retrieval

import "fmt"

// IndexingError wraps any failure while chunking, embedding, or storing
// a document.
type IndexingError struct {
	Filename string
	Stage    string
	Err      error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing %s failed at %s: %v", e.Filename, e.Stage, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

// QueryError wraps any failure in the question answering pipeline.
type QueryError struct {
	Stage string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed at %s: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
