package chat

import "time"

// Entry is one answered question kept in the chat history.
type Entry struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	Saved     bool      `json:"chat_saved"`
	CreatedAt time.Time `json:"created_at"`
}

// Source mirrors the retrieval source shape as stored with the entry.
type Source struct {
	Filename  string  `json:"filename"`
	LineStart int     `json:"line_start"`
	LineEnd   int     `json:"line_end"`
	Relevance float64 `json:"relevance_score"`
}
