package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"docuchat/backend/internal/text"
	"docuchat/backend/internal/vectorstore"
)

const DefaultTopK = 5

// Source is one retrieved chunk attached to an answer, with its
// normalized relevance in [0, 1].
type Source struct {
	Content    string  `json:"content"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	LineStart  int     `json:"line_start"`
	LineEnd    int     `json:"line_end"`
	Relevance  float64 `json:"relevance_score"`
}

// QueryResult is a generated answer plus the sources it was grounded on.
type QueryResult struct {
	Answer        string   `json:"answer"`
	Sources       []Source `json:"sources"`
	ExpandedTerms []string `json:"expanded_terms,omitempty"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Orchestrator runs the two halves of the pipeline: indexing documents
// into the vector store and answering questions against it.
type Orchestrator struct {
	embedder  Embedder
	generator Generator
	handle    *vectorstore.Handle
	expander  *QueryExpander
	logger    *QueryLogger

	// Injected for tests.
	newID func() string
	now   func() time.Time
}

func NewOrchestrator(e Embedder, g Generator, h *vectorstore.Handle, l *QueryLogger) *Orchestrator {
	return &Orchestrator{
		embedder:  e,
		generator: g,
		handle:    h,
		expander:  NewQueryExpander(),
		logger:    l,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Index chunks content, embeds every chunk in one batch, and writes the
// records. It returns the number of chunks stored.
func (o *Orchestrator) Index(ctx context.Context, filename, content string) (int, error) {
	client, err := o.handle.Client()
	if err != nil {
		return 0, &IndexingError{Filename: filename, Stage: "store", Err: err}
	}

	if strings.TrimSpace(content) == "" {
		return 0, nil
	}
	chunks := text.SplitSemantic(content)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, &IndexingError{Filename: filename, Stage: "embed", Err: err}
	}
	if len(vectors) != len(chunks) {
		return 0, &IndexingError{Filename: filename, Stage: "embed",
			Err: fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))}
	}

	uploadedAt := o.now().UTC().Format(time.RFC3339)
	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Record{
			ID:        o.newID(),
			Embedding: vectors[i],
			Content:   c.Text,
			Metadata: vectorstore.Metadata{
				Filename:   filename,
				ChunkIndex: c.Index,
				LineStart:  c.LineStart,
				LineEnd:    c.LineEnd,
				UploadedAt: uploadedAt,
			},
		}
	}

	if err := client.Upsert(ctx, records); err != nil {
		return 0, &IndexingError{Filename: filename, Stage: "upsert", Err: err}
	}
	return len(records), nil
}

// Query answers a question against the indexed documents. When nothing
// is retrieved the model still answers, with no sources attached.
func (o *Orchestrator) Query(ctx context.Context, question string, topK int) (*QueryResult, error) {
	start := time.Now()
	if topK <= 0 {
		topK = DefaultTopK
	}

	client, err := o.handle.Client()
	if err != nil {
		return nil, &QueryError{Stage: "store", Err: err}
	}

	expanded, terms := o.expander.Expand(question)

	vector, err := o.embedder.Embed(ctx, expanded)
	if err != nil {
		return nil, &QueryError{Stage: "embed", Err: err}
	}

	matches, err := client.Query(ctx, vector, topK)
	if err != nil {
		return nil, &QueryError{Stage: "search", Err: err}
	}

	answer, err := o.generator.Generate(ctx, buildPrompt(question, matches))
	if err != nil {
		return nil, &QueryError{Stage: "generate", Err: err}
	}

	scores := relevanceScores(matches)
	sources := make([]Source, len(matches))
	for i, m := range matches {
		sources[i] = Source{
			Content:    m.Content,
			Filename:   m.Metadata.Filename,
			ChunkIndex: m.Metadata.ChunkIndex,
			LineStart:  m.Metadata.LineStart,
			LineEnd:    m.Metadata.LineEnd,
			Relevance:  scores[i],
		}
	}

	if o.logger != nil {
		o.logger.Log(QueryLogEntry{
			Query:         question,
			ExpandedTerms: terms,
			NumResults:    len(sources),
			Duration:      time.Since(start),
		})
	}

	return &QueryResult{Answer: answer, Sources: sources, ExpandedTerms: terms}, nil
}

func buildPrompt(question string, matches []vectorstore.Match) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about the user's documents.\n\n")

	if len(matches) == 0 {
		b.WriteString("No relevant document excerpts were found.\n\n")
	} else {
		b.WriteString("Context from the documents:\n\n")
		for i, m := range matches {
			fmt.Fprintf(&b, "[Source %d: %s, lines %d-%d]\n%s\n\n",
				i+1, m.Metadata.Filename, m.Metadata.LineStart, m.Metadata.LineEnd, m.Content)
		}
	}

	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Answer based on the context above. If the context does not contain the answer, say so.")
	return b.String()
}

// relevanceScores maps raw distances onto [0, 1] with 1 being the
// closest match in this result set. Bounds come from the distances
// that are present; a match without a distance, or a degenerate set
// where every distance is equal, scores by rank position instead.
func relevanceScores(matches []vectorstore.Match) []float64 {
	n := len(matches)
	if n == 0 {
		return nil
	}

	var minD, maxD float64
	first := true
	for _, m := range matches {
		if !m.HasDistance {
			continue
		}
		if first || m.Distance < minD {
			minD = m.Distance
		}
		if first || m.Distance > maxD {
			maxD = m.Distance
		}
		first = false
	}

	scores := make([]float64, n)
	for i, m := range matches {
		if m.HasDistance && maxD != minD {
			scores[i] = round3(1 - (m.Distance-minD)/(maxD-minD))
			continue
		}
		scores[i] = round3(1 - float64(i)/float64(n))
	}
	return scores
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
