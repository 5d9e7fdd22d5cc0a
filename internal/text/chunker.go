package text

import (
	"strings"
)

// Chunk sizes are measured in characters, counting each line as
// len(line)+1 for its trailing newline. Both strategies use this unit.
const (
	SemanticChunkSize = 800
	SemanticOverlap   = 100
	FallbackChunkSize = 1200
	FallbackOverlap   = 150
	MaxSemanticChunks = 20
)

// Chunk is a contiguous, line-addressed slice of a source document.
// LineStart and LineEnd are 1-based and inclusive.
type Chunk struct {
	Text      string
	LineStart int
	LineEnd   int
	Index     int
}

// sectionMarkers are line prefixes that open a new semantic unit.
var sectionMarkers = []string{"---", "###", "##", "#"}

func isSectionStart(line string) bool {
	stripped := strings.TrimSpace(line)
	for _, marker := range sectionMarkers {
		if strings.HasPrefix(stripped, marker) {
			return true
		}
	}
	return false
}

// SplitSemantic splits text into chunks that keep related sections
// together. A heading or separator line closes the current chunk and
// starts a fresh one with no overlap, so a section is never
// contaminated with tail context from the previous one. Oversized
// sections get a size cut with an overlap window instead. If the result
// fragments into more than MaxSemanticChunks chunks, the whole document
// is rechunked with SplitWithOverlap at the larger fallback sizes.
func SplitSemantic(text string) []Chunk {
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	var chunks []Chunk
	var current []string
	currentSize := 0
	chunkStartLine := 1
	currentLine := 1

	for _, line := range lines {
		lineLength := len(line) + 1

		switch {
		case isSectionStart(line) && len(current) > 0:
			chunks = append(chunks, Chunk{
				Text:      strings.Join(current, "\n"),
				LineStart: chunkStartLine,
				LineEnd:   currentLine - 1,
			})
			current = []string{line}
			currentSize = lineLength
			chunkStartLine = currentLine

		case currentSize+lineLength > SemanticChunkSize && len(current) > 0:
			chunks = append(chunks, Chunk{
				Text:      strings.Join(current, "\n"),
				LineStart: chunkStartLine,
				LineEnd:   currentLine - 1,
			})
			overlap, overlapSize, overlapStart := overlapWindow(current, currentLine, SemanticOverlap)
			current = append(overlap, line)
			currentSize = overlapSize + lineLength
			chunkStartLine = overlapStart

		default:
			current = append(current, line)
			currentSize += lineLength
		}

		currentLine++
	}

	if len(current) > 0 {
		chunks = append(chunks, Chunk{
			Text:      strings.Join(current, "\n"),
			LineStart: chunkStartLine,
			LineEnd:   currentLine - 1,
		})
	}

	// Heavy structural markup fragments a document into many tiny
	// chunks, which hurts retrieval. Prefer fewer, larger chunks then.
	if len(chunks) > MaxSemanticChunks {
		return SplitWithOverlap(text, FallbackChunkSize, FallbackOverlap)
	}

	return reindex(chunks)
}

// SplitWithOverlap splits text into fixed-size chunks, seeding each new
// chunk with the tail lines of the previous one up to the overlap
// budget. A single line longer than chunkSize is kept whole; lines are
// never split mid-line.
func SplitWithOverlap(text string, chunkSize, overlap int) []Chunk {
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	var chunks []Chunk
	var current []string
	currentSize := 0
	chunkStartLine := 1
	currentLine := 1

	for _, line := range lines {
		lineLength := len(line) + 1

		if currentSize+lineLength > chunkSize && len(current) > 0 {
			chunks = append(chunks, Chunk{
				Text:      strings.Join(current, "\n"),
				LineStart: chunkStartLine,
				LineEnd:   currentLine - 1,
			})
			var overlapSize int
			current, overlapSize, chunkStartLine = overlapWindow(current, currentLine, overlap)
			currentSize = overlapSize
		}

		current = append(current, line)
		currentSize += lineLength
		currentLine++
	}

	if len(current) > 0 {
		chunks = append(chunks, Chunk{
			Text:      strings.Join(current, "\n"),
			LineStart: chunkStartLine,
			LineEnd:   currentLine - 1,
		})
	}

	return reindex(chunks)
}

// overlapWindow walks backward through the lines of a just-closed chunk
// accumulating trailing lines until the overlap budget is filled. It
// returns the overlapped lines, their total size, and the 1-based line
// number of the first overlapped line.
func overlapWindow(closed []string, nextLine, budget int) ([]string, int, int) {
	var window []string
	size := 0
	start := nextLine

	for i := len(closed) - 1; i >= 0; i-- {
		lineLength := len(closed[i]) + 1
		if size+lineLength > budget {
			break
		}
		window = append([]string{closed[i]}, window...)
		size += lineLength
		start--
	}

	return window, size, start
}

func reindex(chunks []Chunk) []Chunk {
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}
