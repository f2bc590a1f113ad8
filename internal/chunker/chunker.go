package chunker

import (
	"fmt"
	"strings"

	"github.com/jskelly/semdex/pkg/types"
)

const (
	// DefaultChunkLines is the default window size in lines.
	DefaultChunkLines = 40

	// DefaultOverlapLines is the default number of lines shared between
	// consecutive windows.
	DefaultOverlapLines = 8
)

// Chunk is a contiguous slice of a file's text. Line numbers are 1-based and
// inclusive.
type Chunk struct {
	Content   string
	LineStart int
	LineEnd   int
}

// Chunker splits file text into overlapping line windows. Window i+1 starts
// size-overlap lines after window i, so every line is covered by at least one
// chunk and chunk ordering is stable for identical input.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Overlap must satisfy 0 <= overlap < size; anything
// else is a configuration error.
func New(sizeLines, overlapLines int) (*Chunker, error) {
	if sizeLines <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", types.ErrConfig, sizeLines)
	}
	if overlapLines < 0 || overlapLines >= sizeLines {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", types.ErrConfig, sizeLines, overlapLines)
	}
	return &Chunker{size: sizeLines, overlap: overlapLines}, nil
}

// Size returns the configured window size in lines.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in lines.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks the given text. An empty file yields zero chunks. The final
// window may be shorter than the configured size; it is still emitted.
func (c *Chunker) Split(text string) []Chunk {
	lines := strings.Split(text, "\n")
	// A trailing newline terminates the last line, it does not open a new one.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]Chunk, 0, (len(lines)+step-1)/step)
	for start := 0; start < len(lines); start += step {
		end := start + c.size
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, Chunk{
			Content:   strings.Join(lines[start:end], "\n"),
			LineStart: start + 1,
			LineEnd:   end,
		})
		if end == len(lines) {
			break
		}
	}
	return chunks
}
