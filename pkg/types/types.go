package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// EmbeddingChunk is one embedded unit of text: a contiguous line range of a
// source file together with its embedding vector. Chunks are overwritten in
// place on re-index because ChunkID is a pure function of (file path, slot).
type EmbeddingChunk struct {
	ChunkID   string    `json:"chunk_id"`
	FilePath  string    `json:"file_path"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
	LineStart int       `json:"line_start"`
	LineEnd   int       `json:"line_end"`
}

// Validate checks structural consistency of the chunk record.
func (c *EmbeddingChunk) Validate() error {
	if c.ChunkID == "" {
		return errors.New("chunk ID is required")
	}
	if c.FilePath == "" {
		return errors.New("file path is required")
	}
	if c.LineStart <= 0 || c.LineEnd <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.LineStart > c.LineEnd {
		return errors.New("start line must be before or equal to end line")
	}
	return nil
}

// IndexedFile is the per-file bookkeeping record. ChunkIDs holds, in chunk
// order, exactly the chunk records currently persisted for the file.
type IndexedFile struct {
	FilePath    string    `json:"file_path"`
	ContentHash string    `json:"content_hash"`
	ChunkIDs    []string  `json:"chunk_ids"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// SearchResult is a single similarity hit. Score is cosine similarity in
// [-1, 1], higher is more relevant. Results are never persisted.
type SearchResult struct {
	FilePath  string  `json:"file_path"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
	LineStart int     `json:"line_start"`
	LineEnd   int     `json:"line_end"`
}

// IndexStats summarizes the current contents of the index.
type IndexStats struct {
	IndexedFiles int    `json:"indexed_files"`
	TotalChunks  int    `json:"total_chunks"`
	Dimension    int    `json:"dimension,omitempty"`
	Workspace    string `json:"workspace"`
}

// ChunkID derives the stable identifier for a chunk slot. Re-indexing the
// same file overwrites slot i instead of accumulating duplicates, which is
// what makes shrink cleanup possible.
func ChunkID(filePath string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", filePath, index)))
	return hex.EncodeToString(sum[:16])
}

// HashContent returns the hex SHA-256 fingerprint of file bytes, used to
// detect whether a file needs re-indexing.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
