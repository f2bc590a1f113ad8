package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkID_Stable(t *testing.T) {
	a := ChunkID("src/main.go", 0)
	b := ChunkID("src/main.go", 0)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestChunkID_DistinctSlots(t *testing.T) {
	ids := map[string]bool{
		ChunkID("src/main.go", 0): true,
		ChunkID("src/main.go", 1): true,
		ChunkID("src/other.go", 0): true,
	}
	assert.Len(t, ids, 3)
}

func TestHashContent(t *testing.T) {
	h1 := HashContent([]byte("hello"))
	h2 := HashContent([]byte("hello"))
	h3 := HashContent([]byte("hello!"))

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestEmbeddingChunk_Validate(t *testing.T) {
	chunk := EmbeddingChunk{
		ChunkID:   ChunkID("a.go", 0),
		FilePath:  "a.go",
		Content:   "package a",
		LineStart: 1,
		LineEnd:   1,
	}
	assert.NoError(t, chunk.Validate())

	bad := chunk
	bad.LineStart = 5
	bad.LineEnd = 2
	assert.Error(t, bad.Validate())

	bad = chunk
	bad.ChunkID = ""
	assert.Error(t, bad.Validate())
}
