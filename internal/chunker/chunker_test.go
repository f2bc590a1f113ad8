package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jskelly/semdex/pkg/types"
)

func makeLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return strings.Join(lines, "\n")
}

func TestNew_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 5, 1, false},
		{"zero overlap", 5, 0, false},
		{"zero size", 0, 0, true},
		{"negative size", -1, 0, true},
		{"negative overlap", 5, -1, true},
		{"overlap equals size", 5, 5, true},
		{"overlap exceeds size", 5, 7, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.size, tt.overlap)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrConfig)
				assert.Nil(t, c)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, c)
			}
		})
	}
}

func TestSplit_TwelveLinesExample(t *testing.T) {
	c, err := New(5, 1)
	require.NoError(t, err)

	chunks := c.Split(makeLines(12))
	require.Len(t, chunks, 3)

	assert.Equal(t, 1, chunks[0].LineStart)
	assert.Equal(t, 5, chunks[0].LineEnd)
	assert.Equal(t, 5, chunks[1].LineStart)
	assert.Equal(t, 9, chunks[1].LineEnd)
	assert.Equal(t, 9, chunks[2].LineStart)
	assert.Equal(t, 12, chunks[2].LineEnd)

	assert.True(t, strings.HasPrefix(chunks[0].Content, "line 1\n"))
	assert.True(t, strings.HasSuffix(chunks[2].Content, "line 12"))
}

func TestSplit_GrowthToFifteenLines(t *testing.T) {
	c, err := New(5, 1)
	require.NoError(t, err)

	chunks := c.Split(makeLines(15))
	require.Len(t, chunks, 4)
	assert.Equal(t, 13, chunks[3].LineStart)
	assert.Equal(t, 15, chunks[3].LineEnd)
}

func TestSplit_EmptyFile(t *testing.T) {
	c, err := New(5, 1)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
}

func TestSplit_TrailingNewline(t *testing.T) {
	c, err := New(5, 1)
	require.NoError(t, err)

	withNewline := c.Split(makeLines(12) + "\n")
	withoutNewline := c.Split(makeLines(12))
	assert.Equal(t, withoutNewline, withNewline)
}

func TestSplit_FileShorterThanWindow(t *testing.T) {
	c, err := New(40, 8)
	require.NoError(t, err)

	chunks := c.Split("one\ntwo\nthree")
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].LineStart)
	assert.Equal(t, 3, chunks[0].LineEnd)
	assert.Equal(t, "one\ntwo\nthree", chunks[0].Content)
}

func TestSplit_ExactWindowNoTailChunk(t *testing.T) {
	c, err := New(5, 1)
	require.NoError(t, err)

	// A file exactly one window long must produce a single chunk, not a
	// redundant overlapping tail.
	chunks := c.Split(makeLines(5))
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].LineStart)
	assert.Equal(t, 5, chunks[0].LineEnd)
}

func TestSplit_CoversEveryLine(t *testing.T) {
	sizes := []struct{ size, overlap int }{{5, 1}, {5, 0}, {3, 2}, {40, 8}, {1, 0}}
	lengths := []int{1, 2, 5, 11, 12, 40, 41, 100}

	for _, cfg := range sizes {
		c, err := New(cfg.size, cfg.overlap)
		require.NoError(t, err)

		for _, n := range lengths {
			chunks := c.Split(makeLines(n))
			require.NotEmpty(t, chunks, "size=%d overlap=%d n=%d", cfg.size, cfg.overlap, n)

			covered := make([]bool, n+1)
			prevStart := 0
			for _, ch := range chunks {
				assert.Greater(t, ch.LineStart, prevStart, "chunk starts must advance")
				assert.LessOrEqual(t, ch.LineStart, ch.LineEnd)
				assert.LessOrEqual(t, ch.LineEnd, n)
				for l := ch.LineStart; l <= ch.LineEnd; l++ {
					covered[l] = true
				}
				prevStart = ch.LineStart
			}
			for l := 1; l <= n; l++ {
				assert.True(t, covered[l], "size=%d overlap=%d n=%d line %d not covered", cfg.size, cfg.overlap, n, l)
			}
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c, err := New(7, 3)
	require.NoError(t, err)

	text := makeLines(50)
	first := c.Split(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Split(text))
	}
}
