package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextWindows(t *testing.T) {
	chunks, err := ChunkText("abcdefghij", 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "defg", "ghij", "j"}, chunks)
}

func TestChunkTextShorterThanSize(t *testing.T) {
	chunks, err := ChunkText("short", DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, chunks)
}

func TestChunkTextEmpty(t *testing.T) {
	chunks, err := ChunkText("", 4, 1)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkTextDropsWhitespaceOnlyWindows(t *testing.T) {
	// The middle window falls entirely inside the run of spaces.
	chunks, err := ChunkText("ab        cd", 4, 0)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
	assert.Len(t, chunks, 2)
}

func TestChunkTextRejectsBadParams(t *testing.T) {
	_, err := ChunkText("abc", 0, 0)
	assert.Error(t, err)

	_, err = ChunkText("abc", 4, 4)
	assert.Error(t, err)

	_, err = ChunkText("abc", 4, 5)
	assert.Error(t, err)

	_, err = ChunkText("abc", 4, -1)
	assert.Error(t, err)
}

func TestChunkTextCoversEveryByte(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks, err := ChunkText(text, 1000, 100)
	require.NoError(t, err)
	// Windows start at 0, 900, 1800; 2700 >= len so the loop stops.
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 700)

	var covered int
	stride := 1000 - 100
	for i, c := range chunks {
		start := i * stride
		assert.Equal(t, text[start:start+len(c)], c)
		if end := start + len(c); end > covered {
			covered = end
		}
	}
	assert.Equal(t, len(text), covered)
}

func TestChunkTextZeroOverlap(t *testing.T) {
	chunks, err := ChunkText("abcdefgh", 4, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "efgh"}, chunks)
}
