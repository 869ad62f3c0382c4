package core

import (
	"fmt"
	"strings"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// ChunkText splits text into overlapping fixed-size windows. Window i starts
// at i*(size-overlap) and runs for min(size, remaining) bytes; the loop stops
// once a window would start at or past the end of the text. With
// overlap < size every byte of the input is covered by at least one window.
//
// Whitespace-only windows are dropped, since they carry nothing worth
// embedding.
func ChunkText(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		// overlap >= size would produce a zero or negative stride.
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}

	stride := size - overlap
	var chunks []string
	for start := 0; start < len(text); start += stride {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, window)
		}
	}
	return chunks, nil
}
