// Package ingest prepares raw corpus documents for indexing.
package ingest

import (
	"strings"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 160
)

// Chunk splits text into overlapping windows of roughly size runes.
// Window ends snap backwards to a paragraph or sentence boundary when
// one falls in the final quarter of the window, so chunks rarely cut a
// sentence in half. Consecutive chunks share overlap runes of context.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for {
		end := start + size
		if end >= len(runes) {
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			return chunks
		}

		cut := snapToBoundary(runes, start, end)
		if chunk := strings.TrimSpace(string(runes[start:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - overlap
		if next <= start {
			// Overlap would stall the window on boundary-heavy text.
			next = cut
		}
		start = next
	}
}

// snapToBoundary moves end backwards to the nearest paragraph break,
// then sentence end, found in the last quarter of the window.
func snapToBoundary(runes []rune, start, end int) int {
	floor := end - (end-start)/4

	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i
		}
	}
	for i := end - 1; i > floor; i-- {
		if runes[i-1] == '.' && (runes[i] == ' ' || runes[i] == '\n') {
			return i
		}
	}
	return end
}
