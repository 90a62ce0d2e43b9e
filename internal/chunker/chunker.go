package chunker

import (
	"strings"
	"unicode/utf8"

	"ragchat/pkg/types"
)

const (
	// DefaultMaxChars targets roughly 200 tokens per chunk at ~4 chars/token.
	DefaultMaxChars = 800

	// DefaultOverlapChars is carried between adjacent chunks for continuity.
	DefaultOverlapChars = 120
)

// Chunker splits raw text into overlapping, boundary-aware chunks.
// Splitting is deterministic: the same input and parameters always yield
// the same chunk list.
type Chunker struct {
	maxChars     int
	overlapChars int
}

// New creates a Chunker. Non-positive parameters fall back to defaults.
func New(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = DefaultOverlapChars
		if overlapChars >= maxChars {
			overlapChars = maxChars / 4
		}
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}
}

// Split chunks text into ordered spans covering the whole input. Boundaries
// are chosen by priority: paragraph break, line break, sentence end, space,
// hard cut. Empty or whitespace-only input yields no chunks.
func (c *Chunker) Split(text string) []types.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []types.Chunk
	start := 0
	textLen := len(text)

	for start < textLen {
		end := start + c.maxChars

		// Final window: take everything remaining verbatim.
		if end >= textLen {
			if trimmed := strings.TrimSpace(text[start:]); trimmed != "" {
				chunks = append(chunks, types.Chunk{Text: trimmed, Start: start, End: textLen})
			}
			break
		}

		// Cut positions are byte offsets; a hard cut can land inside a
		// multi-byte rune, so snap back to the nearest rune boundary.
		cut := snapToRuneStart(text, c.findBreakPoint(text, start, end))
		if cut <= start {
			_, size := utf8.DecodeRuneInString(text[start:])
			cut = start + size
		}
		if trimmed := strings.TrimSpace(text[start:cut]); trimmed != "" {
			chunks = append(chunks, types.Chunk{Text: trimmed, Start: start, End: cut})
		}

		// Step back to overlap with the previous chunk. If that would not
		// advance the window, continue from the cut point so the loop
		// always terminates.
		next := snapToRuneStart(text, cut-c.overlapChars)
		if next <= start {
			next = cut
		}
		start = next
	}

	return chunks
}

// findBreakPoint searches a window of overlapChars around the target end
// position for the best natural boundary, falling back to a hard cut at
// the target position.
func (c *Chunker) findBreakPoint(text string, start, end int) int {
	searchStart := end - c.overlapChars
	if searchStart < start {
		searchStart = start
	}
	searchEnd := end + c.overlapChars
	if searchEnd > len(text) {
		searchEnd = len(text)
	}

	window := text[searchStart:searchEnd]
	if window == "" {
		return end
	}

	// Paragraph break
	if pos := strings.LastIndex(window, "\n\n"); pos >= 0 {
		return searchStart + pos + 2
	}

	// Line break
	if pos := strings.LastIndex(window, "\n"); pos >= 0 {
		return searchStart + pos + 1
	}

	// Sentence end followed by a space
	for _, punct := range []string{". ", "! ", "? "} {
		if pos := strings.LastIndex(window, punct); pos >= 0 {
			return searchStart + pos + 2
		}
	}

	// Word boundary
	if pos := strings.LastIndex(window, " "); pos >= 0 {
		return searchStart + pos + 1
	}

	return end
}

// snapToRuneStart moves pos backward to the start of the rune it falls in.
func snapToRuneStart(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// MaxChars reports the configured window size.
func (c *Chunker) MaxChars() int { return c.maxChars }

// OverlapChars reports the configured overlap width.
func (c *Chunker) OverlapChars() int { return c.overlapChars }
