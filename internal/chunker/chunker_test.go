package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := New(0, -1)
	assert.Equal(t, DefaultMaxChars, c.MaxChars())
	assert.Equal(t, DefaultOverlapChars, c.OverlapChars())
}

func TestNew_OverlapClampedBelowWindow(t *testing.T) {
	c := New(20, 200)
	assert.Less(t, c.OverlapChars(), c.MaxChars())
}

func TestSplit_EmptyInput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(100, 20)
			assert.Empty(t, c.Split(tt.text))
		})
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c := New(100, 20)
	chunks := c.Split("just a short note")

	require.Len(t, chunks, 1)
	assert.Equal(t, "just a short note", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
}

func TestSplit_ParagraphBoundary(t *testing.T) {
	// Two paragraphs with a window too small to hold both: the cut lands
	// on the paragraph break.
	text := "Paragraph one.\n\nParagraph two."
	c := New(20, 5)

	chunks := c.Split(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Paragraph one.", chunks[0].Text)
	assert.Contains(t, chunks[1].Text, "Paragraph two.")
}

func TestSplit_SentenceBoundary(t *testing.T) {
	text := "Short first sentence ends here now. Then more text follows after."
	c := New(30, 10)

	chunks := c.Split(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "."),
		"first chunk should end at a sentence boundary, got %q", chunks[0].Text)
}

func TestSplit_HardCutWithoutBoundaries(t *testing.T) {
	// No whitespace at all forces hard cuts and must still terminate.
	text := strings.Repeat("x", 500)
	c := New(100, 20)

	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Text), 100+20)
	}
}

func TestSplit_HardCutKeepsRunesWhole(t *testing.T) {
	// Space-less multi-byte text forces hard cuts; every cut must land on
	// a rune boundary or the chunks are not valid UTF-8.
	text := strings.Repeat("世", 200)
	c := New(100, 20)

	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Text), "chunk %d is not valid UTF-8: %q", i, chunk.Text)
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
}

func TestSplit_MultiByteWithBoundaries(t *testing.T) {
	text := strings.Repeat("日本語のテキストです。\n\n", 30)
	c := New(80, 16)

	chunks := c.Split(text)

	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Text), "chunk %d is not valid UTF-8", i)
	}
}

func TestSplit_TinyWindowAdvancesByWholeRunes(t *testing.T) {
	// A window smaller than one rune still terminates and emits whole
	// runes.
	text := strings.Repeat("語", 10)
	c := New(2, 0)

	chunks := c.Split(text)

	require.Len(t, chunks, 10)
	for _, chunk := range chunks {
		assert.Equal(t, "語", chunk.Text)
	}
}

func TestSplit_Idempotent(t *testing.T) {
	text := strings.Repeat("Some sentence with words. ", 80)
	c := New(200, 40)

	first := c.Split(text)
	second := c.Split(text)

	assert.Equal(t, first, second)
}

func TestSplit_Coverage(t *testing.T) {
	// Every byte of the input must fall within at least one chunk span.
	texts := []string{
		strings.Repeat("Line of text here\n", 60),
		strings.Repeat("word ", 400),
		"Para one.\n\nPara two.\n\nPara three.\n\n" + strings.Repeat("tail text. ", 50),
	}

	for _, text := range texts {
		c := New(150, 30)
		chunks := c.Split(text)
		require.NotEmpty(t, chunks)

		covered := make([]bool, len(text))
		for _, chunk := range chunks {
			require.LessOrEqual(t, chunk.Start, chunk.End)
			for i := chunk.Start; i < chunk.End && i < len(text); i++ {
				covered[i] = true
			}
		}
		// The last chunk runs to the end of input.
		assert.Equal(t, len(text), chunks[len(chunks)-1].End)
		for i, ok := range covered {
			require.True(t, ok, "byte %d not covered by any chunk", i)
		}
	}
}

func TestSplit_ChunksAreOrdered(t *testing.T) {
	text := strings.Repeat("Sentence in the middle of things. ", 60)
	c := New(120, 30)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].Start, chunks[i-1].Start)
	}
}

func TestSplit_OverlapBetweenChunks(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon ", 40)
	c := New(100, 25)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	// Adjacent spans share the overlap region (or at least touch).
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].Start, chunks[i-1].End)
	}
}
