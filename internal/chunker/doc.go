// Package chunker splits document text into overlapping chunks sized for
// embedding, preferring natural boundaries (paragraphs, lines, sentences,
// words) over hard cuts.
package chunker
