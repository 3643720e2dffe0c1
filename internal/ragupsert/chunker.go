// Package ragupsert implements the rag_ingest job's text-normalization and
// vector-upsert pipeline: chunking, jurisdiction/language normalization,
// embedding, and the vector store port, ported from original_source's
// src/services/rag/chunker.py, jurisdiction.py, and language.py.
package ragupsert

import (
	"strings"
)

// DefaultMaxChars mirrors chunk_text's max_length=800 default.
const DefaultMaxChars = 800

// Chunk is one paragraph-buffered unit of text before token-bounding.
type Chunk struct {
	Text  string
	Index int
}

// ChunkText buffers whole paragraphs (split on blank lines) into chunks no
// longer than maxChars, splitting only a paragraph that alone exceeds
// maxChars, ported from chunker.py's chunk_text/_split_paragraph.
func ChunkText(text string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	paragraphs := splitParagraphs(text)

	var chunks []Chunk
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{Text: strings.TrimSpace(buf.String()), Index: len(chunks)})
		buf.Reset()
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if len(p) > maxChars {
			flush()
			for _, piece := range splitParagraph(p, maxChars) {
				chunks = append(chunks, Chunk{Text: piece, Index: len(chunks)})
			}
			continue
		}

		candidateLen := buf.Len() + len(p) + 2
		if buf.Len() > 0 && candidateLen > maxChars {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p)
	}
	flush()
	return chunks
}

func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(normalized, "\n\n")
}

// splitParagraph breaks one over-long paragraph on sentence boundaries
// first, falling back to a hard character split, matching
// chunker.py's _split_paragraph fallback behavior.
func splitParagraph(p string, maxChars int) []string {
	sentences := splitSentences(p)
	var out []string
	var buf strings.Builder

	for _, s := range sentences {
		if len(s) > maxChars {
			if buf.Len() > 0 {
				out = append(out, strings.TrimSpace(buf.String()))
				buf.Reset()
			}
			for start := 0; start < len(s); start += maxChars {
				end := start + maxChars
				if end > len(s) {
					end = len(s)
				}
				out = append(out, strings.TrimSpace(s[start:end]))
			}
			continue
		}
		if buf.Len()+len(s)+1 > maxChars && buf.Len() > 0 {
			out = append(out, strings.TrimSpace(buf.String()))
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(s)
	}
	if buf.Len() > 0 {
		out = append(out, strings.TrimSpace(buf.String()))
	}
	return out
}

func splitSentences(p string) []string {
	var sentences []string
	var buf strings.Builder
	for _, r := range p {
		buf.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentences = append(sentences, buf.String())
			buf.Reset()
		}
	}
	if buf.Len() > 0 {
		sentences = append(sentences, buf.String())
	}
	return sentences
}
