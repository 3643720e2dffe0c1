package ragupsert

import (
	"strings"
	"testing"
)

func TestChunkTextBuffersShortParagraphs(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	chunks := ChunkText(text, 200)
	if len(chunks) != 1 {
		t.Fatalf("expected all short paragraphs buffered into one chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "Second paragraph.") {
		t.Fatalf("expected merged chunk to contain all paragraphs: %q", chunks[0].Text)
	}
}

func TestChunkTextRespectsMaxChars(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 50) + "\n\n" + strings.Repeat("c", 50)
	chunks := ChunkText(text, 60)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 separate chunks when combined length exceeds maxChars, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 60 {
			t.Fatalf("chunk exceeds maxChars: %d", len(c.Text))
		}
	}
}

func TestChunkTextSplitsOverlongParagraphOnSentences(t *testing.T) {
	sentence := "This is a sentence that repeats. "
	longParagraph := strings.Repeat(sentence, 20)
	chunks := ChunkText(longParagraph, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected an over-long paragraph to split into multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > 100 {
			t.Fatalf("chunk %d exceeds maxChars: %d", i, len(c.Text))
		}
	}
}

func TestChunkTextIndexesSequentially(t *testing.T) {
	text := strings.Repeat("x", 50) + "\n\n" + strings.Repeat("y", 50) + "\n\n" + strings.Repeat("z", 50)
	chunks := ChunkText(text, 60)
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("expected chunk %d to have Index %d, got %d", i, i, c.Index)
		}
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	if chunks := ChunkText("", 800); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestChunkTextDefaultsMaxChars(t *testing.T) {
	chunks := ChunkText(strings.Repeat("a", DefaultMaxChars+100), 0)
	if len(chunks) < 1 {
		t.Fatalf("expected at least one chunk with default max chars")
	}
}
