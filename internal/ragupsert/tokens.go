package ragupsert

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoder() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
			return
		}
		enc = e
	})
	return enc
}

// TokenCount returns the cl100k_base token count of text, falling back to a
// character-based estimate (len/4) if the encoder failed to load.
func TokenCount(text string) int {
	e := encoder()
	if e == nil {
		return len(text) / 4
	}
	return len(e.Encode(text, nil, nil))
}

// EnforceTokenBound further splits any chunk exceeding maxTokens in half,
// repeatedly, until every chunk fits — a token-aware pass applied after
// ChunkText's character-bounded paragraph buffering.
func EnforceTokenBound(chunks []Chunk, maxTokens int) []Chunk {
	if maxTokens <= 0 {
		return chunks
	}
	var out []Chunk
	var split func(c Chunk)
	split = func(c Chunk) {
		if TokenCount(c.Text) <= maxTokens || len(c.Text) < 2 {
			out = append(out, Chunk{Text: c.Text, Index: len(out)})
			return
		}
		mid := len(c.Text) / 2
		split(Chunk{Text: c.Text[:mid]})
		split(Chunk{Text: c.Text[mid:]})
	}
	for _, c := range chunks {
		split(c)
	}
	for i := range out {
		out[i].Index = i
	}
	return out
}
