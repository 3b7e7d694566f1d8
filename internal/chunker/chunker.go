package chunker

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

const (
	DefaultWindowSize = 512
	DefaultOverlap    = 70
)

// Chunk is one citation-addressable fragment of a document's text. Index is
// the 0-based derivation order and is the chunk index used for citations.
type Chunk struct {
	Index int
	Text  string
}

// Chunker splits text on sentence boundaries, greedily packing sentences
// into a fixed window. Each chunk after the first starts with the trailing
// overlap of the previous chunk so adjacent chunks share local context.
type Chunker struct {
	windowSize int
	overlap    int
}

func New(windowSize, overlap int) *Chunker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if overlap < 0 || overlap >= windowSize {
		overlap = DefaultOverlap
	}

	return &Chunker{
		windowSize: windowSize,
		overlap:    overlap,
	}
}

func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []Chunk
	var current strings.Builder

	for _, sentence := range c.sentences(text) {
		if current.Len() > 0 && current.Len()+1+len(sentence) > c.windowSize {
			closed := current.String()
			chunks = append(chunks, Chunk{Index: len(chunks), Text: closed})

			current.Reset()
			current.WriteString(tail(closed, c.overlap))
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}

	if current.Len() > 0 {
		chunks = append(chunks, Chunk{Index: len(chunks), Text: current.String()})
	}

	return chunks
}

// sentences segments text with prose. Tagging and entity extraction are
// disabled, only the sentence segmenter runs. If segmentation yields
// nothing the whole text is treated as a single sentence.
func (c *Chunker) sentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{text}
	}

	sents := doc.Sentences()
	if len(sents) == 0 {
		return []string{text}
	}

	out := make([]string, 0, len(sents))
	for _, s := range sents {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}

	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
