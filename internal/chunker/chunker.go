// Package chunker cuts section content into paragraphs whose word count lies
// in a fixed window.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"corpus/pkg/models"
)

// Default word bounds of a paragraph.
const (
	DefaultMinWords = 300
	DefaultMaxWords = 700
)

// SplitSentences cuts content after '.', '!' or '?' wherever the mark is
// followed by whitespace. Fragments are trimmed and empty ones dropped.
// Abbreviations and decimals followed by a space split too.
func SplitSentences(content string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next, _ := utf8.DecodeRuneInString(content[i:])
		if i >= len(content) || !unicode.IsSpace(next) {
			continue
		}
		if s := strings.TrimSpace(content[start:i]); s != "" {
			sentences = append(sentences, s)
		}
		start = i
	}
	if s := strings.TrimSpace(content[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Chunker merges consecutive sentences greedily into paragraphs of
// MinWords..MaxWords words.
type Chunker struct {
	MinWords int
	MaxWords int
}

// New returns a Chunker, using the defaults for non-positive bounds.
func New(minWords, maxWords int) Chunker {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return Chunker{MinWords: minWords, MaxWords: maxWords}
}

// Result holds the emitted paragraphs and the buffers dropped for falling
// outside the window, both in sentence order.
type Result struct {
	Paragraphs []string
	Discarded  []string
}

// Merge appends each sentence to the buffer while it stays within MaxWords.
// When a sentence would overflow, the buffer is emitted if it holds at least
// MinWords words and discarded otherwise, and the sentence starts a new buffer.
// The last buffer is emitted only inside [MinWords, MaxWords]. A single
// sentence longer than MaxWords can never be emitted.
func (c Chunker) Merge(sentences []string) Result {
	var (
		res   Result
		buf   []string
		count int
	)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		text := strings.Join(buf, " ")
		if count >= c.MinWords && count <= c.MaxWords {
			res.Paragraphs = append(res.Paragraphs, text)
		} else {
			res.Discarded = append(res.Discarded, text)
		}
		buf, count = nil, 0
	}

	for _, s := range sentences {
		n := models.CountWords(s)
		if n == 0 {
			continue
		}
		if count+n <= c.MaxWords {
			buf = append(buf, s)
			count += n
			continue
		}
		flush()
		buf, count = []string{s}, n
	}
	flush()

	return res
}

// Chunk splits content into sentences and merges them.
func (c Chunker) Chunk(content string) Result {
	return c.Merge(SplitSentences(content))
}

// ForSection chunks one section into rows labelled with the file name, the
// section's chapter and its heading. Sections are chunked independently.
func (c Chunker) ForSection(fileName string, s models.Section) ([]models.Chunk, []string) {
	res := c.Chunk(s.Content)
	chunks := make([]models.Chunk, 0, len(res.Paragraphs))
	for _, p := range res.Paragraphs {
		chunks = append(chunks, models.Chunk{
			FileName:  fileName,
			Chapter:   s.Chapter,
			Title:     s.Heading(),
			WordCount: models.CountWords(p),
			Text:      p,
		})
	}
	return chunks, res.Discarded
}
