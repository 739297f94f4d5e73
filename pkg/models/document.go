package models

import "strings"

// Extraction sources recorded on a Document.
const (
	SourceTextLayer = "text-layer"
	SourceOCR       = "ocr"
)

// Document is one source file after extraction.
type Document struct {
	Name    string   // File base name, used as the file_name column
	Path    string   // Path the document was read from
	Pages   []string // Per-page text in page order
	Source  string   // SourceTextLayer or SourceOCR
	RawText string   // Pages joined with blank-line markers
}

// TitleCandidate is a heading found by the title detector.
type TitleCandidate struct {
	Ordinal string // Dotted numeric path, e.g. "2.3", "2.3.1" or "1."
	Text    string // Heading text without the ordinal
	Rule    string // Name of the rule that matched
	Line    int    // 0-based line index in the clean text
}

// FullTitle returns the heading as it appears at the start of a line.
func (t TitleCandidate) FullTitle() string {
	return strings.TrimSpace(t.Ordinal + " " + t.Text)
}

// Section is the content accumulated under one heading.
type Section struct {
	Chapter string // Most recent chapter marker or the default chapter label
	Ordinal string
	Title   string
	Content string
}

// Heading returns ordinal and title as one line.
func (s Section) Heading() string {
	return strings.TrimSpace(s.Ordinal + " " + s.Title)
}

// WordCount returns the number of whitespace-separated words of the content.
func (s Section) WordCount() int {
	return CountWords(s.Content)
}

// Chunk is a length-bounded paragraph cut from a section.
type Chunk struct {
	FileName  string
	Chapter   string
	Title     string
	WordCount int
	Text      string
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
