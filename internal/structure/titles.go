package structure

import (
	"strings"

	"corpus/pkg/models"
)

// Detector finds heading lines using an ordered rule table. The first rule
// that matches a line wins; a line yields at most one candidate.
type Detector struct {
	Rules []Rule
}

// NewNumberedDetector returns the flat-mode detector.
func NewNumberedDetector() *Detector {
	return &Detector{Rules: NumberedRules}
}

// NewGenericDetector returns the chapter-mode detector.
func NewGenericDetector() *Detector {
	return &Detector{Rules: GenericRules}
}

// Match tests a single line, trimming it first.
func (d *Detector) Match(line string) (models.TitleCandidate, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.TitleCandidate{}, false
	}
	for _, rule := range d.Rules {
		if ordinal, title, ok := rule.Match(line); ok {
			return models.TitleCandidate{
				Ordinal: ordinal,
				Text:    strings.TrimSpace(title),
				Rule:    rule.Name,
			}, true
		}
	}
	return models.TitleCandidate{}, false
}

// Detect returns the heading candidates of text in line order.
// Numbering is not checked for continuity; duplicates are kept.
func (d *Detector) Detect(text string) []models.TitleCandidate {
	var titles []models.TitleCandidate
	for i, line := range strings.Split(text, "\n") {
		if t, ok := d.Match(line); ok {
			t.Line = i
			titles = append(titles, t)
		}
	}
	return titles
}
