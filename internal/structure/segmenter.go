package structure

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"corpus/pkg/models"
)

type state int

const (
	noSectionOpen state = iota
	sectionOpen
)

// flatIndex groups full titles by their leading token so a line is only
// compared against headings that share its first word.
type flatIndex struct {
	titles []models.TitleCandidate
	full   []string
	byHead map[string][]int
}

func newFlatIndex(titles []models.TitleCandidate) *flatIndex {
	idx := &flatIndex{
		titles: titles,
		full:   make([]string, len(titles)),
		byHead: make(map[string][]int),
	}
	for i, t := range titles {
		full := t.FullTitle()
		idx.full[i] = full
		if head := firstField(full); head != "" {
			idx.byHead[head] = append(idx.byHead[head], i)
		}
	}
	return idx
}

// lookup returns the candidate whose full title starts line and is followed by
// whitespace or end of line. The longest full title wins; ties go to the
// earliest candidate.
func (idx *flatIndex) lookup(line string) (models.TitleCandidate, bool) {
	best := -1
	for _, i := range idx.byHead[firstField(line)] {
		full := idx.full[i]
		if !startsWithTitle(line, full) {
			continue
		}
		if best < 0 || len(full) > len(idx.full[best]) {
			best = i
		}
	}
	if best < 0 {
		return models.TitleCandidate{}, false
	}
	return idx.titles[best], true
}

func startsWithTitle(line, full string) bool {
	if !strings.HasPrefix(line, full) {
		return false
	}
	rest := line[len(full):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsSpace(r)
}

func firstField(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i]
	}
	return s
}

// SegmentFlat cuts text into sections at the detected headings.
//
// A line that starts with a heading closes the open section and opens a new
// one; the heading line itself contributes no content. Other lines are
// appended to the open section, space-joined. Lines before the first heading
// are discarded, blank lines are skipped. Intermediate sections are emitted even
// when empty; the last section is emitted only if it has content.
func SegmentFlat(text string, titles []models.TitleCandidate) []models.Section {
	idx := newFlatIndex(titles)

	var (
		sections []models.Section
		current  models.TitleCandidate
		content  []string
		st       = noSectionOpen
	)

	emit := func() {
		sections = append(sections, models.Section{
			Ordinal: current.Ordinal,
			Title:   current.Text,
			Content: strings.TrimSpace(strings.Join(content, " ")),
		})
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if t, ok := idx.lookup(line); ok {
			if st == sectionOpen {
				emit()
			}
			current, content, st = t, nil, sectionOpen
			continue
		}

		if st == sectionOpen {
			content = append(content, line)
		}
	}

	if st == sectionOpen && len(content) > 0 {
		emit()
	}
	return sections
}

// KeepMinWords splits sections into those with at least min words of content
// and those dropped for being shorter.
func KeepMinWords(sections []models.Section, min int) (kept, dropped []models.Section) {
	for _, s := range sections {
		if s.WordCount() >= min {
			kept = append(kept, s)
		} else {
			dropped = append(dropped, s)
		}
	}
	return kept, dropped
}
