package structure

import (
	"regexp"
	"strings"

	"corpus/pkg/models"
)

// DefaultChapter labels headings that appear before any chapter marker.
const DefaultChapter = "Giới thiệu"

type entryKey struct {
	chapter string
	heading string
}

// ChapterSegmenter groups content by (chapter, heading) pairs.
type ChapterSegmenter struct {
	DefaultChapter string
	Marker         *regexp.Regexp
	Generic        *Detector
}

// NewChapterSegmenter returns a segmenter using ChapterMarker and the generic rules.
// An empty defaultChapter falls back to DefaultChapter.
func NewChapterSegmenter(defaultChapter string) *ChapterSegmenter {
	if defaultChapter == "" {
		defaultChapter = DefaultChapter
	}
	return &ChapterSegmenter{
		DefaultChapter: defaultChapter,
		Marker:         ChapterMarker,
		Generic:        NewGenericDetector(),
	}
}

// Segment walks text line by line.
//
// A chapter marker line becomes the current chapter and closes the heading
// scope. A heading line (one of titles, or any line the generic rules accept)
// opens its (chapter, heading) entry, or reopens it when seen again in the same
// chapter. Other lines are appended to the open entry.
//
// Entries are grouped by chapter in the order chapters first get an entry,
// then by first-seen heading within the chapter, so a chapter marker repeated
// by running page headers does not split its headings apart. The same heading
// under two chapters gives two entries.
func (c *ChapterSegmenter) Segment(text string, titles []models.TitleCandidate) []models.Section {
	known := make(map[string]models.TitleCandidate, len(titles))
	for _, t := range titles {
		if _, ok := known[t.FullTitle()]; !ok {
			known[t.FullTitle()] = t
		}
	}

	var (
		sections []models.Section
		content  []*strings.Builder
		index    = make(map[entryKey]int)
		chapter  = c.DefaultChapter
		open     = -1
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if c.Marker.MatchString(line) {
			chapter, open = line, -1
			continue
		}

		if t, ok := c.heading(line, known); ok {
			key := entryKey{chapter: chapter, heading: t.FullTitle()}
			i, seen := index[key]
			if !seen {
				i = len(sections)
				index[key] = i
				sections = append(sections, models.Section{
					Chapter: chapter,
					Ordinal: t.Ordinal,
					Title:   t.Text,
				})
				content = append(content, &strings.Builder{})
			}
			open = i
			continue
		}

		if open >= 0 {
			b := content[open]
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(line)
		}
	}

	var chapters []string
	byChapter := make(map[string][]int)
	for i := range sections {
		sections[i].Content = content[i].String()
		ch := sections[i].Chapter
		if _, ok := byChapter[ch]; !ok {
			chapters = append(chapters, ch)
		}
		byChapter[ch] = append(byChapter[ch], i)
	}

	ordered := make([]models.Section, 0, len(sections))
	for _, ch := range chapters {
		for _, i := range byChapter[ch] {
			ordered = append(ordered, sections[i])
		}
	}
	return ordered
}

func (c *ChapterSegmenter) heading(line string, known map[string]models.TitleCandidate) (models.TitleCandidate, bool) {
	if t, ok := known[line]; ok {
		return t, true
	}
	return c.Generic.Match(line)
}

// SegmentChapters segments text in chapter mode with the default chapter label.
func SegmentChapters(text string, titles []models.TitleCandidate, defaultChapter string) []models.Section {
	return NewChapterSegmenter(defaultChapter).Segment(text, titles)
}
