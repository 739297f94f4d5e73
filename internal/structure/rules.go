// Package structure recovers the heading hierarchy of a cleaned textbook text
// and cuts the text into sections anchored at those headings.
package structure

import "regexp"

// upperVI is the set of letters a heading may start with: ASCII capitals plus
// the precomposed Vietnamese capitals.
const upperVI = `A-ZĐÁÀẢÃẠĂẮẰẲẴẶÂẤẦẨẪẬÊẾỀỂỄỆÔỐỒỔỖỘƠỚỜỞỠỢƯỨỪỬỮỰ`

// titleChars is the body of a short heading: word characters, spaces, commas,
// parentheses and hyphens.
const titleChars = `[\p{L}\p{N}_\s,()-]*`

// Rule is one heading pattern. Pattern must capture the ordinal and the title
// text at the submatch indices Ordinal and Title. A line matching Reject is
// never accepted by the rule.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Reject  *regexp.Regexp
	Ordinal int
	Title   int
}

// Match applies the rule to one trimmed line.
func (r Rule) Match(line string) (ordinal, title string, ok bool) {
	if r.Reject != nil && r.Reject.MatchString(line) {
		return "", "", false
	}
	m := r.Pattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[r.Ordinal], m[r.Title], true
}

// Names of the built-in rules.
const (
	RuleDotted          = "dotted"
	RuleTrailingDot     = "trailing-dot"
	RuleChapterSentence = "chapter-sentence"
	RuleGeneric         = "generic"
)

// NumberedRules is the flat-mode rule table, highest priority first.
var NumberedRules = []Rule{
	{
		// 2.3 Tên mục ; lines starting "12." are numbered paragraphs, not headings
		Name:    RuleDotted,
		Pattern: regexp.MustCompile(`^(\d+(?:\.\d+)+)\s+([` + upperVI + `]` + titleChars + `)$`),
		Reject:  regexp.MustCompile(`^\d{2,}\.`),
		Ordinal: 1,
		Title:   2,
	},
	{
		// 1. Giới thiệu ; 2.1. tổng quan
		Name:    RuleTrailingDot,
		Pattern: regexp.MustCompile(`^(\d+(?:\.\d+)*\.)\s*([` + upperVI + `a-z]` + titleChars + `)$`),
		Ordinal: 1,
		Title:   2,
	},
	{
		// 3. Một câu tiêu đề dài kết thúc bằng dấu chấm.
		Name:    RuleChapterSentence,
		Pattern: regexp.MustCompile(`^(\d+)\.\s+([` + upperVI + `][^:]{3,100}[.?!])$`),
		Ordinal: 1,
		Title:   2,
	},
}

// GenericRules is the chapter-mode rule table: any dotted number followed by text.
var GenericRules = []Rule{
	{
		Name:    RuleGeneric,
		Pattern: regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+(.+)$`),
		Ordinal: 1,
		Title:   2,
	},
}

// ChapterMarker matches lines that open a chapter scope, e.g. "CHƯƠNG 2: Mạng máy tính".
var ChapterMarker = regexp.MustCompile(`^(?:CHƯƠNG|CHAPTER)\s+\d+:?\s+.+`)
