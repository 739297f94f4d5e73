// Package normalize repairs the predictable glyph corruption that text-layer
// extraction and OCR produce on Vietnamese textbooks.
package normalize

import "strings"

// Replacement is one literal substitution.
type Replacement struct {
	From string
	To   string
}

// Table is an ordered list of literal substitutions. Entries run in declared
// order, so an earlier entry can consume input a later entry would have matched.
type Table []Replacement

// DefaultTable mirrors the corrections observed on the source corpus.
// "m{ng" and "ph}ng" follow the single-glyph entries and therefore never fire;
// the order is kept so output stays identical to the historical corpus.
var DefaultTable = Table{
	{"l{", "là"},
	{"Đ}", "Đây"},
	{"c|c", "các"},
	{"t}m", "tìm"},
	{"{", "à"},
	{"}", "â"},
	{"|", "á"},
	{"m{ng", "mạng"},
	{"ph}ng", "phòng"},
	{"Ö", "ệ"},
	{"−¬", "ươ"},
	{"Ƣ", "ư"},
	{"~", "ã"},
	{"ƣ", "ư"},
}

// Apply runs every substitution over text in order.
func (t Table) Apply(text string) string {
	for _, r := range t {
		if r.From == "" {
			continue
		}
		text = strings.ReplaceAll(text, r.From, r.To)
	}
	return text
}

// ApplyWithStats is Apply that also reports how often each entry fired,
// keyed by the entry's From string.
func (t Table) ApplyWithStats(text string) (string, map[string]int) {
	stats := make(map[string]int)
	for _, r := range t {
		if r.From == "" {
			continue
		}
		if n := strings.Count(text, r.From); n > 0 {
			stats[r.From] += n
			text = strings.ReplaceAll(text, r.From, r.To)
		}
	}
	return text, stats
}

// Apply corrects text with DefaultTable.
func Apply(text string) string {
	return DefaultTable.Apply(text)
}
