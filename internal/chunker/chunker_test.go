package chunker

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"corpus/pkg/models"
)

// sentence builds a sentence of n distinct words tagged with id.
func sentence(id, n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("s%dw%d", id, i)
	}
	return strings.Join(w, " ") + "."
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"basic", "Một câu. Hai câu! Ba câu? Bốn", []string{"Một câu.", "Hai câu!", "Ba câu?", "Bốn"}},
		{"no space after mark", "Phiên bản 2.0 ra đời.Tiếp theo", []string{"Phiên bản 2.0 ra đời.Tiếp theo"}},
		{"decimal followed by space splits", "Giá trị 3. 5 đơn vị", []string{"Giá trị 3.", "5 đơn vị"}},
		{"whitespace runs", "A.  \n\t B.   ", []string{"A.", "B."}},
		{"empty", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.in)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("SplitSentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMerge_Basic(t *testing.T) {
	c := Chunker{MinWords: 300, MaxWords: 700}

	tests := []struct {
		name       string
		lengths    []int
		paragraphs []int // word counts of emitted paragraphs
		discarded  int
	}{
		{"single fits", []int{350}, []int{350}, 0},
		{"too short at end", []int{100, 100}, nil, 1},
		{"greedy fill then overflow", []int{400, 250, 200}, []int{650}, 1},
		{"undersized buffer discarded on overflow", []int{200, 600}, []int{600}, 1},
		{"exact bounds", []int{300, 400, 700}, []int{700, 700}, 0},
		{"oversized sentence never emitted", []int{350, 800, 320}, []int{350, 320}, 1},
		{"empty input", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sentences []string
			for i, n := range tt.lengths {
				sentences = append(sentences, sentence(i, n))
			}
			res := c.Merge(sentences)

			var got []int
			for _, p := range res.Paragraphs {
				got = append(got, models.CountWords(p))
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.paragraphs) {
				t.Errorf("paragraph words = %v, want %v", got, tt.paragraphs)
			}
			if len(res.Discarded) != tt.discarded {
				t.Errorf("discarded = %d, want %d", len(res.Discarded), tt.discarded)
			}
		})
	}
}

// Every paragraph stays in bounds, paragraphs are runs of consecutive input
// sentences in input order, and no sentence is lost without being reported.
func TestMerge_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := Chunker{MinWords: 300, MaxWords: 700}

	for round := 0; round < 200; round++ {
		count := rng.Intn(40)
		maxLen := []int{20, 120, 400, 900}[rng.Intn(4)]

		var sentences []string
		total := 0
		for i := 0; i < count; i++ {
			n := 1 + rng.Intn(maxLen)
			sentences = append(sentences, sentence(i, n))
			total += n
		}

		res := c.Merge(sentences)

		accounted := 0
		next := 0
		for _, p := range res.Paragraphs {
			n := models.CountWords(p)
			if n < c.MinWords || n > c.MaxWords {
				t.Fatalf("round %d: paragraph has %d words", round, n)
			}
			accounted += n

			// Find the run of sentences that forms p, starting at or after next.
			found := false
			for start := next; start < len(sentences) && !found; start++ {
				joined := ""
				for end := start; end < len(sentences); end++ {
					if joined != "" {
						joined += " "
					}
					joined += sentences[end]
					if joined == p {
						next, found = end+1, true
						break
					}
					if len(joined) >= len(p) {
						break
					}
				}
			}
			if !found {
				t.Fatalf("round %d: paragraph is not an in-order run of sentences", round)
			}
		}

		for _, d := range res.Discarded {
			accounted += models.CountWords(d)
		}
		if accounted != total {
			t.Fatalf("round %d: %d words accounted for, want %d", round, accounted, total)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(0, 0)
	if c.MinWords != DefaultMinWords || c.MaxWords != DefaultMaxWords {
		t.Errorf("New(0, 0) = %+v", c)
	}
}

func TestForSection(t *testing.T) {
	c := New(5, 10)
	s := models.Section{
		Chapter: "CHƯƠNG 1: Mạng",
		Ordinal: "1.1",
		Title:   "Khái niệm",
		Content: "Một hai ba bốn năm sáu. Bảy tám chín mười. Ngắn.",
	}

	chunks, discarded := c.ForSection("mang.pdf", s)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %+v", chunks)
	}
	got := chunks[0]
	if got.FileName != "mang.pdf" || got.Chapter != s.Chapter || got.Title != "1.1 Khái niệm" {
		t.Errorf("chunk labels = %+v", got)
	}
	if got.WordCount != 10 {
		t.Errorf("WordCount = %d, want 10", got.WordCount)
	}
	if len(discarded) != 1 || discarded[0] != "Ngắn." {
		t.Errorf("discarded = %q", discarded)
	}
}
