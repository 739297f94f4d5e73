package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"corpus/internal/logger"
	"corpus/internal/sheets"
	"corpus/internal/summarize"
	"corpus/pkg/services"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("từ ", n))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name          string
		article       string
		summary       string
		similarity    float64
		wantFaith     float64
		wantFaithNote string
		wantCoherence int
		wantRelevance int
		wantAverage   float64
	}{
		{"perfect long summary", words(100), words(60), 1, 5, FaithfulComplete, 5, 5, 5},
		{"band edge 4.5", words(100), words(10), 0.9, 4.5, FaithfulComplete, 4, 4, 4.17},
		{"mostly faithful", words(10), words(8), 0.8, 4, FaithfulMostly, 4, 5, 4.33},
		{"band edge 2.5", words(10), words(5), 0.5, 2.5, FaithfulPartly, 4, 4, 3.5},
		{"unfaithful", words(10), words(3), 0.1, 0.5, FaithfulNot, 4, 4, 2.83},
		{"negative similarity clamps", words(4), words(3), -0.4, 0, FaithfulNot, 4, 5, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Score(tt.article, tt.summary, tt.similarity)
			if r.Faithfulness != tt.wantFaith || r.FaithfulnessComment != tt.wantFaithNote {
				t.Errorf("faithfulness = %v %q", r.Faithfulness, r.FaithfulnessComment)
			}
			if r.Coherence != tt.wantCoherence || r.Relevance != tt.wantRelevance {
				t.Errorf("coherence/relevance = %d/%d", r.Coherence, r.Relevance)
			}
			if r.Average != tt.wantAverage {
				t.Errorf("average = %v, want %v", r.Average, tt.wantAverage)
			}
			want := r.FaithfulnessComment + " " + r.CoherenceComment + " " + r.RelevanceComment
			if r.Comment != want {
				t.Errorf("comment = %q", r.Comment)
			}
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"same direction", []float32{1, 2}, []float32{2, 4}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"dimension mismatch", []float32{1}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func evaluationTable() *sheets.Table {
	table := sheets.NewTable("Exam", RequiredColumns...)
	table.Append(words(100), words(60), "1.1 Mở đầu", "Kinh tế học", "Nguyễn A")
	table.Append(words(10), words(3), "1.2 Khái niệm", "Kinh tế học", "Nguyễn A")
	return table
}

func TestBatch_Run(t *testing.T) {
	table := evaluationTable()
	calls := 0
	scorer := services.SimilarityFunc(func(ctx context.Context, a, b string) (float64, error) {
		calls++
		if calls == 2 {
			return 0, errors.New("quota exceeded")
		}
		return 1, nil
	})

	report, err := NewBatch(scorer).Run(context.Background(), table)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report != (Report{Rows: 2, Evaluated: 1, Failed: 1}) {
		t.Errorf("report = %+v", report)
	}

	if len(table.Header) != len(RequiredColumns)+len(OutputColumns) {
		t.Fatalf("header = %v", table.Header)
	}
	overall := table.Column("Nhận xét chung")
	average := table.Column("Điểm trung bình cộng")

	if got := table.Value(0, average); got != "5" {
		t.Errorf("row 1 average = %q", got)
	}
	if got := table.Value(1, overall); got != FailureMarker {
		t.Errorf("row 2 overall = %q", got)
	}
	if got := table.Value(1, average); got != "" {
		t.Errorf("row 2 average = %q, want empty", got)
	}
}

func TestBatch_SkipsEmptyRows(t *testing.T) {
	table := sheets.NewTable("Exam", RequiredColumns...)
	table.Append("", words(20), "1.1 Mở đầu", "Kinh tế học", "Nguyễn A")
	table.Append(words(40), "   ", "1.2 Khái niệm", "Kinh tế học", "Nguyễn A")
	table.Append(words(100), words(60), "1.3 Ứng dụng", "Kinh tế học", "Nguyễn A")

	var seen []string
	scorer := services.SimilarityFunc(func(ctx context.Context, a, b string) (float64, error) {
		seen = append(seen, a)
		return 1, nil
	})

	report, err := NewBatch(scorer).Run(context.Background(), table)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report != (Report{Rows: 3, Evaluated: 1, Skipped: 2}) {
		t.Errorf("report = %+v", report)
	}
	if len(seen) != 1 || seen[0] != words(100) {
		t.Errorf("scorer called with %d rows, want only the complete one", len(seen))
	}

	overall := table.Column("Nhận xét chung")
	for i := 0; i < 2; i++ {
		if got := table.Value(i, overall); got != "" {
			t.Errorf("row %d overall = %q, want empty", i+1, got)
		}
	}
	if got := table.Value(2, table.Column("Điểm trung bình cộng")); got != "5" {
		t.Errorf("row 3 average = %q", got)
	}
}

func TestBatch_MissingColumns(t *testing.T) {
	table := sheets.NewTable("Exam", ColumnParagraph, ColumnSummary)
	table.Append("a", "b")

	called := false
	scorer := services.SimilarityFunc(func(ctx context.Context, a, b string) (float64, error) {
		called = true
		return 1, nil
	})

	_, err := NewBatch(scorer).Run(context.Background(), table)
	if !errors.Is(err, sheets.ErrMissingColumns) {
		t.Fatalf("err = %v, want ErrMissingColumns", err)
	}
	if !strings.Contains(err.Error(), ColumnAuthor) {
		t.Errorf("error should name the missing column: %v", err)
	}
	if called || len(table.Header) != 2 {
		t.Error("table must be untouched")
	}
}

func TestEmbeddingSimilarity(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			http.Error(w, `{"error":{"message":"overloaded","type":"server_error"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 1}},
			},
		})
	}))
	defer srv.Close()

	conf := openai.DefaultConfig("test-key")
	conf.BaseURL = srv.URL + "/v1"
	s := NewEmbeddingSimilarityWithClient(openai.NewClientWithConfig(conf), "text-embedding-3-small", summarize.Policy{Attempts: 2})

	got, err := s.Similarity(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if want := 1 / math.Sqrt2; math.Abs(got-want) > 1e-6 {
		t.Errorf("Similarity = %v, want %v", got, want)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

func TestMain(m *testing.M) {
	_ = logger.Setup(logger.LogConfig{Level: "error", Format: "json"})
	os.Exit(m.Run())
}
